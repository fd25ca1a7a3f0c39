package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// eventData is the shape of the sessions.event_data JSONB column. The
// full event list is stored redundantly here so a session can be
// reconstructed from a single row read.
type eventData struct {
	Events []*Event `json:"events"`
}

// encodeEventData serializes the entire event list into the event_data
// blob. Always the whole list, never incremental.
func encodeEventData(events []*Event) ([]byte, error) {
	if events == nil {
		events = []*Event{}
	}
	data, err := json.Marshal(eventData{Events: events})
	if err != nil {
		return nil, fmt.Errorf("encoding event data: %w", err)
	}
	return data, nil
}

// decodeEventData parses the event_data blob back into an event list.
//
// Two historical encodings exist for the "events" value: a native JSON
// array, and a legacy double-encoded JSON string (possibly wrapped in an
// extra layer of quotes with escaped inner quotes). Both must decode to
// the same list. Corrupt or unrecognized payloads degrade to an empty
// list with a warning; a single malformed element is skipped, not fatal.
// This function never returns an error past itself.
func decodeEventData(data []byte, sessionID string, logger *slog.Logger) []*Event {
	if len(data) == 0 {
		return nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.Warn("malformed event_data blob, continuing without events",
			"session_id", sessionID, "error", err)
		return nil
	}

	raw, ok := envelope["events"]
	if !ok {
		return nil
	}

	elements, err := decodeEventList(raw)
	if err != nil {
		logger.Warn("unrecognized events payload, continuing without events",
			"session_id", sessionID, "error", err)
		return nil
	}

	events := make([]*Event, 0, len(elements))
	for _, el := range elements {
		var ev Event
		if err := json.Unmarshal(el, &ev); err != nil {
			logger.Warn("skipping malformed event",
				"session_id", sessionID, "error", err)
			continue
		}
		events = append(events, &ev)
	}
	return events
}

// decodeEventList resolves the two known encodings of the events value
// into a slice of raw elements: a native array, or a JSON string holding
// the array (legacy writers double-encoded it and sometimes wrapped the
// result in one more layer of quotes).
func decodeEventList(raw json.RawMessage) ([]json.RawMessage, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err == nil {
		return elements, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("events is neither an array nor a string")
	}

	encoded = unwrapQuoted(encoded)
	if err := json.Unmarshal([]byte(encoded), &elements); err != nil {
		return nil, fmt.Errorf("parsing legacy events string: %w", err)
	}
	return elements, nil
}

// unwrapQuoted strips one layer of wrapping quotes and unescapes embedded
// quotes if the string appears quote-wrapped.
func unwrapQuoted(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
