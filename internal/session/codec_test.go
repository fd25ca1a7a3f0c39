package session

import (
	"encoding/json"
	"testing"

	"github.com/seshat-labs/seshat/internal/log"
)

func TestDecodeEventData_NativeArray(t *testing.T) {
	data := []byte(`{"events":[{"id":"e1","author":"user","timestamp":100}]}`)

	events := decodeEventData(data, "s1", log.NewNop())

	if len(events) != 1 {
		t.Fatalf("decodeEventData() returned %d events, want 1", len(events))
	}
	if events[0].ID != "e1" {
		t.Errorf("event ID = %q, want %q", events[0].ID, "e1")
	}
	if events[0].Author != "user" {
		t.Errorf("event Author = %q, want %q", events[0].Author, "user")
	}
}

func TestDecodeEventData_LegacyEncodings(t *testing.T) {
	// Both historical shapes must decode to the same list as the native
	// array [{"id":"e1"}].
	tests := []struct {
		name string
		blob string
	}{
		{
			name: "native array",
			blob: `{"events":[{"id":"e1"}]}`,
		},
		{
			name: "double-encoded string",
			blob: `{"events":"[{\"id\":\"e1\"}]"}`,
		},
		{
			name: "quote-wrapped double-encoded string",
			blob: `{"events":"\"[{\\\"id\\\":\\\"e1\\\"}]\""}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := decodeEventData([]byte(tt.blob), "s1", log.NewNop())

			if len(events) != 1 {
				t.Fatalf("decodeEventData() returned %d events, want 1", len(events))
			}
			if events[0].ID != "e1" {
				t.Errorf("event ID = %q, want %q", events[0].ID, "e1")
			}
		})
	}
}

func TestDecodeEventData_DegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "empty blob", blob: ""},
		{name: "not json", blob: "not json at all"},
		{name: "no events key", blob: `{"other":1}`},
		{name: "events is a number", blob: `{"events":42}`},
		{name: "events string is not json", blob: `{"events":"definitely not json"}`},
		{name: "events string holds an object", blob: `{"events":"{\"id\":\"e1\"}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := decodeEventData([]byte(tt.blob), "s1", log.NewNop())
			if len(events) != 0 {
				t.Errorf("decodeEventData() returned %d events, want 0", len(events))
			}
		})
	}
}

func TestDecodeEventData_SkipsMalformedElements(t *testing.T) {
	// One bad element must not poison the rest of the list.
	data := []byte(`{"events":[{"id":"e1","author":"user"},"not an object",{"id":"e2","author":"agent"}]}`)

	events := decodeEventData(data, "s1", log.NewNop())

	if len(events) != 2 {
		t.Fatalf("decodeEventData() returned %d events, want 2", len(events))
	}
	if events[0].ID != "e1" || events[1].ID != "e2" {
		t.Errorf("event IDs = %q, %q; want e1, e2", events[0].ID, events[1].ID)
	}
}

func TestEncodeEventData_RoundTrip(t *testing.T) {
	events := []*Event{
		{
			ID:           "e1",
			InvocationID: "inv1",
			Author:       "agent",
			Timestamp:    1700000000,
			Content: &Content{
				Role: "model",
				Parts: []*Part{
					{FunctionCall: &FunctionCall{
						ID:   "fc1",
						Name: "lookup",
						Args: map[string]any{"id": float64(7)},
					}},
				},
			},
			Actions: &EventActions{
				StateDelta:      map[string]any{"step": "done"},
				TransferToAgent: "planner",
			},
		},
	}

	data, err := encodeEventData(events)
	if err != nil {
		t.Fatalf("encodeEventData() error = %v", err)
	}

	decoded := decodeEventData(data, "s1", log.NewNop())
	if len(decoded) != 1 {
		t.Fatalf("decoded %d events, want 1", len(decoded))
	}

	got := decoded[0]
	if got.ID != "e1" || got.InvocationID != "inv1" || got.Author != "agent" {
		t.Errorf("identity fields did not survive round trip: %+v", got)
	}
	fc := got.Content.Parts[0].FunctionCall
	if fc == nil {
		t.Fatal("function call part missing after round trip")
	}
	if fc.Name != "lookup" {
		t.Errorf("function call name = %q, want %q", fc.Name, "lookup")
	}
	if fc.Args["id"] != float64(7) {
		t.Errorf("function call args id = %v, want 7", fc.Args["id"])
	}
	if got.Actions.TransferToAgent != "planner" {
		t.Errorf("transfer_to_agent = %q, want %q", got.Actions.TransferToAgent, "planner")
	}
}

func TestEncodeEventData_NilListIsEmptyArray(t *testing.T) {
	data, err := encodeEventData(nil)
	if err != nil {
		t.Fatalf("encodeEventData() error = %v", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("encoded blob is not valid JSON: %v", err)
	}
	if string(envelope["events"]) != "[]" {
		t.Errorf("events = %s, want []", envelope["events"])
	}
}

func TestUnwrapQuoted(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "wrapped", in: `"[{\"id\":\"e1\"}]"`, want: `[{"id":"e1"}]`},
		{name: "not wrapped", in: `[{"id":"e1"}]`, want: `[{"id":"e1"}]`},
		{name: "empty", in: "", want: ""},
		{name: "single quote char", in: `"`, want: `"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unwrapQuoted(tt.in); got != tt.want {
				t.Errorf("unwrapQuoted(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
