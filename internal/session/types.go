package session

import (
	"time"
)

// Part type discriminators persisted in event_content_parts.part_type.
const (
	PartTypeText             = "text"
	PartTypeFunctionCall     = "functionCall"
	PartTypeFunctionResponse = "functionResponse"
)

// Session represents a conversation session (application-level type).
//
// State holds arbitrary key/value state owned by the agent runtime.
// Events is the ordered event log, oldest first.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []*Event       `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

// Copy returns a deep copy of the session. The store hands out copies so
// callers never share mutable state with rows cached in-flight.
func (s *Session) Copy() *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          copyMap(s.State),
		LastUpdateTime: s.LastUpdateTime,
	}
	if s.Events != nil {
		out.Events = make([]*Event, len(s.Events))
		for i, ev := range s.Events {
			out.Events[i] = ev.Copy()
		}
	}
	return out
}

// Event is one immutable record of something that happened in a session:
// a message, a function call, or a function result. Once appended it is
// never mutated, only re-serialized when the owning session is saved.
type Event struct {
	ID           string        `json:"id"`
	InvocationID string        `json:"invocation_id,omitempty"`
	Author       string        `json:"author"`
	Timestamp    float64       `json:"timestamp"` // seconds since epoch
	Partial      bool          `json:"partial,omitempty"`
	Content      *Content      `json:"content,omitempty"`
	Actions      *EventActions `json:"actions,omitempty"`
}

// Copy returns a deep copy of the event.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	out := *e
	out.Content = e.Content.Copy()
	out.Actions = e.Actions.Copy()
	return &out
}

// EventActions carries the side effects requested by an event.
type EventActions struct {
	StateDelta           map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta        map[string]any `json:"artifact_delta,omitempty"`
	RequestedAuthConfigs map[string]any `json:"requested_auth_configs,omitempty"`
	TransferToAgent      string         `json:"transfer_to_agent,omitempty"`
}

// Copy returns a deep copy of the actions record.
func (a *EventActions) Copy() *EventActions {
	if a == nil {
		return nil
	}
	return &EventActions{
		StateDelta:           copyMap(a.StateDelta),
		ArtifactDelta:        copyMap(a.ArtifactDelta),
		RequestedAuthConfigs: copyMap(a.RequestedAuthConfigs),
		TransferToAgent:      a.TransferToAgent,
	}
}

// Content is the structured payload of an event: an ordered sequence of
// parts with an optional role ("user", "model", ...).
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts,omitempty"`
}

// Copy returns a deep copy of the content.
func (c *Content) Copy() *Content {
	if c == nil {
		return nil
	}
	out := &Content{Role: c.Role}
	if c.Parts != nil {
		out.Parts = make([]*Part, len(c.Parts))
		for i, p := range c.Parts {
			out.Parts[i] = p.Copy()
		}
	}
	return out
}

// Part is a tagged union: exactly one of Text, FunctionCall, or
// FunctionResponse is populated. Parts matching none of the three known
// kinds are skipped when persisting relational rows.
type Part struct {
	Text             *string           `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// Copy returns a deep copy of the part.
func (p *Part) Copy() *Part {
	if p == nil {
		return nil
	}
	out := &Part{}
	if p.Text != nil {
		t := *p.Text
		out.Text = &t
	}
	if p.FunctionCall != nil {
		out.FunctionCall = &FunctionCall{
			ID:   p.FunctionCall.ID,
			Name: p.FunctionCall.Name,
			Args: copyMap(p.FunctionCall.Args),
		}
	}
	if p.FunctionResponse != nil {
		out.FunctionResponse = &FunctionResponse{
			ID:       p.FunctionResponse.ID,
			Name:     p.FunctionResponse.Name,
			Response: copyMap(p.FunctionResponse.Response),
		}
	}
	return out
}

// Type returns the part_type discriminator, or "" for a part that matches
// none of the known kinds.
func (p *Part) Type() string {
	switch {
	case p == nil:
		return ""
	case p.Text != nil:
		return PartTypeText
	case p.FunctionCall != nil:
		return PartTypeFunctionCall
	case p.FunctionResponse != nil:
		return PartTypeFunctionResponse
	default:
		return ""
	}
}

// TextPart builds a text part.
func TextPart(text string) *Part {
	return &Part{Text: &text}
}

// FunctionCall is a request to invoke a named function with a JSON
// argument mapping.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is the result of a function invocation.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

// copyMap deep-copies a JSON-shaped map (maps, slices, scalars).
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		// Scalars from encoding/json (string, float64, bool, nil) are
		// immutable and safe to share.
		return v
	}
}
