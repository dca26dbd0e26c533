package entity

import (
	"encoding/json"
	"sync"
	"time"
)

// TraceEntry is exactly one of {userPrompt}, {response} or {error}.
type TraceEntry struct {
	UserPrompt *SendParams    `json:"userPrompt,omitempty"`
	Response   *ModelResponse `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"-"`
}

// Turn reports which conversation turn the entry records. Error entries report "".
func (e TraceEntry) Turn() TurnKind {
	switch {
	case e.UserPrompt != nil:
		return e.UserPrompt.Message.Kind()
	case e.Response != nil:
		return e.Response.Kind()
	}
	return ""
}

// Trace is the append-only record of one conversation. Entries are never
// edited after Append; a reset replaces the whole Trace.
type Trace struct {
	mu             sync.RWMutex
	conversationID string
	startedAt      time.Time
	entries        []TraceEntry
}

func NewTrace(conversationID string, startedAt time.Time) *Trace {
	return &Trace{conversationID: conversationID, startedAt: startedAt}
}

func (t *Trace) ConversationID() string { return t.conversationID }
func (t *Trace) StartedAt() time.Time   { return t.startedAt }

func (t *Trace) AppendUserPrompt(p SendParams, at time.Time) {
	t.append(TraceEntry{UserPrompt: &p, At: at})
}

func (t *Trace) AppendResponse(r ModelResponse, at time.Time) {
	t.append(TraceEntry{Response: &r, At: at})
}

func (t *Trace) AppendError(err error, at time.Time) {
	t.append(TraceEntry{Error: err.Error(), At: at})
}

func (t *Trace) append(e TraceEntry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

func (t *Trace) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Entries returns a copy of the recorded entries.
func (t *Trace) Entries() []TraceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Trace) MarshalJSON() ([]byte, error) {
	entries := t.Entries()
	if entries == nil {
		entries = []TraceEntry{}
	}
	return json.Marshal(entries)
}

// Export serializes the trace as indented JSON text.
func (t *Trace) Export() (string, error) {
	entries := t.Entries()
	if entries == nil {
		entries = []TraceEntry{}
	}
	data, err := json.MarshalIndent(entries, "", " ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// TraceRecord is an archived trace.
type TraceRecord struct {
	ConversationID string    `json:"conversationId"`
	PageURL        string    `json:"pageUrl"`
	StartedAt      time.Time `json:"startedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	EntryCount     int       `json:"entryCount"`
	Payload        string    `json:"payload,omitempty"`
}
