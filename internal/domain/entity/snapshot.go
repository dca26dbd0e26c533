package entity

import "time"

// ToolRegistrySnapshot is an immutable listing of the tools one page exposes.
// A registry change always produces a new snapshot with a higher Version.
type ToolRegistrySnapshot struct {
	PageID     string    `json:"pageId"`
	URL        string    `json:"url"`
	Version    uint64    `json:"version"`
	Tools      []Tool    `json:"tools"`
	ObservedAt time.Time `json:"observedAt"`
}

// NewSnapshot copies tools so later mutation of the caller's slice cannot leak in.
func NewSnapshot(pageID, url string, version uint64, tools []Tool, at time.Time) ToolRegistrySnapshot {
	copied := make([]Tool, len(tools))
	copy(copied, tools)
	return ToolRegistrySnapshot{
		PageID:     pageID,
		URL:        url,
		Version:    version,
		Tools:      copied,
		ObservedAt: at,
	}
}

// Equal compares tool sets structurally: same tools in the same order.
// Version, URL and observation time are ignored.
func (s ToolRegistrySnapshot) Equal(other ToolRegistrySnapshot) bool {
	if len(s.Tools) != len(other.Tools) {
		return false
	}
	for i := range s.Tools {
		if s.Tools[i] != other.Tools[i] {
			return false
		}
	}
	return true
}

// Lookup finds a tool by name.
func (s ToolRegistrySnapshot) Lookup(name ToolName) (Tool, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func (s ToolRegistrySnapshot) Names() []ToolName {
	names := make([]ToolName, 0, len(s.Tools))
	for _, t := range s.Tools {
		names = append(names, t.Name)
	}
	return names
}

func (s ToolRegistrySnapshot) Empty() bool {
	return len(s.Tools) == 0
}

// RegistryEvent is pushed to registry subscribers. Exactly one of Snapshot or
// Err is set; Err carries a one-line status for the operator.
type RegistryEvent struct {
	Snapshot *ToolRegistrySnapshot
	Err      error
}
