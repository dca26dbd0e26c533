package entity

// LoopState is the agent loop state machine position.
type LoopState string

const (
	StateIdle           LoopState = "IDLE"
	StateAwaitingModel  LoopState = "AWAITING_MODEL"
	StateExecutingTools LoopState = "EXECUTING_TOOLS"
	StateDone           LoopState = "DONE"
	StateErrored        LoopState = "ERRORED"
)

// Busy reports whether a conversation turn is in flight.
func (s LoopState) Busy() bool {
	return s == StateAwaitingModel || s == StateExecutingTools
}

// RunResult summarizes one prompt run through the loop.
type RunResult struct {
	ConversationID string `json:"conversationId"`
	FinalText      string `json:"finalText,omitempty"`
	// Warning is set instead of FinalText when the model returned no text.
	Warning   string    `json:"warning,omitempty"`
	Turns     int       `json:"turns"`
	ToolCalls int       `json:"toolCalls"`
	State     LoopState `json:"state"`
}
