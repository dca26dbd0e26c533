package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ToolName string

func (t ToolName) String() string {
	return string(t)
}

// Tool is a page-declared capability. InputSchema is kept exactly as the page
// reported it: a JSON Schema document serialized as a string, possibly empty.
type Tool struct {
	Name        ToolName `json:"name"`
	Description string   `json:"description"`
	InputSchema string   `json:"inputSchema,omitempty"`
}

// DefaultInputSchema stands in for tools that declare no input schema.
const DefaultInputSchema = `{"type":"object","properties":{}}`

// ParsedInputSchema returns the declared schema as raw JSON, or
// DefaultInputSchema when none is declared. An undecodable schema is an error.
func (t Tool) ParsedInputSchema() (json.RawMessage, error) {
	raw := strings.TrimSpace(t.InputSchema)
	if raw == "" {
		return json.RawMessage(DefaultInputSchema), nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("tool %q declares an invalid input schema", t.Name)
	}
	return json.RawMessage(raw), nil
}

// FunctionDeclaration is the model-facing description of one tool.
type FunctionDeclaration struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	ParametersJSONSchema json.RawMessage `json:"parametersJsonSchema"`
}

type ToolGroup struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

// ToolInvocation is created right before dispatch and dropped once its result is matched.
type ToolInvocation struct {
	RequestID string   `json:"requestId"`
	PageID    string   `json:"pageId"`
	ToolName  ToolName `json:"toolName"`
	InputArgs string   `json:"inputArgs"`
}
