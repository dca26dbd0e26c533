package prompts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"webmcp-agent/internal/domain/entity"
)

type PromptData struct {
	Today     string
	ToolsJSON string
}

// FormatDate renders t as "Saturday, March 7, 2026".
func FormatDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// SystemInstruction renders the system directives for one model turn, one
// directive per line.
func SystemInstruction(baseTemplate string, now time.Time) ([]string, error) {
	text, err := render("system", baseTemplate, PromptData{Today: FormatDate(now)})
	if err != nil {
		return nil, err
	}
	return lines(text), nil
}

// SuggestionContents renders the one-shot request for an example user prompt.
func SuggestionContents(baseTemplate string, now time.Time, tools []entity.Tool) ([]string, error) {
	if tools == nil {
		tools = []entity.Tool{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return nil, fmt.Errorf("marshal tools: %w", err)
	}

	text, err := render("suggest", baseTemplate, PromptData{
		Today:     FormatDate(now),
		ToolsJSON: string(toolsJSON),
	})
	if err != nil {
		return nil, err
	}
	return lines(text), nil
}

func render(name, baseTemplate string, data PromptData) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
