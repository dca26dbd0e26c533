package htmlscan

import (
	"testing"

	"webmcp-agent/internal/domain/entity"
)

const bookingPage = `<!DOCTYPE html>
<html>
<body>
	<form toolname="searchFlights" action="/search" target="results">
		<input name="to">
	</form>
	<form toolname="login" action="/login">
		<input name="user">
	</form>
	<form toolname="openHelp" action="/help" target="_blank"></form>
	<form toolname="orphan" action="/x" target="nowhere"></form>
	<form toolname="topLevel" action="/x" target="_top"></form>
	<form action="/plain"></form>
	<iframe name="results" src="about:blank"></iframe>
</body>
</html>`

func TestFindBinding(t *testing.T) {
	tests := []struct {
		tool       entity.ToolName
		wantBound  bool
		wantTarget string
	}{
		{"searchFlights", true, "results"},
		{"login", true, ""},
		{"topLevel", true, ""},
		{"openHelp", false, ""},
		{"orphan", false, ""},
		{"imperativeTool", false, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			got, err := FindBinding(bookingPage, tt.tool)
			if err != nil {
				t.Fatalf("FindBinding failed: %v", err)
			}
			if got.Tool != tt.tool {
				t.Errorf("Tool = %q, want %q", got.Tool, tt.tool)
			}
			if got.Bound != tt.wantBound {
				t.Errorf("Bound = %v, want %v", got.Bound, tt.wantBound)
			}
			if got.Target != tt.wantTarget {
				t.Errorf("Target = %q, want %q", got.Target, tt.wantTarget)
			}
		})
	}
}

func TestFindBinding_MainDocument(t *testing.T) {
	got, _ := FindBinding(bookingPage, "login")
	if !got.MainDocument() {
		t.Errorf("expected main document binding, got %s", got)
	}
}
