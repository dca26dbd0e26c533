package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"

	"webmcp-agent/internal/application/port/output"
)

var _ output.ConsolePort = (*Console)(nil)

const (
	maxKeptLines  = 500
	maxResultText = 2000
)

type Line struct {
	Kind output.LineKind `json:"kind"`
	Text string          `json:"text"`
}

// Console prints the operator log and reads operator input.
type Console struct {
	out    io.Writer
	reader *bufio.Reader
	styles map[output.LineKind]*color.Color
	faint  *color.Color

	mu    sync.Mutex
	lines []Line
}

func NewConsole() *Console {
	return NewConsoleWith(os.Stdin, os.Stdout, false)
}

func NewConsoleWith(in io.Reader, out io.Writer, noColor bool) *Console {
	styles := map[output.LineKind]*color.Color{
		output.LineUser:    color.New(color.FgCyan, color.Bold),
		output.LineModel:   color.New(color.FgGreen),
		output.LineTool:    color.New(color.FgYellow),
		output.LineResult:  color.New(color.Faint),
		output.LineWarning: color.New(color.FgRed),
		output.LineStatus:  color.New(color.FgBlue),
	}
	faint := color.New(color.Faint)
	if noColor {
		for _, c := range styles {
			c.DisableColor()
		}
		faint.DisableColor()
	}
	return &Console{
		out:    out,
		reader: bufio.NewReader(in),
		styles: styles,
		faint:  faint,
	}
}

func (c *Console) Line(kind output.LineKind, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = append(c.lines, Line{Kind: kind, Text: text})
	if len(c.lines) > maxKeptLines {
		c.lines = c.lines[len(c.lines)-maxKeptLines:]
	}

	if kind == output.LineResult {
		text = truncate(text, maxResultText)
	}

	style, ok := c.styles[kind]
	if !ok {
		fmt.Fprintln(c.out, text)
		return
	}
	style.Fprintln(c.out, text)
}

// Clear forgets the kept lines and prints a separator.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.faint.Fprintln(c.out, "━━━ new conversation ━━━")
}

// Lines returns the lines printed since the last Clear.
func (c *Console) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// ReadLine prints the prompt label, pre-filled with draft, and returns the
// operator's answer. An empty answer accepts the draft.
func (c *Console) ReadLine(ctx context.Context, label, draft string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	if draft != "" {
		c.faint.Fprintf(c.out, "\n[suggestion] %s\n", draft)
	}
	fmt.Fprintf(c.out, "%s> ", label)
	c.mu.Unlock()

	answer, err := c.reader.ReadString('\n')
	if err != nil && (err != io.EOF || answer == "") {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return draft, nil
	}
	return answer, nil
}

// truncate cuts s to at most maxLen bytes without splitting a UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
