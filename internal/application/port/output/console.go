package output

// LineKind classifies operator log lines.
type LineKind string

const (
	LineUser    LineKind = "user"
	LineModel   LineKind = "model"
	LineTool    LineKind = "tool"
	LineResult  LineKind = "result"
	LineWarning LineKind = "warning"
	LineStatus  LineKind = "status"
)

// ConsolePort is the operator-visible log: one human-readable line per event.
type ConsolePort interface {
	Line(kind LineKind, text string)
	Clear()
}
