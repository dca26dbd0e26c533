package schematemplate

import "time"

// Patterns recognized in a string schema's "format". Each renders a literal
// anchored to the evaluation instant (in UTC).
const (
	PatternDateTimeMillis = `^[0-9]{4}-(0[1-9]|1[0-2])-[0-9]{2}T([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9](\.[0-9]{1,3})?)?$`
	PatternDateTimeSecs   = `^[0-9]{4}-(0[1-9]|1[0-2])-[0-9]{2}T([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`
	PatternDateTime       = `^[0-9]{4}-(0[1-9]|1[0-2])-[0-9]{2}T([01][0-9]|2[0-3]):[0-5][0-9]$`
	PatternYearMonth      = `^[0-9]{4}-(0[1-9]|1[0-2])$`
	PatternWeek           = `^[0-9]{4}-W(0[1-9]|[1-4][0-9]|5[0-3])$`
	PatternTimeMillis     = `^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9](\.[0-9]{1,3})?)?$`
	PatternTimeSecs       = `^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$`
	PatternTime           = `^([01][0-9]|2[0-3]):[0-5][0-9]$`
	PatternHexColor       = `^#[0-9a-zA-Z]{6}$`
)

type formatter func(now time.Time) string

func layout(l string) formatter {
	return func(now time.Time) string { return now.UTC().Format(l) }
}

func literal(s string) formatter {
	return func(time.Time) string { return s }
}

var formats = map[string]formatter{
	"date":                layout("2006-01-02"),
	PatternDateTimeMillis: layout("2006-01-02T15:04:05.000"),
	PatternDateTimeSecs:   layout("2006-01-02T15:04:05"),
	PatternDateTime:       layout("2006-01-02T15:04"),
	PatternYearMonth:      layout("2006-01"),
	PatternWeek:           func(now time.Time) string { return now.UTC().Format("2006") + "-W01" },
	PatternTimeMillis:     layout("15:04:05.000"),
	PatternTimeSecs:       layout("15:04:05"),
	PatternTime:           layout("15:04"),
	PatternHexColor:       literal("#ff00ff"),
	"tel":                 literal("123-456-7890"),
	"email":               literal("user@example.com"),
}

// FormatExample renders the literal for a recognized format.
func FormatExample(format string, now time.Time) (string, bool) {
	f, ok := formats[format]
	if !ok {
		return "", false
	}
	return f(now), true
}
