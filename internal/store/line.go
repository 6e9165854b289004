package store

import (
	"fmt"
	"strings"
)

// Row is one showtime line: start|title|location.
type Row struct {
	StartsAt string
	Title    string
	Location string
}

// FormatError reports an import line that is not three non-empty,
// pipe-separated fields.
type FormatError struct {
	Number int // 1-based, counting non-blank lines
	Line   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Number, e.Reason, e.Line)
}

// ParseLine splits one line into a Row. Fields are trimmed.
func ParseLine(line string) (Row, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return Row{}, &FormatError{Line: line, Reason: fmt.Sprintf("want 3 fields, got %d", len(parts))}
	}
	row := Row{
		StartsAt: strings.TrimSpace(parts[0]),
		Title:    strings.TrimSpace(parts[1]),
		Location: strings.TrimSpace(parts[2]),
	}
	if row.StartsAt == "" || row.Title == "" || row.Location == "" {
		return Row{}, &FormatError{Line: line, Reason: "incomplete entry"}
	}
	return row, nil
}
