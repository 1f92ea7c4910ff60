package errors

import (
	"fmt"
	"strings"
)

// Diagnostics accumulates compile-time errors so one pass can report
// all of them. The zero value is ready to use.
type Diagnostics struct {
	items []*BiesError
	lines []string
}

// NewDiagnostics returns a list that attaches source lines to entries.
func NewDiagnostics(source string) *Diagnostics {
	d := &Diagnostics{}
	if source != "" {
		d.lines = strings.Split(source, "\n")
	}
	return d
}

// Add records an error, attaching the source line when it is known.
func (d *Diagnostics) Add(err *BiesError) {
	if err.Source == "" && err.Location.Line > 0 && err.Location.Line <= len(d.lines) {
		err.Source = strings.TrimRight(d.lines[err.Location.Line-1], "\r")
	}
	d.items = append(d.items, err)
}

// Addf records a CompileError-family diagnostic.
func (d *Diagnostics) Addf(t ErrorType, file string, line int, format string, args ...interface{}) {
	d.Add(New(t, file, line, format, args...))
}

func (d *Diagnostics) Len() int {
	return len(d.items)
}

func (d *Diagnostics) Items() []*BiesError {
	return d.items
}

// Err returns d when anything was recorded, nil otherwise.
func (d *Diagnostics) Err() error {
	if len(d.items) == 0 {
		return nil
	}
	return d
}

func (d *Diagnostics) Error() string {
	var sb strings.Builder
	for i, e := range d.items {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(e.Error())
	}
	if len(d.items) > 1 {
		sb.WriteString(fmt.Sprintf("\n\n%d errors", len(d.items)))
	}
	return sb.String()
}
