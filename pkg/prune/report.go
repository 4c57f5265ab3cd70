package prune

import (
	"fmt"
	"io"
)

// ConsoleSink writes run output as plain lines: informational notices
// as-is, a model name as a header, and indented two-column detail
// lines below it.
type ConsoleSink struct {
	w io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Info(msg string) {
	fmt.Fprintln(s.w, msg)
}

func (s *ConsoleSink) Header(name string) {
	fmt.Fprintf(s.w, "%s\n", name)
}

func (s *ConsoleSink) Detail(name, value string) {
	fmt.Fprintf(s.w, "  %-24s %s\n", name, value)
}
