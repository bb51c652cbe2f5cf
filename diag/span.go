package diag

import (
	"fmt"
	"strings"
)

// Span locates a range of template source. Start and End are byte offsets
// (End exclusive); Line and Column are 1-based and describe Start.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

// IsZero reports whether the span carries no location.
func (s Span) IsZero() bool {
	return s.Line == 0
}

// To returns a span from the start of s to the end of other.
func (s Span) To(other Span) Span {
	out := s
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d[%d:%d]", s.Line, s.Column, s.Start, s.End)
}

// Locate computes the line and column of a byte offset in source.
func Locate(source string, offset int) (line, column int) {
	if offset > len(source) {
		offset = len(source)
	}
	line = 1 + strings.Count(source[:offset], "\n")
	lineStart := strings.LastIndexByte(source[:offset], '\n') + 1
	column = 1 + len([]rune(source[lineStart:offset]))
	return line, column
}

// Format renders the error with the offending source line and a caret under
// the start of the span. source must be the text of e.Template.
func (e *Error) Format(source string) string {
	var b strings.Builder
	b.WriteString(e.Error())
	if e.Span.Line == 0 || source == "" {
		return b.String()
	}
	lines := strings.Split(source, "\n")
	if e.Span.Line > len(lines) {
		return b.String()
	}
	text := strings.TrimRight(lines[e.Span.Line-1], "\r")
	gutter := fmt.Sprintf("%d", e.Span.Line)
	fmt.Fprintf(&b, "\n %s | %s\n %s | %s^", gutter, text, strings.Repeat(" ", len(gutter)), caretPad(text, e.Span.Column))
	return b.String()
}

// caretPad keeps tabs so the caret lines up with the source line.
func caretPad(line string, column int) string {
	var b strings.Builder
	for i, r := range []rune(line) {
		if i >= column-1 {
			break
		}
		if r == '\t' {
			b.WriteRune('\t')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}
