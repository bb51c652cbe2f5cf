package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"

	"github.com/deicod/jinjac/diag"
)

var (
	errorColor = lipgloss.Color("9")
	okColor    = lipgloss.Color("2")
	mutedColor = lipgloss.Color("244")

	kindStyle  = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	locStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	caretStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(okColor).Bold(true)
)

// renderError writes err as styled diagnostics. source returns the text of
// a template so the offending line can be shown.
func renderError(w io.Writer, err error, source func(string) string) {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			renderError(w, e, source)
		}
		return
	}

	var de *diag.Error
	if !errors.As(err, &de) {
		fmt.Fprintf(w, "%s: %v\n", kindStyle.Render("error"), err)
		return
	}

	header := kindStyle.Render(string(de.Kind))
	if loc := location(de); loc != "" {
		header += " " + locStyle.Render(loc)
	}
	fmt.Fprintf(w, "%s: %s\n", header, de.Message)

	if de.Template == "" || de.Span.Line == 0 {
		return
	}
	formatted := strings.Split(de.Format(source(de.Template)), "\n")
	if len(formatted) < 3 {
		return
	}
	snippet, caret := formatted[len(formatted)-2], formatted[len(formatted)-1]
	bar := strings.Index(caret, "| ")
	fmt.Fprintln(w, locStyle.Render(snippet))
	if bar < 0 {
		fmt.Fprintln(w, caret)
		return
	}
	fmt.Fprintln(w, locStyle.Render(caret[:bar+2])+caretStyle.Render(caret[bar+2:]))
}

func location(de *diag.Error) string {
	switch {
	case de.Template != "" && de.Span.Line > 0:
		return fmt.Sprintf("%s:%d:%d", de.Template, de.Span.Line, de.Span.Column)
	case de.Span.Line > 0:
		return fmt.Sprintf("%d:%d", de.Span.Line, de.Span.Column)
	}
	return de.Template
}
