package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check [template...]",
		Short: "Report compile errors without writing programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("")
			if err != nil {
				return err
			}
			return s.check(cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
		},
	}
}

// check compiles the templates and prints one line per success and a
// diagnostic per failure.
func (s *session) check(out, errOut io.Writer, args []string) error {
	names, err := s.templates(args)
	if err != nil {
		return err
	}
	programs, cerr := s.compiler.CompileAll(names)
	for _, p := range programs {
		fmt.Fprintf(out, "%s %s\n", okStyle.Render("ok"), p.Name)
	}
	failed := len(names) - len(programs)
	fmt.Fprintf(out, "%d templates, %d failed\n", len(names), failed)
	if cerr != nil {
		renderError(errOut, cerr, s.source)
		return errFailed
	}
	return nil
}
