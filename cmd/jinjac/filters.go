package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFiltersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the available filters and their contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session("")
			if err != nil {
				return err
			}
			registry := s.compiler.Registry()
			out := cmd.OutOrStdout()
			for _, name := range registry.Names() {
				def, _ := registry.Lookup(name)
				line := def.Signature()
				if def.Custom {
					line += " " + locStyle.Render("(custom)")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
