package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/nodes"
)

// Print modes of the compile command.
const (
	printNone = "none"
	printAST  = "ast"
	printCode = "code"
	printAll  = "all"
)

func newCompileCommand(a *app) *cobra.Command {
	var block, printMode, outDir string

	cmd := &cobra.Command{
		Use:   "compile [template...]",
		Short: "Compile templates into instruction programs",
		Long: `Compiles the named templates, or every template found in the configured
directories. Programs are written as YAML, to --out or to standard output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch printMode {
			case printNone, printAST, printCode, printAll:
			default:
				return diag.Named(diag.KindConfig, "print", diag.Span{}, "invalid value for `print`: %q (expected none, ast, code or all)", printMode)
			}
			s, err := a.session(block)
			if err != nil {
				return err
			}
			names, err := s.templates(args)
			if err != nil {
				return err
			}
			programs, cerr := s.compiler.CompileAll(names)
			out := cmd.OutOrStdout()
			for _, p := range programs {
				if err := s.emit(out, p, printMode, outDir); err != nil {
					return err
				}
			}
			if cerr != nil {
				renderError(cmd.ErrOrStderr(), cerr, s.source)
				return errFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&block, "block", "b", "", "compile only the named block")
	cmd.Flags().StringVarP(&printMode, "print", "p", printNone, "dump the parsed AST and/or the program: none, ast, code or all")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write each program to <out>/<template>.yaml")
	return cmd
}

func (s *session) emit(out io.Writer, p *ir.Program, printMode, outDir string) error {
	if printMode == printAST || printMode == printAll {
		tmpl, err := s.compiler.Parse(p.Name)
		if err != nil {
			return err
		}
		fmt.Fprint(out, nodes.Dump(tmpl))
	}
	if printMode == printCode || printMode == printAll {
		fmt.Fprint(out, ir.Dump(p))
	}

	if outDir == "" && printMode != printNone {
		return nil
	}
	data, err := ir.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", p.Name)
	}
	if outDir == "" {
		fmt.Fprintln(out, "---")
		_, err = out.Write(data)
		return err
	}
	path := filepath.Join(outDir, filepath.FromSlash(p.Name)+".yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
