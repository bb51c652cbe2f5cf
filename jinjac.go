// Package jinjac compiles Jinja-style templates ahead of time into
// instruction programs checked against a context schema.
package jinjac

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/deicod/jinjac/compiler"
	"github.com/deicod/jinjac/config"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/schema"
)

// Version of the jinjac library
const Version = "0.1.0"

// Program is a compiled template
type Program = ir.Program

// Compiler compiles templates found by a loader
type Compiler = compiler.Compiler

// Options are per-compile overrides
type Options = compiler.Options

// Schema describes the context a template is rendered with
type Schema = schema.Schema

// Error is a located compile error
type Error = diag.Error

// NewCompiler creates a compiler. See compiler.New for the nil defaults.
func NewCompiler(cfg *config.Config, l loader.Loader, sch *Schema, opts Options) (*Compiler, error) {
	return compiler.New(cfg, l, sch, opts)
}

// CompileString compiles source as the template name with the default
// configuration. Extends and includes are not available.
func CompileString(name, source string, sch *Schema) (*Program, error) {
	c, err := compiler.New(nil, loader.NewMapLoader(nil), sch, Options{})
	if err != nil {
		return nil, err
	}
	return c.CompileSource(name, source)
}

// CompileFile compiles a template file. The file's directory is the search
// path for the templates it extends or includes.
func CompileFile(filename string, sch *Schema) (*Program, error) {
	if filename == "" {
		return nil, diag.New(diag.KindTemplateNotFound, diag.Span{}, "filename must not be empty")
	}
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", filename)
	}
	c, err := compiler.New(nil, loader.NewFileSystemLoader(filepath.Dir(absPath)), sch, Options{})
	if err != nil {
		return nil, err
	}
	return c.Compile(filepath.Base(absPath))
}

// Node access for AST inspection

// Node represents an AST node
type Node = nodes.Node

// TemplateNode represents a template AST node
type TemplateNode = nodes.Template

// DumpAST returns a string representation of the AST for debugging
func DumpAST(node Node) string {
	return nodes.Dump(node)
}

// DumpProgram returns the textual listing of a program
func DumpProgram(p *Program) string {
	return ir.Dump(p)
}

// Walk traverses the AST using the visitor pattern
func Walk(visitor nodes.Visitor, node Node) {
	nodes.Walk(visitor, node)
}
