package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deicod/jinjac/compiler"
	"github.com/deicod/jinjac/config"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/escape"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/schema"
)

// app holds the persistent flags shared by every command.
type app struct {
	configPath string
	schemaPath string
	syntax     string
	whitespace string
	escape     string
	verbose    bool
	quiet      bool
	logJSON    bool

	log *logrus.Logger
}

func (a *app) setupLogging(cmd *cobra.Command) {
	a.log.SetOutput(cmd.ErrOrStderr())
	if a.logJSON {
		a.log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		a.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	switch {
	case a.quiet:
		a.log.SetLevel(logrus.ErrorLevel)
	case a.verbose:
		a.log.SetLevel(logrus.DebugLevel)
	default:
		a.log.SetLevel(logrus.WarnLevel)
	}
}

// session is a configured compiler over the template directories.
type session struct {
	cfg      *config.Config
	loader   *loader.FileSystemLoader
	compiler *compiler.Compiler
}

func (a *app) session(block string) (*session, error) {
	cfg, err := config.LoadDiscovered(a.configPath)
	if err != nil {
		return nil, err
	}
	a.log.WithField("config", cfg.Path).Debug("configuration loaded")

	sch := schema.Empty()
	if a.schemaPath != "" {
		if sch, err = schema.LoadFile(a.schemaPath); err != nil {
			return nil, err
		}
	}

	ws := lexer.WsNone
	if a.whitespace != "" {
		var ok bool
		if ws, ok = lexer.ParseWhitespace(a.whitespace); !ok {
			return nil, diag.Named(diag.KindConfig, "whitespace", diag.Span{}, "invalid value for `whitespace`: %q", a.whitespace)
		}
	}

	fsl := loader.NewFileSystemLoader(cfg.SearchDirs()...)
	c, err := compiler.New(cfg, fsl, sch, compiler.Options{
		Syntax:     a.syntax,
		Whitespace: ws,
		Escape:     a.escape,
		Block:      block,
		Logger:     a.log,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, loader: fsl, compiler: c}, nil
}

// templates returns args, or every template below the search directories
// when args is empty.
func (s *session) templates(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, dir := range s.loader.SearchPath() {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !s.isTemplate(path) {
				return nil
			}
			if name, ok := s.loader.NameOf(path); ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", dir)
		}
	}
	sort.Strings(names)
	return names, nil
}

// isTemplate reports whether path has an extension some escaper handles.
func (s *session) isTemplate(path string) bool {
	ext := strings.ToLower(escape.Extension(filepath.Base(path)))
	if ext == "" {
		return false
	}
	for _, known := range s.cfg.Escapers.Extensions() {
		if ext == known {
			return true
		}
	}
	return false
}

// source returns the text of a template for diagnostics, "" when it cannot
// be read.
func (s *session) source(name string) string {
	src, err := s.compiler.Source(name)
	if err != nil {
		if data, ferr := os.ReadFile(name); ferr == nil {
			return string(data)
		}
		return ""
	}
	return src
}
