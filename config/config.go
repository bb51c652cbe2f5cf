// Package config loads jinjac.yaml: template directories, delimiter
// syntaxes, whitespace and escaping defaults, and custom filter contracts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/escape"
	"github.com/deicod/jinjac/filters"
	"github.com/deicod/jinjac/lexer"
)

const (
	// FileName is the configuration file looked up in the working directory.
	FileName = "jinjac.yaml"
	// EnvConfig names an explicit configuration file.
	EnvConfig = "JINJAC_CONFIG"

	appName = "jinjac"
)

// Config is a validated configuration.
type Config struct {
	// Path is the file the configuration was read from, empty for defaults.
	Path string
	// Dirs are the template search directories, absolute or relative to the
	// configuration file.
	Dirs          []string
	DefaultSyntax string
	Syntaxes      map[string]lexer.Syntax
	Whitespace    lexer.Whitespace
	// Escape overrides the extension based escape mode when set.
	Escape   string
	Escapers *escape.Escapers
	Filters  []filters.Def
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	def := lexer.DefaultSyntax()
	return &Config{
		Dirs:          []string{"templates"},
		DefaultSyntax: def.Name,
		Syntaxes:      map[string]lexer.Syntax{def.Name: def},
		Whitespace:    lexer.WsPreserve,
		Escapers:      escape.DefaultEscapers(),
	}
}

type rawConfig struct {
	General       rawGeneral   `yaml:"general"`
	Syntax        []rawSyntax  `yaml:"syntax"`
	Escaper       []rawEscaper `yaml:"escaper"`
	Filters       []rawFilter  `yaml:"filters"`
	FilterScripts []string     `yaml:"filter_scripts"`
}

type rawGeneral struct {
	Dirs          []string `yaml:"dirs"`
	DefaultSyntax string   `yaml:"default_syntax"`
	Whitespace    string   `yaml:"whitespace"`
	Escape        string   `yaml:"escape"`
}

type rawSyntax struct {
	Name         string `yaml:"name"`
	BlockStart   string `yaml:"block_start"`
	BlockEnd     string `yaml:"block_end"`
	ExprStart    string `yaml:"expr_start"`
	ExprEnd      string `yaml:"expr_end"`
	CommentStart string `yaml:"comment_start"`
	CommentEnd   string `yaml:"comment_end"`
}

type rawEscaper struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
}

type rawFilter struct {
	Name     string   `yaml:"name"`
	Input    string   `yaml:"input"`
	Output   string   `yaml:"output"`
	Args     []rawArg `yaml:"args"`
	Variadic bool     `yaml:"variadic"`
	Safe     bool     `yaml:"safe"`
}

type rawArg struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
}

// Parse decodes and validates a configuration document. Relative filter
// script paths are resolved against base.
func Parse(data []byte, base string) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, configError("", "invalid YAML: %v", err)
	}
	return raw.build(base)
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, diag.WithTemplate(err, path)
	}
	cfg.Path = path
	return cfg, nil
}

// Discover returns the configuration file to use, or "" for defaults. An
// explicit path from the flag or the environment must exist; the working
// directory and the user config directory are only used when present.
//
// Priority: flag > $JINJAC_CONFIG > ./jinjac.yaml > $XDG_CONFIG_HOME/jinjac/jinjac.yaml
func Discover(flagPath string) (string, error) {
	for _, explicit := range []string{flagPath, os.Getenv(EnvConfig)} {
		if explicit == "" {
			continue
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "config file %s", explicit)
		}
		return explicit, nil
	}

	candidates := []string{FileName}
	if dir, err := userConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, appName, FileName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}

func userConfigDir() (string, error) {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config"), nil
}

// LoadDiscovered loads the configuration Discover selects, or the defaults.
func LoadDiscovered(flagPath string) (*Config, error) {
	path, err := Discover(flagPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func configError(name, format string, args ...interface{}) *diag.Error {
	return diag.Named(diag.KindConfig, name, diag.Span{}, format, args...)
}

func (raw *rawConfig) build(base string) (*Config, error) {
	cfg := Default()

	if len(raw.General.Dirs) > 0 {
		cfg.Dirs = append([]string(nil), raw.General.Dirs...)
	}

	ws, ok := lexer.ParseWhitespace(raw.General.Whitespace)
	if !ok {
		return nil, configError("whitespace", "invalid value for `whitespace`: %q", raw.General.Whitespace)
	}
	cfg.Whitespace = ws

	for _, rs := range raw.Syntax {
		if rs.Name == "" {
			return nil, configError("", "syntax entries need a name")
		}
		if _, exists := cfg.Syntaxes[rs.Name]; exists {
			return nil, configError(rs.Name, "syntax %q is already defined", rs.Name)
		}
		syntax := lexer.Syntax{
			Name:         rs.Name,
			BlockStart:   rs.BlockStart,
			BlockEnd:     rs.BlockEnd,
			ExprStart:    rs.ExprStart,
			ExprEnd:      rs.ExprEnd,
			CommentStart: rs.CommentStart,
			CommentEnd:   rs.CommentEnd,
		}.WithDefaults()
		if err := syntax.Validate(); err != nil {
			return nil, err
		}
		cfg.Syntaxes[rs.Name] = syntax
	}

	if raw.General.DefaultSyntax != "" {
		cfg.DefaultSyntax = raw.General.DefaultSyntax
	}
	if _, ok := cfg.Syntaxes[cfg.DefaultSyntax]; !ok {
		return nil, configError(cfg.DefaultSyntax, "default syntax %q not found", cfg.DefaultSyntax)
	}

	for _, re := range raw.Escaper {
		if re.Name == "" || len(re.Extensions) == 0 {
			return nil, configError(re.Name, "escaper entries need a name and at least one extension")
		}
		cfg.Escapers.Add(re.Name, re.Extensions...)
	}
	if raw.General.Escape != "" {
		if !contains(cfg.Escapers.Modes(), raw.General.Escape) {
			return nil, configError("escape", "invalid value for `escape`: %q (known: %v)", raw.General.Escape, cfg.Escapers.Modes())
		}
		cfg.Escape = raw.General.Escape
	}

	for _, rf := range raw.Filters {
		def, err := rf.def()
		if err != nil {
			return nil, configError(rf.Name, "%v", err)
		}
		cfg.Filters = append(cfg.Filters, def)
	}
	for _, script := range raw.FilterScripts {
		path := script
		if !filepath.IsAbs(path) && base != "" {
			path = filepath.Join(base, path)
		}
		defs, err := filters.LoadStarlark(path, nil)
		if err != nil {
			return nil, configError(script, "filter script %s: %v", script, err)
		}
		cfg.Filters = append(cfg.Filters, defs...)
	}

	// duplicate or invalid contracts
	if _, err := cfg.Registry(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (rf rawFilter) def() (filters.Def, error) {
	params := make([]filters.Param, 0, len(rf.Args))
	for _, a := range rf.Args {
		class, err := filters.ParseClass(a.Type)
		if err != nil {
			return filters.Def{}, fmt.Errorf("filter %q argument %q: %w", rf.Name, a.Name, err)
		}
		params = append(params, filters.Param{Name: a.Name, Class: class, Optional: a.Optional})
	}
	input := rf.Input
	if input == "" {
		input = "any"
	}
	return filters.Declared(rf.Name, input, rf.Output, params, rf.Variadic, rf.Safe)
}

// Syntax returns the named syntax, or the default one for "".
func (c *Config) Syntax(name string) (lexer.Syntax, error) {
	if name == "" {
		name = c.DefaultSyntax
	}
	s, ok := c.Syntaxes[name]
	if !ok {
		return lexer.Syntax{}, configError(name, "syntax %q not found (defined: %v)", name, c.SyntaxNames())
	}
	return s, nil
}

// SyntaxNames returns the defined syntax names, sorted.
func (c *Config) SyntaxNames() []string {
	names := make([]string, 0, len(c.Syntaxes))
	for name := range c.Syntaxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry returns a filter registry holding the built-ins and every custom
// filter of the configuration.
func (c *Config) Registry() (*filters.Registry, error) {
	r := filters.NewRegistry()
	seen := make(map[string]bool, len(c.Filters))
	for _, def := range c.Filters {
		if seen[def.Name] {
			return nil, configError(def.Name, "filter %q is declared twice", def.Name)
		}
		seen[def.Name] = true
		if err := r.Register(def); err != nil {
			return nil, configError(def.Name, "%v", err)
		}
	}
	return r, nil
}

// SearchDirs returns Dirs with relative entries resolved against the
// directory of the configuration file.
func (c *Config) SearchDirs() []string {
	base := ""
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	out := make([]string, len(c.Dirs))
	for i, d := range c.Dirs {
		if filepath.IsAbs(d) || base == "" {
			out[i] = d
		} else {
			out[i] = filepath.Join(base, d)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
