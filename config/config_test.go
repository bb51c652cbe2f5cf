package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/filters"
	"github.com/deicod/jinjac/lexer"
)

const fullConfig = `
general:
  dirs: [templates, shared]
  default_syntax: percent
  whitespace: minimize
  escape: latex
syntax:
  - name: percent
    block_start: "<%"
    block_end: "%>"
escaper:
  - name: latex
    extensions: [tex, ".sty"]
filters:
  - name: currency
    input: number
    output: string
    args:
      - {name: symbol, type: string, optional: true}
filter_scripts: [filters.star]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DefaultSyntax != lexer.DefaultSyntaxName || cfg.Whitespace != lexer.WsPreserve || cfg.Escape != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"templates"}, cfg.Dirs); diff != "" {
		t.Fatalf("dirs mismatch (-want +got):\n%s", diff)
	}
	syntax, err := cfg.Syntax("")
	if err != nil {
		t.Fatal(err)
	}
	if syntax != lexer.DefaultSyntax() {
		t.Fatalf("default syntax = %+v", syntax)
	}
}

func TestLoad_Full(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, fullConfig)
	writeFile(t, filepath.Join(dir, "filters.star"), `filter("shout", input="display", output="string", safe=True)`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path || cfg.DefaultSyntax != "percent" || cfg.Whitespace != lexer.WsMinimize || cfg.Escape != "latex" {
		t.Fatalf("general section not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"default", "percent"}, cfg.SyntaxNames()); diff != "" {
		t.Fatalf("syntaxes mismatch (-want +got):\n%s", diff)
	}
	percent, err := cfg.Syntax("")
	if err != nil {
		t.Fatal(err)
	}
	want := lexer.Syntax{Name: "percent", BlockStart: "<%", BlockEnd: "%>", ExprStart: "{{", ExprEnd: "}}", CommentStart: "{#", CommentEnd: "#}"}
	if diff := cmp.Diff(want, percent); diff != "" {
		t.Fatalf("percent syntax mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.Escapers.ModeFor("paper.sty"); got != "latex" {
		t.Fatalf("custom escaper not registered: %q", got)
	}
	if diff := cmp.Diff([]string{filepath.Join(dir, "templates"), filepath.Join(dir, "shared")}, cfg.SearchDirs()); diff != "" {
		t.Fatalf("search dirs mismatch (-want +got):\n%s", diff)
	}

	r, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}
	currency, ok := r.Lookup("currency")
	if !ok {
		t.Fatal("currency filter not registered")
	}
	if currency.Input != filters.Number || len(currency.Params) != 1 || !currency.Params[0].Optional || !currency.Custom {
		t.Fatalf("currency contract mismatch: %+v", currency)
	}
	shout, ok := r.Lookup("shout")
	if !ok || !shout.Safe || shout.Input != filters.Display {
		t.Fatalf("starlark filter not registered: %+v", shout)
	}
	if _, ok := r.Lookup("upper"); !ok {
		t.Fatal("built-in filters missing")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"Whitespace", "general: {whitespace: tidy}", "invalid value for `whitespace`"},
		{"RedefineDefaultSyntax", "syntax: [{name: default}]", `syntax "default" is already defined`},
		{"DuplicateSyntax", "syntax: [{name: a, block_start: '<%'}, {name: a, block_start: '<%'}]", `syntax "a" is already defined`},
		{"MissingDefaultSyntax", "general: {default_syntax: foo}", `default syntax "foo" not found`},
		{"ShortDelimiter", "syntax: [{name: s, block_start: '<'}]", "at least two characters"},
		{"SpaceInDelimiter", "syntax: [{name: s, block_start: ' {{ '}]", "white spaces"},
		{"PrefixDelimiter", "syntax: [{name: s, block_start: '{{', expr_start: '{{$', comment_start: '{{#'}]", "prefix of another delimiter"},
		{"UnknownEscape", "general: {escape: latex}", "invalid value for `escape`"},
		{"EscaperWithoutExtensions", "escaper: [{name: latex}]", "at least one extension"},
		{"UnknownArgClass", "filters: [{name: f, args: [{name: a, type: widget}]}]", `unknown filter type class "widget"`},
		{"UnknownOutputType", "filters: [{name: f, output: 'list<'}]", `filter "f"`},
		{"RedefineBuiltin", "filters: [{name: upper}]", "cannot be redefined"},
		{"DuplicateFilter", "filters: [{name: f}, {name: f}]", `filter "f" is declared twice`},
		{"MissingScript", "filter_scripts: [nope.star]", "filter script nope.star"},
		{"BadYAML", "general: [", "invalid YAML"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), t.TempDir())
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, diag.ErrConfig) {
				t.Fatalf("error %v is not a config error", err)
			}
			var de *diag.Error
			errors.As(err, &de)
			if !strings.Contains(de.Message, tc.want) {
				t.Fatalf("message %q does not mention %q", de.Message, tc.want)
			}
		})
	}
}

func TestLoad_AttributesErrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, "general: {whitespace: tidy}")
	_, err := Load(path)
	var de *diag.Error
	if !errors.As(err, &de) || de.Template != path {
		t.Fatalf("error not attributed to %s: %v", path, err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a wrapped not-exist error, got %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "work")
	xdg := filepath.Join(root, "xdg")
	flagFile := filepath.Join(root, "flag.yaml")
	envFile := filepath.Join(root, "env.yaml")
	for _, f := range []string{flagFile, envFile, filepath.Join(work, FileName), filepath.Join(xdg, "jinjac", FileName)} {
		writeFile(t, f, "")
	}
	chdir(t, work)
	t.Setenv("XDG_CONFIG_HOME", xdg)

	t.Setenv(EnvConfig, envFile)
	if got, err := Discover(flagFile); err != nil || got != flagFile {
		t.Fatalf("flag: got %q, %v", got, err)
	}
	if got, err := Discover(""); err != nil || got != envFile {
		t.Fatalf("env: got %q, %v", got, err)
	}

	t.Setenv(EnvConfig, "")
	if got, err := Discover(""); err != nil || got != FileName {
		t.Fatalf("working directory: got %q, %v", got, err)
	}

	if err := os.Remove(filepath.Join(work, FileName)); err != nil {
		t.Fatal(err)
	}
	if got, err := Discover(""); err != nil || got != filepath.Join(xdg, "jinjac", FileName) {
		t.Fatalf("xdg: got %q, %v", got, err)
	}

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "empty"))
	t.Setenv("HOME", filepath.Join(root, "home"))
	if got, err := Discover(""); err != nil || got != "" {
		t.Fatalf("defaults: got %q, %v", got, err)
	}
	cfg, err := LoadDiscovered("")
	if err != nil || cfg.Path != "" {
		t.Fatalf("LoadDiscovered defaults: %+v, %v", cfg, err)
	}

	if _, err := Discover(filepath.Join(root, "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing explicit config")
	}
}
