// Package compiler drives the whole pipeline: it loads and parses template
// units, flattens inheritance, binds names, normalizes whitespace, checks
// escaping and emits an ir.Program per template.
package compiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/deicod/jinjac/binder"
	"github.com/deicod/jinjac/config"
	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/emitter"
	"github.com/deicod/jinjac/escape"
	"github.com/deicod/jinjac/filters"
	"github.com/deicod/jinjac/inheritance"
	"github.com/deicod/jinjac/ir"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/loader"
	"github.com/deicod/jinjac/nodes"
	"github.com/deicod/jinjac/parser"
	"github.com/deicod/jinjac/schema"
	"github.com/deicod/jinjac/whitespace"
)

// Options are per-compile overrides of the configuration.
type Options struct {
	// Syntax names the delimiter set, "" for the configured default.
	Syntax string
	// Whitespace replaces the configured default trim mode unless it is
	// WsNone or WsDefault.
	Whitespace lexer.Whitespace
	// Escape forces an escape mode instead of the extension based one.
	Escape string
	// Block compiles only the named block of the flattened template.
	Block string
	// Workers bounds CompileAll, runtime.NumCPU() when zero.
	Workers int
	// CacheSize bounds the parsed unit cache, unbounded when zero.
	CacheSize int
	Logger    logrus.FieldLogger
}

// Compiler compiles templates found by a loader against one schema. It is
// safe for concurrent use.
type Compiler struct {
	cfg      *config.Config
	loader   loader.Loader
	schema   *schema.Schema
	registry *filters.Registry
	syntax   lexer.Syntax
	ws       lexer.Whitespace
	opts     Options
	log      logrus.FieldLogger
	cache    *unitCache
}

// New creates a compiler. A nil cfg means config.Default(), a nil loader
// searches the configured directories and a nil schema is empty.
func New(cfg *config.Config, l loader.Loader, sch *schema.Schema, opts Options) (*Compiler, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if l == nil {
		l = loader.NewFileSystemLoader(cfg.SearchDirs()...)
	}
	if sch == nil {
		sch = schema.Empty()
	}
	syntax, err := cfg.Syntax(opts.Syntax)
	if err != nil {
		return nil, err
	}
	if opts.Escape != "" && !contains(cfg.Escapers.Modes(), opts.Escape) {
		return nil, diag.Named(diag.KindConfig, "escape", diag.Span{}, "invalid value for `escape`: %q (known: %v)", opts.Escape, cfg.Escapers.Modes())
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	ws := cfg.Whitespace
	if opts.Whitespace != lexer.WsNone && opts.Whitespace != lexer.WsDefault {
		ws = opts.Whitespace
	}
	log := opts.Logger
	if log == nil {
		std := logrus.New()
		std.SetLevel(logrus.WarnLevel)
		log = std
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	return &Compiler{
		cfg:      cfg,
		loader:   l,
		schema:   sch,
		registry: registry,
		syntax:   syntax,
		ws:       ws,
		opts:     opts,
		log:      log,
		cache:    newUnitCache(opts.CacheSize),
	}, nil
}

// Loader returns the loader templates are read from.
func (c *Compiler) Loader() loader.Loader {
	return c.loader
}

// Registry returns the filter registry used for binding.
func (c *Compiler) Registry() *filters.Registry {
	return c.registry
}

// Invalidate drops the parsed unit name so the next compile reads it again.
func (c *Compiler) Invalidate(name string) {
	c.cache.Delete(name)
	c.log.WithField("template", name).Debug("cache invalidated")
}

// ClearCache drops every parsed unit.
func (c *Compiler) ClearCache() {
	c.cache.Clear()
}

// CacheSize returns the number of cached units.
func (c *Compiler) CacheSize() int {
	return c.cache.Size()
}

// Source returns the text of a template unit.
func (c *Compiler) Source(name string) (string, error) {
	entry, err := c.unit(name)
	if err != nil {
		return "", err
	}
	return entry.Source, nil
}

// Parse returns the parsed, unflattened unit.
func (c *Compiler) Parse(name string) (*nodes.Template, error) {
	entry, err := c.unit(name)
	if err != nil {
		return nil, err
	}
	return entry.Template, nil
}

func (c *Compiler) unit(name string) (*unitEntry, error) {
	fields := logrus.Fields{"template": name}
	if entry, ok := c.cache.Get(name, c.loader); ok {
		c.log.WithFields(fields).Debug("cache hit")
		return entry, nil
	}
	c.log.WithFields(fields).Debug("cache miss")

	source, err := c.loader.Load(name)
	if err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	var modTime time.Time
	if mt, ok := c.loader.(loader.ModTimeLoader); ok {
		modTime, _ = mt.TemplateModTime(name)
	}
	tmpl, err := c.parse(source, name)
	if err != nil {
		return nil, err
	}
	entry := &unitEntry{Template: tmpl, Source: source, LoadedAt: time.Now(), ModTime: modTime}
	c.cache.Set(name, entry)
	return entry, nil
}

func (c *Compiler) parse(source, name string) (*nodes.Template, error) {
	tmpl, err := parser.Parse(source, name, c.syntax)
	if err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	c.stage(name, "parse")
	return tmpl, nil
}

func (c *Compiler) stage(name, stage string) {
	c.log.WithFields(logrus.Fields{"template": name, "stage": stage}).Debug("stage done")
}

// Compile compiles the template unit name.
func (c *Compiler) Compile(name string) (*ir.Program, error) {
	root, err := c.Parse(name)
	if err != nil {
		return nil, err
	}
	return c.compile(root)
}

// CompileSource compiles source as the unit name without caching it.
// Templates it extends or includes are still read through the loader.
func (c *Compiler) CompileSource(name, source string) (*ir.Program, error) {
	root, err := c.parse(source, name)
	if err != nil {
		return nil, err
	}
	return c.compile(root)
}

func (c *Compiler) compile(root *nodes.Template) (*ir.Program, error) {
	name := root.Name
	flat, err := inheritance.Resolve(root, c.Parse)
	if err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	c.stage(name, "inheritance")

	if c.opts.Block != "" {
		if flat, err = onlyBlock(flat, c.opts.Block); err != nil {
			return nil, err
		}
	}

	res, err := binder.Bind(flat, c.schema, c.registry)
	if err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	c.stage(name, "bind")

	res.Template = whitespace.Normalize(res.Template, c.ws)
	c.stage(name, "whitespace")

	mode := c.escapeMode(name)
	if err := escape.Validate(res.Template, mode); err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	c.stage(name, "escape")

	p, err := emitter.Emit(res)
	if err != nil {
		return nil, diag.WithTemplate(err, name)
	}
	p.Extension = escape.Extension(name)
	p.MIMEType = ir.MIMEType(p.Extension)
	p.Escape = mode
	c.stage(name, "emit")
	return p, nil
}

func (c *Compiler) escapeMode(name string) string {
	switch {
	case c.opts.Escape != "":
		return c.opts.Escape
	case c.cfg.Escape != "":
		return c.cfg.Escape
	}
	return c.cfg.Escapers.ModeFor(name)
}

// onlyBlock narrows a flattened template to the body of one block. Macros
// stay available to it.
func onlyBlock(flat *nodes.Template, block string) (*nodes.Template, error) {
	b := flat.Block(block)
	if b == nil {
		err := diag.Named(diag.KindBlockNotFound, block, diag.Span{}, "block %q not found in %q", block, flat.Name)
		err.Template = flat.Name
		return nil, err
	}
	out := *flat
	out.Body = []nodes.Stmt{b}
	out.Blocks = nil
	for _, candidate := range flat.Blocks {
		if candidate == b || len(nodes.FindAll(b, func(n nodes.Node) bool { return n == candidate })) > 0 {
			out.Blocks = append(out.Blocks, candidate)
		}
	}
	return &out, nil
}

// CompileAll compiles every name with a bounded worker pool. It does not
// stop at the first failure: the programs that compiled are returned sorted
// by name together with the aggregated errors, in name order.
func (c *Compiler) CompileAll(names []string) ([]*ir.Program, error) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	programs := make([]*ir.Program, len(sorted))
	errs := make([]error, len(sorted))
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := c.opts.Workers
	if workers > len(sorted) {
		workers = len(sorted)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				programs[i], errs[i] = c.Compile(sorted[i])
			}
		}()
	}
	for i := range sorted {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var result *multierror.Error
	var out []*ir.Program
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		out = append(out, programs[i])
	}
	c.log.WithFields(logrus.Fields{
		"templates": len(sorted),
		"compiled":  len(out),
		"failed":    len(sorted) - len(out),
	}).Info("batch compiled")
	return out, result.ErrorOrNil()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
