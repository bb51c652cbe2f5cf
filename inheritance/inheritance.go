// Package inheritance flattens extends chains and includes into a single
// template whose blocks are resolved to their most-derived overrides.
package inheritance

import (
	"errors"
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/nodes"
)

// Lookup returns the parsed template unit with the given name.
type Lookup func(name string) (*nodes.Template, error)

// Override is one definition of a block in the extends chain.
type Override struct {
	Template   string
	Block      *nodes.Block
	SuperSites []diag.Span
}

// BlockTable maps block names to their overrides, most derived first.
type BlockTable struct {
	names   []string
	entries map[string][]*Override
}

// Overrides returns the definitions of a block, most derived first.
func (t *BlockTable) Overrides(name string) []*Override {
	return t.entries[name]
}

// Names returns the block names in order of first definition, starting at
// the root of the chain.
func (t *BlockTable) Names() []string {
	return append([]string(nil), t.names...)
}

// BuildTable builds the block table of an extends chain given most derived
// first.
func BuildTable(chain []*nodes.Template) *BlockTable {
	table := &BlockTable{entries: make(map[string][]*Override)}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, b := range chain[i].Blocks {
			if _, ok := table.entries[b.Name]; !ok {
				table.names = append(table.names, b.Name)
				table.entries[b.Name] = nil
			}
		}
	}
	for _, tmpl := range chain {
		for _, b := range tmpl.Blocks {
			ov := &Override{Template: tmpl.Name, Block: b}
			for _, n := range nodes.FindAll(b, isSuper) {
				ov.SuperSites = append(ov.SuperSites, n.GetSpan())
			}
			table.entries[b.Name] = append(table.entries[b.Name], ov)
		}
	}
	return table
}

func isSuper(n nodes.Node) bool {
	_, ok := n.(*nodes.Super)
	return ok
}

// Chain follows extends from root to the least-derived ancestor. The
// result starts with root.
func Chain(root *nodes.Template, lookup Lookup) ([]*nodes.Template, error) {
	chain := []*nodes.Template{root}
	seen := map[string]bool{root.Name: true}
	current := root
	for current.Parent != "" {
		if seen[current.Parent] {
			path := make([]string, 0, len(chain)+1)
			for _, t := range chain {
				path = append(path, t.Name)
			}
			path = append(path, current.Parent)
			return nil, located(diag.Named(diag.KindCycle, current.Parent, diag.Span{},
				"extends cycle: %s", strings.Join(path, " -> ")), current.Name, extendsSpan(current))
		}
		parent, err := lookup(current.Parent)
		if err != nil {
			return nil, located(err, current.Name, extendsSpan(current))
		}
		seen[current.Parent] = true
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// located attaches the referencing template and statement to a lookup
// error that does not carry a location yet.
func located(err error, template string, span diag.Span) error {
	var de *diag.Error
	if !errors.As(err, &de) || !de.Span.IsZero() {
		return err
	}
	de.Template = template
	de.Span = span
	return err
}

func extendsSpan(t *nodes.Template) diag.Span {
	if t.Extends == nil {
		return diag.Span{}
	}
	return t.Extends.Span
}

// Result is a flattened template with the data used to build it.
type Result struct {
	Template *nodes.Template
	Table    *BlockTable
	// Dependencies lists every unit the result was built from, in lookup
	// order, root included.
	Dependencies []string

	scopes map[string]map[string]*nodes.MacroDef
}

// Resolve flattens root: the least-derived ancestor's body with every
// block replaced by its resolved override, includes spliced in, and the
// macros of all contributing units hoisted. root and the units returned
// by lookup are not modified.
func Resolve(root *nodes.Template, lookup Lookup) (*nodes.Template, error) {
	res, err := ResolveAll(root, lookup)
	if err != nil {
		return nil, err
	}
	return res.Template, nil
}

// ResolveAll is Resolve returning the block table and dependencies too.
func ResolveAll(root *nodes.Template, lookup Lookup) (*Result, error) {
	res, err := resolveUnit(root, lookup, []string{root.Name})
	if err != nil {
		return nil, err
	}
	assignIDs(res)
	return res, nil
}

// assignIDs names every hoisted macro "template#name". A definition reached
// through more than one unit of the same compile, say a base macro
// inherited by two included units, binds differently per unit and gets the
// unit appended as "template#name@unit".
func assignIDs(res *Result) {
	units := make(map[string]map[string]bool)
	for _, m := range res.Template.Macros {
		base := m.Template + "#" + m.Name
		if units[base] == nil {
			units[base] = make(map[string]bool)
		}
		units[base][m.Unit] = true
	}
	id := func(m *nodes.MacroDef) string {
		base := m.Template + "#" + m.Name
		if len(units[base]) > 1 && m.Unit != m.Template {
			return base + "@" + m.Unit
		}
		return base
	}

	for _, m := range res.Template.Macros {
		m.ID = id(m)
	}
	res.Template.MacroScopes = make(map[string]map[string]string, len(res.scopes))
	for unit, table := range res.scopes {
		ids := make(map[string]string, len(table))
		for name, m := range table {
			ids[name] = id(m)
		}
		res.Template.MacroScopes[unit] = ids
	}
}

func macroKey(m *nodes.MacroDef) string {
	return m.Unit + "\x00" + m.Template + "#" + m.Name
}

type resolver struct {
	lookup   Lookup
	unit     string
	table    *BlockTable
	active   map[blockLevel]bool
	includes []string
	// macros lists every hoisted definition once, visible or not
	macros    []*nodes.MacroDef
	macroKeys map[string]bool
	// visible is the macro table of this unit, scopes those of every unit
	// reached through includes
	visible map[string]*nodes.MacroDef
	scopes  map[string]map[string]*nodes.MacroDef
	deps    []string
	depSeen map[string]bool
}

type blockLevel struct {
	name  string
	level int
}

// frame is the block being expanded, nil outside blocks.
type frame struct {
	name  string
	level int
}

func resolveUnit(root *nodes.Template, lookup Lookup, includes []string) (*Result, error) {
	chain, err := Chain(root, lookup)
	if err != nil {
		return nil, err
	}

	r := &resolver{
		lookup:    lookup,
		unit:      root.Name,
		table:     BuildTable(chain),
		active:    make(map[blockLevel]bool),
		includes:  includes,
		macroKeys: make(map[string]bool),
		visible:   make(map[string]*nodes.MacroDef),
		scopes:    make(map[string]map[string]*nodes.MacroDef),
		depSeen:   make(map[string]bool),
	}
	for _, t := range chain {
		r.addDep(t.Name)
	}

	// more derived definitions shadow less derived ones; all of them are
	// visible before any body is expanded, so includes inside macro bodies
	// cannot shadow them
	var own []*nodes.MacroDef
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].Macros {
			if winner := winningTemplate(chain, m.Name); winner != chain[i] {
				continue
			}
			def := nodes.CloneStmt(m).(*nodes.MacroDef)
			def.Template = chain[i].Name
			def.Unit = r.unit
			r.visible[m.Name] = def
			r.addMacro(def)
			own = append(own, def)
		}
	}
	for _, def := range own {
		body, err := r.expand(def.Body, nil)
		if err != nil {
			return nil, err
		}
		def.Body = body
	}

	skeleton := chain[len(chain)-1]
	body, err := r.expand(nodes.CloneStmts(skeleton.Body), nil)
	if err != nil {
		return nil, err
	}

	flat := &nodes.Template{
		Name:     root.Name,
		Body:     body,
		Macros:   r.macros,
		Comments: append([]*nodes.Comment(nil), root.Comments...),
	}
	flat.Span = root.Span
	collectBlocks(flat.Body, &flat.Blocks)
	r.scopes[r.unit] = r.visible

	return &Result{Template: flat, Table: r.table, Dependencies: r.deps, scopes: r.scopes}, nil
}

// winningTemplate returns the most derived template of chain defining the
// macro name.
func winningTemplate(chain []*nodes.Template, name string) *nodes.Template {
	for _, t := range chain {
		if t.Macro(name) != nil {
			return t
		}
	}
	return nil
}

func (r *resolver) addDep(name string) {
	if !r.depSeen[name] {
		r.depSeen[name] = true
		r.deps = append(r.deps, name)
	}
}

// addMacro records a hoisted definition unless the same one, by unit and
// template, is already present.
func (r *resolver) addMacro(m *nodes.MacroDef) {
	key := macroKey(m)
	if r.macroKeys[key] {
		return
	}
	r.macroKeys[key] = true
	r.macros = append(r.macros, m)
}

// expand resolves blocks, super calls and includes in stmts, which must
// be owned by the caller. Macro definitions are dropped, they are hoisted.
func (r *resolver) expand(stmts []nodes.Stmt, cur *frame) ([]nodes.Stmt, error) {
	out := stmts[:0]
	for _, stmt := range stmts {
		switch n := stmt.(type) {
		case *nodes.Block:
			body, err := r.block(n.Name, 0, n)
			if err != nil {
				return nil, err
			}
			n.Body = body
			out = append(out, n)

		case *nodes.Super:
			if cur == nil {
				return nil, r.fail(diag.New(diag.KindNoSuperBlock, n.Span, "super() used outside of a block"))
			}
			body, err := r.block(cur.name, cur.level+1, n)
			if err != nil {
				return nil, err
			}
			block := &nodes.Block{Name: cur.name, Body: body}
			block.Span = n.Span
			out = append(out, block)

		case *nodes.Include:
			if err := r.include(n); err != nil {
				return nil, err
			}
			out = append(out, n)

		case *nodes.MacroDef, *nodes.Extends:
			// hoisted, or consumed by the chain

		case *nodes.If:
			if err := r.expandIf(n, cur); err != nil {
				return nil, err
			}
			out = append(out, n)

		case *nodes.For:
			body, err := r.expand(n.Body, cur)
			if err != nil {
				return nil, err
			}
			elseBody, err := r.expand(n.Else, cur)
			if err != nil {
				return nil, err
			}
			n.Body, n.Else = body, elseBody
			out = append(out, n)

		case *nodes.FilterBlock:
			body, err := r.expand(n.Body, cur)
			if err != nil {
				return nil, err
			}
			n.Body = body
			out = append(out, n)

		default:
			out = append(out, stmt)
		}
	}
	return out, nil
}

func (r *resolver) expandIf(n *nodes.If, cur *frame) error {
	body, err := r.expand(n.Body, cur)
	if err != nil {
		return err
	}
	n.Body = body
	for _, elif := range n.Elif {
		if err := r.expandIf(elif, cur); err != nil {
			return err
		}
	}
	elseBody, err := r.expand(n.Else, cur)
	if err != nil {
		return err
	}
	n.Else = elseBody
	return nil
}

// block returns the expanded body of the override of name at level, where
// level 0 is the most derived definition.
func (r *resolver) block(name string, level int, site nodes.Node) ([]nodes.Stmt, error) {
	overrides := r.table.Overrides(name)
	if level >= len(overrides) {
		return nil, r.fail(diag.Named(diag.KindNoSuperBlock, name, site.GetSpan(),
			"no parent definition of block %q for super()", name))
	}
	key := blockLevel{name, level}
	if r.active[key] {
		return nil, r.fail(diag.Named(diag.KindCycle, name, site.GetSpan(),
			"block %q is expanded recursively", name))
	}
	r.active[key] = true
	defer delete(r.active, key)

	return r.expand(nodes.CloneStmts(overrides[level].Block.Body), &frame{name: name, level: level})
}

func (r *resolver) include(n *nodes.Include) error {
	for _, name := range r.includes {
		if name == n.Template {
			path := append(append([]string(nil), r.includes...), n.Template)
			return r.fail(diag.Named(diag.KindCycle, n.Template, n.Span,
				"include cycle: %s", strings.Join(path, " -> ")))
		}
	}

	tmpl, err := r.lookup(n.Template)
	if err != nil {
		return located(err, r.unit, n.Span)
	}
	sub, err := resolveUnit(tmpl, r.lookup, append(append([]string(nil), r.includes...), n.Template))
	if err != nil {
		return err
	}
	for _, dep := range sub.Dependencies {
		r.addDep(dep)
	}
	for _, m := range sub.Template.Macros {
		r.addMacro(m)
	}
	// the included unit's macros become callable here unless shadowed; its
	// own call sites keep resolving against its table
	for name, m := range sub.scopes[tmpl.Name] {
		if _, ok := r.visible[name]; !ok {
			r.visible[name] = m
		}
	}
	for unit, table := range sub.scopes {
		if _, ok := r.scopes[unit]; !ok {
			r.scopes[unit] = table
		}
	}
	n.Body = sub.Template.Body
	n.Resolved = true
	return nil
}

// fail attaches the current unit to errors raised while expanding it.
func (r *resolver) fail(err *diag.Error) error {
	if err.Template == "" {
		err.Template = r.unit
	}
	return err
}

// collectBlocks lists the resolved blocks of a flattened body in document
// order. Blocks of included units are not part of the includer.
func collectBlocks(stmts []nodes.Stmt, out *[]*nodes.Block) {
	for _, stmt := range stmts {
		nodes.Walk(nodes.NodeVisitorFunc(func(n nodes.Node) interface{} {
			switch b := n.(type) {
			case *nodes.Include:
				return true
			case *nodes.Block:
				*out = append(*out, b)
			}
			return nil
		}), stmt)
	}
}
