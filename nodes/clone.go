package nodes

// CloneStmts deep-copies a statement list. Resolved references are copied
// by value; the Macro and Def back-pointers of calls and filters are
// shared with the original.
func CloneStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = CloneStmt(s)
	}
	return out
}

// CloneStmt deep-copies a single statement.
func CloneStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case nil:
		return nil
	case *Template:
		c := *n
		c.Body = CloneStmts(n.Body)
		c.Blocks, c.Macros = nil, nil
		for _, b := range FindAll(&c, isBlock) {
			c.Blocks = append(c.Blocks, b.(*Block))
		}
		// macros hoisted out of the body are cloned on their own
		inBody := make(map[*MacroDef]*MacroDef)
		cloned := FindAll(&c, isMacro)
		for i, m := range FindAll(n, isMacro) {
			inBody[m.(*MacroDef)] = cloned[i].(*MacroDef)
		}
		for _, m := range n.Macros {
			if cm, ok := inBody[m]; ok {
				c.Macros = append(c.Macros, cm)
			} else {
				c.Macros = append(c.Macros, CloneStmt(m).(*MacroDef))
			}
		}
		if n.Extends != nil {
			ext := *n.Extends
			c.Extends = &ext
		}
		c.Comments = append([]*Comment(nil), n.Comments...)
		if n.MacroScopes != nil {
			c.MacroScopes = make(map[string]map[string]string, len(n.MacroScopes))
			for unit, table := range n.MacroScopes {
				cp := make(map[string]string, len(table))
				for name, id := range table {
					cp[name] = id
				}
				c.MacroScopes[unit] = cp
			}
		}
		return &c
	case *Text:
		c := *n
		return &c
	case *Raw:
		c := *n
		return &c
	case *Output:
		c := *n
		c.Expr = CloneExpr(n.Expr)
		return &c
	case *If:
		return cloneIf(n)
	case *For:
		c := *n
		c.Targets = cloneNames(n.Targets)
		c.Iter = CloneExpr(n.Iter)
		c.Test = CloneExpr(n.Test)
		c.Body = CloneStmts(n.Body)
		c.Else = CloneStmts(n.Else)
		c.Loop = cloneRef(n.Loop)
		c.LoopFields = append([]string(nil), n.LoopFields...)
		return &c
	case *Let:
		c := *n
		c.Target = CloneExpr(n.Target).(*Name)
		c.Value = CloneExpr(n.Value)
		return &c
	case *Block:
		c := *n
		c.Body = CloneStmts(n.Body)
		return &c
	case *Extends:
		c := *n
		return &c
	case *Include:
		c := *n
		c.Body = CloneStmts(n.Body)
		return &c
	case *CallMacro:
		c := *n
		c.Call = CloneExpr(n.Call).(*Call)
		return &c
	case *MacroDef:
		c := *n
		c.Params = make([]*Param, len(n.Params))
		for i, p := range n.Params {
			cp := *p
			cp.Default = CloneExpr(p.Default)
			cp.Ref = cloneRef(p.Ref)
			c.Params[i] = &cp
		}
		c.Body = CloneStmts(n.Body)
		return &c
	case *FilterBlock:
		c := *n
		c.Filters = make([]*Filter, len(n.Filters))
		for i, f := range n.Filters {
			c.Filters[i] = CloneExpr(f).(*Filter)
		}
		c.Body = CloneStmts(n.Body)
		return &c
	case *Comment:
		c := *n
		return &c
	case *Break:
		c := *n
		return &c
	case *Continue:
		c := *n
		return &c
	case *Super:
		c := *n
		return &c
	}
	panic("nodes: CloneStmt: unhandled statement " + s.Type())
}

func cloneIf(n *If) *If {
	c := *n
	c.Test = CloneExpr(n.Test)
	c.Body = CloneStmts(n.Body)
	if n.Elif != nil {
		c.Elif = make([]*If, len(n.Elif))
		for i, e := range n.Elif {
			c.Elif[i] = cloneIf(e)
		}
	}
	c.Else = CloneStmts(n.Else)
	return &c
}

func isBlock(n Node) bool {
	_, ok := n.(*Block)
	return ok
}

func isMacro(n Node) bool {
	_, ok := n.(*MacroDef)
	return ok
}

func cloneRef(r *Ref) *Ref {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneNames(names []*Name) []*Name {
	if names == nil {
		return nil
	}
	out := make([]*Name, len(names))
	for i, n := range names {
		out[i] = CloneExpr(n).(*Name)
	}
	return out
}

func cloneExprs(exprs []Expr) []Expr {
	if exprs == nil {
		return nil
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = CloneExpr(e)
	}
	return out
}

// CloneExpr deep-copies an expression. A nil expression yields nil.
func CloneExpr(e Expr) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *Name:
		c := *n
		c.Ref = cloneRef(n.Ref)
		return &c
	case *Const:
		c := *n
		return &c
	case *List:
		c := *n
		c.Items = cloneExprs(n.Items)
		return &c
	case *Tuple:
		c := *n
		c.Items = cloneExprs(n.Items)
		return &c
	case *Dict:
		c := *n
		c.Pairs = make([]*Pair, len(n.Pairs))
		for i, p := range n.Pairs {
			c.Pairs[i] = &Pair{BaseNode: p.BaseNode, Key: CloneExpr(p.Key), Value: CloneExpr(p.Value)}
		}
		return &c
	case *Getattr:
		c := *n
		c.Node = CloneExpr(n.Node)
		return &c
	case *Getitem:
		c := *n
		c.Node = CloneExpr(n.Node)
		c.Arg = CloneExpr(n.Arg)
		return &c
	case *BinExpr:
		c := *n
		c.Left = CloneExpr(n.Left)
		c.Right = CloneExpr(n.Right)
		return &c
	case *UnaryExpr:
		c := *n
		c.Node = CloneExpr(n.Node)
		return &c
	case *Compare:
		c := *n
		c.Expr = CloneExpr(n.Expr)
		c.Ops = make([]*Operand, len(n.Ops))
		for i, op := range n.Ops {
			c.Ops[i] = &Operand{BaseNode: op.BaseNode, Op: op.Op, Expr: CloneExpr(op.Expr)}
		}
		return &c
	case *Concat:
		c := *n
		c.Nodes = cloneExprs(n.Nodes)
		return &c
	case *CondExpr:
		c := *n
		c.Test = CloneExpr(n.Test)
		c.Expr1 = CloneExpr(n.Expr1)
		c.Expr2 = CloneExpr(n.Expr2)
		return &c
	case *Filter:
		c := *n
		c.Node = CloneExpr(n.Node)
		c.Args = cloneExprs(n.Args)
		return &c
	case *Test:
		c := *n
		c.Node = CloneExpr(n.Node)
		return &c
	case *Call:
		c := *n
		c.Node = CloneExpr(n.Node)
		c.Args = cloneExprs(n.Args)
		if n.Kwargs != nil {
			c.Kwargs = make([]*Keyword, len(n.Kwargs))
			for i, kw := range n.Kwargs {
				c.Kwargs[i] = &Keyword{BaseNode: kw.BaseNode, Key: kw.Key, Value: CloneExpr(kw.Value)}
			}
		}
		c.Bound = cloneExprs(n.Bound)
		return &c
	}
	panic("nodes: CloneExpr: unhandled expression " + e.Type())
}
