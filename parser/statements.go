package parser

import (
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// ParseOutput parses an expression tag. `{{ super() }}` becomes a Super
// statement; super() anywhere else is rejected by the expression parser.
func (p *Parser) ParseOutput(open lexer.Token) (nodes.Stmt, error) {
	if p.Current().Is("super") && p.Look().Is("(") && p.stream.PeekN(2).Is(")") && p.stream.PeekN(3).Type == lexer.TokenExprEnd {
		p.next()
		p.next()
		p.next()
		end := p.next()
		super := &nodes.Super{}
		super.Span = open.Span.To(end.Span)
		return super, nil
	}

	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	end, err := p.Expect(lexer.TokenExprEnd)
	if err != nil {
		return nil, err
	}
	output := &nodes.Output{Expr: expr}
	output.Span = open.Span.To(end.Span)
	return output, nil
}

// ParseFor parses a for loop
func (p *Parser) ParseFor(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'for'

	targets, err := p.parseForTargets()
	if err != nil {
		return nil, err
	}
	if _, err := p.ExpectOp("in"); err != nil {
		return nil, err
	}

	// the iterable cannot be a conditional expression, the `if` belongs
	// to the loop filter
	iter, err := p.ParseOr()
	if err != nil {
		return nil, err
	}

	var test nodes.Expr
	if p.SkipIfOp("if") {
		test, err = p.ParseExpression()
		if err != nil {
			return nil, err
		}
	}

	p.loopDepth++
	body, err := p.ParseStatements([]string{"endfor", "else"}, false)
	p.loopDepth--
	if err != nil {
		return nil, err
	}

	var elseBody []nodes.Stmt
	if p.next().Value == "else" {
		elseBody, err = p.ParseStatements([]string{"endfor"}, true)
		if err != nil {
			return nil, err
		}
	}

	forNode := &nodes.For{
		Targets: targets,
		Iter:    iter,
		Test:    test,
		Body:    body,
		Else:    elseBody,
	}
	forNode.Span = p.closeSpan(open)
	return forNode, nil
}

func (p *Parser) parseForTargets() ([]*nodes.Name, error) {
	parens := p.SkipIfOp("(")
	var targets []*nodes.Name
	for {
		target, err := p.parseBindingName("loop variable")
		if err != nil {
			return nil, err
		}
		for _, t := range targets {
			if t.Name == target.Name {
				return nil, p.Fail(target.Span, "loop variable %q is bound twice", target.Name)
			}
		}
		targets = append(targets, target)
		if !p.SkipIfOp(",") {
			break
		}
	}
	if parens {
		if _, err := p.ExpectOp(")"); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// parseBindingName parses a name that introduces a binding.
func (p *Parser) parseBindingName(what string) (*nodes.Name, error) {
	token, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	if isReserved(token.Value) {
		return nil, p.Fail(token.Span, "%q cannot be used as a %s name", token.Value, what)
	}
	name := &nodes.Name{Name: token.Value}
	name.Span = token.Span
	return name, nil
}

// ParseIf parses an if construct
func (p *Parser) ParseIf(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'if'

	root := &nodes.If{}
	root.Span = open.Span
	current := root

	for {
		test, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		current.Test = test

		body, err := p.ParseStatements([]string{"elif", "else", "endif"}, false)
		if err != nil {
			return nil, err
		}
		current.Body = body

		token := p.next()
		switch token.Value {
		case "elif":
			elif := &nodes.If{}
			elif.Span = token.Span
			root.Elif = append(root.Elif, elif)
			current = elif
			continue
		case "else":
			elseBody, err := p.ParseStatements([]string{"endif"}, true)
			if err != nil {
				return nil, err
			}
			root.Else = elseBody
		}
		break
	}

	root.Span = p.closeSpan(open)
	return root, nil
}

// ParseBlock parses a block
func (p *Parser) ParseBlock(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'block'

	nameToken, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	if p.Current().Is("-") {
		return nil, p.Fail(nameToken.Span, "block names have to be valid identifiers and may not contain hyphens, use an underscore instead")
	}
	if p.inMacro {
		return nil, p.Fail(nameToken.Span, "block %q cannot be defined inside a macro", nameToken.Value)
	}
	if p.blockNames[nameToken.Value] {
		return nil, p.Fail(nameToken.Span, "block %q defined twice", nameToken.Value)
	}
	p.blockNames[nameToken.Value] = true

	block := &nodes.Block{Name: nameToken.Value}
	p.tmpl.Blocks = append(p.tmpl.Blocks, block)

	body, err := p.ParseStatements([]string{"endblock"}, true)
	if err != nil {
		return nil, err
	}
	if err := p.checkEndName("endblock", block.Name); err != nil {
		return nil, err
	}

	block.Body = body
	block.Span = p.closeSpan(open)
	return block, nil
}

// checkEndName consumes the optional name after an end tag and checks it
// against the opener.
func (p *Parser) checkEndName(endTag, want string) error {
	token := p.Current()
	if token.Type != lexer.TokenName {
		return nil
	}
	p.next()
	if token.Value != want {
		return p.Fail(token.Span, "%s name mismatch: expected %q, got %q", endTag, want, token.Value)
	}
	return nil
}

// ParseExtends parses an extends statement
func (p *Parser) ParseExtends(open lexer.Token) (nodes.Stmt, error) {
	keyword := p.next()
	if p.tmpl.Extends != nil {
		return nil, p.Fail(keyword.Span, "extends may only appear once in a template")
	}
	if p.sawContent || len(p.tagStack) > 1 {
		return nil, p.Fail(keyword.Span, "extends must be the first statement of a template")
	}

	nameToken, err := p.Expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	extends := &nodes.Extends{Template: nameToken.Value}
	extends.Span = p.closeSpan(open)
	p.tmpl.Extends = extends
	p.tmpl.Parent = nameToken.Value
	return extends, nil
}

// ParseInclude parses an include statement
func (p *Parser) ParseInclude(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'include'

	nameToken, err := p.Expect(lexer.TokenString)
	if err != nil {
		return nil, err
	}
	include := &nodes.Include{Template: nameToken.Value}
	include.Span = p.closeSpan(open)
	return include, nil
}

// ParseLet parses `let name = expr` and its `set` alias
func (p *Parser) ParseLet(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'let' or 'set'

	target, err := p.parseBindingName("variable")
	if err != nil {
		return nil, err
	}
	if p.Current().Is(",") {
		return nil, p.Fail(p.Current().Span, "only a single name can be assigned")
	}
	if _, err := p.ExpectOp("="); err != nil {
		return nil, err
	}
	value, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}

	let := &nodes.Let{Target: target, Value: value}
	let.Span = p.closeSpan(open)
	return let, nil
}

// ParseMacro parses a macro definition
func (p *Parser) ParseMacro(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'macro'

	nameToken, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	if isReserved(nameToken.Value) {
		return nil, p.Fail(nameToken.Span, "%q cannot be used as a macro name", nameToken.Value)
	}
	if p.inMacro {
		return nil, p.Fail(nameToken.Span, "macro %q cannot be defined inside another macro", nameToken.Value)
	}
	if p.macroNames[nameToken.Value] {
		return nil, p.Fail(nameToken.Span, "macro %q defined twice", nameToken.Value)
	}
	p.macroNames[nameToken.Value] = true

	macro := &nodes.MacroDef{Name: nameToken.Value}
	if err := p.parseSignature(macro); err != nil {
		return nil, err
	}
	p.tmpl.Macros = append(p.tmpl.Macros, macro)

	p.inMacro = true
	outerLoops := p.loopDepth
	p.loopDepth = 0
	body, err := p.ParseStatements([]string{"endmacro"}, true)
	p.inMacro = false
	p.loopDepth = outerLoops
	if err != nil {
		return nil, err
	}
	if err := p.checkEndName("endmacro", macro.Name); err != nil {
		return nil, err
	}

	macro.Body = body
	macro.Span = p.closeSpan(open)
	return macro, nil
}

// parseSignature parses the parameter list of a macro
func (p *Parser) parseSignature(macro *nodes.MacroDef) error {
	if _, err := p.ExpectOp("("); err != nil {
		return err
	}
	sawDefault := false
	for !p.Current().Is(")") {
		if len(macro.Params) > 0 {
			if _, err := p.ExpectOp(","); err != nil {
				return err
			}
			if p.Current().Is(")") {
				break
			}
		}
		arg, err := p.parseBindingName("parameter")
		if err != nil {
			return err
		}
		if macro.Param(arg.Name) >= 0 {
			return p.Fail(arg.Span, "duplicate parameter %q in macro %q", arg.Name, macro.Name)
		}
		param := &nodes.Param{Name: arg.Name}
		param.Span = arg.Span
		if p.SkipIfOp("=") {
			param.Default, err = p.ParseExpression()
			if err != nil {
				return err
			}
			sawDefault = true
		} else if sawDefault {
			return p.Fail(arg.Span, "non-default parameter %q follows a default parameter in macro %q", arg.Name, macro.Name)
		}
		macro.Params = append(macro.Params, param)
	}
	_, err := p.ExpectOp(")")
	return err
}

// ParseCallMacro parses `call name(args)`
func (p *Parser) ParseCallMacro(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'call'

	nameToken, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	callee := &nodes.Name{Name: nameToken.Value}
	callee.Span = nameToken.Span
	if !p.Current().Is("(") {
		return nil, p.Fail(p.Current().Span, "expected argument list after %q", nameToken.Value)
	}
	expr, err := p.parseCall(callee)
	if err != nil {
		return nil, err
	}

	call := &nodes.CallMacro{Call: expr.(*nodes.Call)}
	call.Span = p.closeSpan(open)
	return call, nil
}

// ParseFilterBlock parses a filter section
func (p *Parser) ParseFilterBlock(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'filter'

	var chain []*nodes.Filter
	for {
		filter, err := p.parseFilterCall(nil)
		if err != nil {
			return nil, err
		}
		chain = append(chain, filter)
		if !p.SkipIfOp("|") {
			break
		}
	}

	body, err := p.ParseStatements([]string{"endfilter"}, true)
	if err != nil {
		return nil, err
	}

	block := &nodes.FilterBlock{Filters: chain, Body: body}
	block.Span = p.closeSpan(open)
	return block, nil
}

// ParseRaw parses a raw region. The lexer has already captured its body.
func (p *Parser) ParseRaw(open lexer.Token) (nodes.Stmt, error) {
	p.next() // consume 'raw'
	if _, err := p.Expect(lexer.TokenTagEnd); err != nil {
		return nil, err
	}

	raw := &nodes.Raw{Lead: p.lastEnd}
	raw.Span = p.Current().Span
	if token := p.Current(); token.Type == lexer.TokenRaw {
		p.next()
		raw.Value = token.Value
		raw.Span = token.Span
	}
	closing, err := p.Expect(lexer.TokenTagStart)
	if err != nil {
		return nil, err
	}
	raw.Trail = closing.Ws
	if _, err := p.ExpectOp("endraw"); err != nil {
		return nil, err
	}
	return raw, nil
}

// ParseBreak parses a break statement
func (p *Parser) ParseBreak(open lexer.Token) (nodes.Stmt, error) {
	token := p.next()
	if p.loopDepth == 0 {
		return nil, p.Fail(token.Span, "break outside of a for loop")
	}
	node := &nodes.Break{}
	node.Span = p.closeSpan(open)
	return node, nil
}

// ParseContinue parses a continue statement
func (p *Parser) ParseContinue(open lexer.Token) (nodes.Stmt, error) {
	token := p.next()
	if p.loopDepth == 0 {
		return nil, p.Fail(token.Span, "continue outside of a for loop")
	}
	node := &nodes.Continue{}
	node.Span = p.closeSpan(open)
	return node, nil
}
