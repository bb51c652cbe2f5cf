package parser

import (
	"strconv"
	"strings"

	"github.com/deicod/jinjac/diag"
	"github.com/deicod/jinjac/lexer"
	"github.com/deicod/jinjac/nodes"
)

// compare operators for parsing
var compareOperators = map[string]bool{
	"==": true,
	"!=": true,
	"<":  true,
	"<=": true,
	">":  true,
	">=": true,
}

// spanFrom returns a span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start diag.Span) diag.Span {
	return start.To(p.stream.Last().Span)
}

// ParseExpression parses an expression
func (p *Parser) ParseExpression() (nodes.Expr, error) {
	return p.ParseConditionalExpr()
}

// ParseConditionalExpr parses conditional expressions (ternary operator)
func (p *Parser) ParseConditionalExpr() (nodes.Expr, error) {
	start := p.Current().Span

	expr1, err := p.ParseOr()
	if err != nil {
		return nil, err
	}

	for p.SkipIfOp("if") {
		test, err := p.ParseOr()
		if err != nil {
			return nil, err
		}

		var expr2 nodes.Expr
		if p.SkipIfOp("else") {
			expr2, err = p.ParseConditionalExpr()
			if err != nil {
				return nil, err
			}
		}

		cond := &nodes.CondExpr{Test: test, Expr1: expr1, Expr2: expr2}
		cond.Span = p.spanFrom(start)
		expr1 = cond
	}

	return expr1, nil
}

// parseBinary parses a left-associative chain of operators
func (p *Parser) parseBinary(operand func() (nodes.Expr, error), ops ...string) (nodes.Expr, error) {
	start := p.Current().Span

	left, err := operand()
	if err != nil {
		return nil, err
	}

	for {
		token := p.Current()
		matched := ""
		for _, op := range ops {
			if token.Is(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		bin := &nodes.BinExpr{Left: left, Right: right, Op: matched}
		bin.Span = p.spanFrom(start)
		left = bin
	}
}

// ParseOr parses logical OR expressions
func (p *Parser) ParseOr() (nodes.Expr, error) {
	return p.parseBinary(p.ParseAnd, "or")
}

// ParseAnd parses logical AND expressions
func (p *Parser) ParseAnd() (nodes.Expr, error) {
	return p.parseBinary(p.ParseNot, "and")
}

// ParseNot parses logical NOT expressions
func (p *Parser) ParseNot() (nodes.Expr, error) {
	if token := p.Current(); token.Is("not") && !p.Look().Is("in") {
		p.next()
		expr, err := p.ParseNot()
		if err != nil {
			return nil, err
		}
		not := &nodes.UnaryExpr{Op: "not", Node: expr}
		not.Span = p.spanFrom(token.Span)
		return not, nil
	}
	return p.ParseCompare()
}

// ParseCompare parses comparisons, membership tests and `is` tests
func (p *Parser) ParseCompare() (nodes.Expr, error) {
	start := p.Current().Span

	expr, err := p.ParseMath1()
	if err != nil {
		return nil, err
	}

	var ops []*nodes.Operand
	finish := func() nodes.Expr {
		if len(ops) == 0 {
			return expr
		}
		compare := &nodes.Compare{Expr: expr, Ops: ops}
		compare.Span = p.spanFrom(start)
		ops = nil
		return compare
	}

	for {
		token := p.Current()
		var op string
		switch {
		case token.Type == lexer.TokenOperator && compareOperators[token.Value]:
			p.next()
			op = token.Value
		case token.Is("in"):
			p.next()
			op = "in"
		case token.Is("not") && p.Look().Is("in"):
			p.next()
			p.next()
			op = "not in"
		case token.Is("is"):
			p.next()
			test, err := p.parseTest(finish(), start)
			if err != nil {
				return nil, err
			}
			expr = test
			continue
		default:
			return finish(), nil
		}

		right, err := p.ParseMath1()
		if err != nil {
			return nil, err
		}
		operand := &nodes.Operand{Op: op, Expr: right}
		operand.Span = p.spanFrom(token.Span)
		ops = append(ops, operand)
	}
}

// parseTest parses the part of `x is [not] name` after `is`
func (p *Parser) parseTest(node nodes.Expr, start diag.Span) (nodes.Expr, error) {
	negated := p.SkipIfOp("not")
	nameToken, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	if nameToken.Value != "defined" {
		return nil, p.Fail(nameToken.Span, "unknown test %q, only `defined` is supported", nameToken.Value)
	}
	test := &nodes.Test{Node: node, Name: nameToken.Value, Negated: negated}
	test.Span = p.spanFrom(start)
	return test, nil
}

// ParseMath1 parses addition and subtraction
func (p *Parser) ParseMath1() (nodes.Expr, error) {
	return p.parseBinary(p.ParseConcat, "+", "-")
}

// ParseConcat parses string concatenation
func (p *Parser) ParseConcat() (nodes.Expr, error) {
	start := p.Current().Span

	expr, err := p.ParseMath2()
	if err != nil {
		return nil, err
	}

	args := []nodes.Expr{expr}
	for p.SkipIfOp("~") {
		expr, err := p.ParseMath2()
		if err != nil {
			return nil, err
		}
		args = append(args, expr)
	}

	if len(args) == 1 {
		return args[0], nil
	}

	concat := &nodes.Concat{Nodes: args}
	concat.Span = p.spanFrom(start)
	return concat, nil
}

// ParseMath2 parses multiplication, division, and modulo
func (p *Parser) ParseMath2() (nodes.Expr, error) {
	return p.parseBinary(p.ParsePow, "*", "/", "//", "%")
}

// ParsePow parses exponentiation
func (p *Parser) ParsePow() (nodes.Expr, error) {
	return p.parseBinary(p.ParseUnary, "**")
}

// ParseUnary parses unary expressions (+, -)
func (p *Parser) ParseUnary() (nodes.Expr, error) {
	token := p.Current()
	if token.Type == lexer.TokenOperator && (token.Value == "-" || token.Value == "+") {
		p.next()
		expr, err := p.ParseUnary()
		if err != nil {
			return nil, err
		}
		unary := &nodes.UnaryExpr{Op: token.Value, Node: expr}
		unary.Span = p.spanFrom(token.Span)
		return unary, nil
	}

	node, err := p.ParsePrimary()
	if err != nil {
		return nil, err
	}
	node, err = p.parsePostfix(node)
	if err != nil {
		return nil, err
	}
	return p.parseFilterExpr(node)
}

// ParsePrimary parses primary expressions (names, literals, parentheses)
func (p *Parser) ParsePrimary() (nodes.Expr, error) {
	token := p.Current()

	switch token.Type {
	case lexer.TokenName:
		p.next()
		switch strings.ToLower(token.Value) {
		case "true", "false":
			return p.constant(strings.ToLower(token.Value) == "true", token), nil
		case "none":
			return p.constant(nil, token), nil
		}
		if token.Value == "super" && p.Current().Is("(") {
			return nil, p.Fail(token.Span, "super() is only allowed as the whole expression of an output tag")
		}
		name := &nodes.Name{Name: token.Value}
		name.Span = token.Span
		return name, nil

	case lexer.TokenString:
		p.next()
		value := token.Value
		// adjacent string literals are concatenated
		for p.Current().Type == lexer.TokenString {
			value += p.next().Value
		}
		c := p.constant(value, token)
		c.Span = p.spanFrom(token.Span)
		return c, nil

	case lexer.TokenInt:
		p.next()
		value, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			return nil, p.Fail(token.Span, "integer literal %s is out of range", token.Value)
		}
		return p.constant(value, token), nil

	case lexer.TokenFloat:
		p.next()
		value, err := strconv.ParseFloat(token.Value, 64)
		if err != nil {
			return nil, p.Fail(token.Span, "invalid float literal %s", token.Value)
		}
		return p.constant(value, token), nil

	case lexer.TokenOperator:
		switch token.Value {
		case "(":
			return p.parseParenthesized()
		case "[":
			return p.parseList()
		case "{":
			return p.parseDict()
		}

	case lexer.TokenEOF:
		return nil, p.FailEOF(nil)
	}

	return nil, p.Fail(token.Span, "expected an expression, got %s", describe(token))
}

func (p *Parser) constant(value interface{}, token lexer.Token) *nodes.Const {
	c := &nodes.Const{Value: value}
	c.Span = token.Span
	return c
}

// parseParenthesized parses a parenthesized expression or a tuple
func (p *Parser) parseParenthesized() (nodes.Expr, error) {
	open := p.next()

	if p.SkipIfOp(")") {
		tuple := &nodes.Tuple{}
		tuple.Span = p.spanFrom(open.Span)
		return tuple, nil
	}

	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if !p.Current().Is(",") {
		if _, err := p.ExpectOp(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	items := []nodes.Expr{expr}
	for p.SkipIfOp(",") {
		if p.Current().Is(")") {
			break
		}
		item, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.ExpectOp(")"); err != nil {
		return nil, err
	}
	tuple := &nodes.Tuple{Items: items}
	tuple.Span = p.spanFrom(open.Span)
	return tuple, nil
}

// parseList parses a list literal
func (p *Parser) parseList() (nodes.Expr, error) {
	open := p.next()

	var items []nodes.Expr
	for !p.Current().Is("]") {
		if len(items) > 0 {
			if _, err := p.ExpectOp(","); err != nil {
				return nil, err
			}
			if p.Current().Is("]") {
				break
			}
		}
		item, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.ExpectOp("]"); err != nil {
		return nil, err
	}

	list := &nodes.List{Items: items}
	list.Span = p.spanFrom(open.Span)
	return list, nil
}

// parseDict parses a dict literal
func (p *Parser) parseDict() (nodes.Expr, error) {
	open := p.next()

	var pairs []*nodes.Pair
	for !p.Current().Is("}") {
		if len(pairs) > 0 {
			if _, err := p.ExpectOp(","); err != nil {
				return nil, err
			}
			if p.Current().Is("}") {
				break
			}
		}
		keyStart := p.Current().Span
		key, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.ExpectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		pair := &nodes.Pair{Key: key, Value: value}
		pair.Span = p.spanFrom(keyStart)
		pairs = append(pairs, pair)
	}
	if _, err := p.ExpectOp("}"); err != nil {
		return nil, err
	}

	dict := &nodes.Dict{Pairs: pairs}
	dict.Span = p.spanFrom(open.Span)
	return dict, nil
}

// parsePostfix parses attribute access, subscripts and calls
func (p *Parser) parsePostfix(node nodes.Expr) (nodes.Expr, error) {
	for {
		token := p.Current()
		var err error
		switch {
		case token.Is("."):
			node, err = p.parseDot(node)
		case token.Is("["):
			node, err = p.parseSubscript(node)
		case token.Is("("):
			node, err = p.parseCall(node)
		default:
			return node, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseDot(node nodes.Expr) (nodes.Expr, error) {
	p.next() // consume '.'
	token := p.Current()
	switch token.Type {
	case lexer.TokenName:
		p.next()
		attr := &nodes.Getattr{Node: node, Attr: token.Value}
		attr.Span = p.spanFrom(node.GetSpan())
		return attr, nil
	case lexer.TokenInt:
		p.next()
		index, err := strconv.ParseInt(token.Value, 10, 64)
		if err != nil {
			return nil, p.Fail(token.Span, "integer literal %s is out of range", token.Value)
		}
		item := &nodes.Getitem{Node: node, Arg: p.constant(index, token)}
		item.Span = p.spanFrom(node.GetSpan())
		return item, nil
	}
	return nil, p.Fail(token.Span, "expected attribute name, got %s", describe(token))
}

func (p *Parser) parseSubscript(node nodes.Expr) (nodes.Expr, error) {
	p.next() // consume '['
	arg, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if p.Current().Is(":") {
		return nil, p.Fail(p.Current().Span, "slices are not supported")
	}
	if _, err := p.ExpectOp("]"); err != nil {
		return nil, err
	}
	item := &nodes.Getitem{Node: node, Arg: arg}
	item.Span = p.spanFrom(node.GetSpan())
	return item, nil
}

// parseCall parses a call argument list after node
func (p *Parser) parseCall(node nodes.Expr) (nodes.Expr, error) {
	p.next() // consume '('

	call := &nodes.Call{Node: node}
	for !p.Current().Is(")") {
		if len(call.Args)+len(call.Kwargs) > 0 {
			if _, err := p.ExpectOp(","); err != nil {
				return nil, err
			}
			if p.Current().Is(")") {
				break
			}
		}

		token := p.Current()
		if token.Type == lexer.TokenName && p.Look().Is("=") {
			p.next()
			p.next()
			value, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			kw := &nodes.Keyword{Key: token.Value, Value: value}
			kw.Span = p.spanFrom(token.Span)
			call.Kwargs = append(call.Kwargs, kw)
			continue
		}

		if len(call.Kwargs) > 0 {
			return nil, p.Fail(token.Span, "positional argument follows keyword argument")
		}
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	if _, err := p.ExpectOp(")"); err != nil {
		return nil, err
	}

	call.Span = p.spanFrom(node.GetSpan())
	return call, nil
}

// parseFilterExpr parses a chain of filters applied to node
func (p *Parser) parseFilterExpr(node nodes.Expr) (nodes.Expr, error) {
	for p.SkipIfOp("|") {
		filter, err := p.parseFilterCall(node)
		if err != nil {
			return nil, err
		}
		node = filter
	}
	return node, nil
}

// parseFilterCall parses `name` or `name(args)`. node is nil inside a
// filter block.
func (p *Parser) parseFilterCall(node nodes.Expr) (*nodes.Filter, error) {
	nameToken, err := p.Expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	filter := &nodes.Filter{Node: node, Name: nameToken.Value}

	if p.SkipIfOp("(") {
		for !p.Current().Is(")") {
			if len(filter.Args) > 0 {
				if _, err := p.ExpectOp(","); err != nil {
					return nil, err
				}
				if p.Current().Is(")") {
					break
				}
			}
			if p.Current().Type == lexer.TokenName && p.Look().Is("=") {
				return nil, p.Fail(p.Current().Span, "filter arguments must be positional")
			}
			arg, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			filter.Args = append(filter.Args, arg)
		}
		if _, err := p.ExpectOp(")"); err != nil {
			return nil, err
		}
	}

	start := nameToken.Span
	if node != nil {
		start = node.GetSpan()
	}
	filter.Span = p.spanFrom(start)
	return filter, nil
}
