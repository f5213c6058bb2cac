package velo

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxParseDepth bounds #parse nesting so mutually-including resources
// fail with a ParseError instead of recursing without bound.
const maxParseDepth = 16

// parser is the phase-1 tokenizer: a recursive-descent scan of the raw
// text into a flat token list. Nesting of directive bodies is not its
// concern; the reparser structures the flat list afterwards.
type parser struct {
	rd       *reader
	name     string
	macros   map[string]*macro
	resolver ResourceResolver
	depth    int // #parse nesting
}

func at(line int) baseNode {
	return baseNode{lineNum: line}
}

func tokenAt(line int) tokenBase {
	return tokenBase{baseNode: at(line)}
}

// parseTemplate runs both phases over src and assembles the Template.
func parseTemplate(src, name string, resolver ResourceResolver, maxEvalDepth int) (*Template, error) {
	macros := make(map[string]*macro)
	tokens, err := parseTokens(src, name, macros, resolver, 0)
	if err != nil {
		return nil, err
	}
	root, err := reparse(tokens, macros)
	if err != nil {
		return nil, err
	}
	logger := GetLogger()
	if logger.IsDebugMode() {
		logger.WithFields(Fields{
			"template": name,
			"tokens":   len(tokens),
			"macros":   len(macros),
		}).Debug("parsed template")
	}
	return &Template{name: name, root: root, macros: macros, maxEvalDepth: maxEvalDepth}, nil
}

// parseTokens tokenizes one resource. The macro table and resolver are
// shared with any #parse'd sub-resources.
func parseTokens(src, name string, macros map[string]*macro, resolver ResourceResolver, depth int) ([]node, error) {
	p := &parser{rd: newReader(src), name: name, macros: macros, resolver: resolver, depth: depth}
	return p.parse()
}

// parse consumes the whole character stream exactly once, producing the
// flat token list terminated by an EOF token.
func (p *parser) parse() ([]node, error) {
	var tokens []node
	for {
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if sp, ok := n.(*splicedTokensNode); ok {
			tokens = append(tokens, sp.items...)
			continue
		}
		tokens = append(tokens, n)
		if _, ok := n.(*eofTokenNode); ok {
			return tokens, nil
		}
	}
}

func (p *parser) parseNode() (node, error) {
	switch p.rd.c {
	case eof:
		return &eofTokenNode{tokenAt(p.rd.line)}, nil
	case '$':
		return p.parseDollar()
	case '#':
		return p.parseHash()
	default:
		return p.parseText(), nil
	}
}

// parseText gathers a literal run up to the next $, #, or end of input.
func (p *parser) parseText() node {
	line := p.rd.line
	var sb strings.Builder
	for p.rd.c != eof && p.rd.c != '$' && p.rd.c != '#' {
		sb.WriteRune(p.rd.c)
		p.rd.next()
	}
	return &constantNode{baseNode: at(line), value: sb.String()}
}

// parseDollar parses $name or ${name} with any suffix chain. A $ not
// followed by a reference is literal text.
func (p *parser) parseDollar() (node, error) {
	line := p.rd.line
	p.rd.next() // consume $
	if p.rd.c == '{' {
		p.rd.next()
		if !isIdentStart(p.rd.c) {
			return nil, p.rd.parseError("expected identifier after ${")
		}
		ref, err := p.parseReference(line)
		if err != nil {
			return nil, err
		}
		if p.rd.c != '}' {
			return nil, p.rd.parseError("expected } to close ${ reference")
		}
		p.rd.next()
		return ref, nil
	}
	if !isIdentStart(p.rd.c) {
		return &constantNode{baseNode: at(line), value: "$"}, nil
	}
	return p.parseReference(line)
}

// parseReference parses an identifier plus its suffix chain. The cursor
// must be at the identifier's first character.
func (p *parser) parseReference(line int) (node, error) {
	id := p.parseIdent()
	var ref node = &plainReferenceNode{baseNode: at(line), name: id}
	return p.parseReferenceSuffixes(ref)
}

// parseReferenceSuffixes greedily parses .member, .method(args), and
// [index] suffixes. A dot not followed by an identifier is not a
// suffix: the dot is pushed back and becomes ordinary text.
func (p *parser) parseReferenceSuffixes(ref node) (node, error) {
	for {
		switch p.rd.c {
		case '.':
			line := p.rd.line
			p.rd.next()
			if !isIdentStart(p.rd.c) {
				p.rd.pushback('.')
				return ref, nil
			}
			name := p.parseIdent()
			if p.rd.c == '(' {
				args, err := p.parseArgumentList()
				if err != nil {
					return nil, err
				}
				ref = &methodReferenceNode{baseNode: at(line), lhs: ref, name: name, args: args}
			} else {
				ref = &memberReferenceNode{baseNode: at(line), lhs: ref, name: name}
			}
		case '[':
			line := p.rd.line
			p.rd.next()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			p.skipSpace()
			if err := p.require(']', "] to close index"); err != nil {
				return nil, err
			}
			ref = &indexReferenceNode{baseNode: at(line), lhs: ref, index: idx}
		default:
			return ref, nil
		}
	}
}

// parseArgumentList parses a parenthesized, comma-separated expression
// list. The cursor must be at the opening parenthesis.
func (p *parser) parseArgumentList() ([]node, error) {
	p.rd.next() // consume (
	p.skipSpace()
	var args []node
	if p.rd.c == ')' {
		p.rd.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		switch p.rd.c {
		case ',':
			p.rd.next()
		case ')':
			p.rd.next()
			return args, nil
		default:
			return nil, p.rd.parseError("expected , or ) in argument list")
		}
	}
}

// parseHash parses ## comments, #directive and #{directive} headers,
// and macro calls. A # followed by anything else is literal text.
func (p *parser) parseHash() (node, error) {
	line := p.rd.line
	p.rd.next() // consume #
	switch {
	case p.rd.c == '#':
		for p.rd.c != eof && p.rd.c != '\n' {
			p.rd.next()
		}
		if p.rd.c == '\n' {
			p.rd.next()
		}
		return &commentTokenNode{tokenAt(line)}, nil
	case p.rd.c == '{':
		p.rd.next()
		if !isIdentStart(p.rd.c) {
			return nil, p.rd.parseError("expected directive name after #{")
		}
		id := p.parseIdent()
		if err := p.require('}', "} after directive name"); err != nil {
			return nil, err
		}
		return p.parseDirective(id, line)
	case isIdentStart(p.rd.c):
		return p.parseDirective(p.parseIdent(), line)
	default:
		return &constantNode{baseNode: at(line), value: "#"}, nil
	}
}

func (p *parser) parseDirective(id string, line int) (node, error) {
	switch id {
	case "if":
		cond, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		p.eatNewline()
		return &ifTokenNode{tokenBase: tokenAt(line), condition: cond}, nil
	case "elseif":
		cond, err := p.parseParenExpression()
		if err != nil {
			return nil, err
		}
		p.eatNewline()
		return &elseIfTokenNode{tokenBase: tokenAt(line), condition: cond}, nil
	case "else":
		p.eatNewline()
		return &elseTokenNode{tokenAt(line)}, nil
	case "end":
		p.eatNewline()
		return &endTokenNode{tokenAt(line)}, nil
	case "foreach":
		return p.parseForEach(line)
	case "set":
		return p.parseSet(line)
	case "macro":
		return p.parseMacroDef(line)
	case "parse":
		return p.parseParseDirective(line)
	default:
		return p.parseMacroCall(id, line)
	}
}

func (p *parser) parseParenExpression() (node, error) {
	p.skipSpace()
	if err := p.require('(', "( before condition"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.require(')', ") after condition"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *parser) parseForEach(line int) (node, error) {
	p.skipSpace()
	if err := p.require('(', "( after #foreach"); err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.require('$', "$ before #foreach loop variable"); err != nil {
		return nil, err
	}
	if !isIdentStart(p.rd.c) {
		return nil, p.rd.parseError("expected loop variable name")
	}
	varName := p.parseIdent()
	p.skipSpace()
	if !isIdentStart(p.rd.c) {
		return nil, p.rd.parseError(`expected "in" in #foreach`)
	}
	if word := p.parseIdent(); word != "in" {
		return nil, p.rd.parseError(`expected "in" in #foreach`)
	}
	collection, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.require(')', ") after #foreach collection"); err != nil {
		return nil, err
	}
	p.eatNewline()
	return &forEachTokenNode{tokenBase: tokenAt(line), varName: varName, collection: collection}, nil
}

func (p *parser) parseSet(line int) (node, error) {
	p.skipSpace()
	if err := p.require('(', "( after #set"); err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.require('$', "$ before #set variable"); err != nil {
		return nil, err
	}
	if !isIdentStart(p.rd.c) {
		return nil, p.rd.parseError("expected variable name in #set")
	}
	name := p.parseIdent()
	p.skipSpace()
	if err := p.require('=', "= in #set"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if err := p.require(')', ") after #set"); err != nil {
		return nil, err
	}
	p.eatNewline()
	return &setNode{baseNode: at(line), name: name, expr: expr}, nil
}

func (p *parser) parseMacroDef(line int) (node, error) {
	p.skipSpace()
	if err := p.require('(', "( after #macro"); err != nil {
		return nil, err
	}
	p.skipSpace()
	if !isIdentStart(p.rd.c) {
		return nil, p.rd.parseError("expected macro name")
	}
	name := p.parseIdent()
	var params []string
	for {
		p.skipSpace()
		switch p.rd.c {
		case ')':
			p.rd.next()
			p.eatNewline()
			return &macroDefTokenNode{tokenBase: tokenAt(line), name: name, params: params}, nil
		case ',':
			p.rd.next()
		case '$':
			p.rd.next()
			if !isIdentStart(p.rd.c) {
				return nil, p.rd.parseError("expected parameter name after $")
			}
			params = append(params, p.parseIdent())
		default:
			return nil, p.rd.parseError("macro parameters must start with $")
		}
	}
}

// parseParseDirective handles #parse("name"): the named resource is
// resolved and tokenized in place, sharing this template's macro table.
func (p *parser) parseParseDirective(line int) (node, error) {
	p.skipSpace()
	if err := p.require('(', "( after #parse"); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.rd.c != '"' {
		return nil, p.rd.parseError("#parse argument must be a string literal")
	}
	lit, err := p.parseStringConstant(p.rd.line)
	if err != nil {
		return nil, err
	}
	resource := lit.value.(string)
	p.skipSpace()
	if err := p.require(')', ") after #parse"); err != nil {
		return nil, err
	}
	p.eatNewline()

	if p.resolver == nil {
		return nil, NewParseError(fmt.Sprintf("no resource resolver configured for #parse(%q)", resource), line, "")
	}
	if p.depth >= maxParseDepth {
		return nil, NewParseError(fmt.Sprintf("#parse nesting deeper than %d resolving %q", maxParseDepth, resource), line, "")
	}
	r, err := p.resolver.Resolve(resource)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("cannot resolve #parse resource %q: %v", resource, err), line, "")
	}
	data, err := io.ReadAll(r)
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("cannot read #parse resource %q: %v", resource, err), line, "")
	}
	sub, err := parseTokens(string(data), resource, p.macros, p.resolver, p.depth+1)
	if err != nil {
		return nil, err
	}
	// Drop the sub-resource's EOF token; the enclosing stream has its own.
	return &splicedTokensNode{tokenBase: tokenAt(line), items: sub[:len(sub)-1]}, nil
}

func (p *parser) parseMacroCall(name string, line int) (node, error) {
	p.skipSpace()
	if p.rd.c != '(' {
		return nil, p.rd.parseError(fmt.Sprintf("expected ( after #%s", name))
	}
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	p.eatNewline()
	return &macroCallNode{baseNode: at(line), name: name, args: args, macros: p.macros}, nil
}

// Expression parsing: operator-precedence climbing. parsePrimary covers
// everything that binds tighter than the binary operators.

func (p *parser) parseExpression() (node, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	op := &operatorParser{p: p}
	if err := op.advance(); err != nil {
		return nil, err
	}
	return op.parse(lhs, 1)
}

// operatorParser holds the one-operator lookahead the climbing
// algorithm needs: advance scans the next binary operator (or opNone at
// the end of the expression) and parse builds left-associative trees
// respecting precedence.
type operatorParser struct {
	p    *parser
	cur  operator
	line int
}

func (o *operatorParser) parse(lhs node, minPrec int) (node, error) {
	for o.cur != opNone && o.cur.precedence() >= minPrec {
		op, opLine := o.cur, o.line
		rhs, err := o.p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if err := o.advance(); err != nil {
			return nil, err
		}
		for o.cur != opNone && o.cur.precedence() > op.precedence() {
			rhs, err = o.parse(rhs, o.cur.precedence())
			if err != nil {
				return nil, err
			}
		}
		lhs = &binaryExpressionNode{baseNode: at(opLine), op: op, lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (o *operatorParser) advance() error {
	p := o.p
	p.skipSpace()
	o.line = p.rd.line
	switch p.rd.c {
	case '|':
		p.rd.next()
		if p.rd.c != '|' {
			return p.rd.parseError("expected ||, not |")
		}
		p.rd.next()
		o.cur = opOr
	case '&':
		p.rd.next()
		if p.rd.c != '&' {
			return p.rd.parseError("expected &&, not &")
		}
		p.rd.next()
		o.cur = opAnd
	case '=':
		p.rd.next()
		if p.rd.c != '=' {
			return p.rd.parseError("expected ==, not =")
		}
		p.rd.next()
		o.cur = opEqual
	case '!':
		p.rd.next()
		if p.rd.c != '=' {
			return p.rd.parseError("expected !=, not !")
		}
		p.rd.next()
		o.cur = opNotEqual
	case '<':
		p.rd.next()
		if p.rd.c == '=' {
			p.rd.next()
			o.cur = opLessOrEqual
		} else {
			o.cur = opLess
		}
	case '>':
		p.rd.next()
		if p.rd.c == '=' {
			p.rd.next()
			o.cur = opGreaterOrEqual
		} else {
			o.cur = opGreater
		}
	case '+':
		p.rd.next()
		o.cur = opPlus
	case '-':
		p.rd.next()
		o.cur = opMinus
	case '*':
		p.rd.next()
		o.cur = opTimes
	case '/':
		p.rd.next()
		o.cur = opDivide
	case '%':
		p.rd.next()
		o.cur = opRemainder
	default:
		o.cur = opNone
	}
	return nil
}

func (p *parser) parsePrimary() (node, error) {
	p.skipSpace()
	line := p.rd.line
	switch {
	case p.rd.c == '!':
		p.rd.next()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return &notExpressionNode{baseNode: at(line), operand: operand}, nil
	case p.rd.c == '(':
		p.rd.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.require(')', ") to close parenthesized expression"); err != nil {
			return nil, err
		}
		return expr, nil
	case p.rd.c == '$':
		p.rd.next()
		if p.rd.c == '{' {
			p.rd.next()
			if !isIdentStart(p.rd.c) {
				return nil, p.rd.parseError("expected identifier after ${")
			}
			ref, err := p.parseReference(line)
			if err != nil {
				return nil, err
			}
			if err := p.require('}', "} to close ${ reference"); err != nil {
				return nil, err
			}
			return ref, nil
		}
		if !isIdentStart(p.rd.c) {
			return nil, p.rd.parseError("expected identifier after $")
		}
		return p.parseReference(line)
	case p.rd.c == '"':
		return p.parseStringConstant(line)
	case p.rd.c == '-' || isASCIIDigit(p.rd.c):
		return p.parseIntConstant(line)
	case isIdentStart(p.rd.c):
		id := p.parseIdent()
		switch id {
		case "true":
			return &constantNode{baseNode: at(line), value: true}, nil
		case "false":
			return &constantNode{baseNode: at(line), value: false}, nil
		}
		return nil, NewParseError(fmt.Sprintf("expected true or false as bare word, not %q", id), line, p.rd.context())
	default:
		return nil, p.rd.parseError("unexpected character in expression")
	}
}

// parseStringConstant parses a double-quoted, single-line string. No
// escape sequences, and no $ or \ anywhere inside.
func (p *parser) parseStringConstant(line int) (*constantNode, error) {
	p.rd.next() // consume opening quote
	var sb strings.Builder
	for {
		switch p.rd.c {
		case '"':
			p.rd.next()
			return &constantNode{baseNode: at(line), value: sb.String()}, nil
		case eof, '\n':
			return nil, NewParseError("unterminated string constant", line, p.rd.context())
		case '$', '\\':
			return nil, p.rd.parseError("string constants must not contain $ or \\")
		default:
			sb.WriteRune(p.rd.c)
			p.rd.next()
		}
	}
}

func (p *parser) parseIntConstant(line int) (node, error) {
	var sb strings.Builder
	if p.rd.c == '-' {
		sb.WriteRune('-')
		p.rd.next()
		if !isASCIIDigit(p.rd.c) {
			return nil, p.rd.parseError("expected digit after -")
		}
	}
	for isASCIIDigit(p.rd.c) {
		sb.WriteRune(p.rd.c)
		p.rd.next()
	}
	v, err := strconv.ParseInt(sb.String(), 10, 64)
	if err != nil {
		return nil, NewParseError(fmt.Sprintf("integer literal out of range: %s", sb.String()), line, p.rd.context())
	}
	return &constantNode{baseNode: at(line), value: v}, nil
}

// parseIdent consumes an identifier: an ASCII letter followed by
// letters, digits, hyphens, and underscores.
func (p *parser) parseIdent() string {
	var sb strings.Builder
	sb.WriteRune(p.rd.c)
	p.rd.next()
	for isIdentPart(p.rd.c) {
		sb.WriteRune(p.rd.c)
		p.rd.next()
	}
	return sb.String()
}

func (p *parser) require(ch rune, what string) error {
	if p.rd.c != ch {
		return p.rd.parseError("expected " + what)
	}
	p.rd.next()
	return nil
}

func (p *parser) skipSpace() {
	for p.rd.c == ' ' || p.rd.c == '\t' || p.rd.c == '\r' || p.rd.c == '\n' {
		p.rd.next()
	}
}

// eatNewline discards the single line ending after a directive header.
func (p *parser) eatNewline() {
	if p.rd.c == '\r' {
		p.rd.next()
	}
	if p.rd.c == '\n' {
		p.rd.next()
	}
}

func isIdentStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || isASCIIDigit(c) || c == '-' || c == '_'
}

func isASCIIDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
