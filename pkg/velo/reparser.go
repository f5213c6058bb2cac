package velo

import (
	"fmt"
	"strings"
)

// reparser is phase 2: it walks the flat token list and builds the
// nested evaluation tree, pairing directive headers with their #end,
// chaining #elseif/#else arms, and collecting macro definitions.
type reparser struct {
	tokens []node
	pos    int
	macros map[string]*macro
}

func reparse(tokens []node, macros map[string]*macro) (node, error) {
	rp := &reparser{tokens: removeSpaceBeforeSet(tokens), macros: macros}
	return rp.parseTo(isEOFToken, "", 1)
}

func (rp *reparser) cur() node {
	return rp.tokens[rp.pos]
}

// parseTo builds a sequence from the current position until stop
// matches. The stop token itself is left for the caller to consume.
// construct and startLine identify the enclosing directive for the
// missing-#end error.
func (rp *reparser) parseTo(stop func(node) bool, construct string, startLine int) (node, error) {
	var items []node
	for {
		tok := rp.cur()
		if stop(tok) {
			return &sequenceNode{baseNode: at(startLine), items: items}, nil
		}
		switch t := tok.(type) {
		case *eofTokenNode:
			return nil, NewParseError(fmt.Sprintf("missing #end for %s", construct), startLine, "")
		case *commentTokenNode:
			rp.pos++
		case *endTokenNode, *elseTokenNode, *elseIfTokenNode:
			return nil, NewParseError("unexpected "+tokenName(tok), tok.line(), "")
		case *ifTokenNode:
			rp.pos++
			n, err := rp.parseIfBody(t.condition, t.line())
			if err != nil {
				return nil, err
			}
			items = append(items, n)
		case *forEachTokenNode:
			rp.pos++
			body, err := rp.parseTo(isEndToken, "#foreach", t.line())
			if err != nil {
				return nil, err
			}
			rp.pos++ // consume #end
			items = append(items, &forEachNode{baseNode: at(t.line()), varName: t.varName, collection: t.collection, body: body})
		case *macroDefTokenNode:
			rp.pos++
			body, err := rp.parseTo(isEndToken, fmt.Sprintf("#macro %s", t.name), t.line())
			if err != nil {
				return nil, err
			}
			rp.pos++ // consume #end
			// The first definition of a macro name wins; later ones are
			// structured for error checking but otherwise ignored.
			if _, exists := rp.macros[t.name]; !exists {
				rp.macros[t.name] = &macro{name: t.name, params: t.params, body: body, defLine: t.line()}
			}
		default:
			rp.pos++
			items = append(items, tok)
		}
	}
}

// parseIfBody parses the body of an #if or #elseif arm, wiring any
// #elseif chain as nested ifNodes in the false branch.
func (rp *reparser) parseIfBody(condition node, line int) (node, error) {
	truePart, err := rp.parseTo(isIfStopToken, "#if", line)
	if err != nil {
		return nil, err
	}
	switch t := rp.cur().(type) {
	case *endTokenNode:
		rp.pos++
		return &ifNode{baseNode: at(line), condition: condition, truePart: truePart}, nil
	case *elseTokenNode:
		rp.pos++
		falsePart, err := rp.parseTo(isEndToken, "#else", t.line())
		if err != nil {
			return nil, err
		}
		rp.pos++ // consume #end
		return &ifNode{baseNode: at(line), condition: condition, truePart: truePart, falsePart: falsePart}, nil
	case *elseIfTokenNode:
		rp.pos++
		rest, err := rp.parseIfBody(t.condition, t.line())
		if err != nil {
			return nil, err
		}
		return &ifNode{baseNode: at(line), condition: condition, truePart: truePart, falsePart: rest}, nil
	default:
		// parseTo only stops on the three arms above or EOF, and EOF is
		// already an error there.
		return nil, NewParseError("malformed #if", line, "")
	}
}

func isEOFToken(n node) bool {
	_, ok := n.(*eofTokenNode)
	return ok
}

func isEndToken(n node) bool {
	if _, ok := n.(*endTokenNode); ok {
		return true
	}
	return false
}

func isIfStopToken(n node) bool {
	switch n.(type) {
	case *endTokenNode, *elseTokenNode, *elseIfTokenNode:
		return true
	}
	return false
}

func tokenName(n node) string {
	switch n.(type) {
	case *endTokenNode:
		return "#end"
	case *elseTokenNode:
		return "#else"
	case *elseIfTokenNode:
		return "#elseif"
	}
	return "token"
}

// removeSpaceBeforeSet trims horizontal whitespace from the end of any
// literal text immediately preceding a #set, so indented #set lines do
// not leak their indentation into the output. Comments between the text
// and the #set are skipped when looking back.
func removeSpaceBeforeSet(tokens []node) []node {
	for i, tok := range tokens {
		if _, ok := tok.(*setNode); !ok {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if _, ok := tokens[j].(*commentTokenNode); ok {
				continue
			}
			if c, ok := tokens[j].(*constantNode); ok {
				if s, ok := c.value.(string); ok {
					if trimmed := strings.TrimRight(s, " \t"); trimmed != s {
						tokens[j] = &constantNode{baseNode: at(c.line()), value: trimmed}
					}
				}
			}
			break
		}
	}
	return tokens
}
