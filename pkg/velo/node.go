package velo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// node is a single element of the parse tree. Expression and directive
// nodes evaluate to a value; token nodes exist only between the two
// parse phases and are never evaluated.
type node interface {
	evaluate(ctx evalContext) (any, error)
	line() int
}

// baseNode carries the originating line number for diagnostics.
type baseNode struct {
	lineNum int
}

func (n baseNode) line() int { return n.lineNum }

// constantNode wraps a literal value: a run of template text, a string
// or integer literal, or a boolean.
type constantNode struct {
	baseNode
	value any
}

func (n *constantNode) evaluate(evalContext) (any, error) {
	return n.value, nil
}

// sequenceNode evaluates its items in order and concatenates their
// rendered string forms. Directive bodies and whole templates are
// sequences.
type sequenceNode struct {
	baseNode
	items []node
}

func (n *sequenceNode) evaluate(ctx evalContext) (any, error) {
	var sb strings.Builder
	for _, item := range n.items {
		v, err := item.evaluate(ctx)
		if err != nil {
			return nil, err
		}
		sb.WriteString(formatValue(v))
	}
	return sb.String(), nil
}

// formatValue renders a value into template output. Nil renders as the
// empty string.
func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isTruthy implements directive truthiness: every value is true except
// nil and the boolean false. Empty strings, empty collections, and zero
// are all true.
func isTruthy(value any) bool {
	if value == nil {
		return false
	}
	if b, ok := value.(bool); ok {
		return b
	}
	return true
}

// token nodes: produced by phase 1, consumed and discarded by phase 2.

var errTokenEvaluated = errors.New("internal error: parse token reached evaluation")

type tokenBase struct {
	baseNode
}

func (tokenBase) evaluate(evalContext) (any, error) {
	return nil, errTokenEvaluated
}

type eofTokenNode struct{ tokenBase }

type commentTokenNode struct{ tokenBase }

type endTokenNode struct{ tokenBase }

type elseTokenNode struct{ tokenBase }

type ifTokenNode struct {
	tokenBase
	condition node
}

type elseIfTokenNode struct {
	tokenBase
	condition node
}

type forEachTokenNode struct {
	tokenBase
	varName    string
	collection node
}

type macroDefTokenNode struct {
	tokenBase
	name   string
	params []string
}

// splicedTokensNode carries the flat token list of a #parse'd resource;
// the phase-1 driver inlines its items into the enclosing stream.
type splicedTokensNode struct {
	tokenBase
	items []node
}
