package velo

import (
	"math"

	reflect "github.com/goccy/go-reflect"
)

// operator identifies a binary operator. Values are ordered for
// readability only; binding strength lives in the precedence table.
type operator int

const (
	opNone operator = iota
	opOr
	opAnd
	opEqual
	opNotEqual
	opLess
	opLessOrEqual
	opGreater
	opGreaterOrEqual
	opPlus
	opMinus
	opTimes
	opDivide
	opRemainder
)

// precedence, low to high: || < && < equality < relational < additive
// < multiplicative. Unary ! and parentheses bind tighter than all of
// these and are handled directly by the parser.
var operatorPrecedence = map[operator]int{
	opOr:             1,
	opAnd:            2,
	opEqual:          3,
	opNotEqual:       3,
	opLess:           4,
	opLessOrEqual:    4,
	opGreater:        4,
	opGreaterOrEqual: 4,
	opPlus:           5,
	opMinus:          5,
	opTimes:          6,
	opDivide:         6,
	opRemainder:      6,
}

var operatorSymbols = map[operator]string{
	opOr:             "||",
	opAnd:            "&&",
	opEqual:          "==",
	opNotEqual:       "!=",
	opLess:           "<",
	opLessOrEqual:    "<=",
	opGreater:        ">",
	opGreaterOrEqual: ">=",
	opPlus:           "+",
	opMinus:          "-",
	opTimes:          "*",
	opDivide:         "/",
	opRemainder:      "%",
}

func (op operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return "<none>"
}

func (op operator) precedence() int {
	return operatorPrecedence[op]
}

// notExpressionNode is unary !.
type notExpressionNode struct {
	baseNode
	operand node
}

func (n *notExpressionNode) evaluate(ctx evalContext) (any, error) {
	v, err := n.operand.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return !isTruthy(v), nil
}

// binaryExpressionNode applies op to its two operands. || and && are
// truthiness-based and short-circuit; equality follows equalValues;
// the arithmetic and relational operators accept integers only.
type binaryExpressionNode struct {
	baseNode
	op  operator
	lhs node
	rhs node
}

func (n *binaryExpressionNode) evaluate(ctx evalContext) (any, error) {
	switch n.op {
	case opOr, opAnd:
		return n.evaluateLogical(ctx)
	case opEqual, opNotEqual:
		lv, err := n.lhs.evaluate(ctx)
		if err != nil {
			return nil, err
		}
		rv, err := n.rhs.evaluate(ctx)
		if err != nil {
			return nil, err
		}
		eq := equalValues(lv, rv)
		if n.op == opNotEqual {
			eq = !eq
		}
		return eq, nil
	}
	li, err := n.intOperand(ctx, n.lhs)
	if err != nil {
		return nil, err
	}
	ri, err := n.intOperand(ctx, n.rhs)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case opLess:
		return li < ri, nil
	case opLessOrEqual:
		return li <= ri, nil
	case opGreater:
		return li > ri, nil
	case opGreaterOrEqual:
		return li >= ri, nil
	case opPlus:
		return li + ri, nil
	case opMinus:
		return li - ri, nil
	case opTimes:
		return li * ri, nil
	case opDivide:
		if ri == 0 {
			return nil, evalErrorf(n.line(), "division by zero")
		}
		return li / ri, nil
	case opRemainder:
		if ri == 0 {
			return nil, evalErrorf(n.line(), "remainder by zero")
		}
		return li % ri, nil
	}
	return nil, evalErrorf(n.line(), "unknown operator %s", n.op)
}

func (n *binaryExpressionNode) evaluateLogical(ctx evalContext) (any, error) {
	lv, err := n.lhs.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if n.op == opOr {
		if isTruthy(lv) {
			return true, nil
		}
	} else {
		if !isTruthy(lv) {
			return false, nil
		}
	}
	rv, err := n.rhs.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return isTruthy(rv), nil
}

func (n *binaryExpressionNode) intOperand(ctx evalContext, operand node) (int64, error) {
	v, err := operand.evaluate(ctx)
	if err != nil {
		return 0, err
	}
	i, ok := toInt64(v)
	if !ok {
		return 0, evalErrorf(operand.line(), "operand of %s must be an integer: %v (%T)", n.op, v, v)
	}
	return i, nil
}

// toInt64 widens any Go integer kind to int64. Floats, strings,
// unsigned values past MaxInt64, and everything else are rejected.
func toInt64(v any) (int64, bool) {
	switch i := v.(type) {
	case int:
		return int64(i), true
	case int64:
		return i, true
	case int8:
		return int64(i), true
	case int16:
		return int64(i), true
	case int32:
		return int64(i), true
	case uint:
		if uint64(i) > math.MaxInt64 {
			return 0, false
		}
		return int64(i), true
	case uint8:
		return int64(i), true
	case uint16:
		return int64(i), true
	case uint32:
		return int64(i), true
	case uint64:
		if i > math.MaxInt64 {
			return 0, false
		}
		return int64(i), true
	default:
		return 0, false
	}
}

// equalValues implements the engine's equality rule: values of the same
// dynamic type compare naturally; values of different types compare
// equal exactly when their rendered strings match, so 5 == "5". The
// cross-type fallback is deliberately loose and is relied upon by
// templates comparing numbers against string-typed variables.
func equalValues(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if reflect.TypeOf(l) == reflect.TypeOf(r) {
		return reflect.DeepEqual(l, r)
	}
	return formatValue(l) == formatValue(r)
}
