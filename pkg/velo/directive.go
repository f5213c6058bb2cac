package velo

import (
	"sort"
	"strings"

	reflect "github.com/goccy/go-reflect"
)

// setNode is #set($name = expr). The binding lands in the evaluation's
// base context and persists for the rest of the evaluation.
type setNode struct {
	baseNode
	name string
	expr node
}

func (n *setNode) evaluate(ctx evalContext) (any, error) {
	v, err := n.expr.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ctx.setVar(n.name, v)
	return "", nil
}

// ifNode is one branch of an #if/#elseif/#else chain. elseif branches
// nest as the falsePart of the preceding branch.
type ifNode struct {
	baseNode
	condition node
	truePart  node
	falsePart node
}

func (n *ifNode) evaluate(ctx evalContext) (any, error) {
	ok, err := n.conditionHolds(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return n.truePart.evaluate(ctx)
	}
	if n.falsePart == nil {
		return "", nil
	}
	return n.falsePart.evaluate(ctx)
}

// conditionHolds evaluates the branch condition. A condition rooted in
// an undefined variable counts as false rather than an error; this is
// the one place undefined reads are tolerated.
func (n *ifNode) conditionHolds(ctx evalContext) (bool, error) {
	if name, ok := baseVariable(n.condition); ok {
		if _, defined := ctx.getVar(name); !defined {
			return false, nil
		}
	}
	v, err := n.condition.evaluate(ctx)
	if err != nil {
		return false, err
	}
	return isTruthy(v), nil
}

// forEachNode is #foreach($var in $collection) body #end.
type forEachNode struct {
	baseNode
	varName    string
	collection node
	body       node
}

// loopStatus backs the $foreach handle bound inside a loop body.
type loopStatus struct {
	index int
	size  int
}

func (s *loopStatus) HasNext() bool { return s.index+1 < s.size }
func (s *loopStatus) Index() int    { return s.index }
func (s *loopStatus) First() bool   { return s.index == 0 }
func (s *loopStatus) Last() bool    { return s.index+1 == s.size }

func (n *forEachNode) evaluate(ctx evalContext) (any, error) {
	cv, err := n.collection.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	items, err := iterableValues(n.line(), cv)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return "", nil
	}

	status := &loopStatus{size: len(items)}
	undoVar := ctx.setLocal(n.varName, items[0])
	undoStatus := ctx.setLocal("foreach", status)
	defer undoStatus()
	defer undoVar()

	var sb strings.Builder
	for i, item := range items {
		status.index = i
		if i > 0 {
			ctx.setLocal(n.varName, item)
		}
		v, err := n.body.evaluate(ctx)
		if err != nil {
			return nil, err
		}
		sb.WriteString(formatValue(v))
	}
	return sb.String(), nil
}

// iterableValues flattens a #foreach collection into a slice. Slices
// and arrays iterate in order; maps iterate over their values, ordered
// by the rendered form of their keys so output is deterministic.
func iterableValues(line int, collection any) ([]any, error) {
	if collection == nil {
		return nil, evalErrorf(line, "#foreach collection is nil")
	}
	v := reflect.ValueOf(collection)
	elem, err := indirect(line, v, "#foreach")
	if err != nil {
		return nil, err
	}
	switch elem.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, elem.Len())
		for i := range items {
			items[i] = elem.Index(i).Interface()
		}
		return items, nil
	case reflect.Map:
		keys := elem.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return formatValue(keys[i].Interface()) < formatValue(keys[j].Interface())
		})
		items := make([]any, 0, len(keys))
		for _, k := range keys {
			items = append(items, elem.MapIndex(k).Interface())
		}
		return items, nil
	}
	return nil, evalErrorf(line, "cannot iterate value of type %T in #foreach", collection)
}
