package velo

// plainReferenceNode is a bare variable reference, $name or ${name}.
// Reading an undefined variable is an evaluation error; #if conditions
// special-case that through baseVariable below.
type plainReferenceNode struct {
	baseNode
	name string
}

func (n *plainReferenceNode) evaluate(ctx evalContext) (any, error) {
	v, ok := ctx.getVar(n.name)
	if !ok {
		return nil, evalErrorf(n.line(), "undefined variable $%s", n.name)
	}
	if th, ok := v.(*thunk); ok {
		// Macro parameter: re-evaluate the argument expression in the
		// scope it was written in, every time it is referenced.
		return th.force()
	}
	return v, nil
}

// memberReferenceNode is property access, $base.member.
type memberReferenceNode struct {
	baseNode
	lhs  node
	name string
}

func (n *memberReferenceNode) evaluate(ctx evalContext) (any, error) {
	target, err := n.lhs.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return getProperty(n.line(), target, n.name)
}

// methodReferenceNode is an explicit call, $base.member(args...).
type methodReferenceNode struct {
	baseNode
	lhs  node
	name string
	args []node
}

func (n *methodReferenceNode) evaluate(ctx evalContext) (any, error) {
	target, err := n.lhs.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(n.args))
	for i, arg := range n.args {
		v, err := arg.evaluate(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return invokeMethod(n.line(), target, n.name, args)
}

// indexReferenceNode is indexed access, $base[expr].
type indexReferenceNode struct {
	baseNode
	lhs   node
	index node
}

func (n *indexReferenceNode) evaluate(ctx evalContext) (any, error) {
	target, err := n.lhs.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := n.index.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return getIndex(n.line(), target, idx)
}

// baseVariable returns the variable name at the root of a reference
// chain. #if uses it to treat a condition rooted in an undefined
// variable as false instead of an error.
func baseVariable(n node) (string, bool) {
	switch r := n.(type) {
	case *plainReferenceNode:
		return r.name, true
	case *memberReferenceNode:
		return baseVariable(r.lhs)
	case *methodReferenceNode:
		return baseVariable(r.lhs)
	case *indexReferenceNode:
		return baseVariable(r.lhs)
	}
	return "", false
}
