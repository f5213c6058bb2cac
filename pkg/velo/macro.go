package velo

// macro is a named template fragment with call-by-name parameters. The
// table it lives in is filled during structuring and read-only after,
// so a macro may be called from earlier in the template than it is
// defined. The first definition of a name wins; later ones are ignored.
type macro struct {
	name    string
	params  []string
	body    node
	defLine int
}

// thunk is an unevaluated macro argument: the argument expression plus
// the context it appeared in. Forcing it evaluates the expression in
// that context, never in the macro's own scope, so an argument and a
// parameter may share a name without recursing.
type thunk struct {
	expr node
	ctx  evalContext
}

func (t *thunk) force() (any, error) {
	return t.expr.evaluate(t.ctx)
}

// macroContext is the environment a macro body runs in: the parameter
// frame layered directly over the evaluation's base context. Caller
// parameter frames are deliberately not in the chain. Writes (#set)
// fall through to the base context; a parameter of the same name keeps
// shadowing reads until the body finishes. Loop bindings (setLocal)
// land in locals, above the parameters, so #foreach may reuse a
// parameter name for its loop variable.
type macroContext struct {
	params map[string]*thunk
	locals map[string]any
	root   *mapContext
}

func (c *macroContext) getVar(name string) (any, bool) {
	if v, ok := c.locals[name]; ok {
		return v, true
	}
	if th, ok := c.params[name]; ok {
		return th, true
	}
	return c.root.getVar(name)
}

func (c *macroContext) setVar(name string, value any) func() {
	return c.root.setVar(name, value)
}

func (c *macroContext) setLocal(name string, value any) func() {
	if c.locals == nil {
		c.locals = make(map[string]any)
	}
	old, had := c.locals[name]
	c.locals[name] = value
	return func() {
		if had {
			c.locals[name] = old
		} else {
			delete(c.locals, name)
		}
	}
}

func (c *macroContext) base() *mapContext { return c.root }

func (c *macroContext) state() *evalState { return c.root.state() }

// macroCallNode is #name(args...). The target is looked up at
// evaluation time; a call to a name that was never defined is an
// evaluation error, but merely defining-and-not-calling never is.
type macroCallNode struct {
	baseNode
	name   string
	args   []node
	macros map[string]*macro
}

func (n *macroCallNode) evaluate(ctx evalContext) (any, error) {
	m, ok := n.macros[n.name]
	if !ok {
		return nil, evalErrorf(n.line(), "#%s is neither a directive nor a defined macro", n.name)
	}
	if len(n.args) != len(m.params) {
		return nil, evalErrorf(n.line(), "macro #%s expects %d argument(s), got %d",
			m.name, len(m.params), len(n.args))
	}

	st := ctx.state()
	st.depth++
	defer func() { st.depth-- }()
	if st.depth > st.maxDepth {
		return nil, evalErrorf(n.line(), "evaluation depth %d exceeded calling #%s (unbounded macro recursion?)",
			st.maxDepth, n.name)
	}

	params := make(map[string]*thunk, len(m.params))
	for i, p := range m.params {
		params[p] = &thunk{expr: n.args[i], ctx: ctx}
	}
	bodyCtx := &macroContext{params: params, root: ctx.base()}

	v, err := m.body.evaluate(bodyCtx)
	if err != nil {
		return nil, &MacroError{Macro: m.name, Line: m.defLine, Cause: err}
	}
	return v, nil
}
