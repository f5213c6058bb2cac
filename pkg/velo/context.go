package velo

// evalContext is the variable environment a template evaluates against.
// Both setters return an undo action restoring the previous binding;
// #foreach relies on it to unwind loop bindings, including on error
// exit. setVar writes the evaluation's base scope. setLocal binds in
// the innermost frame, so a #foreach loop variable inside a macro body
// shadows a parameter of the same name for the loop's extent.
type evalContext interface {
	getVar(name string) (any, bool)
	setVar(name string, value any) func()
	setLocal(name string, value any) func()

	// base returns the mutable root context of the evaluation, the one
	// seeded from the caller's variable map. Macro bodies layer their
	// parameter frame directly over it.
	base() *mapContext
	state() *evalState
}

// evalState tracks per-evaluation bookkeeping shared across the context
// chain. depth bounds nested macro invocation so runaway recursion
// surfaces as an EvaluationError instead of exhausting the stack.
type evalState struct {
	depth    int
	maxDepth int
}

// mapContext is the root environment of one Evaluate call. The variable
// map is copied on construction; the caller's map is never mutated.
type mapContext struct {
	vars map[string]any
	st   *evalState
}

func newMapContext(vars map[string]any, maxDepth int) *mapContext {
	copied := make(map[string]any, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &mapContext{
		vars: copied,
		st:   &evalState{maxDepth: maxDepth},
	}
}

func (c *mapContext) getVar(name string) (any, bool) {
	v, ok := c.vars[name]
	return v, ok
}

func (c *mapContext) setVar(name string, value any) func() {
	old, had := c.vars[name]
	c.vars[name] = value
	return func() {
		if had {
			c.vars[name] = old
		} else {
			delete(c.vars, name)
		}
	}
}

// setLocal is setVar at the root: the base scope is its own innermost
// frame.
func (c *mapContext) setLocal(name string, value any) func() {
	return c.setVar(name, value)
}

func (c *mapContext) base() *mapContext { return c }

func (c *mapContext) state() *evalState { return c.st }
