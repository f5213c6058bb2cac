package velo

// Template is the parsed form of a template resource. Templates are
// immutable after parsing, so a single Template may be evaluated from
// many goroutines at once; every Evaluate call gets its own variable
// environment.
type Template struct {
	name         string
	root         node
	macros       map[string]*macro
	maxEvalDepth int
}

// Name returns the resource name the template was parsed from.
func (t *Template) Name() string { return t.name }

// Evaluate renders the template against the given variables and returns
// the produced text. vars may be nil; it is copied, never mutated, and
// #set assignments do not leak back into it. Errors are of type
// *EvaluationError, possibly wrapped in *MacroError frames.
func (t *Template) Evaluate(vars map[string]any) (string, error) {
	ctx := newMapContext(vars, t.maxEvalDepth)
	v, err := t.root.evaluate(ctx)
	if err != nil {
		return "", err
	}
	return formatValue(v), nil
}
