package velo

// eof marks the end of the input character stream.
const eof rune = -1

// reader is the phase-1 cursor over the template text: one current rune,
// at most one rune of pushback, and the 1-based line of the current rune.
type reader struct {
	chars     []rune
	pos       int  // index of the rune after c
	c         rune // current rune, eof once exhausted
	pushed    rune
	hasPushed bool
	line      int
}

func newReader(src string) *reader {
	r := &reader{chars: []rune(src), line: 1}
	r.next()
	return r
}

// next advances the cursor by one rune.
func (r *reader) next() {
	if r.hasPushed {
		r.c = r.pushed
		r.hasPushed = false
		return
	}
	if r.c == '\n' {
		r.line++
	}
	if r.pos >= len(r.chars) {
		r.c = eof
		return
	}
	r.c = r.chars[r.pos]
	r.pos++
}

// pushback makes ch the current rune and stashes the present one so the
// following next() restores it. Only one rune may be pending at a time;
// the parser never needs more.
func (r *reader) pushback(ch rune) {
	if r.hasPushed {
		panic("velo: second pushback without intervening read")
	}
	r.pushed = r.c
	r.hasPushed = true
	r.c = ch
}

const contextSnippetLen = 20

// context returns up to contextSnippetLen runes of upcoming input for
// parse error messages, suffixed with an ellipsis when truncated.
func (r *reader) context() string {
	var runes []rune
	if r.c != eof {
		runes = append(runes, r.c)
	}
	if r.hasPushed && r.pushed != eof {
		runes = append(runes, r.pushed)
	}
	rest := r.chars[min(r.pos, len(r.chars)):]
	truncated := false
	for _, ch := range rest {
		if len(runes) >= contextSnippetLen {
			truncated = true
			break
		}
		runes = append(runes, ch)
	}
	s := string(runes)
	if truncated {
		s += "..."
	}
	return s
}

// parseError builds a ParseError at the current position.
func (r *reader) parseError(message string) error {
	return NewParseError(message, r.line, r.context())
}
