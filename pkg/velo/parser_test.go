package velo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseErr(t *testing.T, src string) *ParseError {
	t.Helper()
	_, err := ParseString(src, "test")
	require.Error(t, err, "template should not parse: %s", src)
	pe, ok := AsParseError(err)
	require.True(t, ok, "want ParseError, got %T: %v", err, err)
	return pe
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantMsg  string
		wantLine int
	}{
		{
			name:     "unterminated string constant",
			src:      `#set($x = "abc`,
			wantMsg:  "unterminated string constant",
			wantLine: 1,
		},
		{
			name:     "string constant spanning lines",
			src:      "#set($x = \"a\nb\")",
			wantMsg:  "unterminated string constant",
			wantLine: 1,
		},
		{
			name:     "dollar in string constant",
			src:      `#set($x = "a$b")`,
			wantMsg:  "string constants must not contain $ or \\",
			wantLine: 1,
		},
		{
			name:     "missing end for if cites the if line",
			src:      "a\n#if(true)\nb\n",
			wantMsg:  "missing #end for #if",
			wantLine: 2,
		},
		{
			name:     "missing end for foreach",
			src:      "#foreach($x in $items)$x",
			wantMsg:  "missing #end for #foreach",
			wantLine: 1,
		},
		{
			name:     "missing end for macro",
			src:      "#macro(m)",
			wantMsg:  "missing #end for #macro m",
			wantLine: 1,
		},
		{
			name:     "stray end",
			src:      "a\nb\n#end",
			wantMsg:  "unexpected #end",
			wantLine: 3,
		},
		{
			name:     "stray else",
			src:      "#else",
			wantMsg:  "unexpected #else",
			wantLine: 1,
		},
		{
			name:     "stray elseif",
			src:      "#elseif(true)",
			wantMsg:  "unexpected #elseif",
			wantLine: 1,
		},
		{
			name:     "else inside foreach",
			src:      "#foreach($x in $a)#else#end",
			wantMsg:  "unexpected #else",
			wantLine: 1,
		},
		{
			name:     "single pipe operator",
			src:      "#if($a | $b)x#end",
			wantMsg:  "expected ||, not |",
			wantLine: 1,
		},
		{
			name:     "single ampersand operator",
			src:      "#if($a & $b)x#end",
			wantMsg:  "expected &&, not &",
			wantLine: 1,
		},
		{
			name:     "single equals operator",
			src:      "#if($a = $b)x#end",
			wantMsg:  "expected ==, not =",
			wantLine: 1,
		},
		{
			name:     "bare word in expression",
			src:      "#if(yes)x#end",
			wantMsg:  `expected true or false as bare word, not "yes"`,
			wantLine: 1,
		},
		{
			name:     "missing close paren in if",
			src:      "#if(true x#end",
			wantMsg:  "expected ) after condition",
			wantLine: 1,
		},
		{
			name:     "missing in keyword in foreach",
			src:      "#foreach($x of $items)$x#end",
			wantMsg:  `expected "in" in #foreach`,
			wantLine: 1,
		},
		{
			name:     "foreach variable without dollar",
			src:      "#foreach(x in $items)$x#end",
			wantMsg:  "expected $ before #foreach loop variable",
			wantLine: 1,
		},
		{
			name:     "set without equals",
			src:      "#set($x 1)",
			wantMsg:  "expected = in #set",
			wantLine: 1,
		},
		{
			name:     "macro call without parens",
			src:      "#frobnicate and more",
			wantMsg:  "expected ( after #frobnicate",
			wantLine: 1,
		},
		{
			name:     "unclosed braced reference",
			src:      "${x",
			wantMsg:  "expected } to close ${ reference",
			wantLine: 1,
		},
		{
			name:     "empty braced reference",
			src:      "${}",
			wantMsg:  "expected identifier after ${",
			wantLine: 1,
		},
		{
			name:     "macro parameter without dollar",
			src:      "#macro(m x)#end",
			wantMsg:  "macro parameters must start with $",
			wantLine: 1,
		},
		{
			name:     "unclosed index",
			src:      "$a[1",
			wantMsg:  "expected ] to close index",
			wantLine: 1,
		},
		{
			name:     "error on later line",
			src:      "line 1\nline 2\n#if(1 +)x#end\n",
			wantMsg:  "unexpected character in expression",
			wantLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := parseErr(t, tt.src)
			assert.Contains(t, pe.Message, tt.wantMsg)
			assert.Equal(t, tt.wantLine, pe.Line, "line in %v", pe)
		})
	}
}

func TestParseErrorContextSnippet(t *testing.T) {
	pe := parseErr(t, "#if(yes, this is a long tail that should be truncated)x#end")
	assert.NotEmpty(t, pe.Context)
	assert.LessOrEqual(t, len(pe.Context), 23, "snippet plus ellipsis stays short")
	assert.Contains(t, pe.Error(), "near")
}

func TestParseValidTemplates(t *testing.T) {
	// Constructs that look marginal but must parse.
	srcs := []string{
		"plain text only",
		"$",
		"#",
		"a$ b# c",
		"${x}",
		"#if(true)#end",
		"#if((1 < 2) && !false)x#end",
		"#foreach($x in $y.items())$x#end",
		"#macro(m)#end",
		"#macro(m $a, $b)$a$b#end#m(1, 2)",
		"#set($x = $y[0].name)",
		"## just a comment",
		"#if(true)x#elseif(false)y#elseif(true)z#{else}w#end",
	}
	for _, src := range srcs {
		_, err := ParseString(src, "test")
		assert.NoError(t, err, "should parse: %s", src)
	}
}

func TestParseErrorLineCounting(t *testing.T) {
	// The failure is on line 5; everything before it is fine.
	src := "a\nb\nc\nd\n#set($x = \"oops\n"
	pe := parseErr(t, src)
	assert.Equal(t, 5, pe.Line)
}
