package velo

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderString(t *testing.T) {
	out, err := RenderString("hi $name", map[string]any{"name": "sam"})
	require.NoError(t, err)
	assert.Equal(t, "hi sam", out)
}

func TestParseReader(t *testing.T) {
	tmpl, err := Parse(strings.NewReader("$x"), "from-reader")
	require.NoError(t, err)
	out, err := tmpl.Evaluate(map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "1", out)
	assert.Equal(t, "from-reader", tmpl.Name())
}

func TestParseDirectiveWithMapResolver(t *testing.T) {
	engine := NewWithOptions(
		WithCache(0),
		WithResolver(MapResolver{
			"header.vm": "== $title ==\n",
			"outer.vm":  "#parse(\"header.vm\")body\n",
		}),
	)

	tmpl, err := engine.ParseString("#parse(\"outer.vm\")end", "main")
	require.NoError(t, err)

	out, err := tmpl.Evaluate(map[string]any{"title": "T"})
	require.NoError(t, err)
	assert.Equal(t, "== T ==\nbody\nend", out)
}

func TestParseDirectiveSharesMacros(t *testing.T) {
	engine := NewWithOptions(
		WithCache(0),
		WithResolver(MapResolver{
			"macros.vm": "#macro(hi $n)hello $n#end",
		}),
	)

	tmpl, err := engine.ParseString("#parse(\"macros.vm\")#hi(\"you\")", "main")
	require.NoError(t, err)

	out, err := tmpl.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello you", out)
}

func TestParseDirectiveErrors(t *testing.T) {
	t.Run("no resolver configured", func(t *testing.T) {
		engine := NewWithOptions(WithCache(0))
		_, err := engine.ParseString("#parse(\"x.vm\")", "main")
		require.Error(t, err)
		pe, ok := AsParseError(err)
		require.True(t, ok)
		assert.Contains(t, pe.Message, "no resource resolver configured")
	})

	t.Run("unresolvable resource", func(t *testing.T) {
		engine := NewWithOptions(WithCache(0), WithResolver(MapResolver{}))
		_, err := engine.ParseString("line1\n#parse(\"x.vm\")", "main")
		require.Error(t, err)
		pe, ok := AsParseError(err)
		require.True(t, ok)
		assert.Contains(t, pe.Message, `cannot resolve #parse resource "x.vm"`)
		assert.Equal(t, 2, pe.Line)
	})

	t.Run("non literal argument", func(t *testing.T) {
		engine := NewWithOptions(WithCache(0), WithResolver(MapResolver{}))
		_, err := engine.ParseString("#parse($name)", "main")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "#parse argument must be a string literal")
	})

	t.Run("self include is cut off", func(t *testing.T) {
		engine := NewWithOptions(WithCache(0), WithResolver(MapResolver{
			"loop.vm": "#parse(\"loop.vm\")",
		}))
		_, err := engine.ParseString("#parse(\"loop.vm\")", "main")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "#parse nesting")
	})

	t.Run("syntax error inside included resource", func(t *testing.T) {
		engine := NewWithOptions(WithCache(0), WithResolver(MapResolver{
			"bad.vm": "#if(true)no end",
		}))
		_, err := engine.ParseString("#parse(\"bad.vm\")", "main")
		require.Error(t, err)
		assert.True(t, IsParseError(err))
	})
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.vm")
	require.NoError(t, os.WriteFile(path, []byte("#parse(\"part.vm\")!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "part.vm"), []byte("hello"), 0o644))

	engine := NewWithOptions(WithCache(4))
	tmpl, err := engine.ParseFile(path)
	require.NoError(t, err)

	out, err := tmpl.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, "hello!", out)

	// Second parse comes from the cache.
	again, err := engine.ParseFile(path)
	require.NoError(t, err)
	assert.Same(t, tmpl, again)
}

func TestParseFileMissing(t *testing.T) {
	engine := NewWithOptions(WithCache(0))
	_, err := engine.ParseFile(filepath.Join(t.TempDir(), "absent.vm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read template file")
}

func TestFileResolverRejectsEscapes(t *testing.T) {
	r := FileResolver(t.TempDir())

	_, err := r.Resolve("/etc/passwd")
	assert.ErrorContains(t, err, "absolute resource name")

	_, err = r.Resolve("../secret.vm")
	assert.ErrorContains(t, err, "escapes the template directory")

	_, err = r.Resolve("a/../../secret.vm")
	assert.ErrorContains(t, err, "escapes the template directory")
}

func TestResolverFunc(t *testing.T) {
	r := ResolverFunc(func(name string) (io.Reader, error) {
		return strings.NewReader("from " + name), nil
	})
	rd, err := r.Resolve("x")
	require.NoError(t, err)
	data, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.Equal(t, "from x", string(data))
}

func TestEngineClearCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.vm")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	engine := NewWithOptions(WithCache(4))
	first, err := engine.ParseFile(path)
	require.NoError(t, err)

	engine.ClearCache()
	second, err := engine.ParseFile(path)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
