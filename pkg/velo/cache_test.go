package velo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate(t *testing.T, src string) *Template {
	t.Helper()
	tmpl, err := ParseString(src, "cached")
	require.NoError(t, err)
	return tmpl
}

func TestCacheSetGet(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	tmpl := testTemplate(t, "x")

	_, ok := tc.Get("a")
	assert.False(t, ok)

	tc.Set("a", tmpl)
	got, ok := tc.Get("a")
	require.True(t, ok)
	assert.Same(t, tmpl, got)
	assert.Equal(t, 1, tc.Size())
}

func TestCacheLRUEviction(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 2})
	a := testTemplate(t, "a")
	b := testTemplate(t, "b")
	c := testTemplate(t, "c")

	tc.Set("a", a)
	tc.Set("b", b)

	// Touch a so b becomes the eviction candidate.
	_, ok := tc.Get("a")
	require.True(t, ok)

	tc.Set("c", c)
	assert.Equal(t, 2, tc.Size())

	_, ok = tc.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = tc.Get("a")
	assert.True(t, ok)
	_, ok = tc.Get("c")
	assert.True(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10, TTL: 10 * time.Millisecond})
	tc.Set("a", testTemplate(t, "a"))

	_, ok := tc.Get("a")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = tc.Get("a")
	assert.False(t, ok, "expired entry should be dropped")
	assert.Equal(t, 0, tc.Size())
}

func TestCacheDisabled(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 0})

	loads := 0
	load := func() (*Template, error) {
		loads++
		return testTemplate(t, "x"), nil
	}

	_, err := tc.GetOrParse("a", load)
	require.NoError(t, err)
	_, err = tc.GetOrParse("a", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "disabled cache loads every time")
	assert.Equal(t, 0, tc.Size())
}

func TestCacheGetOrParse(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})

	loads := 0
	load := func() (*Template, error) {
		loads++
		return testTemplate(t, "x"), nil
	}

	first, err := tc.GetOrParse("a", load)
	require.NoError(t, err)
	second, err := tc.GetOrParse("a", load)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, loads)

	_, err = tc.GetOrParse("bad", func() (*Template, error) {
		return nil, fmt.Errorf("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, tc.Size(), "failed loads are not cached")
}

func TestCacheClearAndRemove(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	tc.Set("a", testTemplate(t, "a"))
	tc.Set("b", testTemplate(t, "b"))

	tc.Remove("a")
	assert.Equal(t, 1, tc.Size())

	tc.Clear()
	assert.Equal(t, 0, tc.Size())
	_, ok := tc.Get("b")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	tc := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 4})
	tmpl := testTemplate(t, "x")
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 100; j++ {
				tc.Set(key, tmpl)
				tc.Get(key)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
