package velo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ResourceResolver loads the resources named by #parse directives.
// Resolution happens while the enclosing template is being parsed, so a
// resolver error surfaces as a ParseError on the #parse line.
type ResourceResolver interface {
	Resolve(name string) (io.Reader, error)
}

// ResolverFunc adapts a plain function to the ResourceResolver interface.
type ResolverFunc func(name string) (io.Reader, error)

func (f ResolverFunc) Resolve(name string) (io.Reader, error) {
	return f(name)
}

// FileResolver resolves resource names against a directory. Absolute
// names and names that climb out of the directory are rejected.
func FileResolver(dir string) ResourceResolver {
	return &fileResolver{dir: dir}
}

type fileResolver struct {
	dir string
}

func (r *fileResolver) Resolve(name string) (io.Reader, error) {
	if filepath.IsAbs(name) {
		return nil, fmt.Errorf("absolute resource name %q not allowed", name)
	}
	clean := filepath.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("resource name %q escapes the template directory", name)
	}
	return os.Open(filepath.Join(r.dir, clean))
}

// MapResolver resolves resources from an in-memory map of name to
// template source.
type MapResolver map[string]string

func (m MapResolver) Resolve(name string) (io.Reader, error) {
	src, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no such resource %q", name)
	}
	return strings.NewReader(src), nil
}
