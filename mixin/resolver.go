package mixin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/sdsl/source"
)

// ErrNotFound is returned by resolvers for unknown mixin names.
var ErrNotFound = errors.New("mixin: not found")

// Resolver supplies the source text of a mixin by name.
type Resolver interface {
	LoadMixin(name string) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (string, error)

// LoadMixin calls f(name).
func (f ResolverFunc) LoadMixin(name string) (string, error) { return f(name) }

// MapResolver resolves mixins from an in-memory map of name to source.
type MapResolver map[string]string

// LoadMixin returns the source stored under name.
func (m MapResolver) LoadMixin(name string) (string, error) {
	src, ok := m[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return src, nil
}

// DefaultExt is the file extension of SDSL sources.
const DefaultExt = ".sdsl"

// DirResolver loads mixin Name from the file Name+Ext in Dir. Files may
// be UTF-8 or UTF-16 with a byte order mark.
type DirResolver struct {
	Dir string
	Ext string // defaults to DefaultExt
}

// LoadMixin reads and decodes the source file of name.
func (d DirResolver) LoadMixin(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return "", fmt.Errorf("mixin: invalid name %q", name)
	}
	ext := d.Ext
	if ext == "" {
		ext = DefaultExt
	}
	path := filepath.Join(d.Dir, name+ext)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (%s)", ErrNotFound, name, path)
	}
	if err != nil {
		return "", fmt.Errorf("mixin %s: %w", name, err)
	}
	src, err := source.Decode(raw)
	if err != nil {
		return "", fmt.Errorf("mixin %s: %w", name, err)
	}
	return src, nil
}

// Chain tries each resolver in order and returns the first source found.
// Errors other than ErrNotFound stop the search.
type Chain []Resolver

// LoadMixin implements Resolver.
func (c Chain) LoadMixin(name string) (string, error) {
	for _, r := range c {
		src, err := r.LoadMixin(name)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}
