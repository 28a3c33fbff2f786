package core

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// Symbol is one top-level callable declared by a module, in declaration order.
type Symbol struct {
	Name       string
	Line       int
	Callable   Callable
	SkipReason string
}

// Loader statically enumerates the top-level callables of a module file.
type Loader interface {
	// Extensions lists the file extensions handled by the loader, with the
	// leading dot.
	Extensions() []string
	Load(ctx context.Context, path string) ([]Symbol, error)
}

// LoaderRegistry maps file extensions to loaders.
type LoaderRegistry struct {
	byExt map[string]Loader
}

func NewLoaderRegistry(loaders ...Loader) *LoaderRegistry {
	r := &LoaderRegistry{byExt: make(map[string]Loader)}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds l for all of its extensions; later registrations win.
func (r *LoaderRegistry) Register(l Loader) {
	for _, ext := range l.Extensions() {
		r.byExt[strings.ToLower(ext)] = l
	}
}

// For returns the loader responsible for path.
func (r *LoaderRegistry) For(path string) (Loader, bool) {
	l, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return l, ok
}

// Extensions returns the registered extensions, sorted.
func (r *LoaderRegistry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}
