package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Discovery locates test modules under a root and enumerates their units and
// hooks.
type Discovery struct {
	Loaders *LoaderRegistry
	// Modules is applied to module file name stems, Units to function names.
	// Both default to DefaultMatcher.
	Modules NameMatcher
	Units   NameMatcher
	Filter  Filter
	Logger  Logger
}

// NewDiscovery returns a Discovery using the default naming convention.
func NewDiscovery(l Logger, loaders *LoaderRegistry) *Discovery {
	return &Discovery{
		Loaders: loaders,
		Modules: DefaultMatcher,
		Units:   DefaultMatcher,
		Logger:  l,
	}
}

// Discover walks root and returns the ordered catalog. The only errors are a
// missing root, an invalid filter and cancellation of ctx; problems with
// individual modules are reported as catalog entries.
func (d *Discovery) Discover(ctx context.Context, root string) (*Catalog, error) {
	cf, err := d.Filter.compile()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}

	cat := &Catalog{Root: root}

	// a file root follows the naming convention unless the selector names it
	if !info.IsDir() {
		if entry, ok := d.discoverFile(ctx, cf, root, filepath.Base(root), cf.selectModule == ""); ok {
			cat.Entries = append(cat.Entries, entry)
		}
		return cat, nil
	}

	err = filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			d.logger().Warningf("Discovery: skipping %q: %v", path, err)
			if de != nil && de.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if de.IsDir() {
			if path != root && strings.HasPrefix(de.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		// symlinks and special files are never modules
		if !de.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path: %w", err)
		}
		if entry, ok := d.discoverFile(ctx, cf, path, filepath.ToSlash(rel), true); ok {
			cat.Entries = append(cat.Entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	// WalkDir orders names per directory; "a-b" sorts before "a/x" by path
	slices.SortFunc(cat.Entries, func(a, b CatalogEntry) int {
		return strings.Compare(a.Path, b.Path)
	})

	d.logger().Debugf("Discovery: %d module(s), %d unit(s) under %q", len(cat.Entries), cat.UnitCount(), root)
	return cat, nil
}

func (d *Discovery) discoverFile(
	ctx context.Context, cf *compiledFilter, path, rel string, checkName bool,
) (CatalogEntry, bool) {
	loader, ok := d.Loaders.For(path)
	if !ok {
		return CatalogEntry{}, false
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if checkName && !matcherOrDefault(d.Modules).Match(stem) {
		return CatalogEntry{}, false
	}
	if !cf.module(rel) {
		return CatalogEntry{}, false
	}

	symbols, err := loader.Load(ctx, path)
	if err != nil {
		d.logger().Errorf("Discovery: cannot load %q: %v", rel, err)
		return CatalogEntry{Path: rel, Err: &ModuleLoadError{Module: rel, Err: err}}, true
	}

	mod, err := buildModule(rel, symbols, matcherOrDefault(d.Units), cf)
	if err != nil {
		d.logger().Errorf("Discovery: %v", err)
		return CatalogEntry{Path: rel, Err: err}, true
	}
	if len(mod.Units) == 0 {
		return CatalogEntry{}, false
	}

	d.logger().Debugf("Discovery: module %q with %d unit(s), hooks %v", rel, len(mod.Units), mod.Hooks.Names())
	return CatalogEntry{Path: rel, Module: mod}, true
}

// buildModule assigns symbols to hooks and units. A reserved hook name
// declared twice fails the module; a repeated unit name keeps its first
// position.
func buildModule(path string, symbols []Symbol, units NameMatcher, cf *compiledFilter) (*Module, error) {
	mod := &Module{Path: path}
	seen := make(map[string]struct{}, len(symbols))

	for _, s := range symbols {
		if slot := mod.Hooks.slot(s.Name); slot != nil {
			if *slot != nil {
				return nil, &DiscoveryError{Module: path, Name: s.Name, Err: ErrAmbiguousHook}
			}
			*slot = s.Callable
			continue
		}

		if !units.Match(s.Name) || !cf.unit(s.Name) {
			continue
		}
		if _, dup := seen[s.Name]; dup {
			continue
		}
		seen[s.Name] = struct{}{}

		mod.Units = append(mod.Units, &Unit{
			ModulePath: path,
			Name:       s.Name,
			Line:       s.Line,
			Callable:   s.Callable,
			SkipReason: s.SkipReason,
		})
	}

	return mod, nil
}

func (h *Hooks) slot(name string) *Callable {
	switch StepKind(name) {
	case StepBefore:
		return &h.Before
	case StepAfter:
		return &h.After
	case StepBeforeAll:
		return &h.BeforeAll
	case StepAfterAll:
		return &h.AfterAll
	default:
		return nil
	}
}

func matcherOrDefault(m NameMatcher) NameMatcher {
	if m == nil {
		return DefaultMatcher
	}
	return m
}

func (d *Discovery) logger() Logger {
	if d.Logger == nil {
		return nopLogger{}
	}
	return d.Logger
}

type nopLogger struct{}

func (nopLogger) Criticalf(string, ...any) {}
func (nopLogger) Debugf(string, ...any)    {}
func (nopLogger) Errorf(string, ...any)    {}
func (nopLogger) Noticef(string, ...any)   {}
func (nopLogger) Warningf(string, ...any)  {}
