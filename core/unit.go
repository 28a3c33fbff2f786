package core

import (
	"context"
	"io"
)

// Callable is an opaque step body. A nil error means the step passed; the
// context carries the per-step deadline.
type Callable interface {
	Invoke(ctx context.Context, stdout, stderr io.Writer) error
}

// Func adapts an ordinary function to the Callable interface.
type Func func(ctx context.Context, stdout, stderr io.Writer) error

func (f Func) Invoke(ctx context.Context, stdout, stderr io.Writer) error {
	return f(ctx, stdout, stderr)
}

// Unit identifies one discovered test function. Units are never mutated after
// discovery.
type Unit struct {
	ModulePath string
	Name       string
	Line       int
	Callable   Callable `json:"-"`
	// SkipReason is set when the function carries a static skip marker; such
	// units are recorded as skipped without running their hooks.
	SkipReason string
}

// Hooks holds the optional lifecycle callables of a module.
type Hooks struct {
	Before    Callable
	After     Callable
	BeforeAll Callable
	AfterAll  Callable
}

// Names lists the hooks that are present, in lifecycle order.
func (h Hooks) Names() []string {
	var names []string
	for _, hook := range []struct {
		kind StepKind
		c    Callable
	}{
		{StepBeforeAll, h.BeforeAll},
		{StepBefore, h.Before},
		{StepAfter, h.After},
		{StepAfterAll, h.AfterAll},
	} {
		if hook.c != nil {
			names = append(names, string(hook.kind))
		}
	}
	return names
}

// Module is the discovered record of one test module. A Module always holds at
// least one unit.
type Module struct {
	Path  string
	Units []*Unit
	Hooks Hooks
}

// CatalogEntry is either a runnable module or a module that failed to load.
type CatalogEntry struct {
	Path   string
	Module *Module
	Err    error
}

// Catalog is the ordered output of discovery.
type Catalog struct {
	Root    string
	Entries []CatalogEntry
}

// Modules returns the runnable modules in discovery order.
func (c *Catalog) Modules() []*Module {
	var ms []*Module
	for _, e := range c.Entries {
		if e.Module != nil {
			ms = append(ms, e.Module)
		}
	}
	return ms
}

// UnitCount returns the number of discovered units across all modules.
func (c *Catalog) UnitCount() int {
	n := 0
	for _, e := range c.Entries {
		if e.Module != nil {
			n += len(e.Module.Units)
		}
	}
	return n
}
