package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/netresearch/zrunner/core"
)

// ListCommand prints what a run would execute without running anything.
type ListCommand struct {
	DiscoveryOptions

	Args struct {
		Path string `positional-arg-name:"path" description:"directory or module file to list"`
	} `positional-args:"yes"`

	Logger core.Logger
	Out    io.Writer
}

// Execute runs the command
func (c *ListCommand) Execute(_ []string) error {
	if c.Args.Path == "" {
		return ErrNoPath
	}

	conf, err := c.loadConfig(c.Logger)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	d, err := c.newDiscovery(&conf.Global, c.Logger)
	if err != nil {
		return err
	}
	cat, err := d.Discover(context.Background(), c.Args.Path)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}

	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	return writeCatalog(out, cat)
}

func writeCatalog(w io.Writer, cat *core.Catalog) error {
	var b strings.Builder
	failed := 0
	for _, e := range cat.Entries {
		if e.Err != nil {
			failed++
			fmt.Fprintf(&b, "%s\n  load error: %v\n", e.Path, e.Err)
			continue
		}

		b.WriteString(e.Path)
		if hooks := e.Module.Hooks.Names(); len(hooks) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(hooks, ", "))
		}
		b.WriteByte('\n')
		for _, u := range e.Module.Units {
			fmt.Fprintf(&b, "  %s", u.Name)
			if u.SkipReason != "" {
				fmt.Fprintf(&b, " (skip: %s)", u.SkipReason)
			}
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, "%d module(s), %d unit(s)", len(cat.Entries)-failed, cat.UnitCount())
	if failed > 0 {
		fmt.Fprintf(&b, ", %d load error(s)", failed)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
