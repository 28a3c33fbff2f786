package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const skipMarker = "zrunner:skip"

// ScriptLoader enumerates the top-level functions of shell scripts. Scripts
// are parsed, never executed, while loading.
type ScriptLoader struct {
	// Interpreter is the command line used to run functions, "bash" when empty.
	Interpreter string
	Environment []string
}

var _ Loader = (*ScriptLoader)(nil)

func (l *ScriptLoader) Extensions() []string {
	return []string{".sh", ".bash"}
}

func (l *ScriptLoader) Load(_ context.Context, path string) ([]Symbol, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(f, abs)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	var symbols []Symbol
	for _, stmt := range file.Stmts {
		decl, ok := stmt.Cmd.(*syntax.FuncDecl)
		if !ok {
			continue
		}

		symbols = append(symbols, Symbol{
			Name: decl.Name.Value,
			Line: int(decl.Pos().Line()),
			Callable: &ScriptFunc{
				Interpreter: l.Interpreter,
				Script:      abs,
				Func:        decl.Name.Value,
				Environment: l.Environment,
			},
			SkipReason: skipReason(stmt),
		})
	}

	return symbols, nil
}

// skipReason returns the reason of a "# zrunner:skip <reason>" comment placed
// above the declaration.
func skipReason(stmt *syntax.Stmt) string {
	for _, c := range stmt.Comments {
		if c.Hash.Line() >= stmt.Pos().Line() {
			continue
		}
		text := strings.TrimSpace(c.Text)
		if !strings.HasPrefix(text, skipMarker) {
			continue
		}
		reason := strings.TrimSpace(strings.TrimPrefix(text, skipMarker))
		if reason == "" {
			reason = "skipped"
		}
		return reason
	}
	return ""
}
