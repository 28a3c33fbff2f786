package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptLoaderEnumeratesTopLevelFunctions(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "lib_test.sh", `#!/bin/bash
set -u

function test_keyword { :; }

test_parens() {
	inner_test() { :; }
	inner_test
}

if true; then
	test_conditional() { :; }
fi
`)

	l := &ScriptLoader{Interpreter: "bash --norc", Environment: []string{"A=1"}}
	symbols, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, symbols, 2)
	assert.Equal(t, "test_keyword", symbols[0].Name)
	assert.Equal(t, 4, symbols[0].Line)
	assert.Equal(t, "test_parens", symbols[1].Name)

	fn, ok := symbols[1].Callable.(*ScriptFunc)
	require.True(t, ok)
	assert.True(t, filepath.IsAbs(fn.Script))
	assert.Equal(t, "test_parens", fn.Func)
	assert.Equal(t, "bash --norc", fn.Interpreter)
	assert.Equal(t, []string{"A=1"}, fn.Environment)
}

func TestScriptLoaderSkipMarker(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "skip_test.sh", `# zrunner:skip needs a license server
test_licensed() { :; }

# regular comment
test_plain() { :; }

# zrunner:skip
test_bare() { :; }
`)

	symbols, err := (&ScriptLoader{}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, symbols, 3)

	assert.Equal(t, "needs a license server", symbols[0].SkipReason)
	assert.Empty(t, symbols[1].SkipReason)
	assert.Equal(t, "skipped", symbols[2].SkipReason)
}

func TestScriptLoaderSyntaxError(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "bad_test.sh", "test_a() { echo \"unterminated; }\n")

	_, err := (&ScriptLoader{}).Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse script")
}

func TestScriptLoaderMissingFile(t *testing.T) {
	t.Parallel()

	_, err := (&ScriptLoader{}).Load(context.Background(), filepath.Join(t.TempDir(), "gone_test.sh"))
	require.Error(t, err)
}

func TestLoaderRegistry(t *testing.T) {
	t.Parallel()

	r := NewLoaderRegistry(&ScriptLoader{}, &ManifestLoader{})

	l, ok := r.For("dir/x_test.SH")
	require.True(t, ok)
	assert.IsType(t, &ScriptLoader{}, l)

	l, ok = r.For("x_test.yml")
	require.True(t, ok)
	assert.IsType(t, &ManifestLoader{}, l)

	_, ok = r.For("x_test.py")
	assert.False(t, ok)

	assert.Equal(t, []string{".bash", ".sh", ".yaml", ".yml"}, r.Extensions())
}
