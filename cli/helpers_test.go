package cli

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netresearch/zrunner/test"
)

const mathManifest = `before_all: "true"
test_ok: "true"
test_bad: "false"
test_later:
  run: "true"
  skip: not ready
`

func requireCommands(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

func writeSuite(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func newRunCommand(t *testing.T, path string) (*RunCommand, *bytes.Buffer, *test.Logger) {
	t.Helper()

	progress, err := os.CreateTemp(t.TempDir(), "progress")
	require.NoError(t, err)
	t.Cleanup(func() { progress.Close() })

	out := &bytes.Buffer{}
	logger := test.NewTestLogger()
	c := &RunCommand{Logger: logger, Out: out, Progress: progress}
	c.Args.Path = path
	return c, out, logger
}
