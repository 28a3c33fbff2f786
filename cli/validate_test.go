package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/zrunner/test"
)

func TestValidateCommandPrintsConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zrunner.ini")
	require.NoError(t, os.WriteFile(path, []byte(`[global]
parallel = 3
smtp-host = mail.example.com
smtp-password = hunter2
email-to = dev@example.com
email-from = zrunner@example.com
`), 0o600))

	out := &bytes.Buffer{}
	logger := test.NewTestLogger()
	c := &ValidateCommand{ConfigFile: path, Logger: logger, Out: out}
	require.NoError(t, c.Execute(nil))

	var printed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.InDelta(t, 3, printed["Parallel"], 0)
	assert.Equal(t, "bash", printed["Interpreter"])
	assert.Equal(t, "mail.example.com", printed["SMTPHost"])
	assert.NotContains(t, out.String(), "hunter2")
	assert.True(t, logger.HasMessage("Validated "+path))
}

func TestValidateCommandRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "zrunner.ini")
	require.NoError(t, os.WriteFile(path, []byte("[global]\nnaming = camel\n"), 0o600))

	logger := test.NewTestLogger()
	c := &ValidateCommand{ConfigFile: path, Logger: logger, Out: &bytes.Buffer{}}
	err := c.Execute(nil)
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, logger.HasError("ERROR"))
}

func TestValidateCommandMissingFile(t *testing.T) {
	t.Parallel()

	c := &ValidateCommand{ConfigFile: filepath.Join(t.TempDir(), "nope.ini"), Logger: test.NewTestLogger()}
	require.Error(t, c.Execute(nil))
}
