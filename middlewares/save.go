package middlewares

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/netresearch/zrunner/core"
)

// SaveConfig configuration for the Save middleware
type SaveConfig struct {
	// SaveFolder is the directory where the output of every step is written:
	// stdout, stderr and a JSON dump of the step and its execution. Leave empty
	// to disable saving.
	SaveFolder string `mapstructure:"save-folder"`
	// SaveOnlyOnError limits saving to failed or errored steps.
	SaveOnlyOnError *bool `mapstructure:"save-only-on-error"`
}

// NewSave returns a Save middleware if the given configuration is not empty
func NewSave(c *SaveConfig) core.Middleware {
	var m core.Middleware
	if !IsEmpty(c) && c.SaveFolder != "" {
		m = &Save{*c}
	}

	return m
}

// Save writes a dump of the stdout and stderr of every step to disk.
type Save struct {
	SaveConfig
}

// ContinueOnStop always returns true; skipped and refused steps are saved too
func (m *Save) ContinueOnStop() bool {
	return true
}

// Run saves the result of the step once it has finished.
func (m *Save) Run(ctx *core.Context) error {
	err := ctx.Next()
	ctx.Stop(err)

	if ctx.Execution.IsFailed() || !boolVal(m.SaveOnlyOnError) {
		if err := m.saveToDisk(ctx); err != nil {
			ctx.Logger.Errorf("Save error: %q", err)
		}
	}

	return err
}

func (m *Save) saveToDisk(ctx *core.Context) error {
	if err := DefaultSanitizer.ValidateSaveFolder(m.SaveFolder); err != nil {
		return fmt.Errorf("invalid save folder: %w", err)
	}

	if err := os.MkdirAll(m.SaveFolder, 0o750); err != nil {
		return fmt.Errorf("mkdir %q: %w", m.SaveFolder, err)
	}

	s := ctx.Step
	root := filepath.Join(m.SaveFolder, fmt.Sprintf(
		"%s_%s",
		ctx.Execution.Date.Format("20060102_150405"),
		DefaultSanitizer.StepFilename(s.ModulePath, string(s.Kind), s.Name),
	))

	e := ctx.Execution
	if err := m.writeFile([]byte(e.GetStderr()), root+".stderr.log"); err != nil {
		return fmt.Errorf("write stderr log: %w", err)
	}

	if err := m.writeFile([]byte(e.GetStdout()), root+".stdout.log"); err != nil {
		return fmt.Errorf("write stdout log: %w", err)
	}

	if err := m.saveContextToDisk(ctx, root+".json"); err != nil {
		return fmt.Errorf("write context json: %w", err)
	}

	return nil
}

func (m *Save) saveContextToDisk(ctx *core.Context, filename string) error {
	js, err := json.MarshalIndent(map[string]any{
		"Step":      ctx.Step,
		"Execution": ctx.Execution,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	return m.writeFile(js, filename)
}

func (m *Save) writeFile(data []byte, filename string) error {
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write file %q: %w", filename, err)
	}
	return nil
}
