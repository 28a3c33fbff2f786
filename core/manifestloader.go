package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestLoader reads YAML manifests mapping step names to commands:
//
//	before_all: ./start-fixture.sh
//	test_login:
//	  run: curl -fsS http://localhost:8080/login
//	  env: [USER=demo]
//	test_legacy:
//	  run: ./legacy.sh
//	  skip: flaky on CI
type ManifestLoader struct {
	Environment []string
}

var _ Loader = (*ManifestLoader)(nil)

type manifestStep struct {
	Run  string   `yaml:"run"`
	Skip string   `yaml:"skip"`
	Dir  string   `yaml:"dir"`
	Env  []string `yaml:"env"`
}

func (l *ManifestLoader) Extensions() []string {
	return []string{".yaml", ".yml"}
}

func (l *ManifestLoader) Load(_ context.Context, path string) ([]Symbol, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	// decoding into a node keeps declaration order and duplicate keys
	var doc yaml.Node
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse manifest: line %d: top level must be a mapping", root.Line)
	}

	baseDir := filepath.Dir(abs)
	symbols := make([]Symbol, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		step, err := decodeManifestStep(value)
		if err != nil {
			return nil, fmt.Errorf("step %q (line %d): %w", key.Value, key.Line, err)
		}

		dir := baseDir
		if step.Dir != "" {
			dir = step.Dir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(baseDir, dir)
			}
		}

		symbols = append(symbols, Symbol{
			Name: key.Value,
			Line: key.Line,
			Callable: &CommandFunc{
				Command:     step.Run,
				Dir:         dir,
				Environment: append(append([]string(nil), l.Environment...), step.Env...),
			},
			SkipReason: step.Skip,
		})
	}

	return symbols, nil
}

func decodeManifestStep(n *yaml.Node) (manifestStep, error) {
	var step manifestStep
	switch n.Kind {
	case yaml.ScalarNode:
		step.Run = n.Value
	case yaml.MappingNode:
		if err := n.Decode(&step); err != nil {
			return step, fmt.Errorf("decode step: %w", err)
		}
	default:
		return step, errors.New("value must be a command or a mapping")
	}

	if strings.TrimSpace(step.Run) == "" {
		return step, ErrEmptyCommand
	}
	return step, nil
}
