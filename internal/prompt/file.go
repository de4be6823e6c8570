// Package prompt resolves prompt templates, preferring stored versions and
// falling back to YAML files on disk.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/polyglot/internal/domain"
)

// Config contains prompt resolution settings.
type Config struct {
	Dir string `env:"PROMPTS_DIR" envDefault:"prompts"`
}

// FileSource reads <dir>/<name>.yaml prompt files.
type FileSource struct {
	dir string
}

// NewFileSource creates a file source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Read parses and validates the prompt file for name. The template's
// fingerprint is the sha256 of the file content.
func (f *FileSource) Read(name string) (*domain.PromptTemplate, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: invalid prompt name %q", domain.ErrPromptNotFound, name)
	}

	path := filepath.Join(f.dir, name+".yaml")
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}

	var tmpl domain.PromptTemplate
	if err := yaml.Unmarshal(content, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}

	if tmpl.ModelParameters.ResponseFormat == "" {
		tmpl.ModelParameters.ResponseFormat = domain.ResponseFormatText
	}
	if err := domain.Validate(&tmpl); err != nil {
		return nil, fmt.Errorf("invalid prompt file %s: %w", path, err)
	}
	if tmpl.Name != name {
		return nil, fmt.Errorf("prompt file %s declares prompt_name %q", path, tmpl.Name)
	}

	sum := sha256.Sum256(content)
	tmpl.Fingerprint = hex.EncodeToString(sum[:])
	return &tmpl, nil
}
