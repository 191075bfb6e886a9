package templates

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalSource reads templates from <dir>/<language>/<name>.txt.
type LocalSource struct {
	dir string
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{dir: dir}
}

// Load implements Source.
func (s *LocalSource) Load(_ context.Context, name, language string) (string, error) {
	if err := validateKey(name, language); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, language, name+".txt"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrTemplateNotFound
		}
		return "", fmt.Errorf("templates: read file: %w", err)
	}
	return string(data), nil
}
