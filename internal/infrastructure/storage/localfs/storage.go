package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage writes rendered reports under one directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./reports"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save writes data to key through a temp file and returns the final path, so
// a partially written report never replaces an existing one.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (string, error) {
	name, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, name)

	f, err := os.CreateTemp(s.basePath, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return path, nil
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// sanitizeKey keeps keys inside the base directory. Job ids come from the
// backend and are not trusted as path components.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == 0:
			return '_'
		default:
			return r
		}
	}, key)
	if strings.Trim(clean, ".") == "" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return clean, nil
}
