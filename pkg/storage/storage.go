// Package storage persists uploaded files and hands back a URL for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// FileStore stores an object under name and returns the URL it is served from.
type FileStore interface {
	Store(ctx context.Context, name, contentType string, body io.Reader) (string, error)
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LocalStore writes objects below a directory served at BaseURL.
type LocalStore struct {
	dir     string
	baseURL string
	logg    *logger.Logger
}

// NewLocalStore creates the root directory when missing.
func NewLocalStore(cfg config.StorageConfig, logg *logger.Logger) (*LocalStore, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &LocalStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logg:    logg,
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, name, contentType string, body io.Reader) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating object dir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating object: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("writing object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("closing object: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"object":       clean,
		"content_type": contentType,
	})
	s.logg.Debug(logCtx, "object stored")
	return s.baseURL + "/" + clean, nil
}

// Ping verifies the root directory is still reachable.
func (s *LocalStore) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("object name is required")
	}
	clean := path.Clean("/" + trimmed)[1:]
	if clean == "" || clean != strings.TrimPrefix(trimmed, "/") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return clean, nil
}
