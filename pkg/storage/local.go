// Package storage provides blob stores for published documents.
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

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that would escape the storage root.
var ErrInvalidKey = errors.New("invalid storage key")

// Local stores blobs below a directory and serves them under a public URL prefix.
type Local struct {
	fs        afero.Fs
	publicURL string
	logger    zerolog.Logger
}

// NewLocal roots the store at dir on the OS filesystem, creating it when missing.
func NewLocal(dir, publicURL string, logger zerolog.Logger) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL, logger), nil
}

// NewLocalFs builds a local store on top of an arbitrary afero filesystem.
func NewLocalFs(fs afero.Fs, publicURL string, logger zerolog.Logger) *Local {
	return &Local{
		fs:        fs,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With().Str("component", "local_storage").Logger(),
	}
}

// Upload writes the blob under key, replacing any previous content.
func (l *Local) Upload(ctx context.Context, key string, reader io.Reader, _ string) (string, error) {
	name, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp := name + ".part"
	file, err := l.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = l.fs.Remove(tmp)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = l.fs.Remove(tmp)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := l.fs.Rename(tmp, name); err != nil {
		_ = l.fs.Remove(tmp)
		return "", fmt.Errorf("publish blob: %w", err)
	}

	l.logger.Info().Str("key", name).Msg("blob stored")
	return l.publicURL + "/" + name, nil
}

// Delete removes the blob. Missing blobs are not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// exists reports whether a blob is stored under key.
func (l *Local) exists(_ context.Context, key string) (bool, error) {
	name, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(l.fs, name)
}

// cleanKey keeps only the base name of key so that blobs never leave the root.
func cleanKey(key string) (string, error) {
	base := path.Base(filepath.ToSlash(strings.TrimSpace(key)))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", ErrInvalidKey
	}
	return base, nil
}
