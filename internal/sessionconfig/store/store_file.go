package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/pkg/platform/sentinel"
)

// FileStore keeps the session config as an indented JSON document on disk.
// Writes go through a temp file and rename so readers never see a torn file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Read returns the stored config, creating the default record on first use.
func (s *FileStore) Read(ctx context.Context) (models.SessionConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionConfig{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		def := models.Default()
		if err := s.writeLocked(def); err != nil {
			return models.SessionConfig{}, fmt.Errorf("create default config: %w", err)
		}
		return def, nil
	}
	if err != nil {
		return models.SessionConfig{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg models.SessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.SessionConfig{}, fmt.Errorf("%w: %s: %v", sentinel.ErrCorrupt, s.path, err)
	}
	return cfg.Normalize(), nil
}

// Write replaces the stored config.
func (s *FileStore) Write(ctx context.Context, cfg models.SessionConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(cfg.Normalize())
}

func (s *FileStore) writeLocked(cfg models.SessionConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	return nil
}
