package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
)

// FileModelStore keeps the latest model artifact as a single JSON file.
type FileModelStore struct {
	path   string
	decode service.ModelDecoder
}

var _ domrepo.ModelStore = (*FileModelStore)(nil)

func NewFileModelStore(path string, decode service.ModelDecoder) *FileModelStore {
	return &FileModelStore{path: path, decode: decode}
}

// Save replaces the artifact atomically.
func (s *FileModelStore) Save(_ context.Context, m service.SequenceModel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// Load reads and decodes the artifact. A missing file is ErrModelLoad too.
func (s *FileModelStore) Load(_ context.Context) (service.SequenceModel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no model at %s: %w", s.path, models.ErrModelLoad)
		}
		return nil, fmt.Errorf("read model: %v: %w", err, models.ErrModelLoad)
	}
	return s.decode(data)
}
