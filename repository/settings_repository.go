package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/parkerpayne/bard/model"
)

// SettingsRepository 读写 settings.json
type SettingsRepository interface {
	Load() (model.Settings, error)
	Save(s model.Settings) error
	// Merge applies a partial JSON document on top of the stored settings.
	Merge(raw []byte) (model.Settings, error)
}

type fileSettingsRepository struct {
	path string
	mu   sync.Mutex
}

func NewSettingsRepository(path string) SettingsRepository {
	return &fileSettingsRepository{path: path}
}

func (r *fileSettingsRepository) load() (model.Settings, error) {
	s := model.DefaultSettings()
	if err := readJSON(r.path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.DefaultSettings(), nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	return s, nil
}

// Load 文件不存在时返回默认配置
func (r *fileSettingsRepository) Load() (model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *fileSettingsRepository) Save(s model.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := writeJSON(r.path, s); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (r *fileSettingsRepository) Merge(raw []byte) (model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load()
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	if err := writeJSON(r.path, s); err != nil {
		return s, fmt.Errorf("write settings: %w", err)
	}
	return s, nil
}
