package slot

import (
	"fmt"
	"io"
	"path/filepath"

	"gallery-go/internal/config"
	"gallery-go/internal/database"
	"gallery-go/internal/gallery"
)

// Slot is an index slot that holds resources until closed.
type Slot interface {
	gallery.IndexSlot
	io.Closer
}

// NewSlotFromConfig creates a Slot implementation based on the index config type.
func NewSlotFromConfig(cfg config.IndexConfig) (Slot, error) {
	key := cfg.Key
	if key == "" {
		key = config.DefaultIndexKey
	}

	switch cfg.Type {
	case "file", "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file index requires path to be set")
		}
		s, err := NewFileSlot(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite index")
		}
		s, err := database.NewSQLiteSlot(filepath.Join(cfg.DataDir, "gallery.db"), key)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemorySlot(nil), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
