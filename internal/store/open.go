package store

import (
	"fmt"

	"github.com/amishk599/searchradar/internal/config"
	"github.com/amishk599/searchradar/internal/model"
)

// Backend is a store that can also answer reporting queries.
type Backend interface {
	model.Store
	model.Reporter
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
