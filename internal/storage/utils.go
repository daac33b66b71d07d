package storage

import (
	"fmt"

	"github.com/capekei/safra-sub003/internal/config"
	"github.com/capekei/safra-sub003/pkg/storage"
)

// InitStore opens the store selected by cfg.Driver.
func InitStore(cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres, "":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is empty: set database.dsn, NEWSDESK_DATABASE_DSN or the DB_* variables")
		}
		store, err := NewPostgresStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		store.SetMaxOpenConns(cfg.MaxOpenConns)
		return store, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}
