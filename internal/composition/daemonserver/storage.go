package daemonserver

import (
	"fmt"

	"seedslot/go-backend/internal/config"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/ledger/sqlstore"
)

// BuildStore opens the persistence backend named by cfg. A nil store keeps the
// ledger in memory only.
func BuildStore(cfg config.StorageConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return nil, nil
	case config.DriverFile:
		return ledger.NewFileStore(cfg.Path, cfg.Passphrase), nil
	case config.DriverSQLite:
		return openSQL(sqlstore.DriverSQLite, cfg.Path)
	case config.DriverPostgres:
		return openSQL(sqlstore.DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func openSQL(driver, dsn string) (ledger.Store, error) {
	store, err := sqlstore.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return store, nil
}
