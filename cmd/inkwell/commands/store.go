package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hypergopher/inkwell"
	"github.com/hypergopher/inkwell/bboltstore"
	"github.com/hypergopher/inkwell/config"
	"github.com/hypergopher/inkwell/pgstore"
	"github.com/hypergopher/inkwell/sqlitestore"
)

// openStore opens the datastore selected by the configuration and makes sure its schema exists.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (inkwell.Store, error) {
	var (
		store inkwell.Store
		err   error
	)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		store, err = sqlitestore.Open(cfg.Database.DSN)
	case config.DriverPostgres:
		store, err = pgstore.Connect(ctx, cfg.Database.DSN)
	case config.DriverBolt:
		store = bboltstore.New(cfg.Database.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Database.Driver, err)
	}

	logger.Debug("store ready", slog.String("driver", string(cfg.Database.Driver)))
	return store, nil
}

// redactDSN hides the password of a database URL.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
