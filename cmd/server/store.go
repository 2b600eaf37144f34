package main

import (
	"context"
	"fmt"

	"github.com/forgo/questline/api/internal/config"
	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/handler"
	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/repository"
	"github.com/forgo/questline/api/internal/service"
	"github.com/forgo/questline/api/internal/sqlstore"
)

// progressBackend is everything the services need from one store driver.
type progressBackend interface {
	service.ProgressStore
	service.BoundsRepairer
}

type stores struct {
	progress  progressBackend
	directory service.QuestDirectory
	pinger    handler.Pinger
	close     func() error
}

// openStores connects the configured store driver.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.StoreSurrealDB:
		db := database.NewSurrealDB(database.Config{
			Host:      cfg.Database.Host,
			Port:      cfg.Database.Port,
			User:      cfg.Database.User,
			Password:  cfg.Database.Password,
			Namespace: cfg.Database.Namespace,
			Database:  cfg.Database.Database,
		})
		if err := db.Connect(ctx); err != nil {
			return nil, err
		}
		log.Info("connected to database",
			"driver", cfg.Store.Driver,
			"host", cfg.Database.Host,
			"database", cfg.Database.Database,
		)
		return &stores{
			progress:  repository.NewProgressRepository(db),
			directory: repository.NewDirectoryRepository(db),
			pinger:    db,
			close:     db.Close,
		}, nil

	case config.StorePostgres, config.StoreSQLite:
		db, err := database.OpenSQL(ctx, cfg.Store.Driver, cfg.Store.DSN, log)
		if err != nil {
			return nil, err
		}
		store := sqlstore.New(db, log)
		if cfg.Store.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = database.CloseSQL(db)
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		log.Info("connected to database", "driver", cfg.Store.Driver, "migrated", cfg.Store.AutoMigrate)
		return &stores{
			progress:  store,
			directory: store,
			pinger:    store,
			close:     func() error { return database.CloseSQL(db) },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
