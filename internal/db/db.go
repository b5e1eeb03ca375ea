package db

import (
	"context"
	"fmt"
	"time"

	"swiftx/internal/store"
	"swiftx/internal/store/memstore"
	"swiftx/internal/store/mysqlstore"
	"swiftx/internal/store/pgstore"

	"go.uber.org/zap"
)

const connectTimeout = 15 * time.Second

// Open connects the adapter named by driver and applies its schema.
func Open(ctx context.Context, driver, dsn string, log *zap.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var (
		st  store.Store
		err error
	)
	switch driver {
	case "postgres":
		st, err = pgstore.Open(ctx, dsn)
	case "mysql":
		st, err = mysqlstore.Open(ctx, dsn)
	case "memory":
		st = memstore.New()
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	log.Info("storage ready", zap.String("driver", driver))
	return st, nil
}
