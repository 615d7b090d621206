package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// initStore opens and migrates the run ledger.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initFactory opens the store and returns a factory that records runs and
// caches pages in it. Callers should close the store.
func initFactory(ctx context.Context) (*pipeline.Factory, *store.SQLiteStore, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	f := pipeline.NewFactory(cfg, pipeline.WithLedger(st), pipeline.WithPageCache(st))
	return f, st, nil
}
