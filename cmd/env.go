package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vivaro/vivaro/internal/db"
	"github.com/vivaro/vivaro/internal/pipeline"
	"github.com/vivaro/vivaro/internal/source"
)

// analysisEnv holds the long-lived resources shared by every command.
type analysisEnv struct {
	Pool   *pgxpool.Pool
	Holder *pipeline.Holder
}

// Close releases the database pool, if any.
func (e *analysisEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// dbPool returns the pool as the db.Pool interface, or nil without a pool.
func (e *analysisEnv) dbPool() db.Pool {
	if e.Pool == nil {
		return nil
	}
	return e.Pool
}

// initAnalysis validates the config for mode, connects to PostgreSQL when a
// source or the caller needs it, and performs the initial load.
func initAnalysis(ctx context.Context, mode string, needPool bool) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &analysisEnv{}
	if needPool || source.NeedsPool(cfg.Data) {
		rc := db.RetryConfig{
			Attempts:   cfg.Database.ConnectAttempts,
			Backoff:    cfg.Database.ConnectBackoff,
			MaxBackoff: 10 * time.Second,
		}
		pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns, rc)
		if err != nil {
			return nil, eris.Wrap(err, "connect database")
		}
		env.Pool = pool
		zap.L().Debug("database pool ready", zap.Int32("max_conns", cfg.Database.MaxConns))
	}

	holder, err := pipeline.NewHolder(ctx, pipeline.NewLoader(cfg, env.dbPool()))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Holder = holder
	return env, nil
}
