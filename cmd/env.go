package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/internal/ledger"
	"github.com/sells-group/bankscan/internal/pipeline"
	"github.com/sells-group/bankscan/internal/server"
	"github.com/sells-group/bankscan/internal/store"
)

// appEnv holds the store, settings and ledger validator shared by the
// serve and process commands.
type appEnv struct {
	Store     store.Store
	Settings  *config.SettingsStore
	Validator *ledger.Validator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// NewPipeline builds a pipeline from the current settings snapshot.
func (e *appEnv) NewPipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(e.Settings.Snapshot(), e.Validator,
		pipeline.WithConcurrency(cfg.Batch.Concurrency),
	)
}

// NewRunner adapts NewPipeline to the server's runner factory.
func (e *appEnv) NewRunner() (server.BatchRunner, error) {
	p, err := e.NewPipeline()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// initEnv validates the config for mode, opens and migrates the store, and
// loads the settings and ledger. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	settings := config.NewSettingsStore(cfg.Settings.Path)

	l := ledger.LoadOrEmpty(cfg.Ledger.Path, ledger.LoadOptions{Sheet: cfg.Ledger.Sheet})
	validator := ledger.NewValidator(l, ledger.ParseMatchMode(cfg.Ledger.MatchMode))

	zap.L().Info("environment ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("settings", settings.Path()),
		zap.Int("ledger_rows", validator.Rows()),
		zap.String("match_mode", string(validator.Mode())),
	)

	return &appEnv{Store: st, Settings: settings, Validator: validator}, nil
}
