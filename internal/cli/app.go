package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/internal/config"
	"github.com/mesh-intelligence/crudkit/internal/engine"
	"github.com/mesh-intelligence/crudkit/internal/logging"
	"github.com/mesh-intelligence/crudkit/internal/offload"
	"github.com/mesh-intelligence/crudkit/internal/paths"
	"github.com/mesh-intelligence/crudkit/internal/schema"
	"github.com/mesh-intelligence/crudkit/internal/store"
)

// app is the wired set of components a command works with.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *schema.Registry
	store    *store.Store
	pool     *offload.Pool
	engine   *engine.Engine
}

// loadConfig resolves the config directory and reads config.yaml from it.
func loadConfig(flags *rootFlags) (config.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, configDir, nil
}

// openApp loads configuration, opens the store and creates missing tables.
// The caller must call close.
func openApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, _, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, usagef("%v", err)
	}

	if cfg.DataDir, err = paths.ResolveDataDir(flags.dataDir, cfg.DataDir); err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	st, err := store.Open(ctx, cfg.Config, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureTables(ctx, reg); err != nil {
		st.Close()
		return nil, err
	}

	pool := offload.NewPool(cfg.PoolSize())
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		store:    st,
		pool:     pool,
		engine:   engine.New(pool),
	}, nil
}

func (a *app) close(ctx context.Context) error {
	if err := a.pool.Close(ctx); err != nil {
		return err
	}
	err := a.store.Close()
	_ = a.logger.Sync()
	return err
}

// withSession opens the app and one store session, runs fn, and tears both
// down.
func withSession(ctx context.Context, flags *rootFlags, fn func(a *app, sess *store.Session) error) (err error) {
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx); err == nil {
			err = cerr
		}
	}()

	sess, err := a.store.Session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(a, sess)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
