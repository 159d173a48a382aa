package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/config"
	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
	"github.com/eliteGoblin/focusd/focusguard/internal/infra"
	"github.com/eliteGoblin/focusd/focusguard/internal/policy"
	"github.com/eliteGoblin/focusd/focusguard/internal/usecase"
)

// stateStore is what both store implementations provide.
type stateStore interface {
	domain.KeyValueStore
	domain.SessionBlockList
}

// app holds the components shared by every command.
type app struct {
	paths    *infra.Paths
	config   config.Config
	logger   *zap.Logger
	store    stateStore
	settings *usecase.SettingsService
	closers  []func() error
}

func resolvePaths() *infra.Paths {
	paths := infra.DefaultPaths()
	if dataDir != "" {
		paths = paths.WithDataDir(dataDir)
	}
	return paths
}

// openApp loads config, opens the logger and the store. sessionID scopes
// session state; the CLI passes "" to leave the browser's session alone.
func openApp(sessionID string) (*app, error) {
	paths := resolvePaths()

	cfg, err := config.Load(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	if ephemeral {
		cfg.Ephemeral = true
	}

	logger, err := infra.NewLogger(infra.LogConfig{
		Path:       paths.LogPath,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		// Stdout may be the protocol channel, so there is no console fallback.
		logger = zap.NewNop()
	}

	a := &app{
		paths:   paths,
		config:  cfg,
		logger:  logger,
		closers: []func() error{func() error { _ = logger.Sync(); return nil }},
	}

	if cfg.Ephemeral {
		a.store = infra.NewMemoryStore()
		logger.Info("using in-memory store")
	} else {
		key, err := infra.EnsureKey(infra.NewFileKeyProvider(paths.DataDir))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load store key: %w", err)
		}
		store, err := infra.NewEncryptedStore(paths.DataDir, key, sessionID)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.closers = append([]func() error{store.Close}, a.closers...)
	}

	a.settings = usecase.NewSettingsService(a.store, policy.NewRegistry(), logger)
	return a, nil
}

// Close releases the store and flushes the logger.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func parentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}

func printGroups(groups map[string]domain.BlockGroup) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := groups[name]
		state := gray("off")
		if g.Enabled {
			state = green("on ")
		}
		fmt.Printf("  [%s] %-14s %d sites\n", state, name, len(g.Items))
	}
}
