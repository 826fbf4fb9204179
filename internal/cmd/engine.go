package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/parleyhq/parley/internal/cache"
	"github.com/parleyhq/parley/internal/complexity"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/consensus"
	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/history"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/orchestrator"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/store"
)

// engine bundles the wired components a command needs, plus the logger
// that must be closed when the command finishes.
type engine struct {
	orch *orchestrator.Orchestrator
	cfg  *config.Config
	log  *logging.Logger
}

func (e *engine) Close() {
	if e.log != nil {
		_ = e.log.Close()
	}
}

// buildEngine wires the orchestrator from configuration. When
// needProviders is false the provider pair is left empty, which is enough
// for commands that only read state.
func buildEngine(needProviders bool) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dataDir := cfg.Paths.ResolveDataDir()
	fs, err := store.NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}

	log, err := buildLogger(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	scorer, err := consensus.NewScorer(cfg.Consensus.Weights)
	if err != nil {
		return nil, err
	}

	hist, err := history.NewLog(dataDir)
	if err != nil {
		return nil, err
	}

	var resultCache *cache.Store
	if cfg.Cache.Enabled {
		resultCache = cache.New(fs, cfg.Cache.TTL())
	}

	var pair provider.Pair
	if needProviders {
		pair, err = detectProviders(cfg)
		if err != nil {
			_ = log.Close()
			return nil, err
		}
		log.Info("providers detected",
			"primary", pair.Primary.Identity(), "counter", pair.Counter.Identity())
	}

	orch := orchestrator.New(orchestrator.Config{
		Providers:        pair,
		Sessions:         debate.NewSessions(fs),
		Scorer:           scorer,
		Cache:            resultCache,
		History:          hist,
		Complexity:       complexity.New(cfg.Complexity.Threshold, cfg.Complexity.SimilarityFloor),
		Logger:           log,
		DefaultTarget:    cfg.Debate.TargetConsensus,
		DefaultMaxRounds: cfg.Debate.MaxRounds,
	})

	return &engine{orch: orch, cfg: cfg, log: log}, nil
}

// buildLogger creates the configured logger. File logging rotates; when
// disabled, logs go to stderr.
func buildLogger(cfg *config.Config, dataDir string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NewLogger("", cfg.Logging.Level)
	}

	path := cfg.Logging.File
	if path == "" {
		path = filepath.Join(dataDir, "parley.log")
	}
	return logging.NewRotatingLogger(path, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// historyRecords returns all history records, best effort.
func historyRecords(eng *engine) []history.Record {
	if eng.orch.History() == nil {
		return nil
	}
	records, err := eng.orch.History().All()
	if err != nil {
		return nil
	}
	return records
}

// providerTimeout resolves a provider's timeout, falling back to the
// debate-wide provider timeout when the provider sets none.
func providerTimeout(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// detectProviders builds the configured backends and picks the best
// available pair.
func detectProviders(cfg *config.Config) (provider.Pair, error) {
	fallback := cfg.Debate.ProviderTimeout()
	bridge := provider.NewBridgeProvider(
		cfg.Providers.Bridge.Name,
		cfg.Providers.Bridge.Endpoint,
		cfg.Providers.Bridge.Model,
		providerTimeout(cfg.Providers.Bridge.TimeoutSeconds, fallback),
	)
	cli := provider.NewCLIProvider(
		cfg.Providers.CLI.Name,
		cfg.Providers.CLI.Command,
		cfg.Providers.CLI.Args,
		providerTimeout(cfg.Providers.CLI.TimeoutSeconds, fallback),
	)

	pair, err := provider.Detect(bridge, cli)
	if err != nil {
		return provider.Pair{}, fmt.Errorf("no providers available (is %q installed or the bridge at %s running?): %w",
			cfg.Providers.CLI.Command, cfg.Providers.Bridge.Endpoint, err)
	}
	return pair, nil
}
