package cmd

import (
	"fmt"
	"log/slog"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/anushkapunekar/agentops/internal/server"
	"github.com/anushkapunekar/agentops/internal/storage"
	"github.com/anushkapunekar/agentops/internal/vcs"
)

// pipeline holds the components shared by serve and review.
type pipeline struct {
	host         vcs.SourceHost
	orchestrator *review.Orchestrator
	store        *storage.Store
}

// newPipeline wires the source host, the review backends and, when a
// database path is configured, the review history.
func newPipeline(conf config.Config, logger *slog.Logger, deliver bool) (*pipeline, error) {
	host, err := vcs.Get(hostName, conf)
	if err != nil {
		return nil, err
	}
	if err := host.Validate(); err != nil {
		logger.Warn("source host is not fully configured, host calls will fail", "host", hostName, "error", err)
	}

	adapter, err := provider.NewAdapterFromConfig(conf, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("review backends selected", "backends", adapter.Kinds(), "model", conf.Model)

	p := &pipeline{host: host}
	opts := review.Options{
		MinDiffLength:   conf.MinDiffLength,
		DefaultBranch:   conf.DefaultBranch,
		PipelineEnabled: conf.PipelineConfigured(),
		Logger:          logger,
	}
	if deliver && conf.DBPath != "" {
		store, err := storage.Open(conf.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open review history: %w", err)
		}
		p.store = store
		opts.Recorder = store
		logger.Info("review history enabled", "path", conf.DBPath)
	}

	p.orchestrator = review.NewOrchestrator(host, adapter, opts)
	return p, nil
}

// history returns the store for the overview endpoint, or nil when
// history is disabled.
func (p *pipeline) history() server.History {
	if p.store == nil {
		return nil
	}
	return p.store
}

func (p *pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}
