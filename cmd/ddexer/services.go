package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ddexer/internal/assets"
	"ddexer/internal/config"
	"ddexer/internal/ingest"
	"ddexer/internal/objstore"
	"ddexer/internal/poller"
	"ddexer/internal/publisher"
	"ddexer/internal/sdk"
	"ddexer/internal/store"
	"ddexer/internal/workflow"
)

// services is the wired component graph shared by the daemon and the
// one-shot commands.
type services struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	buckets   objstore.Provider
	ingester  *ingest.Ingester
	poller    *poller.Poller
	publisher *publisher.Publisher
	manager   *workflow.Manager
}

// newServices wires every component around st. Remote clients are created
// lazily by the pools on first use.
func newServices(cfg *config.Config, st *store.Store, logger *slog.Logger, buckets objstore.Provider, platforms sdk.Provider) *services {
	ing := ingest.New(cfg, st, logger)
	poll := poller.New(cfg, st, ing, buckets, logger)
	pub := publisher.New(cfg, st, assets.New(cfg, buckets, logger), platforms, logger)
	return &services{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		buckets:   buckets,
		ingester:  ing,
		poller:    poll,
		publisher: pub,
		manager:   workflow.NewManager(cfg, st, poll, pub, logger),
	}
}

// withServices opens the store for one command invocation.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(context.Context, *services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger, err := commandLogger(cfg, verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	svc := newServices(cfg, st, logger, objstore.NewPool(), sdk.NewPool())
	return fn(cmd.Context(), svc)
}
