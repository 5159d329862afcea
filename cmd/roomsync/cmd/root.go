package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tobur/calendar-module/internal/config"
	"github.com/Tobur/calendar-module/internal/provider/google"
	"github.com/Tobur/calendar-module/internal/store"
	"github.com/Tobur/calendar-module/internal/syncer"
)

var rootCmd = &cobra.Command{
	Use:   "roomsync",
	Short: "Manual sync operations for meeting room calendars",
	Long: `roomsync runs the individual sync jobs against the local database
outside the daemon: full event downloads, resource discovery and
webhook subscription. Configuration comes from the same environment
variables the daemon reads.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the components a subcommand needs. Close releases the
// database handle.
type app struct {
	cfg       *config.Config
	store     *store.Store
	engine    *syncer.Engine
	discovery *syncer.Discovery
	webhooks  *syncer.WebhookManager
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

// setup loads configuration and wires the sync components the same way
// the daemon does, minus the HTTP and scheduling layers.
func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	client := google.NewClient()
	refresher := google.NewTokenRefresher(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	guard := syncer.NewGuard(st, refresher)

	return &app{
		cfg:       cfg,
		store:     st,
		engine:    syncer.NewEngine(st, client, guard, cfg.Sync.Window(), cfg.Sync.MaxPages),
		discovery: syncer.NewDiscovery(st, client, guard),
		webhooks:  syncer.NewWebhookManager(st, client, guard, cfg.Google.EventWatchURL),
	}, nil
}
