package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MKhiriev/tabsync/internal/app"
	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncd")
	cfg, err := config.GetStructuredConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}
	if cfg.App.Version == "" {
		cfg.App.Version = buildVersion
	}

	log.Debug().
		Str("driver", cfg.ChangeFeed.Driver).
		Strs("tables", cfg.ChangeFeed.Tables).
		Str("address", cfg.Server.HTTPAddress).
		Str("relay_url", cfg.Broadcast.RelayURL).
		Msg("received configs")

	ctx := context.Background()

	daemon, err := app.NewDaemon(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating sync daemon")
	}

	if err = daemon.Run(ctx); err != nil {
		log.Error().Err(err).Msg("sync daemon stopped with error")
	}

	if err = daemon.Close(); err != nil {
		log.Error().Err(err).Msg("error closing sync daemon")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
