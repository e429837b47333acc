package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/tabsync/internal/adapter"
	"github.com/MKhiriev/tabsync/internal/client"
	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.NewLogger("syncctl")
	// stdout carries command output
	log.Logger = log.Output(os.Stderr).Level(zerolog.WarnLevel)

	cfg, err := config.GetClientConfig(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	api, err := adapter.NewHTTPSyncAPI(cfg.Adapter, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating sync api client")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.NewApp(api, cfg, os.Stdout, log).Run(ctx, cfg.Args)
	if errors.Is(err, client.ErrNoCommand) || errors.Is(err, client.ErrUnknownCommand) {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, client.Usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
