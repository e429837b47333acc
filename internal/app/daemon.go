package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/tabsync/internal/broadcast"
	"github.com/MKhiriev/tabsync/internal/changefeed"
	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/handler"
	myHTTP "github.com/MKhiriev/tabsync/internal/handler/http"
	"github.com/MKhiriev/tabsync/internal/identity"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/realtime"
	"github.com/MKhiriev/tabsync/internal/server"
	"github.com/MKhiriev/tabsync/internal/store"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/internal/workers"
)

// Daemon is one running sync session with its transports.
type Daemon struct {
	Session  *realtime.SyncSession
	Identity *identity.JWTSession

	server  server.Server
	workers *workers.Workers
	relay   *broadcast.Relay

	// closers run in reverse order on Close.
	closers   []func() error
	closeOnce sync.Once

	logger *logger.Logger
}

// NewDaemon builds every component named by cfg. On error, whatever was
// already opened is closed again.
func NewDaemon(ctx context.Context, cfg *config.StructuredConfig, log *logger.Logger) (_ *Daemon, err error) {
	d := &Daemon{logger: log}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	tabID := cfg.App.TabID
	if tabID == "" {
		tabID = utils.NewTabID()
	}
	log = log.WithTab(tabID)

	tables := resolveTables(cfg.ChangeFeed.Tables)

	feed, err := d.openFeed(ctx, cfg.ChangeFeed, tables, log)
	if err != nil {
		return nil, err
	}

	medium, err := d.openMedium(cfg.Broadcast, log)
	if err != nil {
		return nil, err
	}

	d.Identity, err = identity.NewJWTSession(cfg.App.TokenSignKey, cfg.App.TokenIssuer, log)
	if err != nil {
		_ = medium.Close()
		return nil, fmt.Errorf("creating identity: %w", err)
	}

	d.Session, err = realtime.NewSyncSession(realtime.SessionConfig{
		TabID:  tabID,
		Tables: tables,
	}, feed, medium, d.Identity, log)
	if err != nil {
		_ = medium.Close()
		return nil, fmt.Errorf("creating sync session: %w", err)
	}
	d.closers = append(d.closers, d.Session.Close)

	deps := myHTTP.Dependencies{
		Session: d.Session,
		Auth:    d.Identity,
		Version: cfg.App.Version,
	}
	if cfg.Server.RelayEnabled {
		d.relay = broadcast.NewRelay(log)
		deps.Relay = d.relay
		d.closers = append(d.closers, func() error { d.relay.Close(); return nil })
	}

	handlers, err := handler.NewHandlers(deps, cfg.Server, log)
	if err != nil {
		return nil, fmt.Errorf("creating handlers: %w", err)
	}

	d.server, err = server.NewServer(handlers, cfg.Server, log)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	d.workers = workers.NewWorkers(d.Session, cfg.Workers, log)

	log.Info().
		Str("driver", cfg.ChangeFeed.Driver).
		Str("broadcast_channel", cfg.Broadcast.Channel).
		Bool("relay", d.relay != nil).
		Msg("sync daemon assembled")

	return d, nil
}

// resolveTables returns the watched tables. The same list allows row fetches
// and opens subscriptions.
func resolveTables(configured []string) []string {
	if len(configured) == 0 {
		return realtime.KnownTables()
	}
	return configured
}

func (d *Daemon) openFeed(ctx context.Context, cfg config.ChangeFeed, tables []string, log *logger.Logger) (changefeed.Provider, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := store.NewConnectPostgres(ctx, cfg.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("connecting change-feed database: %w", err)
		}
		d.closers = append(d.closers, db.Close)

		if err = db.Migrate(); err != nil {
			return nil, fmt.Errorf("migrating change-feed database: %w", err)
		}

		rows := store.NewRowRepository(db, tables, log)
		feed, err := changefeed.NewPostgresFeed(ctx, changefeed.PostgresConfig{
			DSN:          cfg.DSN,
			Channel:      cfg.NotifyChannel,
			FetchTimeout: cfg.FetchTimeout,
		}, rows, log)
		if err != nil {
			return nil, fmt.Errorf("starting change feed: %w", err)
		}
		d.closers = append(d.closers, feed.Close)
		return feed, nil

	case config.DriverMemory, "":
		feed := changefeed.NewMemoryFeed(log)
		d.closers = append(d.closers, func() error { feed.Close(); return nil })
		return feed, nil

	default:
		return nil, fmt.Errorf("%w: unknown driver %q", config.ErrInvalidChangeFeedConfigs, cfg.Driver)
	}
}

// openMedium joins the websocket relay when one is configured and otherwise
// opens a process-local hub. The session owns the returned medium.
func (d *Daemon) openMedium(cfg config.Broadcast, log *logger.Logger) (broadcast.Medium, error) {
	if cfg.RelayURL != "" {
		medium, err := broadcast.NewWebSocketMedium(cfg.RelayURL, cfg.Channel, log)
		if err != nil {
			return nil, fmt.Errorf("joining relay: %w", err)
		}
		return medium, nil
	}

	medium, err := broadcast.NewHub(log).Open(cfg.Channel)
	if err != nil {
		return nil, fmt.Errorf("opening broadcast channel: %w", err)
	}
	return medium, nil
}

// Run serves HTTP and runs the workers until ctx is cancelled or a stop
// signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		d.workers.Run(ctx)
	}()

	err := d.server.RunServer(ctx)
	cancel()
	<-workersDone

	return err
}

// Close releases the session, relay, feed and database. Only the first call
// has an effect.
func (d *Daemon) Close() error {
	var errs []error
	d.closeOnce.Do(func() {
		for i := len(d.closers) - 1; i >= 0; i-- {
			if err := d.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		d.logger.Info().Msg("sync daemon closed")
	})
	return errors.Join(errs...)
}
