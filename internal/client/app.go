package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MKhiriev/tabsync/internal/adapter"
	"github.com/MKhiriev/tabsync/internal/config"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
	"github.com/tidwall/gjson"
)

// Usage lists the commands understood by [App.Run].
const Usage = `usage: syncctl [flags] <command> [args]

commands:
  status                                  print the session status
  watch                                   follow delivered change events
  login [token]                           log the session in (default: -token)
  logout                                  log the session out
  reconnect                               restart the change-feed subscriptions
  broadcast <entity> <action> [payload]   send a change to the other tabs
  token <user_id>                         mint a development login token
  version                                 print the server version
`

type App struct {
	api adapter.SyncAPI
	cfg *config.StructuredConfig
	out io.Writer

	logger *logger.Logger
}

func NewApp(api adapter.SyncAPI, cfg *config.StructuredConfig, out io.Writer, logger *logger.Logger) *App {
	return &App{api: api, cfg: cfg, out: out, logger: logger}
}

func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrNoCommand
	}

	command, rest := args[0], args[1:]
	a.logger.Debug().Str("command", command).Strs("args", rest).Msg("running command")

	switch command {
	case "status":
		status, err := a.api.Status(ctx)
		if err != nil {
			return err
		}
		return a.print(status)

	case "watch":
		return a.api.Follow(ctx,
			func(status models.SyncStatus) { _ = a.print(status) },
			func(event models.ChangeEvent) { _ = a.print(event) },
		)

	case "login":
		token := a.cfg.Adapter.Token
		if len(rest) > 0 {
			token = rest[0]
		}
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("%w: token", ErrMissingArgument)
		}
		id, err := a.api.Login(ctx, token)
		if err != nil {
			return err
		}
		return a.print(id)

	case "logout":
		return a.api.Logout(ctx)

	case "reconnect":
		status, err := a.api.Reconnect(ctx)
		if err != nil {
			return err
		}
		return a.print(status)

	case "broadcast":
		event, err := parseEvent(rest)
		if err != nil {
			return err
		}
		return a.api.Broadcast(ctx, event)

	case "token":
		if len(rest) == 0 {
			return fmt.Errorf("%w: user_id", ErrMissingArgument)
		}
		duration := a.cfg.App.TokenDuration
		if duration <= 0 {
			duration = time.Hour
		}
		token, err := utils.GenerateJWTToken(a.cfg.App.TokenIssuer, rest[0], duration, a.cfg.App.TokenSignKey)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, token)
		return err

	case "version":
		version, err := a.api.Version(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, version)
		return err

	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// parseEvent builds a change event from "<entity> <action> [payload]".
func parseEvent(args []string) (models.ChangeEvent, error) {
	if len(args) < 2 {
		return models.ChangeEvent{}, fmt.Errorf("%w: entity and action", ErrMissingArgument)
	}

	event := models.ChangeEvent{
		EntityType: models.EntityType(strings.ToLower(args[0])),
		Action:     models.Action(strings.ToLower(args[1])),
		OccurredAt: time.Now().UTC(),
	}

	if len(args) > 2 {
		if !gjson.Valid(args[2]) {
			return models.ChangeEvent{}, ErrInvalidPayload
		}
		event.Payload = gjson.Parse(args[2]).Value()
	}

	return event, nil
}

func (a *App) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
