package http

import (
	"net/http"
	"time"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/realtime"
	"github.com/MKhiriev/tabsync/models"
)

// Session is the part of a sync session the HTTP surface drives.
type Session interface {
	TabID() string
	Status() models.SyncStatus
	Subscribe(callback realtime.Callback) (unsubscribe func())
	BroadcastToTabs(event models.ChangeEvent)
	Reconnect()
}

// Authenticator logs the session in and out.
type Authenticator interface {
	Login(token string) (models.Identity, error)
	Logout()
}

// Dependencies groups what the handler serves.
type Dependencies struct {
	Session Session
	Auth    Authenticator

	// Relay is mounted on /ws/relay when set.
	Relay http.Handler

	// Version is reported by /api/version.
	Version string

	// RequestTimeout bounds every route except the event stream and the relay.
	RequestTimeout time.Duration
}

type Handler struct {
	session Session
	auth    Authenticator
	relay   http.Handler

	version        string
	requestTimeout time.Duration
	heartbeat      time.Duration

	logger *logger.Logger
}

const defaultHeartbeat = 15 * time.Second

func NewHandler(deps Dependencies, logger *logger.Logger) *Handler {
	logger.Info().Bool("relay", deps.Relay != nil).Msg("http handler created")
	return &Handler{
		session:        deps.Session,
		auth:           deps.Auth,
		relay:          deps.Relay,
		version:        deps.Version,
		requestTimeout: deps.RequestTimeout,
		heartbeat:      defaultHeartbeat,
		logger:         logger,
	}
}
