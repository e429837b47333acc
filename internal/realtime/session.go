package realtime

import (
	"sync"

	"github.com/MKhiriev/tabsync/internal/broadcast"
	"github.com/MKhiriev/tabsync/internal/changefeed"
	"github.com/MKhiriev/tabsync/internal/identity"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

// SessionConfig holds the per-tab settings of a [SyncSession].
type SessionConfig struct {
	// TabID identifies this tab on the broadcast medium. Required.
	TabID string

	// Tables lists the watched tables. Defaults to [KnownTables].
	Tables []string
}

// SyncSession is the composition root of the realtime layer for one tab.
//
// It is built once, passed by reference to consumers and closed explicitly.
// Change-feed subscriptions follow the identity: they start on login, stop
// on logout and restart under a new generation on a user switch. The
// broadcast medium stays open from construction until Close regardless of
// the identity.
type SyncSession struct {
	tabID string

	bus        *EventBus
	manager    *ConnectionManager
	replicator *CrossTabReplicator
	identity   identity.Provider

	// mu serialises identity transitions, Reconnect and Close.
	mu                  sync.Mutex
	generation          uint64
	closed              bool
	unsubscribeIdentity func()

	logger *logger.Logger
}

// NewSyncSession wires a bus, a connection manager and a replicator for one
// tab. It takes ownership of medium. If the identity is already
// authenticated the subscriptions are started before returning.
func NewSyncSession(cfg SessionConfig, feed changefeed.Provider, medium broadcast.Medium, ident identity.Provider, log *logger.Logger) (*SyncSession, error) {
	if ident == nil {
		return nil, ErrNoIdentity
	}
	if cfg.TabID == "" {
		return nil, ErrEmptyTabID
	}

	tables := cfg.Tables
	if len(tables) == 0 {
		tables = KnownTables()
	}

	log = log.WithTab(cfg.TabID)
	bus := NewEventBus(log)

	manager, err := NewConnectionManager(feed, bus, NewNormalizer(), cfg.TabID, tables, log)
	if err != nil {
		return nil, err
	}

	replicator, err := NewCrossTabReplicator(cfg.TabID, medium, bus, log)
	if err != nil {
		return nil, err
	}

	s := &SyncSession{
		tabID:      cfg.TabID,
		bus:        bus,
		manager:    manager,
		replicator: replicator,
		identity:   ident,
		logger:     log.Component("sync_session"),
	}

	manager.OnStatusChange(func(status models.ConnectionStatus) {
		s.logger.Info().Str("connection_status", string(status)).Msg("connection status changed")
	})

	s.unsubscribeIdentity = ident.OnChange(s.apply)
	s.apply(ident.Current())

	return s, nil
}

// apply reacts to an identity transition.
func (s *SyncSession) apply(id models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if !id.Authenticated || id.UserID == "" {
		s.manager.Stop()
		return
	}

	if s.manager.UserID() == id.UserID {
		return
	}

	s.startLocked(id.UserID)
}

func (s *SyncSession) startLocked(userID string) {
	s.generation++
	if err := s.manager.Start(userID, s.generation); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("change feed not restarted")
	}
}

// Reconnect tears down and reopens every subscription of the current user
// under a new generation. It does nothing while unauthenticated.
func (s *SyncSession) Reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	id := s.identity.Current()
	if !id.Authenticated || id.UserID == "" {
		return
	}

	s.logger.Info().Str("user_id", id.UserID).Msg("reconnecting change feed")
	s.startLocked(id.UserID)
}

// Subscribe registers callback for every event delivered to this tab and
// returns the disposer that removes it. Callers must call the disposer when
// they no longer need events.
func (s *SyncSession) Subscribe(callback Callback) (unsubscribe func()) {
	return s.bus.Subscribe(callback)
}

// BroadcastToTabs sends event to the other tabs of the session. It is meant
// for locally originated changes, such as optimistic updates, that the
// backend has not confirmed yet.
func (s *SyncSession) BroadcastToTabs(event models.ChangeEvent) {
	s.replicator.BroadcastToTabs(event)
}

// ConnectionStatus returns the aggregate change-feed status.
func (s *SyncSession) ConnectionStatus() models.ConnectionStatus {
	return s.manager.Status()
}

// TableStatuses returns the status of every table subscription.
func (s *SyncSession) TableStatuses() map[string]models.TableStatus {
	return s.manager.TableStatuses()
}

// LastEvent returns the last event delivered to this tab.
func (s *SyncSession) LastEvent() (models.ChangeEvent, bool) {
	return s.bus.LastEvent()
}

// EventCount returns the number of events delivered to this tab, whether
// they came from this tab's change feed or from another tab.
func (s *SyncSession) EventCount() uint64 {
	return s.bus.EventCount()
}

// Generation returns the generation of the live subscriptions.
func (s *SyncSession) Generation() uint64 {
	return s.manager.Generation()
}

// TabID returns this tab's id.
func (s *SyncSession) TabID() string {
	return s.tabID
}

// Status returns a point-in-time read model of the session.
func (s *SyncSession) Status() models.SyncStatus {
	status := models.SyncStatus{
		TabID:            s.tabID,
		ConnectionStatus: s.manager.Status(),
		Tables:           s.manager.TableStatuses(),
		EventCount:       s.bus.EventCount(),
		Generation:       s.manager.Generation(),
		UserID:           s.manager.UserID(),
	}
	if last, ok := s.bus.LastEvent(); ok {
		status.LastEvent = &last
	}
	return status
}

// Close stops the subscriptions, detaches from the identity provider and
// closes the broadcast medium. Calls after the first are no-ops.
func (s *SyncSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.unsubscribeIdentity()
	s.manager.Stop()

	s.logger.Info().Msg("sync session closed")

	return s.replicator.Close()
}
