package realtime

import (
	"fmt"
	"sync"

	"github.com/MKhiriev/tabsync/internal/changefeed"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

// subscription is one open table subscription of the current generation.
type subscription struct {
	table       string
	ownerFilter string
	handle      changefeed.Handle
	status      models.TableStatus
}

// ConnectionManager owns the change-feed subscriptions of one identity and
// aggregates their health into a [models.ConnectionStatus].
//
// Every provider callback captures the generation it was opened for. A
// callback whose generation is no longer current, or that arrives after Stop,
// is dropped without touching any state.
type ConnectionManager struct {
	feed       changefeed.Provider
	bus        *EventBus
	normalizer *Normalizer
	tabID      string
	tables     []string

	mu         sync.Mutex
	generation uint64
	running    bool
	userID     string
	subs       map[string]*subscription
	status     models.ConnectionStatus

	onStatusChange func(models.ConnectionStatus)

	logger *logger.Logger
}

// NewConnectionManager creates a stopped ConnectionManager watching tables.
// Every table must belong to the closed set reported by [KnownTables].
func NewConnectionManager(feed changefeed.Provider, bus *EventBus, normalizer *Normalizer, tabID string, tables []string, log *logger.Logger) (*ConnectionManager, error) {
	if feed == nil {
		return nil, ErrNoChangeFeed
	}
	if tabID == "" {
		return nil, ErrEmptyTabID
	}
	if len(tables) == 0 {
		return nil, ErrNoTables
	}

	seen := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		if _, ok := EntityTypeForTable(table); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, table)
		}
		if _, dup := seen[table]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTable, table)
		}
		seen[table] = struct{}{}
	}

	return &ConnectionManager{
		feed:       feed,
		bus:        bus,
		normalizer: normalizer,
		tabID:      tabID,
		tables:     append([]string(nil), tables...),
		subs:       make(map[string]*subscription),
		status:     models.StatusDisconnected,
		logger:     log.Component("connection_manager"),
	}, nil
}

// OnStatusChange sets a hook invoked after every aggregate status change.
// The hook runs outside the manager's lock.
func (m *ConnectionManager) OnStatusChange(hook func(models.ConnectionStatus)) {
	m.mu.Lock()
	m.onStatusChange = hook
	m.mu.Unlock()
}

// Start opens one subscription per watched table filtered to userID and
// tags all of their callbacks with generation. Any previous set is torn
// down first. Start returns before the provider acknowledges anything.
//
// generation must be greater than every generation started before;
// otherwise Start returns ErrStaleGeneration and changes nothing.
func (m *ConnectionManager) Start(userID string, generation uint64) error {
	m.mu.Lock()
	current := m.generation
	m.mu.Unlock()
	if generation <= current {
		m.logger.Warn().
			Uint64("generation", generation).
			Uint64("current_generation", current).
			Msg("stale generation refused")
		return fmt.Errorf("%w: %d, current %d", ErrStaleGeneration, generation, current)
	}

	m.Stop()

	m.mu.Lock()
	m.generation = generation
	m.running = true
	m.userID = userID
	for _, table := range m.tables {
		m.subs[table] = &subscription{
			table:       table,
			ownerFilter: userID,
			status:      models.TablePending,
		}
	}
	changed := m.setStatusLocked(models.StatusConnecting)
	hook := m.onStatusChange
	m.mu.Unlock()

	m.notify(changed, hook, models.StatusConnecting)

	m.logger.Info().
		Str("user_id", userID).
		Uint64("generation", generation).
		Strs("tables", m.tables).
		Msg("starting change feed subscriptions")

	for _, table := range m.tables {
		m.open(table, userID, generation)
	}
	return nil
}

func (m *ConnectionManager) open(table, userID string, generation uint64) {
	handle, err := m.feed.Subscribe(
		table,
		changefeed.Filter{OwnerID: userID},
		func(change models.RawChange) { m.handleChange(generation, table, change) },
		func(state models.SubscriptionState, err error) { m.handleStatus(generation, table, state, err) },
	)
	if err != nil {
		m.handleStatus(generation, table, models.StateChannelError, fmt.Errorf("subscribe %s: %w", table, err))
		return
	}

	m.mu.Lock()
	sub, current := m.subs[table], m.isCurrentLocked(generation)
	if current && sub != nil {
		sub.handle = handle
	}
	m.mu.Unlock()

	// Stop raced with Subscribe: the handle belongs to nobody now.
	if !current {
		m.feed.Unsubscribe(handle)
	}
}

// Stop closes every open subscription and sets the status to disconnected.
// It is safe to call when nothing is open.
func (m *ConnectionManager) Stop() {
	m.mu.Lock()
	handles := make([]changefeed.Handle, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.handle != nil {
			handles = append(handles, sub.handle)
		}
	}
	wasRunning := m.running
	m.running = false
	m.userID = ""
	clear(m.subs)
	changed := m.setStatusLocked(models.StatusDisconnected)
	hook := m.onStatusChange
	generation := m.generation
	m.mu.Unlock()

	for _, handle := range handles {
		m.feed.Unsubscribe(handle)
	}

	if wasRunning {
		m.logger.Info().
			Uint64("generation", generation).
			Int("closed", len(handles)).
			Msg("change feed subscriptions stopped")
	}

	m.notify(changed, hook, models.StatusDisconnected)
}

func (m *ConnectionManager) handleChange(generation uint64, table string, change models.RawChange) {
	m.mu.Lock()
	current := m.isCurrentLocked(generation)
	m.mu.Unlock()

	if !current {
		m.logger.Debug().
			Uint64("generation", generation).
			Str("table", table).
			Msg("dropping change from superseded generation")
		return
	}

	event := m.normalizer.Normalize(table, change.EventType, change.NewRow, change.OldRow, m.tabID)
	m.bus.Publish(event)
}

func (m *ConnectionManager) handleStatus(generation uint64, table string, state models.SubscriptionState, err error) {
	m.mu.Lock()
	if !m.isCurrentLocked(generation) {
		m.mu.Unlock()
		m.logger.Debug().
			Uint64("generation", generation).
			Str("table", table).
			Str("state", string(state)).
			Msg("dropping status from superseded generation")
		return
	}

	sub, ok := m.subs[table]
	if !ok {
		m.mu.Unlock()
		return
	}

	switch state {
	case models.StateSubscribed:
		// An errored table stays unhealthy until the next Start.
		if sub.status != models.TableError {
			sub.status = models.TableSubscribed
		}
	case models.StateChannelError:
		sub.status = models.TableError
	case models.StateClosed:
		sub.status = models.TableClosed
	}

	aggregate := m.aggregateLocked()
	changed := m.setStatusLocked(aggregate)
	hook := m.onStatusChange
	m.mu.Unlock()

	evt := m.logger.Info()
	if state != models.StateSubscribed {
		evt = m.logger.Warn().Err(err)
	}
	evt.Str("table", table).
		Str("state", string(state)).
		Str("connection_status", string(aggregate)).
		Msg("subscription status changed")

	m.notify(changed, hook, aggregate)
}

// aggregateLocked folds per-table statuses: any error or closed table makes
// the session error, all subscribed makes it connected.
func (m *ConnectionManager) aggregateLocked() models.ConnectionStatus {
	subscribed := 0
	for _, sub := range m.subs {
		switch sub.status {
		case models.TableError, models.TableClosed:
			return models.StatusError
		case models.TableSubscribed:
			subscribed++
		}
	}
	if subscribed == len(m.subs) {
		return models.StatusConnected
	}
	return models.StatusConnecting
}

func (m *ConnectionManager) isCurrentLocked(generation uint64) bool {
	return m.running && generation == m.generation
}

func (m *ConnectionManager) setStatusLocked(status models.ConnectionStatus) bool {
	if m.status == status {
		return false
	}
	m.status = status
	return true
}

func (m *ConnectionManager) notify(changed bool, hook func(models.ConnectionStatus), status models.ConnectionStatus) {
	if changed && hook != nil {
		hook(status)
	}
}

// Status returns the aggregate connection status.
func (m *ConnectionManager) Status() models.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// TableStatuses returns a copy of the per-table statuses of the current
// generation. It is empty while stopped.
func (m *ConnectionManager) TableStatuses() map[string]models.TableStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make(map[string]models.TableStatus, len(m.subs))
	for table, sub := range m.subs {
		statuses[table] = sub.status
	}
	return statuses
}

// Generation returns the generation of the last Start.
func (m *ConnectionManager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// UserID returns the owner filter of the live subscriptions, or "" while
// stopped.
func (m *ConnectionManager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Tables returns the watched tables.
func (m *ConnectionManager) Tables() []string {
	return append([]string(nil), m.tables...)
}
