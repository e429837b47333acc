package changefeed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/store"
	"github.com/MKhiriev/tabsync/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tidwall/gjson"
)

// Listener is the part of a dedicated pgx connection the feed uses.
// *pgx.Conn satisfies it.
type Listener interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// RowFetcher loads the current state of a changed row.
type RowFetcher interface {
	GetRow(ctx context.Context, table, id, ownerID string) (models.Row, error)
	Retryable(err error) bool
}

// fetchAttempts bounds row lookups per notification; only transient
// failures are tried again.
const fetchAttempts = 2

// PostgresConfig configures a [PostgresFeed].
type PostgresConfig struct {
	// DSN is used by NewPostgresFeed to open the listening connection.
	DSN string
	// Channel is the notification channel written by the change trigger.
	Channel string
	// FetchTimeout bounds each row lookup.
	FetchTimeout time.Duration
}

// PostgresFeed is a [Provider] backed by PostgreSQL LISTEN/NOTIFY.
//
// A trigger on every synchronised table notifies Channel with a small JSON
// document naming the table, operation, row id and owner. For inserts and
// updates the feed loads the current row through a [RowFetcher]; for
// deletes it uses the "old" image carried in the notification. One goroutine
// waits for notifications, so changes are dispatched in commit order.
//
// When the listening connection fails, every live subscription receives
// CHANNEL_ERROR and later subscriptions are refused with the same error
// until a new feed is created.
type PostgresFeed struct {
	listener     Listener
	rows         RowFetcher
	channel      string
	fetchTimeout time.Duration

	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextID  uint64
	closed  bool
	failure error

	cancel context.CancelFunc
	done   chan struct{}

	logger *logger.Logger
}

// NewPostgresFeed opens a dedicated connection for cfg.DSN and starts
// listening on cfg.Channel.
func NewPostgresFeed(ctx context.Context, cfg PostgresConfig, rows RowFetcher, log *logger.Logger) (*PostgresFeed, error) {
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("error connecting change feed listener: %w", err)
	}

	feed, err := NewPostgresFeedWithListener(ctx, conn, cfg, rows, log)
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}
	return feed, nil
}

// NewPostgresFeedWithListener starts a feed on an already open listener.
// The feed owns listener and closes it in Close.
func NewPostgresFeedWithListener(ctx context.Context, listener Listener, cfg PostgresConfig, rows RowFetcher, log *logger.Logger) (*PostgresFeed, error) {
	if cfg.Channel == "" {
		return nil, errors.New("no notification channel given")
	}

	if _, err := listener.Exec(ctx, "LISTEN "+pgx.Identifier{cfg.Channel}.Sanitize()); err != nil {
		return nil, fmt.Errorf("error listening on %q: %w", cfg.Channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f := &PostgresFeed{
		listener:     listener,
		rows:         rows,
		channel:      cfg.Channel,
		fetchTimeout: cfg.FetchTimeout,
		subs:         make(map[uint64]*subscription),
		cancel:       cancel,
		done:         make(chan struct{}),
		logger:       log.Component("postgres_feed"),
	}
	if f.fetchTimeout <= 0 {
		f.fetchTimeout = 5 * time.Second
	}

	go f.run(runCtx)

	f.logger.Info().Str("channel", cfg.Channel).Msg("listening for row changes")

	return f, nil
}

// Subscribe implements [Provider]. The subscription is acknowledged at once
// because the shared listener is already running.
func (f *PostgresFeed) Subscribe(table string, filter Filter, onChange ChangeHandler, onStatus StatusHandler) (Handle, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	f.nextID++
	sub := newSubscription(f.nextID, table, filter, onChange, onStatus)
	f.subs[sub.id] = sub
	go sub.run()

	if f.failure != nil {
		sub.enqueueStatus(models.StateChannelError, f.failure)
	} else {
		sub.enqueueStatus(models.StateSubscribed, nil)
	}

	return sub, nil
}

// Unsubscribe implements [Provider].
func (f *PostgresFeed) Unsubscribe(handle Handle) {
	sub, ok := handle.(*subscription)
	if !ok || sub == nil {
		return
	}

	f.mu.Lock()
	_, live := f.subs[sub.id]
	delete(f.subs, sub.id)
	f.mu.Unlock()

	if !live {
		return
	}

	sub.enqueueStatus(models.StateClosed, nil)
	sub.close()
}

// Close stops the listener, closes its connection and closes every live
// subscription.
func (f *PostgresFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	f.cancel()
	<-f.done

	for _, sub := range subs {
		f.Unsubscribe(sub)
	}

	return f.listener.Close(context.Background())
}

func (f *PostgresFeed) run(ctx context.Context) {
	defer close(f.done)

	for {
		n, err := f.listener.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.fail(err)
			return
		}
		f.dispatch(ctx, n.Payload)
	}
}

// fail reports err as CHANNEL_ERROR to every live subscription.
func (f *PostgresFeed) fail(err error) {
	err = fmt.Errorf("%w: %w", ErrListenerStopped, err)

	f.mu.Lock()
	f.failure = err
	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	f.logger.Error().
		Err(err).
		Bool("connection_lost", store.IsConnectionError(err)).
		Int("subscriptions", len(subs)).
		Msg("change feed listener failed")

	for _, sub := range subs {
		sub.enqueueStatus(models.StateChannelError, err)
	}
}

// dispatch decodes one trigger notification and delivers it to the
// matching subscriptions.
func (f *PostgresFeed) dispatch(ctx context.Context, payload string) {
	if !gjson.Valid(payload) {
		f.logger.Warn().Str("payload", payload).Msg("malformed change notification dropped")
		return
	}

	fields := gjson.GetMany(payload, "table", "op", "id", "user_id")
	table, op, id, ownerID := fields[0].String(), strings.ToUpper(fields[1].String()), fields[2].String(), fields[3].String()
	if table == "" || op == "" {
		f.logger.Warn().Str("payload", payload).Msg("change notification without table or op dropped")
		return
	}

	subs := f.matching(table, ownerID)
	if len(subs) == 0 {
		return
	}

	change := models.RawChange{EventType: op}
	switch op {
	case "DELETE":
		change.OldRow = oldRow(gjson.Get(payload, "old"))
	case "INSERT", "UPDATE":
		row, err := f.fetch(ctx, table, id, ownerID)
		if err != nil {
			if errors.Is(err, store.ErrRowNotFound) {
				f.logger.Debug().Str("table", table).Str("id", id).Msg("changed row is gone, notification skipped")
				return
			}
			f.logger.Warn().Err(err).Str("table", table).Str("id", id).Msg("failed to load changed row")
			return
		}
		change.NewRow = row
	default:
		f.logger.Warn().Str("op", op).Msg("unsupported change operation dropped")
		return
	}

	for _, sub := range subs {
		sub.enqueueChange(change)
	}
}

func (f *PostgresFeed) fetch(ctx context.Context, table, id, ownerID string) (models.Row, error) {
	var err error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		var row models.Row
		row, err = f.fetchOnce(ctx, table, id, ownerID)
		if err == nil {
			return row, nil
		}
		if !f.rows.Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		f.logger.Debug().
			Err(err).
			Str("table", table).
			Str("id", id).
			Int("attempt", attempt).
			Msg("transient row lookup failure")
	}
	return nil, err
}

func (f *PostgresFeed) fetchOnce(ctx context.Context, table, id, ownerID string) (models.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()
	return f.rows.GetRow(ctx, table, id, ownerID)
}

func (f *PostgresFeed) matching(table, ownerID string) []*subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	var subs []*subscription
	for _, sub := range f.subs {
		if sub.table == table && sub.filter.OwnerID == ownerID {
			subs = append(subs, sub)
		}
	}
	return subs
}

func oldRow(old gjson.Result) models.Row {
	if !old.IsObject() {
		return nil
	}
	values, ok := old.Value().(map[string]any)
	if !ok {
		return nil
	}
	return models.Row(values)
}
