package changefeed

import (
	"sync"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

// MemoryFeed is an in-process [Provider]. Tests and demo mode feed it with
// Emit; every subscription gets its own delivery goroutine so handlers of
// one subscription run in emit order and never block the emitter.
type MemoryFeed struct {
	mu      sync.Mutex
	subs    map[uint64]*subscription
	nextID  uint64
	closed  bool
	autoAck bool

	logger *logger.Logger
}

// MemoryOption configures a MemoryFeed.
type MemoryOption func(*MemoryFeed)

// WithManualAck disables the automatic SUBSCRIBED acknowledgement; the
// caller acknowledges subscriptions with [MemoryFeed.Ack].
func WithManualAck() MemoryOption {
	return func(f *MemoryFeed) {
		f.autoAck = false
	}
}

// NewMemoryFeed creates an empty MemoryFeed.
func NewMemoryFeed(log *logger.Logger, opts ...MemoryOption) *MemoryFeed {
	f := &MemoryFeed{
		subs:    make(map[uint64]*subscription),
		autoAck: true,
		logger:  log.Component("memory_feed"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe implements [Provider].
func (f *MemoryFeed) Subscribe(table string, filter Filter, onChange ChangeHandler, onStatus StatusHandler) (Handle, error) {
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

	if f.autoAck {
		sub.enqueueStatus(models.StateSubscribed, nil)
	}

	f.logger.Debug().
		Str("table", table).
		Str("owner_id", filter.OwnerID).
		Uint64("subscription_id", sub.id).
		Msg("subscription opened")

	return sub, nil
}

// Unsubscribe implements [Provider]. The subscription receives CLOSED and
// its delivery goroutine exits once the queue is drained.
func (f *MemoryFeed) Unsubscribe(handle Handle) {
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

// Emit delivers change to every live subscription on table whose filter
// matches ownerID. It returns the number of subscriptions the change was
// queued for.
func (f *MemoryFeed) Emit(table, ownerID string, change models.RawChange) int {
	n := 0
	for _, sub := range f.matching(table) {
		if sub.filter.OwnerID != ownerID {
			continue
		}
		sub.enqueueChange(change)
		n++
	}
	return n
}

// Ack reports SUBSCRIBED to every live subscription on table.
func (f *MemoryFeed) Ack(table string) {
	for _, sub := range f.matching(table) {
		sub.enqueueStatus(models.StateSubscribed, nil)
	}
}

// Fail reports CHANNEL_ERROR with err to every live subscription on table.
func (f *MemoryFeed) Fail(table string, err error) {
	for _, sub := range f.matching(table) {
		sub.enqueueStatus(models.StateChannelError, err)
	}
}

// Subscriptions returns the number of live subscriptions on table.
func (f *MemoryFeed) Subscriptions(table string) int {
	return len(f.matching(table))
}

// Close closes every live subscription and rejects further Subscribe calls.
func (f *MemoryFeed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		f.Unsubscribe(sub)
	}
}

func (f *MemoryFeed) matching(table string) []*subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := make([]*subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.table == table {
			subs = append(subs, sub)
		}
	}
	return subs
}
