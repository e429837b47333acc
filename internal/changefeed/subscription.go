package changefeed

import (
	"sync"

	"github.com/MKhiriev/tabsync/models"
)

// subscription is the Handle returned by every provider in this package.
// Its queue is unbounded so enqueueing never blocks, and a single goroutine
// drains it so handlers of one subscription never run concurrently.
type subscription struct {
	id       uint64
	table    string
	filter   Filter
	onChange ChangeHandler
	onStatus StatusHandler

	mu      sync.Mutex
	pending []func()
	closed  bool
	signal  chan struct{}
}

func newSubscription(id uint64, table string, filter Filter, onChange ChangeHandler, onStatus StatusHandler) *subscription {
	return &subscription{
		id:       id,
		table:    table,
		filter:   filter,
		onChange: onChange,
		onStatus: onStatus,
		signal:   make(chan struct{}, 1),
	}
}

// Table implements [Handle].
func (s *subscription) Table() string {
	return s.table
}

func (s *subscription) enqueueChange(change models.RawChange) {
	if s.onChange == nil {
		return
	}
	s.enqueue(func() { s.onChange(change) })
}

func (s *subscription) enqueueStatus(state models.SubscriptionState, err error) {
	if s.onStatus == nil {
		return
	}
	s.enqueue(func() { s.onStatus(state, err) })
}

func (s *subscription) enqueue(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, fn)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for range s.signal {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if closed {
			return
		}
	}
}
