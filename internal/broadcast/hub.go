package broadcast

import (
	"sync"

	"github.com/MKhiriev/tabsync/internal/logger"
)

const defaultInboxSize = 256

// Hub is a process-wide registry of named channels. Every [Hub.Open] call
// creates a new participant; a message sent by one participant is delivered
// to every other participant of the same channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*hubEndpoint]struct{}

	inboxSize int
	logger    *logger.Logger
}

// NewHub creates an empty Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		channels:  make(map[string]map[*hubEndpoint]struct{}),
		inboxSize: defaultInboxSize,
		logger:    log.Component("broadcast_hub"),
	}
}

// Open joins the channel called name and returns the participant's Medium.
func (h *Hub) Open(name string) (Medium, error) {
	if name == "" {
		return nil, ErrEmptyChannel
	}

	e := &hubEndpoint{
		hub:     h,
		channel: name,
		inbox:   make(chan []byte, h.inboxSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	members, ok := h.channels[name]
	if !ok {
		members = make(map[*hubEndpoint]struct{})
		h.channels[name] = members
	}
	members[e] = struct{}{}
	h.mu.Unlock()

	go e.readPump()

	return e, nil
}

// Participants returns the number of open participants on channel name.
func (h *Hub) Participants(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[name])
}

func (h *Hub) send(from *hubEndpoint, message []byte) {
	h.mu.RLock()
	peers := make([]*hubEndpoint, 0, len(h.channels[from.channel]))
	for e := range h.channels[from.channel] {
		if e != from {
			peers = append(peers, e)
		}
	}
	h.mu.RUnlock()

	for _, peer := range peers {
		if !peer.offer(message) {
			h.logger.Warn().
				Str("channel", from.channel).
				Msg("participant inbox full, message dropped")
		}
	}
}

func (h *Hub) leave(e *hubEndpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[e.channel]
	delete(members, e)
	if len(members) == 0 {
		delete(h.channels, e.channel)
	}
}

// hubEndpoint is one participant. Its inbox is drained by a single goroutine,
// which keeps per-sender order.
type hubEndpoint struct {
	hub     *Hub
	channel string

	mu      sync.RWMutex
	handler Handler
	closed  bool

	inbox     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (e *hubEndpoint) Send(message []byte) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrMediumClosed
	}

	msg := make([]byte, len(message))
	copy(msg, message)
	e.hub.send(e, msg)
	return nil
}

func (e *hubEndpoint) OnMessage(handler Handler) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

func (e *hubEndpoint) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.hub.leave(e)
		close(e.done)
	})
	return nil
}

func (e *hubEndpoint) offer(message []byte) bool {
	select {
	case <-e.done:
		return true
	default:
	}

	select {
	case e.inbox <- message:
		return true
	default:
		return false
	}
}

func (e *hubEndpoint) readPump() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.inbox:
			e.mu.RLock()
			handler := e.handler
			e.mu.RUnlock()

			if handler != nil {
				handler(msg)
			}
		}
	}
}
