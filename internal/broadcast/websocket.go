package broadcast

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
	outboxSize         = 256
)

// WebSocketMedium is a [Medium] backed by a connection to a [Relay]. It
// dials in the background and reconnects with exponential backoff; Send
// fails with ErrNotConnected while there is no live connection.
//
// Send only queues the message. A write pump per connection drains the
// queue, so callers never wait on the network.
type WebSocketMedium struct {
	url    string
	outbox chan []byte

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (messages, pings and close)
	conn    *websocket.Conn
	handler Handler
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}

	logger *logger.Logger
}

// NewWebSocketMedium joins channel on the relay at relayURL, for example
// "ws://localhost:8080/ws/relay". It returns before the first connection is
// established.
func NewWebSocketMedium(relayURL, channel string, log *logger.Logger) (*WebSocketMedium, error) {
	if channel == "" {
		return nil, ErrEmptyChannel
	}

	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("channel", channel)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithCancel(context.Background())
	m := &WebSocketMedium{
		url:    u.String(),
		outbox: make(chan []byte, outboxSize),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: log.Component("websocket_medium"),
	}

	go m.connectLoop(ctx)

	return m, nil
}

// Send implements [Medium]. The message is queued for the write pump;
// ErrOutboxFull is returned instead of waiting when the queue is full.
func (m *WebSocketMedium) Send(message []byte) error {
	m.mu.Lock()
	conn, closed := m.conn, m.closed
	m.mu.Unlock()

	if closed {
		return ErrMediumClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	msg := make([]byte, len(message))
	copy(msg, message)

	select {
	case m.outbox <- msg:
		return nil
	default:
		return ErrOutboxFull
	}
}

// OnMessage implements [Medium].
func (m *WebSocketMedium) OnMessage(handler Handler) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// Connected reports whether a relay connection is live.
func (m *WebSocketMedium) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Close implements [Medium]. It stops reconnecting and closes the live
// connection.
func (m *WebSocketMedium) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn := m.conn
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		_ = m.write(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	<-m.done

	return nil
}

func (m *WebSocketMedium) connectLoop(ctx context.Context) {
	defer close(m.done)

	delay := reconnectBaseDelay
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, m.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn().Err(err).Dur("retry_in", delay).Msg("relay dial failed")
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()

		connectedAt := time.Now()
		m.logger.Info().Str("url", m.url).Msg("connected to relay")

		pumpCtx, stopPump := context.WithCancel(ctx)
		go m.writePump(pumpCtx, conn)
		err = m.readLoop(conn)
		stopPump()

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		m.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}

		// a connection that survived a while starts the backoff over
		if time.Since(connectedAt) > reconnectMaxDelay {
			delay = reconnectBaseDelay
		}
		m.logger.Warn().Err(err).Dur("retry_in", delay).Msg("relay connection lost")
		if !sleep(ctx, delay) {
			return
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (m *WebSocketMedium) readLoop(conn *websocket.Conn) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))

		m.mu.Lock()
		handler := m.handler
		m.mu.Unlock()

		if handler != nil {
			handler(data)
		}
	}
}

// writePump writes queued messages and pings to conn until ctx is done or a
// write fails. A failed write closes conn, which ends the read loop.
func (m *WebSocketMedium) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case msg := <-m.outbox:
			err = m.write(conn, websocket.TextMessage, msg)
		case <-ticker.C:
			err = m.write(conn, websocket.PingMessage, nil)
		}
		if err != nil {
			m.logger.Warn().Err(err).Msg("relay write failed")
			_ = conn.Close()
			return
		}
	}
}

func (m *WebSocketMedium) write(conn *websocket.Conn, messageType int, data []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
