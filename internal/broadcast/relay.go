package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const (
	relaySendBuffer   = 64
	relayWriteTimeout = 10 * time.Second
	relayPongTimeout  = 60 * time.Second
	relayPingInterval = 30 * time.Second
	relayMaxMessage   = 1 << 20
)

// Relay is an http.Handler that lets tabs in different processes share a
// channel. Every websocket connection joins the channel named by the
// "channel" query parameter; each text message is forwarded to every other
// connection of that channel. A connection that cannot keep up is dropped.
type Relay struct {
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels map[string]map[*relayClient]struct{}
	closed   bool

	logger *logger.Logger
}

// NewRelay creates a Relay with no connections.
func NewRelay(log *logger.Logger) *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		channels: make(map[string]map[*relayClient]struct{}),
		logger:   log.Component("broadcast_relay"),
	}
}

type relayClient struct {
	conn    *websocket.Conn
	channel string
	send    chan []byte
	once    sync.Once
}

func (c *relayClient) close() {
	c.once.Do(func() { close(c.send) })
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, ErrEmptyChannel.Error(), http.StatusBadRequest)
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rl.logger.Warn().Err(err).Msg("relay upgrade failed")
		return
	}

	c := &relayClient{conn: conn, channel: channel, send: make(chan []byte, relaySendBuffer)}
	if !rl.join(c) {
		_ = conn.Close()
		return
	}

	rl.logger.Debug().
		Str("channel", channel).
		Str("remote_addr", r.RemoteAddr).
		Msg("relay client connected")

	go rl.writePump(c)
	rl.readPump(c)
}

// Clients returns the number of connections on channel.
func (rl *Relay) Clients(channel string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.channels[channel])
}

// Close disconnects every client and refuses new ones.
func (rl *Relay) Close() {
	rl.mu.Lock()
	rl.closed = true
	var clients []*relayClient
	for _, members := range rl.channels {
		for c := range members {
			clients = append(clients, c)
		}
	}
	rl.channels = make(map[string]map[*relayClient]struct{})
	for _, c := range clients {
		c.close()
	}
	rl.mu.Unlock()
}

func (rl *Relay) join(c *relayClient) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.closed {
		return false
	}
	members, ok := rl.channels[c.channel]
	if !ok {
		members = make(map[*relayClient]struct{})
		rl.channels[c.channel] = members
	}
	members[c] = struct{}{}
	return true
}

func (rl *Relay) leave(c *relayClient) {
	rl.mu.Lock()
	members := rl.channels[c.channel]
	delete(members, c)
	if len(members) == 0 {
		delete(rl.channels, c.channel)
	}
	c.close()
	rl.mu.Unlock()
}

func (rl *Relay) readPump(c *relayClient) {
	defer rl.leave(c)

	c.conn.SetReadLimit(relayMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(relayPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(relayPongTimeout))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				rl.logger.Debug().Err(err).Str("channel", c.channel).Msg("relay client read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(relayPongTimeout))
		rl.fanOut(c, msg)
	}
}

// fanOut queues msg for every other client of the sender's channel. Sends
// happen under the read lock because send channels are closed only under
// the write lock.
func (rl *Relay) fanOut(from *relayClient, msg []byte) {
	var slow []*relayClient

	rl.mu.RLock()
	for c := range rl.channels[from.channel] {
		if c == from {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	rl.mu.RUnlock()

	for _, c := range slow {
		rl.logger.Warn().
			Str("channel", from.channel).
			Str("origin_tab_id", gjson.GetBytes(msg, "origin_tab_id").String()).
			Msg("relay client too slow, disconnecting")
		rl.leave(c)
	}
}

func (rl *Relay) writePump(c *relayClient) {
	ticker := time.NewTicker(relayPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
