package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/tabsync/internal/broadcast"
	"github.com/MKhiriev/tabsync/internal/changefeed"
	"github.com/MKhiriev/tabsync/internal/identity"
	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/internal/realtime"
	"github.com/MKhiriev/tabsync/internal/utils"
	"github.com/MKhiriev/tabsync/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSignKey = "handler-test-key"
	testIssuer  = "tabsync-test"
)

type fixture struct {
	feed    *changefeed.MemoryFeed
	hub     *broadcast.Hub
	auth    *identity.JWTSession
	session *realtime.SyncSession
	handler *Handler
}

func newFixture(t *testing.T, relay http.Handler) *fixture {
	t.Helper()

	f := &fixture{
		feed: changefeed.NewMemoryFeed(logger.Nop()),
		hub:  broadcast.NewHub(logger.Nop()),
	}
	t.Cleanup(f.feed.Close)

	var err error
	f.auth, err = identity.NewJWTSession(testSignKey, testIssuer, logger.Nop())
	require.NoError(t, err)

	medium, err := f.hub.Open("realtime-sync")
	require.NoError(t, err)

	f.session, err = realtime.NewSyncSession(realtime.SessionConfig{TabID: "tabA"}, f.feed, medium, f.auth, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.session.Close() })

	f.handler = NewHandler(Dependencies{
		Session:        f.session,
		Auth:           f.auth,
		Relay:          relay,
		Version:        "1.2.3",
		RequestTimeout: 5 * time.Second,
	}, logger.Nop())

	return f
}

func token(t *testing.T, userID string, d time.Duration) string {
	t.Helper()
	signed, err := utils.GenerateJWTToken(testIssuer, userID, d, testSignKey)
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.Init().ServeHTTP(rec, req)
	return rec
}

// ── routing ──────────────────────────────────────────────────────────────────

func TestInit_RegistersAllRoutes(t *testing.T) {
	f := newFixture(t, nil)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/version"},
		{http.MethodGet, "/api/sync/status"},
		{http.MethodPost, "/api/sync/broadcast"},
		{http.MethodPost, "/api/sync/reconnect"},
		{http.MethodPost, "/api/session/login"},
		{http.MethodPost, "/api/session/logout"},
	}

	for _, tc := range routes {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(tc.method, tc.path, nil))
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
			assert.NotEqual(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestInit_WrongMethodReturns404(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/sync/broadcast", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/ws/relay?channel=x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "relay is not mounted")
}

func TestGetServerVersion(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1.2.3", rec.Body.String())
}

// ── status ───────────────────────────────────────────────────────────────────

func TestGetStatus(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "tabA", status.TabID)
	assert.Equal(t, models.StatusDisconnected, status.ConnectionStatus)
	assert.Zero(t, status.Generation)
}

// ── session ──────────────────────────────────────────────────────────────────

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		body       string
		wantStatus int
		wantUser   string
	}{
		{name: "bearer header", header: "Bearer " + token(t, "user-1", time.Hour), wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "json body", body: `{"token":"` + token(t, "user-2", time.Hour) + `"}`, wantStatus: http.StatusOK, wantUser: "user-2"},
		{name: "no token", wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: "{", wantStatus: http.StatusBadRequest},
		{name: "basic scheme", header: "Basic abc", wantStatus: http.StatusBadRequest},
		{name: "expired", header: "Bearer " + token(t, "user-1", -time.Minute), wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := f.do(req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.False(t, f.auth.Current().Authenticated)
				return
			}

			var id models.Identity
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &id))
			assert.Equal(t, models.Identity{UserID: tt.wantUser, Authenticated: true}, id)
			assert.Equal(t, uint64(1), f.session.Generation())
		})
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.auth.Login(token(t, "user-1", time.Hour))
	require.NoError(t, err)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/session/logout", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.auth.Current().Authenticated)
	assert.Equal(t, models.StatusDisconnected, f.session.ConnectionStatus())
}

// ── sync ─────────────────────────────────────────────────────────────────────

func TestBroadcast(t *testing.T) {
	f := newFixture(t, nil)

	peer, err := f.hub.Open("realtime-sync")
	require.NoError(t, err)
	defer peer.Close()

	received := make(chan []byte, 1)
	peer.OnMessage(func(message []byte) { received <- message })

	body := `{"entity_type":"task","action":"update","payload":{"id":"t1"}}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/sync/broadcast", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case message := <-received:
		var event models.ChangeEvent
		require.NoError(t, json.Unmarshal(message, &event))
		assert.Equal(t, "tabA", event.OriginTabID)
		assert.Equal(t, models.ActionUpdate, event.Action)
		assert.False(t, event.OccurredAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the other tab")
	}
}

func TestBroadcast_ReplacesForeignOrigin(t *testing.T) {
	f := newFixture(t, nil)

	peer, err := f.hub.Open("realtime-sync")
	require.NoError(t, err)
	defer peer.Close()

	received := make(chan []byte, 1)
	peer.OnMessage(func(message []byte) { received <- message })

	body := `{"entity_type":"contact","action":"delete","origin_tab_id":"tabZ"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/sync/broadcast", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case message := <-received:
		var event models.ChangeEvent
		require.NoError(t, json.Unmarshal(message, &event))
		assert.Equal(t, "tabA", event.OriginTabID)
	case <-time.After(time.Second):
		t.Fatal("peer did not receive the broadcast")
	}
}

func TestBroadcast_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{"},
		{name: "unknown entity", body: `{"entity_type":"invoice","action":"insert"}`},
		{name: "unknown action", body: `{"entity_type":"task","action":"upsert"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(httptest.NewRequest(http.MethodPost, "/api/sync/broadcast", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestReconnect(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.auth.Login(token(t, "user-1", time.Hour))
	require.NoError(t, err)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/sync/reconnect", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, uint64(2), status.Generation)
	assert.Equal(t, "user-1", status.UserID)
}

func TestStreamEvents(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.auth.Login(token(t, "user-1", time.Hour))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.session.ConnectionStatus() == models.StatusConnected
	}, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(f.handler.Init())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sync/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(traceIDHeader))

	frames := readFrames(resp)

	first := <-frames
	assert.Equal(t, "status", first.event)
	assert.Contains(t, first.data, `"connection_status":"connected"`)

	require.Equal(t, 1, f.feed.Emit("tasks", "user-1", models.RawChange{
		EventType: "INSERT",
		NewRow:    models.Row{"id": "t1", "user_id": "user-1"},
	}))

	select {
	case frame := <-frames:
		assert.Equal(t, "change", frame.event)
		var event models.ChangeEvent
		require.NoError(t, json.Unmarshal([]byte(frame.data), &event))
		assert.Equal(t, models.EntityTask, event.EntityType)
		assert.Equal(t, models.ActionInsert, event.Action)
		assert.Equal(t, "tabA", event.OriginTabID)
	case <-time.After(2 * time.Second):
		t.Fatal("change frame not received")
	}
}

type sseFrame struct {
	event string
	data  string
}

func readFrames(resp *http.Response) <-chan sseFrame {
	frames := make(chan sseFrame, 16)
	go func() {
		defer close(frames)
		scanner := bufio.NewScanner(resp.Body)
		var frame sseFrame
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				frame.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				frame.data = strings.TrimPrefix(line, "data: ")
			case line == "" && frame.event != "":
				frames <- frame
				frame = sseFrame{}
			}
		}
	}()
	return frames
}

func TestStreamEvents_DisposesSubscriptionOnDisconnect(t *testing.T) {
	bus := &countingSession{}
	f := newFixture(t, nil)
	bus.Session = f.session
	f.handler.session = bus

	srv := httptest.NewServer(f.handler.Init())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sync/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	<-readFrames(resp)
	assert.Equal(t, 1, bus.live())

	cancel()
	resp.Body.Close()

	require.Eventually(t, func() bool { return bus.live() == 0 }, time.Second, 5*time.Millisecond)
}

// countingSession tracks how many subscriptions are live.
type countingSession struct {
	Session

	mu    sync.Mutex
	count int
}

func (s *countingSession) Subscribe(callback realtime.Callback) func() {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	unsubscribe := s.Session.Subscribe(callback)
	return func() {
		unsubscribe()
		s.mu.Lock()
		s.count--
		s.mu.Unlock()
	}
}

func (s *countingSession) live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// ── relay ────────────────────────────────────────────────────────────────────

func TestRelayIsMounted(t *testing.T) {
	relay := broadcast.NewRelay(logger.Nop())
	defer relay.Close()

	f := newFixture(t, relay)
	srv := httptest.NewServer(f.handler.Init())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/relay?channel=realtime-sync"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return relay.Clients("realtime-sync") == 1 }, time.Second, 5*time.Millisecond)
}

// ── middleware ───────────────────────────────────────────────────────────────

func TestWithTraceID(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(traceIDHeader, "trace-1")
	rec := f.do(req)
	assert.Equal(t, "trace-1", rec.Header().Get(traceIDHeader))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Len(t, rec.Header().Get(traceIDHeader), 36, "generated uuid")
}

func TestWithLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("test")
	log.Logger = log.Output(&buf)

	h := &Handler{logger: log, session: fakeTab("tabZ")}
	chain := h.withTraceID(h.withLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync/broadcast", nil))

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"uri":"/api/sync/broadcast"`)
	assert.Contains(t, out, `"tab_id":"tabZ"`)
	assert.Contains(t, out, `"trace_id":`)
}

// fakeTab is a Session that only knows its id.
type fakeTab string

func (f fakeTab) TabID() string                    { return string(f) }
func (fakeTab) Status() models.SyncStatus          { return models.SyncStatus{} }
func (fakeTab) Subscribe(realtime.Callback) func() { return func() {} }
func (fakeTab) BroadcastToTabs(models.ChangeEvent) {}
func (fakeTab) Reconnect()                         {}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &responseWriter{ResponseWriter: rec}

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	w.Flush()

	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, w.status)
	assert.Equal(t, 5, w.size)
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, w.Unwrap())

	_, _, err = w.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}
