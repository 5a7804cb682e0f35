package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu           sync.Mutex
	disconnected []string
}

func (f *fakeEngine) Connect(context.Context, string) (string, []string) {
	return "sess-1", []string{"welcome"}
}

func (f *fakeEngine) StatusMessages() []string {
	return []string{"status", "hint"}
}

func (f *fakeEngine) HandleMessage(_ context.Context, _ string, text string) string {
	return "echo: " + text
}

func (f *fakeEngine) Disconnect(_ context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, sessionID)
}

func (f *fakeEngine) disconnects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.disconnected...)
}

func startServer(t *testing.T, engine Engine, opts Options) (*httptest.Server, *SessionManager) {
	t.Helper()
	sm := NewSessionManager()
	srv := httptest.NewServer(NewHandler(engine, sm, opts))
	t.Cleanup(srv.Close)
	return srv, sm
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var f Frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	require.NoError(t, wsjson.Write(context.Background(), conn, f))
}

func TestConnectSendsSessionWelcomeThenStatus(t *testing.T) {
	srv, sm := startServer(t, &fakeEngine{}, Options{StatusDelay: 20 * time.Millisecond})
	conn := dial(t, srv)

	assert.Equal(t, Frame{Type: TypeSession, Content: "sess-1"}, readFrame(t, conn))
	assert.Equal(t, Frame{Type: TypeBotMessage, Content: "welcome"}, readFrame(t, conn))
	assert.Equal(t, Frame{Type: TypeBotMessage, Content: "status"}, readFrame(t, conn))
	assert.Equal(t, Frame{Type: TypeBotMessage, Content: "hint"}, readFrame(t, conn))
	assert.NotNil(t, sm.Get("sess-1"))
}

func TestPingAndUserMessage(t *testing.T) {
	srv, _ := startServer(t, &fakeEngine{}, Options{StatusDelay: time.Hour})
	conn := dial(t, srv)
	readFrame(t, conn)
	readFrame(t, conn)

	send(t, conn, Frame{Type: TypePing})
	assert.Equal(t, Frame{Type: TypePong}, readFrame(t, conn))

	send(t, conn, Frame{Type: TypeUserMessage, Content: "   "})
	send(t, conn, Frame{Type: "mystery"})
	send(t, conn, Frame{Type: TypeUserMessage, Content: "help"})
	assert.Equal(t, Frame{Type: TypeBotMessage, Content: "echo: help"}, readFrame(t, conn))
}

func TestRateLimitRepliesWithWarning(t *testing.T) {
	srv, _ := startServer(t, &fakeEngine{}, Options{
		StatusDelay: time.Hour,
		Limiter:     NewRateLimiter(2, time.Minute),
	})
	conn := dial(t, srv)
	readFrame(t, conn)
	readFrame(t, conn)

	for _, text := range []string{"one", "two"} {
		send(t, conn, Frame{Type: TypeUserMessage, Content: text})
		assert.Equal(t, "echo: "+text, readFrame(t, conn).Content)
	}
	send(t, conn, Frame{Type: TypeUserMessage, Content: "three"})
	assert.Equal(t, msgSlowDown, readFrame(t, conn).Content)
}

func TestCloseDisconnectsEngine(t *testing.T) {
	engine := &fakeEngine{}
	srv, sm := startServer(t, engine, Options{StatusDelay: time.Hour})
	conn := dial(t, srv)
	readFrame(t, conn)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	require.Eventually(t, func() bool { return len(engine.disconnects()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"sess-1"}, engine.disconnects())
	assert.Equal(t, 0, sm.Count())
}

func TestOriginCheck(t *testing.T) {
	srv, _ := startServer(t, &fakeEngine{}, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h := NewHandler(&fakeEngine{}, NewSessionManager(), Options{AllowedOrigins: []string{"http://localhost:3000"}})
	ok := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	ok.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, h.checkOrigin(ok))

	dev := NewHandler(&fakeEngine{}, NewSessionManager(), Options{IsDev: true})
	assert.True(t, dev.checkOrigin(req))
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Second)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(11 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(time.Minute)
	rl.evict()
	assert.Equal(t, 0, rl.keys())

	rl.Allow("c")
	rl.Forget("c")
	assert.Equal(t, 0, rl.keys())
}

func TestSessionManagerCloseAll(t *testing.T) {
	srv, sm := startServer(t, &fakeEngine{}, Options{StatusDelay: time.Hour})
	conn := dial(t, srv)
	readFrame(t, conn)

	require.Eventually(t, func() bool { return sm.Count() == 1 }, time.Second, 5*time.Millisecond)
	sm.CloseAll("shutdown")
	assert.Equal(t, 0, sm.Count())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
			return
		}
	}
}
