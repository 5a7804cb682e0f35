// Package socket serves the browser chat over a WebSocket.
package socket

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Frame types exchanged with the browser.
const (
	TypeUserMessage = "user_message"
	TypeBotMessage  = "bot_message"
	TypeSession     = "session"
	TypePing        = "ping"
	TypePong        = "pong"
)

const (
	writeTimeout       = 10 * time.Second
	maxFrameBytes      = 64 << 10
	defaultStatusDelay = 1500 * time.Millisecond
	msgSlowDown        = "⚠️ You're sending messages too fast. Please wait a few seconds and try again."
)

// Frame is one JSON message on the wire.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// Engine is the chat engine surface the transport drives.
type Engine interface {
	Connect(ctx context.Context, clientAddr string) (string, []string)
	StatusMessages() []string
	HandleMessage(ctx context.Context, sessionID, text string) string
	Disconnect(ctx context.Context, sessionID string)
}

// Options configures a Handler.
type Options struct {
	// AllowedOrigins are full origins such as https://boards.example.com.
	AllowedOrigins []string
	// OriginPatterns are the matching host patterns handed to the upgrader.
	OriginPatterns []string
	IsDev          bool
	StatusDelay    time.Duration
	Limiter        *RateLimiter
}

// Handler upgrades /ws/chat requests and runs one chat session per connection.
type Handler struct {
	engine         Engine
	sm             *SessionManager
	limiter        *RateLimiter
	allowedOrigins []string
	originPatterns []string
	isDev          bool
	statusDelay    time.Duration
}

// NewHandler creates a websocket chat handler.
func NewHandler(engine Engine, sm *SessionManager, opts Options) *Handler {
	if opts.StatusDelay <= 0 {
		opts.StatusDelay = defaultStatusDelay
	}
	if opts.Limiter == nil {
		opts.Limiter = NewRateLimiter(DefaultMessageLimit, DefaultMessageWindow)
	}
	if opts.IsDev || len(opts.OriginPatterns) == 0 {
		opts.OriginPatterns = []string{"*"}
	}
	return &Handler{
		engine:         engine,
		sm:             sm,
		limiter:        opts.Limiter,
		allowedOrigins: opts.AllowedOrigins,
		originPatterns: opts.OriginPatterns,
		isDev:          opts.IsDev,
		statusDelay:    opts.StatusDelay,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID, greeting := h.engine.Connect(ctx, r.RemoteAddr)
	h.sm.Register(sessionID, ws)
	defer func() {
		h.sm.Unregister(sessionID, ws)
		h.limiter.Forget(sessionID)
		h.engine.Disconnect(context.WithoutCancel(ctx), sessionID)
	}()

	if err := h.write(ctx, ws, Frame{Type: TypeSession, Content: sessionID}); err != nil {
		slog.Debug("Failed to send session frame", "error", err, "session_id", sessionID)
		return
	}
	for _, msg := range greeting {
		if err := h.write(ctx, ws, Frame{Type: TypeBotMessage, Content: msg}); err != nil {
			return
		}
	}

	go h.sendStatusLater(ctx, ws, sessionID)

	h.readLoop(ctx, ws, sessionID)
	slog.Info("Chat connection ended", "session_id", sessionID)
}

func (h *Handler) sendStatusLater(ctx context.Context, ws *websocket.Conn, sessionID string) {
	timer := time.NewTimer(h.statusDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	for _, msg := range h.engine.StatusMessages() {
		if err := h.write(ctx, ws, Frame{Type: TypeBotMessage, Content: msg}); err != nil {
			slog.Debug("Failed to send status message", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		var msg Frame
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var reply Frame
		switch msg.Type {
		case TypePing:
			reply = Frame{Type: TypePong}
		case TypeUserMessage:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			if !h.limiter.Allow(sessionID) {
				slog.Warn("Chat rate limit exceeded", "session_id", sessionID)
				reply = Frame{Type: TypeBotMessage, Content: msgSlowDown}
				break
			}
			// The turn outlives a disconnect; its reply is then dropped by the failed write.
			text := h.engine.HandleMessage(context.WithoutCancel(ctx), sessionID, msg.Content)
			reply = Frame{Type: TypeBotMessage, Content: text}
		default:
			slog.Debug("Ignoring unknown frame", "type", msg.Type, "session_id", sessionID)
			continue
		}

		if err := h.write(ctx, ws, reply); err != nil {
			slog.Debug("Failed to write reply", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, f Frame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, f)
}
