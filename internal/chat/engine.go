// Package chat turns user messages into Boards queries, mutations and replies.
package chat

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siddhartha-04/itcprj/internal/boards"
	"github.com/siddhartha-04/itcprj/internal/domain"
	"github.com/siddhartha-04/itcprj/internal/llm"
	"github.com/siddhartha-04/itcprj/internal/session"
	"github.com/siddhartha-04/itcprj/internal/sprints"
	"github.com/siddhartha-04/itcprj/internal/workitems"
)

// Turn directions passed to a Recorder.
const (
	DirectionUser = "user"
	DirectionBot  = "bot"
)

// Recorder receives session lifecycle events and every turn. Failures are logged, never surfaced.
type Recorder interface {
	StartSession(ctx context.Context, sessionID, clientAddr string) error
	EndSession(ctx context.Context, sessionID string) error
	AppendTurn(ctx context.Context, sessionID, direction, content string) error
}

// Deps are the collaborators an Engine needs. LLM and Recorder are optional.
type Deps struct {
	Cache    *sprints.Cache
	Backend  boards.Backend
	LLM      llm.Querier
	Sessions session.Store
	Recorder Recorder
	Logger   *slog.Logger
	Now      func() time.Time
}

type sessionEntry struct {
	mu       sync.Mutex
	lastSeen time.Time
	// pinned entries belong to a live connection and end only on Disconnect.
	pinned bool
}

// Engine routes messages for many concurrent sessions. Turns of one session
// run one at a time in arrival order; different sessions run in parallel.
type Engine struct {
	cache    *sprints.Cache
	backend  boards.Backend
	resolver *workitems.Resolver
	llm      llm.Querier
	sessions session.Store
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

// NewEngine creates an Engine.
func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Sessions == nil {
		d.Sessions = session.NewMemoryStore()
	}
	return &Engine{
		cache:    d.Cache,
		backend:  d.Backend,
		resolver: workitems.NewResolver(d.Cache, d.Backend, d.Logger),
		llm:      d.LLM,
		sessions: d.Sessions,
		recorder: d.Recorder,
		logger:   d.Logger,
		now:      d.Now,
		entries:  make(map[string]*sessionEntry),
	}
}

// Connect creates a session for a live connection and returns its id with the
// immediate greeting. The session ends only on Disconnect.
func (e *Engine) Connect(ctx context.Context, clientAddr string) (string, []string) {
	return e.open(ctx, clientAddr, true)
}

// Open creates a session for a connectionless client. The idle sweeper evicts it
// once it stops sending messages.
func (e *Engine) Open(ctx context.Context, clientAddr string) (string, []string) {
	return e.open(ctx, clientAddr, false)
}

func (e *Engine) open(ctx context.Context, clientAddr string, pinned bool) (string, []string) {
	id := uuid.NewString()
	e.mu.Lock()
	e.entries[id] = &sessionEntry{lastSeen: e.now(), pinned: pinned}
	e.mu.Unlock()
	e.ensureSession(ctx, id)
	if e.recorder != nil {
		if err := e.recorder.StartSession(ctx, id, clientAddr); err != nil {
			e.logger.Warn("Failed to record session start", "session_id", id, "error", err)
		}
	}
	e.logger.Info("Chat session connected", "session_id", id, "client_addr", clientAddr, "pinned", pinned)
	return id, []string{msgWelcome}
}

// StatusMessages returns the delayed cache status pair sent after connect.
func (e *Engine) StatusMessages() []string {
	if snap := e.cache.Snapshot(); snap != nil {
		return []string{FormatOverview(snap), msgHelpHint}
	}
	return []string{msgStillLoading, msgHelpHint}
}

// Disconnect discards the session. An in-flight turn completes first.
// Disconnecting a session that is already gone is a no-op.
func (e *Engine) Disconnect(ctx context.Context, sessionID string) {
	e.mu.Lock()
	entry, ok := e.entries[sessionID]
	delete(e.entries, sessionID)
	e.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	e.evict(ctx, sessionID)
	e.logger.Info("Chat session disconnected", "session_id", sessionID)
}

func (e *Engine) evict(ctx context.Context, sessionID string) {
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		e.logger.Warn("Failed to delete session", "session_id", sessionID, "error", err)
	}
	if e.recorder != nil {
		if err := e.recorder.EndSession(ctx, sessionID); err != nil {
			e.logger.Warn("Failed to record session end", "session_id", sessionID, "error", err)
		}
	}
}

func (e *Engine) entry(sessionID string) *sessionEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.entries[sessionID]
	if !ok {
		en = &sessionEntry{}
		e.entries[sessionID] = en
	}
	en.lastSeen = e.now()
	return en
}

func (e *Engine) ensureSession(ctx context.Context, sessionID string) *domain.ConversationSession {
	e.entry(sessionID)
	sess, err := e.sessions.Get(ctx, sessionID)
	if err == nil {
		return sess
	}
	sess, err = e.sessions.Create(ctx, sessionID)
	if err != nil {
		e.logger.Warn("Failed to create session, continuing without persistence", "session_id", sessionID, "error", err)
		return domain.NewConversationSession(sessionID)
	}
	return sess
}

// HandleMessage processes one user message and returns the reply. It never fails;
// unknown session ids get a fresh session.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, text string) string {
	en := e.entry(sessionID)
	en.mu.Lock()
	defer en.mu.Unlock()

	sess := e.ensureSession(ctx, sessionID)
	e.record(ctx, sessionID, DirectionUser, text)

	start := e.now()
	reply := e.dispatch(ctx, sess, text)

	if err := e.sessions.Save(ctx, sess); err != nil {
		e.logger.Warn("Failed to save session", "session_id", sessionID, "error", err)
	}
	e.record(ctx, sessionID, DirectionBot, reply)
	e.logger.Debug("Chat turn handled", "session_id", sessionID, "flow", string(sess.Flow), "duration", e.now().Sub(start))
	return reply
}

func (e *Engine) record(ctx context.Context, sessionID, direction, content string) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.AppendTurn(ctx, sessionID, direction, content); err != nil {
		e.logger.Warn("Failed to record turn", "session_id", sessionID, "direction", direction, "error", err)
	}
}

// dispatch routes one message. Panics are converted to the generic apology.
func (e *Engine) dispatch(ctx context.Context, sess *domain.ConversationSession, raw string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Chat handler panicked",
				"session_id", sess.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			reply = msgGenericFailure
		}
	}()

	t := &turn{session: sess, raw: raw, text: normalize(raw)}

	if sess.InFlow() {
		if m := rules[0].match(t.text); m != nil {
			sess.Reset()
			return msgCancelled
		}
		out, err := e.continueFlow(ctx, t)
		if err != nil {
			return errorReply(flowErrPrefix(sess), err)
		}
		return out
	}

	r, m, ok := classify(t.text)
	if !ok {
		return e.unmatched(ctx, t)
	}
	t.match = m
	e.logger.Debug("Intent matched", "session_id", sess.ID, "intent", r.name)

	out, err := r.handle(e, ctx, t)
	if err != nil {
		e.logger.Warn("Intent handler failed", "session_id", sess.ID, "intent", r.name, "error", err)
		return errorReply(r.errPrefix, err)
	}
	return out
}

func (e *Engine) unmatched(ctx context.Context, t *turn) string {
	if len([]rune(t.text)) <= llmFallbackMinLen {
		return msgNudge
	}
	return e.askLLM(ctx, t.text)
}

// askLLM wraps every LLM call; failures and empty output become the fixed reply.
func (e *Engine) askLLM(ctx context.Context, question string) string {
	text, ok := e.queryLLM(ctx, question)
	if !ok {
		return msgAIUnavailable
	}
	return msgAIPrefix + text
}

func (e *Engine) queryLLM(ctx context.Context, prompt string) (string, bool) {
	if e.llm == nil {
		return "", false
	}
	text, err := e.llm.Query(ctx, prompt, llm.BuildContext(e.cache.Snapshot(), e.now()))
	if err != nil || text == "" {
		e.logger.Warn("LLM fallback unavailable", "error", err)
		return "", false
	}
	return text, true
}

// StartIdleSweeper evicts connectionless sessions that have not sent a message for maxIdle.
func (e *Engine) StartIdleSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		e.logger.Info("Session idle sweeper started", "interval", interval, "max_idle", maxIdle)

		for {
			select {
			case <-ticker.C:
				if n := e.sweepIdle(ctx, maxIdle); n > 0 {
					e.logger.Info("Evicted idle chat sessions", "count", n)
				}
			case <-ctx.Done():
				e.logger.Info("Session idle sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (e *Engine) sweepIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := e.now().Add(-maxIdle)
	var expired []string

	e.mu.Lock()
	for id, en := range e.entries {
		if en.pinned || !en.lastSeen.Before(cutoff) {
			continue
		}
		if en.mu.TryLock() {
			delete(e.entries, id)
			en.mu.Unlock()
			expired = append(expired, id)
		}
	}
	e.mu.Unlock()

	for _, id := range expired {
		e.evict(ctx, id)
	}
	return len(expired)
}

// ActiveSessions returns the number of tracked sessions.
func (e *Engine) ActiveSessions() int {
	return e.sessions.Len()
}
