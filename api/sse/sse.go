// Package sse streams a session's hook events to the browser.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/cache"
	"github.com/kasuganosora/novelsim/config"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/plugin/hook"
)

const (
	hookName  = "sse"
	streamBuf = 64
)

// Message is one event of a session stream.
type Message struct {
	Event string
	Data  []byte
}

// Broker fans hook events out to the streams of the session they belong to.
type Broker struct {
	mu        sync.RWMutex
	subs      map[string]map[chan Message]struct{}
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		subs:   make(map[string]map[chan Message]struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Close ends every open stream. http.Server.Shutdown waits for active
// requests, so it should run from RegisterOnShutdown.
func (b *Broker) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Done is closed once the broker is closed.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Attach forwards every session event except the vetoable BeforeChoice.
func (b *Broker) Attach(hooks *hook.Center) {
	for _, event := range hook.Events {
		if event == hook.BeforeChoice {
			continue
		}
		hooks.Register(event, 900, hookName, b.onEvent)
	}
}

func (b *Broker) onEvent(_ context.Context, event string, data any) (any, error) {
	s, ok := data.(hook.Scoped)
	if !ok {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return data, err
	}
	b.Publish(s.EventScope().SessionID, Message{Event: event, Data: raw})
	return data, nil
}

// Publish delivers m to every stream of sessionID. Slow streams drop it.
func (b *Broker) Publish(sessionID string, m Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- m:
		default:
			b.logger.Warn("sse stream full, dropping event",
				zap.String("session_id", sessionID),
				zap.String("event", m.Event))
		}
	}
}

// Subscribe opens a stream for sessionID. The returned func closes it.
func (b *Broker) Subscribe(sessionID string) (<-chan Message, func()) {
	ch := make(chan Message, streamBuf)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Message]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[sessionID], ch)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of open streams of sessionID.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Handler handles the SSE endpoint.
type Handler struct {
	broker *Broker
	sec    config.SecurityConfig
	c      cache.Cache
	logger *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(broker *Broker, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{broker: broker, c: c, sec: sec, logger: logger}
}

// ServeSSE handles GET /api/sessions/:id/events?token=<token>.
// EventSource cannot send headers, so the session token comes in the query.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.SessionSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	sessionID := c.Param("id")
	if claims.SessionID != sessionID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token is for another session"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	exists, err := h.c.Exists(ctx, cache.SessionKey(sessionID))
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	msgCh, unsub := h.broker.Subscribe(sessionID)
	defer unsub()

	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgCh:
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, msg.Data)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return

		case <-h.broker.Done():
			return
		}
	}
}
