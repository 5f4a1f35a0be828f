package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/cache"
	"github.com/kasuganosora/novelsim/config"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/testutil"
)

var sec = config.SecurityConfig{SessionSecret: "secret"}

func TestBroker_RoutesBySession(t *testing.T) {
	b := NewBroker(zap.NewNop())
	hooks := hook.NewCenter(nil)
	b.Attach(hooks)

	mine, closeMine := b.Subscribe("s1")
	defer closeMine()
	other, closeOther := b.Subscribe("s2")
	defer closeOther()

	_, err := hooks.Trigger(context.Background(), hook.OnLevelUp, hook.LevelUp{Scope: hook.Scope{SessionID: "s1"}, Level: 3})
	require.NoError(t, err)
	_, err = hooks.Trigger(context.Background(), hook.BeforeChoice, hook.ChoiceMade{Scope: hook.Scope{SessionID: "s1"}})
	require.NoError(t, err)

	select {
	case m := <-mine:
		assert.Equal(t, hook.OnLevelUp, m.Event)
		assert.JSONEq(t, `{"sessionId":"s1","storyId":"","level":3}`, string(m.Data))
	default:
		t.Fatal("expected an event for s1")
	}
	assert.Empty(t, mine)
	assert.Empty(t, other)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(nil)
	_, unsub := b.Subscribe("s1")
	assert.Equal(t, 1, b.Subscribers("s1"))
	unsub()
	unsub()
	assert.Zero(t, b.Subscribers("s1"))
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := NewBroker(nil)
	ch, unsub := b.Subscribe("s1")
	defer unsub()
	for i := 0; i < streamBuf+5; i++ {
		b.Publish("s1", Message{Event: "x", Data: []byte("{}")})
	}
	assert.Len(t, ch, streamBuf)
}

func newSSERouter(t *testing.T) (*gin.Engine, *Broker, cache.Cache) {
	gin.SetMode(gin.TestMode)
	c := testutil.SetupTestCache(t)
	b := NewBroker(nil)
	r := gin.New()
	r.GET("/api/sessions/:id/events", NewHandler(b, c, sec, zap.NewNop()).ServeSSE)
	return r, b, c
}

func TestServeSSE_Rejects(t *testing.T) {
	r, _, _ := newSSERouter(t)
	token, err := mw.GenerateToken("s1", "p1", "secret", time.Hour)
	require.NoError(t, err)

	get := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Code
	}
	assert.Equal(t, http.StatusUnauthorized, get("/api/sessions/s1/events"))
	assert.Equal(t, http.StatusUnauthorized, get("/api/sessions/s1/events?token=bad"))
	assert.Equal(t, http.StatusForbidden, get("/api/sessions/s2/events?token="+token))
	// Token is valid but the session is no longer live.
	assert.Equal(t, http.StatusUnauthorized, get("/api/sessions/s1/events?token="+token))
}

func TestServeSSE_Streams(t *testing.T) {
	r, b, c := newSSERouter(t)
	require.NoError(t, c.Set(context.Background(), cache.SessionKey("s1"), "p1", time.Hour))
	token, err := mw.GenerateToken("s1", "p1", "secret", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/events?token="+token, nil).WithContext(ctx)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)
	b.Publish("s1", Message{Event: hook.OnNodeEnter, Data: []byte(`{"nodeId":"n2"}`)})
	// Give the handler a moment to write before closing the stream.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: node_enter\ndata: {\"nodeId\":\"n2\"}\n\n")
	assert.Zero(t, b.Subscribers("s1"))
}

func TestServeSSE_EndsOnClose(t *testing.T) {
	r, b, c := newSSERouter(t)
	require.NoError(t, c.Set(context.Background(), cache.SessionKey("s1"), "p1", time.Hour))
	token, err := mw.GenerateToken("s1", "p1", "secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s1/events?token="+token, nil)
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)
	b.Close()
	b.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Close")
	}
	assert.Zero(t, b.Subscribers("s1"))
}
