// Package integration runs the whole server stack over real HTTP.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	apirest "github.com/kasuganosora/novelsim/api/rest"
	"github.com/kasuganosora/novelsim/api/sse"
	"github.com/kasuganosora/novelsim/audit"
	"github.com/kasuganosora/novelsim/cache"
	"github.com/kasuganosora/novelsim/config"
	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
	"github.com/kasuganosora/novelsim/game/world"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/scheduler"
	"github.com/kasuganosora/novelsim/testutil"
)

// TestServer wraps a real HTTP server with every subsystem wired together.
type TestServer struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Hooks    *hook.Center
	Audit    *audit.Service
	Events   *sse.Broker
	Engine   *engine.Engine
	Sessions *session.Manager
	Saves    *save.Service
	Tasks    scheduler.SessionTasks
	Server   *httptest.Server
	URL      string // http://127.0.0.1:<port>
	Sec      config.SecurityConfig
}

// NewTestServer creates a fully wired server over the sample story.
// It mirrors the dependency wiring in main.go.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	repo := testutil.SampleRepository(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		SessionSecret:  "integration-test-secret",
		SessionTTL:     time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	// ---- Hooks / Audit / Events ----
	hooks := hook.NewCenter(logger)
	auditSvc := audit.New(db, logger)
	auditSvc.Attach(hooks)
	events := sse.NewBroker(logger)
	events.Attach(hooks)

	// ---- Game systems ----
	eng := engine.New(engine.Config{
		Repo:   repo,
		Hooks:  hooks,
		Logger: logger,
		NewRNG: func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	sim := world.NewSimulator(eng, world.Config{Logger: logger})
	sessions := session.NewManager(c, time.Hour, logger)
	saves := save.NewService(save.Config{DB: db, Hooks: hooks, Logger: logger})
	tasks := scheduler.SessionTasks{
		Engine:       eng,
		Sessions:     sessions,
		Saves:        saves,
		PlayTimeTick: time.Second,
		Logger:       logger,
	}

	// ---- Gin HTTP Server ----
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(mw.TraceID(), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	gameH := apirest.NewGameHandler(apirest.GameDeps{
		Engine:       eng,
		Simulator:    sim,
		Sessions:     sessions,
		Saves:        saves,
		Security:     sec,
		DefaultStory: testutil.SampleStoryID,
		Logger:       logger,
	})
	api := r.Group("/api")
	apirest.Register(api, apirest.NewStoryHandler(repo, logger), gameH, mw.Auth(sec, c))
	api.GET("/sessions/:id/events", sse.NewHandler(events, c, sec, logger).ServeSSE)

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		events.Close()
		server.CloseClientConnections()
		server.Close()
		cancel()
		auditSvc.Stop(context.Background())
	})

	return &TestServer{
		DB:       db,
		Cache:    c,
		Hooks:    hooks,
		Audit:    auditSvc,
		Events:   events,
		Engine:   eng,
		Sessions: sessions,
		Saves:    saves,
		Tasks:    tasks,
		Server:   server,
		URL:      server.URL,
		Sec:      sec,
	}
}

// Do sends a JSON request, with a bearer token when token is non-empty.
func (ts *TestServer) Do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Post sends a JSON POST and decodes the response into out, asserting the status.
func (ts *TestServer) Post(t *testing.T, path, token string, body any, want int, out any) {
	t.Helper()
	resp := ts.Do(t, http.MethodPost, path, token, body)
	ReadJSON(t, resp, want, out)
}

// Get sends a GET and decodes the response into out, asserting the status.
func (ts *TestServer) Get(t *testing.T, path, token string, want int, out any) {
	t.Helper()
	resp := ts.Do(t, http.MethodGet, path, token, nil)
	ReadJSON(t, resp, want, out)
}

// ReadJSON checks the status and decodes the body into out when out is non-nil.
func ReadJSON(t *testing.T, resp *http.Response, want int, out any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, want, resp.StatusCode, string(raw))
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
}

// View is the subset of a session response the tests look at.
type View struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
	Token     string `json:"token"`
	Node      struct {
		ID      string         `json:"id"`
		Type    string         `json:"type"`
		Content map[string]any `json:"content"`
	} `json:"node"`
	Options []struct {
		ID         string `json:"id"`
		NextNodeID string `json:"nextNodeId"`
	} `json:"options"`
	State struct {
		CurrentNodeID string `json:"currentNodeId"`
		Gold          int    `json:"gold"`
		PlayTime      int64  `json:"playTime"`
	} `json:"state"`
	Battle  map[string]any `json:"battle"`
	Outcome map[string]any `json:"outcome"`
}

// StartSession creates a session on the default story for playerID.
func (ts *TestServer) StartSession(t *testing.T, playerID string) View {
	t.Helper()
	var v View
	ts.Post(t, "/api/sessions", "", map[string]string{"playerId": playerID}, http.StatusCreated, &v)
	require.NotEmpty(t, v.Token)
	return v
}
