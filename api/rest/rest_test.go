package rest_test

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/api/rest"
	"github.com/kasuganosora/novelsim/config"
	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
	"github.com/kasuganosora/novelsim/game/world"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/testutil"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newRouterWithDefault(t, "")
}

func newRouterWithDefault(t *testing.T, defaultStory string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := testutil.SampleRepository(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{SessionSecret: "test-secret", SessionTTL: time.Hour}

	e := engine.New(engine.Config{
		Repo:   repo,
		Logger: zap.NewNop(),
		Clock:  func() time.Time { return testNow },
		NewRNG: func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
	game := rest.NewGameHandler(rest.GameDeps{
		Engine:       e,
		Simulator:    world.NewSimulator(e, world.Config{Logger: zap.NewNop()}),
		Sessions:     session.NewManager(c, time.Hour, zap.NewNop()),
		Saves:        save.NewService(save.Config{DB: testutil.SetupTestDB(t), Clock: func() time.Time { return testNow }}),
		Security:     sec,
		DefaultStory: defaultStory,
		Logger:       zap.NewNop(),
	})

	r := gin.New()
	r.Use(mw.TraceID())
	rest.Register(r.Group("/api"), rest.NewStoryHandler(repo, zap.NewNop()), game, mw.Auth(sec, c))
	return r
}

func call(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type view struct {
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
		Text       string `json:"text"`
		NextNodeID string `json:"nextNodeId"`
	} `json:"options"`
	State struct {
		CurrentNodeID string `json:"currentNodeId"`
		Gold          int    `json:"gold"`
		Inventory     []struct {
			ItemID   string `json:"itemId"`
			Quantity int    `json:"quantity"`
		} `json:"inventory"`
	} `json:"state"`
	Battle  map[string]any `json:"battle"`
	Outcome *struct {
		Node struct {
			ID string `json:"id"`
		} `json:"node"`
	} `json:"outcome"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) view {
	t.Helper()
	var v view
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func create(t *testing.T, r http.Handler, playerID string) view {
	t.Helper()
	w := call(r, http.MethodPost, "/api/sessions", "", map[string]string{"storyId": testutil.SampleStoryID, "playerId": playerID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)
}

func TestHealthAndStories(t *testing.T) {
	r := newRouter(t)
	w := call(r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodGet, "/api/stories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Stories []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Stories, 1)
	assert.Equal(t, "Demo", resp.Stories[0].Title)
}

func TestCreateSession(t *testing.T) {
	r := newRouter(t)
	v := create(t, r, "")
	assert.NotEmpty(t, v.SessionID)
	assert.NotEmpty(t, v.Token)
	assert.NotEmpty(t, v.PlayerID)
	assert.Equal(t, "n1", v.Node.ID)
	assert.Equal(t, "Choice", v.Node.Content["type"])
	require.Len(t, v.Options, 2)
	assert.Equal(t, "take", v.Options[0].ID)
	assert.Equal(t, "pay", v.Options[1].ID)

	w := call(r, http.MethodPost, "/api/sessions", "", map[string]string{"storyId": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = call(r, http.MethodPost, "/api/sessions", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_EmptyBody(t *testing.T) {
	post := func(r http.Handler, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	r := newRouterWithDefault(t, testutil.SampleStoryID)
	w := post(r, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v view
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "n1", v.Node.ID)
	assert.NotEmpty(t, v.PlayerID)
	assert.NotEmpty(t, v.Token)

	assert.Equal(t, http.StatusBadRequest, post(r, "{").Code)
	assert.Equal(t, http.StatusBadRequest, post(newRouter(t), "").Code)
}

func TestSessionAuth(t *testing.T) {
	r := newRouter(t)
	a := create(t, r, "p1")
	b := create(t, r, "p2")

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/sessions/"+a.SessionID, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/sessions/"+a.SessionID, b.Token, nil).Code)

	w := call(r, http.MethodGet, "/api/sessions/"+a.SessionID, a.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "n1", decode(t, w).State.CurrentNodeID)
}

func TestChoiceContinueAndBattle(t *testing.T) {
	r := newRouter(t)
	s := create(t, r, "p1")
	base := "/api/sessions/" + s.SessionID

	w := call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "gate"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(r, http.MethodPost, base+"/battle/actions", s.Token, map[string]string{"action": "attack"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "take"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode(t, w)
	assert.Equal(t, "n2", v.Node.ID)
	assert.Equal(t, "You pocket the potion.", v.Node.Content["text"])
	require.Len(t, v.State.Inventory, 1)
	assert.Equal(t, "potion", v.State.Inventory[0].ItemID)

	w = call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "take"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, base+"/continue", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "fight", decode(t, w).Node.ID)

	w = call(r, http.MethodPost, base+"/battle", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Slime", decode(t, w).Battle["enemy"].(map[string]any)["name"])

	w = call(r, http.MethodPost, base+"/battle/actions", s.Token, map[string]string{"action": "dance"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, base+"/battle/actions", s.Token, map[string]string{"action": "attack"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decode(t, w)
	require.NotNil(t, v.Outcome)
	assert.Equal(t, "won", v.Outcome.Node.ID)
	assert.Equal(t, "won", v.Node.ID)
	assert.Equal(t, 7, v.State.Gold)
	assert.Nil(t, v.Battle)

	w = call(r, http.MethodPost, base+"/continue", s.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWorldInteraction(t *testing.T) {
	r := newRouter(t)
	s := create(t, r, "p1")
	base := "/api/sessions/" + s.SessionID

	w := call(r, http.MethodGet, base+"/world", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decode(t, w)
	assert.Equal(t, "CHOICE", v.Node.Type)
	require.Len(t, v.Options, 5)
	assert.Equal(t, "opt_1", v.Options[1].ID)
	assert.Equal(t, "SIM_ACTION:item_lamp:take", v.Options[1].NextNodeID)

	w = call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "opt_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decode(t, w)
	assert.Equal(t, "You put Lamp in your bag.", v.Node.Content["text"])
	require.Len(t, v.State.Inventory, 1)
	assert.Equal(t, "item_lamp", v.State.Inventory[0].ItemID)

	w = call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "opt_9"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, base+"/continue", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v = decode(t, w)
	assert.Equal(t, "CHOICE", v.Node.Type)
	assert.Equal(t, "SIM_ACTION:item_lamp:equip", v.Options[0].NextNodeID)
}

func TestItems(t *testing.T) {
	r := newRouter(t)
	s := create(t, r, "p1")
	base := "/api/sessions/" + s.SessionID
	w := call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "take"})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodPost, base+"/items/equip", s.Token, map[string]int{"slot": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = call(r, http.MethodPost, base+"/items/use", s.Token, map[string]int{"slot": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = call(r, http.MethodPost, base+"/items/use", s.Token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodPost, base+"/items/use", s.Token, map[string]int{"slot": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w).State.Inventory)

	w = call(r, http.MethodPost, base+"/items/unequip", s.Token, map[string]string{"equipSlot": "TAIL"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(r, http.MethodPost, base+"/items/unequip", s.Token, map[string]string{"equipSlot": "WEAPON"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSavesAndRestore(t *testing.T) {
	r := newRouter(t)
	s := create(t, r, "p1")
	base := "/api/sessions/" + s.SessionID
	call(r, http.MethodPost, base+"/choices", s.Token, map[string]string{"optionId": "take"})

	w := call(r, http.MethodPost, base+"/saves", s.Token, map[string]int{"slot": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved struct {
		ID      string `json:"id"`
		Preview string `json:"currentNodePreview"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "You pocket the potion.", saved.Preview)

	w = call(r, http.MethodPost, base+"/saves", s.Token, map[string]int{"slot": 99})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(r, http.MethodGet, base+"/saves", s.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Saves          []map[string]any `json:"saves"`
		AvailableSlots []int            `json:"availableSlots"`
		MaxSlots       int              `json:"maxSlots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Saves, 1)
	assert.Len(t, list.AvailableSlots, 9)
	assert.Equal(t, save.MaxSaveSlots, list.MaxSlots)

	w = call(r, http.MethodPost, "/api/sessions/from-save/"+saved.ID, "", map[string]string{"playerId": "p2"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(r, http.MethodPost, "/api/sessions/from-save/"+saved.ID, "", map[string]string{"playerId": "p1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	restored := decode(t, w)
	assert.NotEqual(t, s.SessionID, restored.SessionID)
	assert.Equal(t, "n2", restored.Node.ID)
	assert.Equal(t, "p1", restored.PlayerID)

	w = call(r, http.MethodDelete, base+"/saves/2", s.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(r, http.MethodDelete, base+"/saves/x", s.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownSession(t *testing.T) {
	r := newRouter(t)
	s := create(t, r, "p1")
	// A token for a session the manager no longer has.
	token, err := mw.GenerateToken("ghost", "p1", "test-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/sessions/ghost", token, nil).Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/sessions/"+s.SessionID, s.Token, nil).Code)
}
