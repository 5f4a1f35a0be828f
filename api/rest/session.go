package rest

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/config"
	"github.com/kasuganosora/novelsim/game/battle"
	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/game/world"
	mw "github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/resource"
)

// GameDeps are the collaborators of GameHandler.
type GameDeps struct {
	Engine       *engine.Engine
	Simulator    *world.Simulator
	Sessions     *session.Manager
	Saves        *save.Service
	Security     config.SecurityConfig
	DefaultStory string
	Logger       *zap.Logger
}

// GameHandler handles the play-session endpoints.
type GameHandler struct {
	engine       *engine.Engine
	sim          *world.Simulator
	sessions     *session.Manager
	saves        *save.Service
	sec          config.SecurityConfig
	defaultStory string
	logger       *zap.Logger
}

func NewGameHandler(d GameDeps) *GameHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &GameHandler{
		engine:       d.Engine,
		sim:          d.Simulator,
		sessions:     d.Sessions,
		saves:        d.Saves,
		sec:          d.Security,
		defaultStory: d.DefaultStory,
		logger:       d.Logger,
	}
}

// sessionView is the JSON shape of a session. It is built while the session
// is locked and holds copies only.
type sessionView struct {
	SessionID string                  `json:"sessionId"`
	PlayerID  string                  `json:"playerId,omitempty"`
	Token     string                  `json:"token,omitempty"`
	Node      *resource.StoryNode     `json:"node"`
	Options   []resource.ChoiceOption `json:"options,omitempty"`
	State     *state.GameState        `json:"state"`
	Stats     resource.CharacterStats `json:"stats"`
	Battle    *battle.BattleState     `json:"battle,omitempty"`
	Outcome   *engine.BattleOutcome   `json:"outcome,omitempty"`
}

// shownNode is what the player currently sees: the last world node if one
// is up, else the story node.
func shownNode(sess *engine.Session) (resource.StoryNode, error) {
	if sess.SimNode != nil {
		return *sess.SimNode, nil
	}
	return sess.CurrentNode()
}

func (h *GameHandler) view(sess *engine.Session) *sessionView {
	v := &sessionView{
		SessionID: sess.ID,
		State:     sess.State.Clone(),
		Stats:     h.engine.PlayerStats(sess),
	}
	if node, err := shownNode(sess); err == nil {
		v.Node = &node
		if sess.SimNode != nil {
			if choice, ok := node.Content.(resource.ChoiceContent); ok {
				v.Options = choice.Options
			}
		} else {
			v.Options = h.engine.AvailableOptions(sess)
		}
	}
	if sess.Battle != nil {
		b := *sess.Battle
		v.Battle = &b
	}
	return v
}

type createReq struct {
	StoryID  string `json:"storyId"`
	PlayerID string `json:"playerId"`
}

// start registers sess and answers with a fresh token.
func (h *GameHandler) start(c *gin.Context, sess *engine.Session, playerID string) {
	ctx := c.Request.Context()
	token, err := mw.GenerateToken(sess.ID, playerID, h.sec.SessionSecret, h.sec.SessionTTL)
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("token: %w", err))
		return
	}
	if err := h.sessions.Add(ctx, sess, playerID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	v := h.view(sess)
	v.PlayerID = playerID
	v.Token = token
	c.JSON(http.StatusCreated, v)
}

// Create handles POST /api/sessions. Without a playerId a new one is
// issued; it is the key to the player's saves. An empty body starts the
// default story.
func (h *GameHandler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	storyID := cmp.Or(req.StoryID, h.defaultStory)
	if storyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storyId required"})
		return
	}
	sess, _, err := h.engine.LoadStory(c.Request.Context(), storyID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.start(c, sess, cmp.Or(req.PlayerID, uuid.NewString()))
}

// FromSave handles POST /api/sessions/from-save/:saveId.
func (h *GameHandler) FromSave(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	data, err := h.saves.Load(ctx, req.PlayerID, c.Param("saveId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	sess, _, err := h.engine.LoadFromSave(ctx, data)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.start(c, sess, req.PlayerID)
}

// do runs fn on the route's session and returns the session view taken
// right after it. On failure the error response is already written.
func (h *GameHandler) do(c *gin.Context, fn func(sess *engine.Session) error) (*sessionView, bool) {
	var v *sessionView
	err := h.sessions.Do(c.Request.Context(), c.Param("id"), func(sess *engine.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		v = h.view(sess)
		return nil
	})
	if err != nil {
		writeError(c, h.logger, err)
		return nil, false
	}
	return v, true
}

func (h *GameHandler) respond(c *gin.Context, fn func(sess *engine.Session) error) {
	if v, ok := h.do(c, fn); ok {
		c.JSON(http.StatusOK, v)
	}
}

// Get handles GET /api/sessions/:id.
func (h *GameHandler) Get(c *gin.Context) {
	h.respond(c, func(*engine.Session) error { return nil })
}

// Choose handles POST /api/sessions/:id/choices. Every option is routed
// through the simulator, so authored options may lead to world nodes.
func (h *GameHandler) Choose(c *gin.Context) {
	var req struct {
		OptionID string `json:"optionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(sess *engine.Session) error {
		_, err := h.sim.Choose(c.Request.Context(), sess, req.OptionID)
		return err
	})
}

// Continue handles POST /api/sessions/:id/continue.
func (h *GameHandler) Continue(c *gin.Context) {
	h.respond(c, func(sess *engine.Session) error {
		node, err := shownNode(sess)
		if err != nil {
			return err
		}
		if len(node.Connections) == 0 {
			return fmt.Errorf("node %q: %w", node.ID, engine.ErrNoNextNode)
		}
		_, err = h.sim.Route(c.Request.Context(), sess, node.Connections[0])
		return err
	})
}

// World handles GET /api/sessions/:id/world.
func (h *GameHandler) World(c *gin.Context) {
	h.respond(c, func(sess *engine.Session) error {
		_, err := h.sim.GenerateChoiceNode(sess)
		return err
	})
}
