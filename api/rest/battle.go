package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kasuganosora/novelsim/game/battle"
	"github.com/kasuganosora/novelsim/game/engine"
)

// StartBattle handles POST /api/sessions/:id/battle.
func (h *GameHandler) StartBattle(c *gin.Context) {
	h.respond(c, func(sess *engine.Session) error {
		_, err := h.engine.StartBattle(c.Request.Context(), sess)
		return err
	})
}

// BattleAction handles POST /api/sessions/:id/battle/actions. When the
// action ends the battle the response carries the outcome and the session
// has already moved on.
func (h *GameHandler) BattleAction(c *gin.Context) {
	var req struct {
		Action  string `json:"action" binding:"required"`
		SkillID string `json:"skillId"`
		ItemID  string `json:"itemId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := req.SkillID
	if req.Action == "item" {
		id = req.ItemID
	}
	action, ok := battle.ParseAction(req.Action, id)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	var outcome *engine.BattleOutcome
	v, ok := h.do(c, func(sess *engine.Session) error {
		_, out, err := h.engine.BattleTurn(c.Request.Context(), sess, action)
		outcome = out
		return err
	})
	if !ok {
		return
	}
	v.Outcome = outcome
	c.JSON(http.StatusOK, v)
}
