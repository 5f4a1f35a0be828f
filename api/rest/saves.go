package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/state"
	mw "github.com/kasuganosora/novelsim/middleware"
)

// ListSaves handles GET /api/sessions/:id/saves: the token owner's saves
// and free slots.
func (h *GameHandler) ListSaves(c *gin.Context) {
	ctx := c.Request.Context()
	owner := mw.GetPlayerID(c)
	saves, err := h.saves.List(ctx, owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	free, err := h.saves.AvailableSlots(ctx, owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"saves":          saves,
		"availableSlots": free,
		"maxSlots":       h.saves.MaxSlots(),
	})
}

// Save handles POST /api/sessions/:id/saves.
func (h *GameHandler) Save(c *gin.Context) {
	var req slotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var saved state.SaveData
	err := h.sessions.Do(c.Request.Context(), c.Param("id"), func(sess *engine.Session) error {
		var err error
		saved, err = h.saves.Save(c.Request.Context(), mw.GetPlayerID(c), *req.Slot, sess)
		return err
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	saved.GameState = nil
	c.JSON(http.StatusCreated, saved)
}

// DeleteSave handles DELETE /api/sessions/:id/saves/:slot.
func (h *GameHandler) DeleteSave(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot"})
		return
	}
	if err := h.saves.Delete(c.Request.Context(), mw.GetPlayerID(c), slot); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
