package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

type slotReq struct {
	Slot *int `json:"slot" binding:"required"`
}

func inventorySlot(sess *engine.Session, i int) (state.InventorySlot, error) {
	if i < 0 || i >= len(sess.State.Inventory) {
		return state.InventorySlot{}, fmt.Errorf("inventory slot %d: %w", i, engine.ErrNotFound)
	}
	return sess.State.Inventory[i], nil
}

// UseItem handles POST /api/sessions/:id/items/use. slot indexes the
// inventory.
func (h *GameHandler) UseItem(c *gin.Context) {
	var req slotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(sess *engine.Session) error {
		slot, err := inventorySlot(sess, *req.Slot)
		if err != nil {
			return err
		}
		return h.engine.UseItem(c.Request.Context(), sess, slot)
	})
}

// EquipItem handles POST /api/sessions/:id/items/equip.
func (h *GameHandler) EquipItem(c *gin.Context) {
	var req slotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, func(sess *engine.Session) error {
		slot, err := inventorySlot(sess, *req.Slot)
		if err != nil {
			return err
		}
		return h.engine.EquipItem(c.Request.Context(), sess, slot)
	})
}

// UnequipItem handles POST /api/sessions/:id/items/unequip.
func (h *GameHandler) UnequipItem(c *gin.Context) {
	var req struct {
		EquipSlot resource.EquipSlot `json:"equipSlot" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	valid := false
	for _, s := range resource.EquipSlots {
		valid = valid || s == req.EquipSlot
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown equipment slot"})
		return
	}
	h.respond(c, func(sess *engine.Session) error {
		return h.engine.UnequipItem(c.Request.Context(), sess, req.EquipSlot)
	})
}
