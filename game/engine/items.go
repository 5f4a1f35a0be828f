package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/item"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
)

// Catalog returns the item catalogue of the session.
func (s *Session) Catalog() item.Catalog {
	return item.NewCatalog(s.Story, s.State.ItemInstances)
}

// UseItem consumes one unit of the consumable held in slot and applies its
// effect. slot must match an inventory entry exactly.
func (e *Engine) UseItem(ctx context.Context, sess *Session, slot state.InventorySlot) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	it, _, ok := sess.Catalog().Resolve(slot.ItemID)
	if !ok {
		return fmt.Errorf("item %q: %w", slot.ItemID, ErrInvalidItem)
	}
	if it.Type != resource.ItemConsumable {
		return fmt.Errorf("item %q is %s: %w", it.ID, it.Type, ErrInvalidItem)
	}
	if indexExact(sess.State.Inventory, slot) < 0 {
		return fmt.Errorf("slot %s x%d: %w", slot.ItemID, slot.Quantity, ErrNotFound)
	}

	sess.State.PlayerStats = item.ApplyItemEffect(sess.State.PlayerStats, it.Effect)
	if err := removeItem(sess.State, slot, 1); err != nil {
		return err
	}
	e.logger.Debug("item used",
		zap.String("session_id", sess.ID),
		zap.String("item_id", it.ID))
	_ = e.fire(ctx, hook.OnItemUsed, hook.ItemUsed{
		Scope: sess.Scope(), ItemID: it.ID, InstanceID: slot.InstanceID, Action: "use",
	})
	return nil
}

// EquipItem equips the item held in slot, returning whatever occupied the
// target equipment slot to the inventory.
func (e *Engine) EquipItem(ctx context.Context, sess *Session, slot state.InventorySlot) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	if indexExact(sess.State.Inventory, slot) < 0 {
		return fmt.Errorf("slot %s x%d: %w", slot.ItemID, slot.Quantity, ErrNotFound)
	}
	inv, eq, err := item.EquipItem(sess.State.Inventory, sess.State.Equipment, slot, sess.Catalog())
	switch {
	case errors.Is(err, item.ErrNotEquipment), errors.Is(err, item.ErrUnknownItem):
		return fmt.Errorf("item %q: %w", slot.ItemID, ErrInvalidItem)
	case err != nil:
		return fmt.Errorf("equip %q: %w", slot.ItemID, err)
	}
	sess.State.Inventory, sess.State.Equipment = inv, eq
	_ = e.fire(ctx, hook.OnItemUsed, hook.ItemUsed{
		Scope: sess.Scope(), ItemID: slot.ItemID, InstanceID: slot.InstanceID, Action: "equip",
	})
	return nil
}

// UnequipItem clears equipSlot. An empty slot is a no-op.
func (e *Engine) UnequipItem(ctx context.Context, sess *Session, equipSlot resource.EquipSlot) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	occupant := sess.State.Equipment.Get(equipSlot)
	if occupant == "" {
		return nil
	}
	sess.State.Inventory, sess.State.Equipment = item.UnequipItem(sess.State.Inventory, sess.State.Equipment, equipSlot, sess.Catalog())
	_ = e.fire(ctx, hook.OnItemUsed, hook.ItemUsed{
		Scope: sess.Scope(), ItemID: occupant, Action: "unequip",
	})
	return nil
}

// PlayerStats returns the session's stats with equipment bonuses applied.
func (e *Engine) PlayerStats(sess *Session) resource.CharacterStats {
	return item.CalculateStatsWithEquipment(sess.State.PlayerStats, sess.State.Equipment, sess.Catalog())
}

// removeItem takes qty units from the slot equal to want.
func removeItem(s *state.GameState, want state.InventorySlot, qty int) error {
	i := indexExact(s.Inventory, want)
	if i < 0 {
		return fmt.Errorf("slot %s x%d: %w", want.ItemID, want.Quantity, ErrNotFound)
	}
	s.Inventory[i].Quantity -= qty
	if s.Inventory[i].Quantity <= 0 {
		s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
	}
	return nil
}

func indexExact(inv []state.InventorySlot, want state.InventorySlot) int {
	for i, slot := range inv {
		if slot == want {
			return i
		}
	}
	return -1
}
