package item

import (
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

// EquipItem equips the item held in slot. One unit leaves the inventory and
// the previous occupant of the target equipment slot, if any, returns to it.
// Instances are equipped by instance id, templates by item id.
func EquipItem(inv []state.InventorySlot, eq state.Equipment, slot state.InventorySlot, cat Catalog) ([]state.InventorySlot, state.Equipment, error) {
	it, ok := cat.Items[slot.ItemID]
	if !ok {
		return inv, eq, ErrUnknownItem
	}
	bonus, ok := it.Bonus()
	if it.Type != resource.ItemEquipment || !ok {
		return inv, eq, ErrNotEquipment
	}

	out, ok := takeOne(inv, slot)
	if !ok {
		return inv, eq, ErrNotOwned
	}
	if prev := eq.Get(bonus.Slot); prev != "" {
		out = ReturnToInventory(out, prev, cat)
	}
	occupant := slot.ItemID
	if slot.IsInstance() {
		occupant = slot.InstanceID
	}
	return out, eq.With(bonus.Slot, occupant), nil
}

// UnequipItem clears equipSlot and returns its occupant to the inventory.
// An empty slot is left as is.
func UnequipItem(inv []state.InventorySlot, eq state.Equipment, equipSlot resource.EquipSlot, cat Catalog) ([]state.InventorySlot, state.Equipment) {
	occupant := eq.Get(equipSlot)
	if occupant == "" {
		return inv, eq
	}
	return ReturnToInventory(inv, occupant, cat), eq.With(equipSlot, "")
}

// ReturnToInventory puts an equipped item back: instances get their own slot,
// templates stack onto (or create) their template slot.
func ReturnToInventory(inv []state.InventorySlot, id string, cat Catalog) []state.InventorySlot {
	if inst, ok := cat.Instances[id]; ok {
		return append(clone(inv), state.InventorySlot{ItemID: inst.TemplateID, Quantity: 1, InstanceID: id})
	}
	limit := resource.DefaultMaxStack
	if it, ok := cat.Items[id]; ok {
		limit = it.StackLimit()
	}
	return AddItem(inv, id, 1, limit)
}

// takeOne removes one unit from the slot matching want by item id and
// instance id.
func takeOne(inv []state.InventorySlot, want state.InventorySlot) ([]state.InventorySlot, bool) {
	for i, slot := range inv {
		if slot.ItemID != want.ItemID || slot.InstanceID != want.InstanceID || slot.Quantity <= 0 {
			continue
		}
		out := clone(inv)
		out[i].Quantity--
		if out[i].Quantity <= 0 {
			out = append(out[:i], out[i+1:]...)
		}
		return out, true
	}
	return inv, false
}

// CalculateStatsWithEquipment adds the bonuses of every equipped item to
// base. HP and MP bonuses raise both the maximum and the current value, so
// callers must always start from unequipped base stats.
func CalculateStatsWithEquipment(base resource.CharacterStats, eq state.Equipment, cat Catalog) resource.CharacterStats {
	out := base
	for _, id := range eq.Occupied() {
		it, inst, ok := cat.Resolve(id)
		if !ok {
			continue
		}
		if b, ok := it.Bonus(); ok {
			out = addBonus(out, b.AttackBonus, b.DefenseBonus, b.HPBonus, b.MPBonus, b.SpeedBonus)
		}
		if inst != nil {
			out = addBonus(out, inst.BonusAttack, inst.BonusDefense, inst.BonusHP, inst.BonusMP, inst.BonusSpeed)
		}
	}
	return out
}

func addBonus(s resource.CharacterStats, atk, def, hp, mp, spd int) resource.CharacterStats {
	s.Attack += atk
	s.Defense += def
	s.MaxHP += hp
	s.CurrentHP += hp
	s.MaxMP += mp
	s.CurrentMP += mp
	s.Speed += spd
	return s
}
