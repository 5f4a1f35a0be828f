// Package item implements stateless inventory and equipment operations.
// Every function returns new collections and leaves its inputs untouched.
package item

import (
	"errors"
	"strings"

	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

var (
	ErrNotEnough     = errors.New("not enough items")
	ErrNotOwned      = errors.New("item not in inventory")
	ErrNotConsumable = errors.New("item is not consumable")
	ErrNotEquipment  = errors.New("item is not equipment")
	ErrUnknownItem   = errors.New("unknown item")
)

// Catalog resolves item templates and instances by id.
type Catalog struct {
	Items     map[string]resource.Item
	Instances map[string]resource.ItemInstance
}

// NewCatalog indexes the story's items together with the session's instances.
func NewCatalog(story *resource.Story, instances map[string]resource.ItemInstance) Catalog {
	c := Catalog{Items: map[string]resource.Item{}, Instances: instances}
	if story != nil {
		for _, it := range story.Items {
			c.Items[it.ID] = it
		}
	}
	if c.Instances == nil {
		c.Instances = map[string]resource.ItemInstance{}
	}
	return c
}

// Resolve returns the template for an item id or instance id, and the
// instance when id names one.
func (c Catalog) Resolve(id string) (resource.Item, *resource.ItemInstance, bool) {
	if inst, ok := c.Instances[id]; ok {
		it, ok := c.Items[inst.TemplateID]
		return it, &inst, ok
	}
	it, ok := c.Items[id]
	return it, nil, ok
}

func clone(inv []state.InventorySlot) []state.InventorySlot {
	return append([]state.InventorySlot(nil), inv...)
}

// AddItem stacks qty onto the template slot for itemID, up to maxStack
// (DefaultMaxStack when <= 0). Overflow is dropped.
func AddItem(inv []state.InventorySlot, itemID string, qty, maxStack int) []state.InventorySlot {
	if maxStack <= 0 {
		maxStack = resource.DefaultMaxStack
	}
	out := clone(inv)
	for i, slot := range out {
		if slot.ItemID == itemID && !slot.IsInstance() {
			out[i].Quantity = min(slot.Quantity+qty, maxStack)
			return out
		}
	}
	if qty <= 0 {
		return out
	}
	return append(out, state.InventorySlot{ItemID: itemID, Quantity: min(qty, maxStack)})
}

// RemoveItem takes qty of itemID from its template slot (or, failing that,
// its first slot). It reports false and returns inv unchanged when that slot
// holds fewer than qty.
func RemoveItem(inv []state.InventorySlot, itemID string, qty int) ([]state.InventorySlot, bool) {
	idx := indexOf(inv, itemID)
	if idx < 0 || inv[idx].Quantity < qty {
		return inv, false
	}
	out := clone(inv)
	out[idx].Quantity -= qty
	if out[idx].Quantity <= 0 {
		out = append(out[:idx], out[idx+1:]...)
	}
	return out, true
}

func indexOf(inv []state.InventorySlot, itemID string) int {
	first := -1
	for i, slot := range inv {
		if slot.ItemID != itemID {
			continue
		}
		if !slot.IsInstance() {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

// GetItemCount sums quantities over every slot holding itemID.
func GetItemCount(inv []state.InventorySlot, itemID string) int {
	n := 0
	for _, slot := range inv {
		if slot.ItemID == itemID {
			n += slot.Quantity
		}
	}
	return n
}

func HasItem(inv []state.InventorySlot, itemID string, qty int) bool {
	return GetItemCount(inv, itemID) >= qty
}

// UseConsumable applies a consumable's Heal or Buff to stats and consumes
// one unit.
func UseConsumable(inv []state.InventorySlot, stats resource.CharacterStats, it resource.Item) ([]state.InventorySlot, resource.CharacterStats, error) {
	if it.Type != resource.ItemConsumable {
		return inv, stats, ErrNotConsumable
	}
	if !HasItem(inv, it.ID, 1) {
		return inv, stats, ErrNotOwned
	}
	stats = ApplyItemEffect(stats, it.Effect)
	out, _ := RemoveItem(inv, it.ID, 1)
	return out, stats, nil
}

// ApplyItemEffect applies Heal (clamped to max) or Buff to stats.
func ApplyItemEffect(stats resource.CharacterStats, eff resource.ItemEffect) resource.CharacterStats {
	switch e := eff.(type) {
	case resource.Heal:
		stats.CurrentHP = min(stats.CurrentHP+e.HP, stats.MaxHP)
		stats.CurrentMP = min(stats.CurrentMP+e.MP, stats.MaxMP)
	case resource.Buff:
		switch strings.ToLower(e.Attribute) {
		case "attack":
			stats.Attack += e.Value
		case "defense":
			stats.Defense += e.Value
		case "speed":
			stats.Speed += e.Value
		}
	case resource.EquipmentBonus, nil:
	}
	return stats
}
