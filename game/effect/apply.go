// Package effect applies story effects to a game state.
package effect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kasuganosora/novelsim/game/condition"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

// ErrUnknownEffect is returned for an Effect variant Apply does not handle.
var ErrUnknownEffect = errors.New("effect: unknown effect")

// maxEventDepth bounds events that trigger events.
const maxEventDepth = 8

// Env is the read-only context effects are applied in.
type Env struct {
	Story  *resource.Story
	Events map[string]resource.GameEvent

	depth int
}

// Apply mutates s according to e.
func Apply(e resource.Effect, s *state.GameState, env Env) error {
	switch x := e.(type) {
	case resource.ModifyVariable:
		applyModifyVariable(x, s)
	case resource.GiveItem:
		GiveItem(s, x.ItemID, defaultQuantity(x.Quantity))
	case resource.RemoveItem:
		RemoveItem(s, x.ItemID, defaultQuantity(x.Quantity))
	case resource.ModifyAttribute:
		modifyAttribute(&s.PlayerStats, x.Attribute, x.Value)
	case resource.AddClue:
		s.CollectedClues[x.ClueID] = struct{}{}
	case resource.ModifyReputation:
		s.FactionReputations[x.FactionID] += x.Value
	case resource.ModifyRelationship:
		s.CharacterRelationships[x.CharacterID] += x.Value
	case resource.MoveToLocation:
		s.Variables[state.CurrentLocationVar] = x.LocationID
	case resource.TriggerEvent:
		return triggerEvent(x.EventID, s, env)
	case resource.PlaySound:
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEffect, e)
	}
	return nil
}

// ApplyAll applies effects in order and stops at the first error.
func ApplyAll(effects []resource.Effect, s *state.GameState, env Env) error {
	for _, e := range effects {
		if err := Apply(e, s, env); err != nil {
			return err
		}
	}
	return nil
}

func defaultQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

// ---- Variables ----

// Compute applies op to the integer value of current. Non-numeric values
// and operands count as 0. DIVIDE by zero and unknown operations leave
// current unchanged.
func Compute(current string, op resource.VariableOperation, operand string) string {
	cur, _ := strconv.Atoi(strings.TrimSpace(current))
	v, _ := strconv.Atoi(strings.TrimSpace(operand))
	switch op {
	case resource.OpSet:
		return strconv.Itoa(v)
	case resource.OpAdd:
		return strconv.Itoa(cur + v)
	case resource.OpSubtract:
		return strconv.Itoa(cur - v)
	case resource.OpMultiply:
		return strconv.Itoa(cur * v)
	case resource.OpDivide:
		if v == 0 {
			return current
		}
		return strconv.Itoa(cur / v)
	}
	return current
}

// applyModifyVariable writes story variables, or entity variables when the
// name has the form @type:id:key.
func applyModifyVariable(x resource.ModifyVariable, s *state.GameState) {
	vars, key := s.Variables, x.VariableName
	if strings.HasPrefix(key, "@") && strings.Count(key, ":") == 2 {
		vars, key = s.EntityVariables, strings.TrimPrefix(key, "@")
	}
	current, ok := vars[key]
	next := Compute(current, x.Operation, x.Value)
	if !ok && next == current {
		return
	}
	vars[key] = next
}

// ---- Inventory ----

// GiveItem adds qty of itemID. An id naming a known item instance adds that
// instance once; otherwise units stack onto the template slot.
func GiveItem(s *state.GameState, itemID string, qty int) {
	if inst, ok := s.ItemInstances[itemID]; ok {
		for _, slot := range s.Inventory {
			if slot.InstanceID == itemID {
				return
			}
		}
		s.Inventory = append(s.Inventory, state.InventorySlot{ItemID: inst.TemplateID, Quantity: 1, InstanceID: itemID})
		return
	}
	for i, slot := range s.Inventory {
		if slot.ItemID == itemID && !slot.IsInstance() {
			s.Inventory[i].Quantity += qty
			return
		}
	}
	s.Inventory = append(s.Inventory, state.InventorySlot{ItemID: itemID, Quantity: qty})
}

// RemoveItem removes qty from the slot matching id: by instance id first,
// then the template slot, then any slot of that item. No match is a no-op.
func RemoveItem(s *state.GameState, id string, qty int) {
	idx := findSlot(s.Inventory, id)
	if idx < 0 {
		return
	}
	s.Inventory[idx].Quantity -= qty
	if s.Inventory[idx].Quantity <= 0 {
		s.Inventory = append(s.Inventory[:idx], s.Inventory[idx+1:]...)
	}
}

func findSlot(inv []state.InventorySlot, id string) int {
	for i, slot := range inv {
		if slot.InstanceID == id {
			return i
		}
	}
	for i, slot := range inv {
		if slot.ItemID == id && !slot.IsInstance() {
			return i
		}
	}
	for i, slot := range inv {
		if slot.ItemID == id {
			return i
		}
	}
	return -1
}

// ---- Stats ----

func modifyAttribute(st *resource.CharacterStats, attr string, delta int) {
	switch strings.ToLower(attr) {
	case "hp":
		st.CurrentHP = clamp(st.CurrentHP+delta, 0, st.MaxHP)
	case "mp":
		st.CurrentMP = clamp(st.CurrentMP+delta, 0, st.MaxMP)
	case "attack":
		st.Attack = max(0, st.Attack+delta)
	case "defense":
		st.Defense = max(0, st.Defense+delta)
	case "speed":
		st.Speed = max(0, st.Speed+delta)
	case "exp":
		st.Exp = max(0, st.Exp+delta)
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ---- Events ----

// triggerEvent marks an event as fired and applies its effects. Already
// fired non-repeatable events and events whose trigger condition is false
// are skipped silently.
func triggerEvent(id string, s *state.GameState, env Env) error {
	ev, known := env.Events[id]
	if (!known || !ev.IsRepeatable) && s.TriggeredEvents.Has(id) {
		return nil
	}
	if known && ev.TriggerCondition != "" && !condition.Evaluate(ev.TriggerCondition, s, env.Story) {
		return nil
	}
	s.TriggeredEvents[id] = struct{}{}
	if !known || env.depth >= maxEventDepth {
		return nil
	}
	env.depth++
	return ApplyAll(ev.Effects, s, env)
}
