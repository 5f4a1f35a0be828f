package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kasuganosora/novelsim/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameState_SerializesSetsSorted(t *testing.T) {
	s := New("intro")
	s.Flags["b"] = struct{}{}
	s.Flags["a"] = struct{}{}

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, []any{"a", "b"}, doc["flags"])
}

func TestGameState_SnapshotRestoresVerbatim(t *testing.T) {
	s := New("intro")
	s.CurrentNodeID = "n3"
	s.Inventory = []InventorySlot{{ItemID: "potion", Quantity: 2}, {ItemID: "sword", Quantity: 1, InstanceID: "sword#1"}}
	s.ItemInstances["sword#1"] = resource.ItemInstance{UID: "sword#1", TemplateID: "sword", BonusAttack: 2}
	s.Equipment = s.Equipment.With(resource.SlotHead, "helm")
	s.Variables["gold"] = "5"
	s.CollectedClues["c1"] = struct{}{}
	s.EntityVariables[EntityKey("char", "hero_1", "loyalty")] = "60"
	s.AddHistory("n1", HistoryNode, "hello", time.Unix(100, 0).UTC())

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var back GameState
	require.NoError(t, json.Unmarshal(raw, &back))

	assert.Equal(t, s, &back)
}

func TestGameState_UnmarshalFillsMaps(t *testing.T) {
	var s GameState
	require.NoError(t, json.Unmarshal([]byte(`{"storyId":"x"}`), &s))
	assert.NotNil(t, s.Variables)
	assert.NotNil(t, s.Flags)
	assert.NotNil(t, s.EntityVariables)
	s.Variables["ok"] = "1"
}

func TestClone_IsIndependent(t *testing.T) {
	s := New("intro")
	s.Variables["a"] = "1"
	c := s.Clone()
	c.Variables["a"] = "2"
	assert.Equal(t, "1", s.Variables["a"])
}

func TestAddHistory_SkipsEmptyText(t *testing.T) {
	s := New("intro")
	s.AddHistory("n1", HistoryNode, "", time.Now())
	assert.Empty(t, s.History)
}

func TestFormatPlayTime(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatPlayTime(0))
	assert.Equal(t, "01:01:01", SaveData{PlayTime: 3661}.FormattedPlayTime())
	assert.Equal(t, "27:46:40", FormatPlayTime(100000))
}

func TestEquipment_WithAndGet(t *testing.T) {
	var e Equipment
	e = e.With(resource.SlotWeapon, "sword").With(resource.SlotBoots, "boots")
	assert.Equal(t, "sword", e.Get(resource.SlotWeapon))
	assert.Equal(t, []string{"sword", "boots"}, e.Occupied())
	assert.Equal(t, "", e.Get(resource.SlotArmor))
}
