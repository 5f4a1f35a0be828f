package state

import (
	"fmt"
	"time"

	"github.com/kasuganosora/novelsim/resource"
)

// Equipment holds one item id or instance id per slot; empty means free.
type Equipment struct {
	Weapon    string `json:"weapon,omitempty"`
	Armor     string `json:"armor,omitempty"`
	Head      string `json:"head,omitempty"`
	Accessory string `json:"accessory,omitempty"`
	Boots     string `json:"boots,omitempty"`
}

// Get returns the occupant of slot.
func (e Equipment) Get(slot resource.EquipSlot) string {
	switch slot {
	case resource.SlotWeapon:
		return e.Weapon
	case resource.SlotArmor:
		return e.Armor
	case resource.SlotHead:
		return e.Head
	case resource.SlotAccessory:
		return e.Accessory
	case resource.SlotBoots:
		return e.Boots
	}
	return ""
}

// With returns a copy with slot set to id.
func (e Equipment) With(slot resource.EquipSlot, id string) Equipment {
	switch slot {
	case resource.SlotWeapon:
		e.Weapon = id
	case resource.SlotArmor:
		e.Armor = id
	case resource.SlotHead:
		e.Head = id
	case resource.SlotAccessory:
		e.Accessory = id
	case resource.SlotBoots:
		e.Boots = id
	}
	return e
}

// Occupied returns the non-empty occupants in slot order.
func (e Equipment) Occupied() []string {
	var ids []string
	for _, slot := range resource.EquipSlots {
		if id := e.Get(slot); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// SaveData is a persisted snapshot of a session plus display metadata.
type SaveData struct {
	ID                 string     `json:"id"`
	SlotIndex          int        `json:"slotIndex"`
	StoryID            string     `json:"storyId"`
	StoryTitle         string     `json:"storyTitle"`
	GameState          *GameState `json:"gameState"`
	Timestamp          time.Time  `json:"timestamp"`
	PlayTime           int64      `json:"playTime"`
	CurrentNodePreview string     `json:"currentNodePreview"`
}

// FormattedPlayTime renders PlayTime (seconds) as HH:MM:SS.
func (d SaveData) FormattedPlayTime() string {
	return FormatPlayTime(d.PlayTime)
}

func FormatPlayTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
