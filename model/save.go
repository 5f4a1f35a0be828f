package model

import (
	"time"

	"gorm.io/datatypes"
)

// SaveRecord is one save slot of one player. State holds the serialized
// game state; the other columns are display metadata.
type SaveRecord struct {
	ID         string         `gorm:"primaryKey;size:64" json:"id"`
	OwnerID    string         `gorm:"uniqueIndex:idx_save_owner_slot;size:64;not null" json:"owner_id"`
	SlotIndex  int            `gorm:"uniqueIndex:idx_save_owner_slot;not null" json:"slot_index"`
	StoryID    string         `gorm:"index;size:64;not null" json:"story_id"`
	StoryTitle string         `gorm:"size:128" json:"story_title"`
	State      datatypes.JSON `gorm:"not null" json:"state"`
	PlayTime   int64          `json:"play_time"`
	Preview    string         `gorm:"type:text" json:"preview"`
	SavedAt    time.Time      `gorm:"index" json:"saved_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
