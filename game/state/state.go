// Package state holds the mutable, serializable per-session game state.
package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kasuganosora/novelsim/resource"
)

// CurrentLocationVar is the variable MoveToLocation writes.
const CurrentLocationVar = "current_location"

// InventorySlot is one inventory entry. Slots with an InstanceID never stack.
type InventorySlot struct {
	ItemID     string `json:"itemId"`
	Quantity   int    `json:"quantity"`
	InstanceID string `json:"instanceId,omitempty"`
}

// IsInstance reports whether the slot holds a unique item instance.
func (s InventorySlot) IsInstance() bool { return s.InstanceID != "" }

type HistoryType string

const (
	HistoryNode   HistoryType = "NODE"
	HistoryChoice HistoryType = "CHOICE"
	HistoryBattle HistoryType = "BATTLE"
)

type HistoryItem struct {
	NodeID    string      `json:"nodeId"`
	Type      HistoryType `json:"type"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// StringSet is a set of strings that serializes as a sorted JSON array.
type StringSet map[string]struct{}

func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	set := make(StringSet, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	*s = set
	return nil
}

// GameState is the single authoritative mutable object of a play session.
type GameState struct {
	StoryID                string                           `json:"storyId"`
	CurrentNodeID          string                           `json:"currentNodeId"`
	PlayerStats            resource.CharacterStats          `json:"playerStats"`
	Inventory              []InventorySlot                  `json:"inventory"`
	ItemInstances          map[string]resource.ItemInstance `json:"itemInstances"`
	Equipment              Equipment                        `json:"equipment"`
	Variables              map[string]string                `json:"variables"`
	Gold                   int                              `json:"gold"`
	PlayTime               int64                            `json:"playTime"`
	Flags                  StringSet                        `json:"flags"`
	CollectedClues         StringSet                        `json:"collectedClues"`
	TriggeredEvents        StringSet                        `json:"triggeredEvents"`
	FactionReputations     map[string]int                   `json:"factionReputations"`
	CharacterRelationships map[string]int                   `json:"characterRelationships"`
	EntityVariables        map[string]string                `json:"entityVariables"`
	History                []HistoryItem                    `json:"history"`
}

// New returns an empty GameState for storyID with default player stats.
func New(storyID string) *GameState {
	s := &GameState{StoryID: storyID, PlayerStats: resource.DefaultStats()}
	s.ensureMaps()
	return s
}

func (s *GameState) ensureMaps() {
	if s.ItemInstances == nil {
		s.ItemInstances = map[string]resource.ItemInstance{}
	}
	if s.Variables == nil {
		s.Variables = map[string]string{}
	}
	if s.Flags == nil {
		s.Flags = StringSet{}
	}
	if s.CollectedClues == nil {
		s.CollectedClues = StringSet{}
	}
	if s.TriggeredEvents == nil {
		s.TriggeredEvents = StringSet{}
	}
	if s.FactionReputations == nil {
		s.FactionReputations = map[string]int{}
	}
	if s.CharacterRelationships == nil {
		s.CharacterRelationships = map[string]int{}
	}
	if s.EntityVariables == nil {
		s.EntityVariables = map[string]string{}
	}
}

func (s *GameState) UnmarshalJSON(data []byte) error {
	type plain GameState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = GameState(p)
	s.ensureMaps()
	return nil
}

// Clone returns a deep copy.
func (s *GameState) Clone() *GameState {
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("state: clone: %v", err))
	}
	var out GameState
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("state: clone: %v", err))
	}
	return &out
}

// EntityKey builds the "type:id:key" key used by EntityVariables.
func EntityKey(typ, id, key string) string {
	return typ + ":" + id + ":" + key
}

// AddHistory appends a history entry; empty text is not recorded.
func (s *GameState) AddHistory(nodeID string, typ HistoryType, text string, at time.Time) {
	if text == "" {
		return
	}
	s.History = append(s.History, HistoryItem{NodeID: nodeID, Type: typ, Text: text, Timestamp: at})
}

// ItemCount sums the quantity of every slot holding itemID.
func (s *GameState) ItemCount(itemID string) int {
	n := 0
	for _, slot := range s.Inventory {
		if slot.ItemID == itemID {
			n += slot.Quantity
		}
	}
	return n
}
