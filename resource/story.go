// Package resource holds the authored, read-only content of a story and the
// collaborators that fetch it: asset loaders and the story repository.
package resource

import (
	"encoding/json"
	"fmt"
)

// ---- Story graph ----

// NodeType tags the payload carried by a StoryNode.
type NodeType string

const (
	NodeDialogue       NodeType = "DIALOGUE"
	NodeChoice         NodeType = "CHOICE"
	NodeBattle         NodeType = "BATTLE"
	NodeCondition      NodeType = "CONDITION"
	NodeItemAction     NodeType = "ITEM_ACTION"
	NodeVariableAction NodeType = "VARIABLE_ACTION"
	NodeEnd            NodeType = "END"
)

// Story is immutable authored content, loaded once per play session.
type Story struct {
	ID               string               `json:"id"`
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	Author           string               `json:"author"`
	Version          string               `json:"version"`
	StartNodeID      string               `json:"startNodeId"`
	Nodes            map[string]StoryNode `json:"nodes"`
	InitialVariables map[string]string    `json:"initialVariables"`
	Characters       []Character          `json:"characters"`
	Items            []Item               `json:"items"`
	Locations        []Location           `json:"locations"`
	Clues            []Clue               `json:"clues"`
	Factions         []Faction            `json:"factions"`
	CustomItems      []ItemInstance       `json:"customItems"`
	Skills           []Skill              `json:"skills"`
}

// Node returns the node with the given id.
func (s *Story) Node(id string) (StoryNode, bool) {
	n, ok := s.Nodes[id]
	return n, ok
}

// Item returns the item template with the given id.
func (s *Story) Item(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Story) Character(id string) (Character, bool) {
	for _, c := range s.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return Character{}, false
}

func (s *Story) Location(id string) (Location, bool) {
	for _, l := range s.Locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

// StoryNode is one unit of authored content.
type StoryNode struct {
	ID          string      `json:"id"`
	Type        NodeType    `json:"type"`
	Content     NodeContent `json:"content"`
	LocationID  string      `json:"locationId,omitempty"`
	Connections []string    `json:"connections,omitempty"`
}

type storyNodeJSON struct {
	ID          string          `json:"id"`
	Type        NodeType        `json:"type"`
	Content     json.RawMessage `json:"content"`
	LocationID  string          `json:"locationId,omitempty"`
	Connections []string        `json:"connections,omitempty"`
}

func (n StoryNode) MarshalJSON() ([]byte, error) {
	var content json.RawMessage
	if n.Content != nil {
		raw, err := encodeTagged(n.Content.Kind(), n.Content)
		if err != nil {
			return nil, err
		}
		content = raw
	}
	return json.Marshal(storyNodeJSON{
		ID:          n.ID,
		Type:        n.Type,
		Content:     content,
		LocationID:  n.LocationID,
		Connections: n.Connections,
	})
}

func (n *StoryNode) UnmarshalJSON(data []byte) error {
	var raw storyNodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.ID = raw.ID
	n.Type = raw.Type
	n.LocationID = raw.LocationID
	n.Connections = raw.Connections
	n.Content = nil
	if isNull(raw.Content) {
		return nil
	}
	content, err := decodeTagged(raw.Content, nodeContentDecoders)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}
	n.Content = content
	return nil
}

// ChoiceOption is one selectable option of a CHOICE node.
type ChoiceOption struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Condition  string  `json:"condition,omitempty"`
	Effects    Effects `json:"effects,omitempty"`
	NextNodeID string  `json:"nextNodeId"`
}

// ---- Entities ----

type Character struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Tags        []string          `json:"tags,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

type Location struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	Description          string            `json:"description"`
	NPCs                 []string          `json:"npcs,omitempty"`
	Items                []string          `json:"items,omitempty"`
	Enemies              []string          `json:"enemies,omitempty"`
	ConnectedLocationIDs []string          `json:"connectedLocationIds,omitempty"`
	Variables            map[string]string `json:"variables,omitempty"`
}

type Clue struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Faction struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GameEvent is an authored event gated by TriggerCondition. A non-repeatable
// event fires at most once per session.
type GameEvent struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	TriggerCondition string  `json:"triggerCondition,omitempty"`
	Effects          Effects `json:"effects,omitempty"`
	IsRepeatable     bool    `json:"isRepeatable"`
}
