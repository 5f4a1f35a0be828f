package world

import (
	"strings"

	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

// InteractionType groups rules for presentation.
type InteractionType string

const (
	InteractionObserve  InteractionType = "OBSERVE"
	InteractionInteract InteractionType = "INTERACT"
	InteractionCombat   InteractionType = "COMBAT"
	InteractionMovement InteractionType = "MOVEMENT"
	InteractionTalk     InteractionType = "TALK"
	InteractionTake     InteractionType = "TAKE"
)

// Rule ids with special handling.
const (
	RuleObserve = "observe"
	RuleMoveTo  = "move_to"
)

// GlobalTarget as a ModifyState target writes a plain story variable.
const GlobalTarget = "GLOBAL"

// SimEffect is a state change produced by an interaction.
type SimEffect interface {
	Kind() string
	isSimEffect()
}

// ModifyState sets key on the entity TargetID, or on the interaction's
// target when TargetID is empty.
type ModifyState struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	TargetID string `json:"targetId,omitempty"`
}

// ModifyVariable changes a story variable. Operation is ADD, SUB or SET;
// anything else is SET.
type ModifyVariable struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Operation string `json:"operation"`
}

type GiveItem struct {
	ItemID string `json:"itemId"`
	Count  int    `json:"count"`
}

type RemoveItem struct {
	ItemID string `json:"itemId"`
	Count  int    `json:"count"`
}

type TriggerEvent struct {
	EventID string `json:"eventId"`
}

// ShowMessage replaces the rule's description as the result text.
type ShowMessage struct {
	Message string `json:"message"`
}

func (ModifyState) Kind() string    { return "ModifyState" }
func (ModifyVariable) Kind() string { return "ModifyVariable" }
func (GiveItem) Kind() string       { return "GiveItem" }
func (RemoveItem) Kind() string     { return "RemoveItem" }
func (TriggerEvent) Kind() string   { return "TriggerEvent" }
func (ShowMessage) Kind() string    { return "ShowMessage" }

func (ModifyState) isSimEffect()    {}
func (ModifyVariable) isSimEffect() {}
func (GiveItem) isSimEffect()       {}
func (RemoveItem) isSimEffect()     {}
func (TriggerEvent) isSimEffect()   {}
func (ShowMessage) isSimEffect()    {}

// InteractionRule is one thing the player can do with an object.
// Condition may use this: or @target: to refer to the object's own
// entity variables.
type InteractionRule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Condition   string          `json:"condition,omitempty"`
	Effects     []SimEffect     `json:"-"`
	Type        InteractionType `json:"type"`
	Priority    int             `json:"priority"`
}

// ObjectDefinition describes an interactive object. Definitions are derived
// from story entities on every query and never stored.
type ObjectDefinition struct {
	ID           string
	Name         string
	Description  string
	DefaultState map[string]string
	Interactions []InteractionRule
	Tags         []string
}

// SimAction is a rule bound to the object it applies to.
type SimAction struct {
	Rule       InteractionRule `json:"rule"`
	TargetID   string          `json:"targetId"`
	TargetName string          `json:"targetName"`
}

// FindDefinition derives the definition of the character, item or location
// with the given id, in that order.
func FindDefinition(story *resource.Story, id string) (ObjectDefinition, bool) {
	if c, ok := story.Character(id); ok {
		return characterDefinition(c), true
	}
	if it, ok := story.Item(id); ok {
		return itemDefinition(it), true
	}
	if l, ok := story.Location(id); ok {
		return locationDefinition(l), true
	}
	return ObjectDefinition{}, false
}

func characterDefinition(c resource.Character) ObjectDefinition {
	return ObjectDefinition{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		DefaultState: c.Variables,
		Tags:         c.Tags,
		Interactions: []InteractionRule{
			{
				ID:          "talk",
				Name:        "Talk to",
				Description: "You speak to {target.name}. They seem lost in thought.",
				Type:        InteractionTalk,
				Priority:    10,
			},
			{
				ID:          "observe_char",
				Name:        "Observe",
				Description: "{target.name} looks " + c.Description,
				Type:        InteractionObserve,
				Priority:    5,
			},
		},
	}
}

func itemDefinition(it resource.Item) ObjectDefinition {
	rules := []InteractionRule{{
		ID:          "take",
		Name:        "Pick up",
		Description: "You pick up {target.name}.",
		Condition:   "this:isOwned != true",
		Effects: []SimEffect{
			GiveItem{ItemID: it.ID, Count: 1},
			ModifyState{Key: "isOwned", Value: "true", TargetID: it.ID},
			ShowMessage{Message: "You put {target.name} in your bag."},
		},
		Type:     InteractionTake,
		Priority: 10,
	}}
	switch it.Type {
	case resource.ItemConsumable:
		rules = append(rules, InteractionRule{
			ID:          "consume",
			Name:        "Use",
			Description: "You use {target.name}.",
			Condition:   "this:isOwned == true",
			Effects: []SimEffect{
				RemoveItem{ItemID: it.ID, Count: 1},
				ShowMessage{Message: "You use {target.name}. You feel better."},
			},
			Type:     InteractionInteract,
			Priority: 20,
		})
	case resource.ItemEquipment:
		rules = append(rules, InteractionRule{
			ID:          "equip",
			Name:        "Equip",
			Description: "You equip {target.name}.",
			Condition:   "this:isOwned == true && this:isEquipped != true",
			Effects: []SimEffect{
				ModifyState{Key: "isEquipped", Value: "true", TargetID: it.ID},
				ShowMessage{Message: "You put on {target.name}."},
			},
			Type:     InteractionInteract,
			Priority: 20,
		})
	}
	return ObjectDefinition{
		ID:           it.ID,
		Name:         it.Name,
		Description:  it.Description,
		DefaultState: it.Variables,
		Interactions: rules,
	}
}

func locationDefinition(l resource.Location) ObjectDefinition {
	return ObjectDefinition{
		ID:           l.ID,
		Name:         l.Name,
		Description:  l.Description,
		DefaultState: l.Variables,
		Interactions: []InteractionRule{
			{
				ID:          RuleObserve,
				Name:        "Look around",
				Description: "You take a careful look at {target.name}. " + l.Description,
				Type:        InteractionObserve,
				Priority:    -10,
			},
			{
				ID:          RuleMoveTo,
				Name:        "Go to",
				Description: "After a while you arrive at {target.name}.",
				Effects: []SimEffect{
					ShowMessage{Message: "After a while you arrive at {target.name}."},
					ModifyState{Key: state.CurrentLocationVar, Value: l.ID, TargetID: GlobalTarget},
				},
				Type:     InteractionMovement,
				Priority: 0,
			},
		},
	}
}

// InferType guesses an entity's type from its id prefix: char, item, loc,
// enemy, otherwise obj.
func InferType(id string) string {
	for _, p := range []string{"char", "item", "loc", "enemy"} {
		if strings.HasPrefix(id, p) {
			return p
		}
	}
	return "obj"
}

// expandCondition rewrites this: and @target: into the @type:id: prefix of id.
func expandCondition(cond, id string) string {
	prefix := "@" + InferType(id) + ":" + id + ":"
	cond = strings.ReplaceAll(cond, "@target:", prefix)
	return strings.ReplaceAll(cond, "this:", prefix)
}
