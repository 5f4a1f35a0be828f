package resource

import "encoding/json"

// NodeContent is the type-matched payload of a StoryNode.
type NodeContent interface {
	Tagged
	isNodeContent()
}

type DialogueContent struct {
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
	Portrait   string `json:"portrait,omitempty"`
	Background string `json:"background,omitempty"`
}

type ChoiceContent struct {
	Prompt  string         `json:"prompt"`
	Options []ChoiceOption `json:"options"`
}

type ConditionContent struct {
	Expression      string `json:"expression"`
	TrueNextNodeID  string `json:"trueNextNodeId"`
	FalseNextNodeID string `json:"falseNextNodeId"`
}

type BattleContent struct {
	EnemyID        string         `json:"enemyId"`
	EnemyName      string         `json:"enemyName"`
	EnemyStats     CharacterStats `json:"enemyStats"`
	WinNextNodeID  string         `json:"winNextNodeId"`
	LoseNextNodeID string         `json:"loseNextNodeId"`
}

// ItemActionKind selects what an ITEM_ACTION node does.
type ItemActionKind string

const (
	ItemActionGive   ItemActionKind = "GIVE"
	ItemActionRemove ItemActionKind = "REMOVE"
	ItemActionCheck  ItemActionKind = "CHECK"
)

// ItemActionContent gives, removes or checks for an item. FailNextNodeID is
// followed when a CHECK or REMOVE finds too few items; empty means stay.
type ItemActionContent struct {
	ItemID         string         `json:"itemId"`
	ItemName       string         `json:"itemName"`
	Quantity       int            `json:"quantity"`
	Action         ItemActionKind `json:"action"`
	NextNodeID     string         `json:"nextNodeId"`
	FailNextNodeID string         `json:"failNextNodeId,omitempty"`
}

type VariableActionContent struct {
	VariableName string            `json:"variableName"`
	Operation    VariableOperation `json:"operation"`
	Value        string            `json:"value"`
	NextNodeID   string            `json:"nextNodeId"`
}

type EndingType string

const (
	EndingGood   EndingType = "GOOD"
	EndingNormal EndingType = "NORMAL"
	EndingBad    EndingType = "BAD"
	EndingSecret EndingType = "SECRET"
)

type EndingContent struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	EndingType  EndingType `json:"endingType"`
	ExpReward   int        `json:"expReward"`
	GoldReward  int        `json:"goldReward"`
}

func (DialogueContent) Kind() string       { return "Dialogue" }
func (ChoiceContent) Kind() string         { return "Choice" }
func (ConditionContent) Kind() string      { return "Condition" }
func (BattleContent) Kind() string         { return "Battle" }
func (ItemActionContent) Kind() string     { return "ItemAction" }
func (VariableActionContent) Kind() string { return "VariableAction" }
func (EndingContent) Kind() string         { return "Ending" }

func (DialogueContent) isNodeContent()       {}
func (ChoiceContent) isNodeContent()         {}
func (ConditionContent) isNodeContent()      {}
func (BattleContent) isNodeContent()         {}
func (ItemActionContent) isNodeContent()     {}
func (VariableActionContent) isNodeContent() {}
func (EndingContent) isNodeContent()         {}

func contentVariant[V NodeContent]() decoder[NodeContent] {
	return func(raw json.RawMessage) (NodeContent, error) {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var nodeContentDecoders = map[string]decoder[NodeContent]{
	"Dialogue":       contentVariant[DialogueContent](),
	"Choice":         contentVariant[ChoiceContent](),
	"Condition":      contentVariant[ConditionContent](),
	"Battle":         contentVariant[BattleContent](),
	"ItemAction":     contentVariant[ItemActionContent](),
	"VariableAction": contentVariant[VariableActionContent](),
	"Ending":         contentVariant[EndingContent](),
}
