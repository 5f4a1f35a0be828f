package hook

import "github.com/kasuganosora/novelsim/resource"

// Event names.
const (
	BeforeChoice    = "before_choice"
	OnSessionStart  = "session_start"
	OnNodeEnter     = "node_enter"
	AfterChoice     = "choice_processed"
	OnEffectApplied = "effect_applied"
	OnItemUsed      = "item_used"
	OnBattleFinish  = "battle_finished"
	OnLevelUp       = "level_up"
	OnGameSaved     = "game_saved"
)

// Events lists every event name, in the order above.
var Events = []string{
	BeforeChoice, OnSessionStart, OnNodeEnter, AfterChoice, OnEffectApplied,
	OnItemUsed, OnBattleFinish, OnLevelUp, OnGameSaved,
}

// Scope identifies the session an event belongs to.
type Scope struct {
	SessionID string `json:"sessionId"`
	StoryID   string `json:"storyId"`
}

type SessionStarted struct {
	Scope
	FromSave string `json:"fromSave,omitempty"`
}

type NodeEntered struct {
	Scope
	NodeID   string            `json:"nodeId"`
	NodeType resource.NodeType `json:"nodeType"`
}

// ChoiceMade is fired as BeforeChoice (vetoable) and AfterChoice.
type ChoiceMade struct {
	Scope
	NodeID   string `json:"nodeId"`
	OptionID string `json:"optionId"`
	Text     string `json:"text"`
}

type EffectApplied struct {
	Scope
	Effect resource.Effect `json:"-"`
	Kind   string          `json:"kind"`
}

type ItemUsed struct {
	Scope
	ItemID     string `json:"itemId"`
	InstanceID string `json:"instanceId,omitempty"`
	Action     string `json:"action"`
}

type BattleFinished struct {
	Scope
	EnemyID string `json:"enemyId"`
	Phase   string `json:"phase"`
	Exp     int    `json:"exp"`
	Gold    int    `json:"gold"`
}

type LevelUp struct {
	Scope
	Level int `json:"level"`
}

type GameSaved struct {
	Scope
	SaveID string `json:"saveId"`
	Slot   int    `json:"slot"`
}

// Scoped is implemented by every payload above.
type Scoped interface {
	EventScope() Scope
}

func (s Scope) EventScope() Scope { return s }
