package battle

// Action is what the player does on their turn.
type Action interface {
	Kind() string
	isAction()
}

type (
	Attack struct{}
	Defend struct{}
	Flee   struct{}

	UseSkill struct {
		SkillID string `json:"skillId"`
	}

	// UseItem is accepted but has no effect in battle yet.
	UseItem struct {
		ItemID string `json:"itemId"`
	}
)

func (Attack) Kind() string   { return "attack" }
func (Defend) Kind() string   { return "defend" }
func (Flee) Kind() string     { return "flee" }
func (UseSkill) Kind() string { return "skill" }
func (UseItem) Kind() string  { return "item" }

func (Attack) isAction()   {}
func (Defend) isAction()   {}
func (Flee) isAction()     {}
func (UseSkill) isAction() {}
func (UseItem) isAction()  {}

// ParseAction maps a wire action name to an Action. ok is false for unknown names.
func ParseAction(kind, id string) (Action, bool) {
	switch kind {
	case "attack":
		return Attack{}, true
	case "defend":
		return Defend{}, true
	case "flee":
		return Flee{}, true
	case "skill":
		return UseSkill{SkillID: id}, true
	case "item":
		return UseItem{ItemID: id}, true
	}
	return nil, false
}
