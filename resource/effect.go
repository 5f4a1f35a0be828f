package resource

import "encoding/json"

// VariableOperation is the arithmetic applied by ModifyVariable.
type VariableOperation string

const (
	OpSet      VariableOperation = "SET"
	OpAdd      VariableOperation = "ADD"
	OpSubtract VariableOperation = "SUBTRACT"
	OpMultiply VariableOperation = "MULTIPLY"
	OpDivide   VariableOperation = "DIVIDE"
)

// Effect is a state-mutating operation attached to choices and events.
// The set of variants is closed.
type Effect interface {
	Tagged
	isEffect()
}

type ModifyVariable struct {
	VariableName string            `json:"variableName"`
	Operation    VariableOperation `json:"operation"`
	Value        string            `json:"value"`
}

type GiveItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type RemoveItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// ModifyAttribute changes one player stat: hp, mp, attack, defense, speed or exp.
type ModifyAttribute struct {
	Attribute string `json:"attribute"`
	Value     int    `json:"value"`
}

type AddClue struct {
	ClueID string `json:"clueId"`
}

type ModifyReputation struct {
	FactionID string `json:"factionId"`
	Value     int    `json:"value"`
}

type ModifyRelationship struct {
	CharacterID string `json:"characterId"`
	Value       int    `json:"value"`
}

type MoveToLocation struct {
	LocationID string `json:"locationId"`
}

type TriggerEvent struct {
	EventID string `json:"eventId"`
}

// PlaySound is a presentation hint; it has no effect on game state.
type PlaySound struct {
	SoundID string `json:"soundId"`
}

func (ModifyVariable) Kind() string     { return "ModifyVariable" }
func (GiveItem) Kind() string           { return "GiveItem" }
func (RemoveItem) Kind() string         { return "RemoveItem" }
func (ModifyAttribute) Kind() string    { return "ModifyAttribute" }
func (AddClue) Kind() string            { return "AddClue" }
func (ModifyReputation) Kind() string   { return "ModifyReputation" }
func (ModifyRelationship) Kind() string { return "ModifyRelationship" }
func (MoveToLocation) Kind() string     { return "MoveToLocation" }
func (TriggerEvent) Kind() string       { return "TriggerEvent" }
func (PlaySound) Kind() string          { return "PlaySound" }

func (ModifyVariable) isEffect()     {}
func (GiveItem) isEffect()           {}
func (RemoveItem) isEffect()         {}
func (ModifyAttribute) isEffect()    {}
func (AddClue) isEffect()            {}
func (ModifyReputation) isEffect()   {}
func (ModifyRelationship) isEffect() {}
func (MoveToLocation) isEffect()     {}
func (TriggerEvent) isEffect()       {}
func (PlaySound) isEffect()          {}

func effectVariant[V Effect]() decoder[Effect] {
	return func(raw json.RawMessage) (Effect, error) {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var effectDecoders = map[string]decoder[Effect]{
	"ModifyVariable":     effectVariant[ModifyVariable](),
	"GiveItem":           effectVariant[GiveItem](),
	"RemoveItem":         effectVariant[RemoveItem](),
	"ModifyAttribute":    effectVariant[ModifyAttribute](),
	"AddClue":            effectVariant[AddClue](),
	"ModifyReputation":   effectVariant[ModifyReputation](),
	"ModifyRelationship": effectVariant[ModifyRelationship](),
	"MoveToLocation":     effectVariant[MoveToLocation](),
	"TriggerEvent":       effectVariant[TriggerEvent](),
	"PlaySound":          effectVariant[PlaySound](),
}

// Effects is an ordered effect list that round-trips through JSON with a
// "type" discriminator on each element.
type Effects []Effect

func (es Effects) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(es))
	for _, e := range es {
		raw, err := encodeTagged(e.Kind(), e)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (es *Effects) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	parsed := make(Effects, 0, len(raws))
	for _, raw := range raws {
		e, err := decodeTagged(raw, effectDecoders)
		if err != nil {
			return err
		}
		parsed = append(parsed, e)
	}
	*es = parsed
	return nil
}
