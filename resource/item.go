package resource

import (
	"encoding/json"
	"time"
)

// DefaultMaxStack is the stack limit for items that do not declare one.
const DefaultMaxStack = 99

type ItemType string

const (
	ItemConsumable ItemType = "CONSUMABLE"
	ItemEquipment  ItemType = "EQUIPMENT"
	ItemKey        ItemType = "KEY_ITEM"
	ItemMaterial   ItemType = "MATERIAL"
)

type EquipSlot string

const (
	SlotWeapon    EquipSlot = "WEAPON"
	SlotArmor     EquipSlot = "ARMOR"
	SlotAccessory EquipSlot = "ACCESSORY"
	SlotHead      EquipSlot = "HEAD"
	SlotBoots     EquipSlot = "BOOTS"
)

// EquipSlots lists every equipment slot in display order.
var EquipSlots = []EquipSlot{SlotWeapon, SlotArmor, SlotHead, SlotAccessory, SlotBoots}

// ItemEffect is what an item does when used or equipped.
type ItemEffect interface {
	Tagged
	isItemEffect()
}

type Heal struct {
	HP int `json:"hp"`
	MP int `json:"mp"`
}

// Buff raises a stat. Duration is carried for presentation; buffs applied
// outside battle are permanent.
type Buff struct {
	Attribute string `json:"attribute"`
	Value     int    `json:"value"`
	Duration  int    `json:"duration"`
}

type EquipmentBonus struct {
	Slot         EquipSlot `json:"slot"`
	AttackBonus  int       `json:"attackBonus"`
	DefenseBonus int       `json:"defenseBonus"`
	HPBonus      int       `json:"hpBonus"`
	MPBonus      int       `json:"mpBonus"`
	SpeedBonus   int       `json:"speedBonus"`
}

func (Heal) Kind() string           { return "Heal" }
func (Buff) Kind() string           { return "Buff" }
func (EquipmentBonus) Kind() string { return "EquipmentBonus" }

func (Heal) isItemEffect()           {}
func (Buff) isItemEffect()           {}
func (EquipmentBonus) isItemEffect() {}

func itemEffectVariant[V ItemEffect]() decoder[ItemEffect] {
	return func(raw json.RawMessage) (ItemEffect, error) {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

var itemEffectDecoders = map[string]decoder[ItemEffect]{
	"Heal":           itemEffectVariant[Heal](),
	"Buff":           itemEffectVariant[Buff](),
	"EquipmentBonus": itemEffectVariant[EquipmentBonus](),
}

// Item is an item template.
type Item struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        ItemType          `json:"type"`
	Effect      ItemEffect        `json:"effect,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	Price       int               `json:"price"`
	Stackable   bool              `json:"stackable"`
	MaxStack    int               `json:"maxStack"`
	Variables   map[string]string `json:"variables,omitempty"`
}

type itemJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        ItemType          `json:"type"`
	Effect      json.RawMessage   `json:"effect,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	Price       int               `json:"price"`
	Stackable   bool              `json:"stackable"`
	MaxStack    int               `json:"maxStack"`
	Variables   map[string]string `json:"variables,omitempty"`
}

func (it Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Type:        it.Type,
		Icon:        it.Icon,
		Price:       it.Price,
		Stackable:   it.Stackable,
		MaxStack:    it.MaxStack,
		Variables:   it.Variables,
	}
	if it.Effect != nil {
		raw, err := encodeTagged(it.Effect.Kind(), it.Effect)
		if err != nil {
			return nil, err
		}
		out.Effect = raw
	}
	return json.Marshal(out)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = Item{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Type:        raw.Type,
		Icon:        raw.Icon,
		Price:       raw.Price,
		Stackable:   raw.Stackable,
		MaxStack:    raw.MaxStack,
		Variables:   raw.Variables,
	}
	if isNull(raw.Effect) {
		return nil
	}
	eff, err := decodeTagged(raw.Effect, itemEffectDecoders)
	if err != nil {
		return err
	}
	it.Effect = eff
	return nil
}

// StackLimit returns MaxStack, or DefaultMaxStack when unset.
func (it Item) StackLimit() int {
	if it.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return it.MaxStack
}

// Bonus returns the item's equipment bonus, if it has one.
func (it Item) Bonus() (EquipmentBonus, bool) {
	b, ok := it.Effect.(EquipmentBonus)
	return b, ok
}

// ItemInstance is a uniquely identified, non-stackable item generated from a
// template. Instance bonuses add to the template's own bonus.
type ItemInstance struct {
	UID          string    `json:"uid"`
	TemplateID   string    `json:"templateId"`
	Name         string    `json:"name"`
	Level        int       `json:"level"`
	Rarity       string    `json:"rarity,omitempty"`
	BonusAttack  int       `json:"bonusAttack"`
	BonusDefense int       `json:"bonusDefense"`
	BonusHP      int       `json:"bonusHp"`
	BonusMP      int       `json:"bonusMp"`
	BonusSpeed   int       `json:"bonusSpeed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ---- Combat ----

type CharacterStats struct {
	MaxHP          int `json:"maxHp"`
	CurrentHP      int `json:"currentHp"`
	MaxMP          int `json:"maxMp"`
	CurrentMP      int `json:"currentMp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	Speed          int `json:"speed"`
	Luck           int `json:"luck"`
	Level          int `json:"level"`
	Exp            int `json:"exp"`
	ExpToNextLevel int `json:"expToNextLevel"`
}

// DefaultStats returns the stats a new player starts with.
func DefaultStats() CharacterStats {
	return CharacterStats{
		MaxHP:          100,
		CurrentHP:      100,
		MaxMP:          50,
		CurrentMP:      50,
		Attack:         10,
		Defense:        5,
		Speed:          10,
		Luck:           5,
		Level:          1,
		ExpToNextLevel: 100,
	}
}

type EnemyDrop struct {
	ItemID      string  `json:"itemId"`
	Chance      float64 `json:"chance"`
	MinQuantity int     `json:"minQuantity"`
	MaxQuantity int     `json:"maxQuantity"`
}

// UnmarshalJSON defaults omitted quantities to 1. An explicit zero minimum
// is kept, so such a drop can roll nothing.
func (d *EnemyDrop) UnmarshalJSON(data []byte) error {
	type plain EnemyDrop
	p := plain{MinQuantity: 1, MaxQuantity: 1}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = EnemyDrop(p)
	return nil
}

// Rewards of an enemy that does not declare its own.
const (
	DefaultExpReward  = 10
	DefaultGoldReward = 5
)

type Enemy struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Stats       CharacterStats `json:"stats"`
	Skills      []string       `json:"skills,omitempty"`
	Drops       []EnemyDrop    `json:"drops,omitempty"`
	ExpReward   int            `json:"expReward"`
	GoldReward  int            `json:"goldReward"`
}

// UnmarshalJSON fills omitted stats and rewards with their defaults.
func (e *Enemy) UnmarshalJSON(data []byte) error {
	type plain Enemy
	p := plain{Stats: DefaultStats(), ExpReward: DefaultExpReward, GoldReward: DefaultGoldReward}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Enemy(p)
	return nil
}

// Skill is a battle skill. Formula, when set, replaces the attack+damage
// rule, e.g. "a.atk*2 - b.def + 10".
type Skill struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MPCost      int    `json:"mpCost"`
	Damage      int    `json:"damage"`
	Heal        int    `json:"heal"`
	Formula     string `json:"formula,omitempty"`
}
