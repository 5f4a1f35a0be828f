package condition

import (
	"testing"

	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStory() *resource.Story {
	return &resource.Story{
		ID: "s",
		Characters: []resource.Character{
			{ID: "hero_2", Name: "Bea", Variables: map[string]string{"loyalty": "70", "mood": "calm"}},
		},
		Locations: []resource.Location{
			{ID: "loc_town", Variables: map[string]string{"danger": "2"}},
		},
		Items: []resource.Item{
			{ID: "item_key", Variables: map[string]string{"isOwned": "false"}},
		},
	}
}

func TestEntity_OverrideAndDefault(t *testing.T) {
	s := state.New("s")
	s.EntityVariables["char:hero_1:loyalty"] = "60"
	assert.True(t, Evaluate("@char:hero_1:loyalty > 50", s, nil))

	empty := state.New("s")
	assert.False(t, Evaluate("@char:hero_1:loyalty > 50", empty, nil))
	assert.True(t, Evaluate("@char:hero_1:loyalty == 0", empty, nil))
}

func TestEntity_StaticFallbackOrder(t *testing.T) {
	story := testStory()
	s := state.New("s")

	assert.True(t, Evaluate("@char:hero_2:loyalty >= 70", s, story))
	assert.True(t, Evaluate("@loc:loc_town:danger < 3", s, story))
	assert.True(t, Evaluate("@item:item_key:isOwned == false", s, story))

	s.EntityVariables["char:hero_2:loyalty"] = "10"
	assert.False(t, Evaluate("@char:hero_2:loyalty >= 70", s, story))
}

func TestEntity_TwoCharOperatorsWin(t *testing.T) {
	s := state.New("s")
	s.EntityVariables["char:a:x"] = "5"
	assert.True(t, Evaluate("@char:a:x >= 5", s, nil))
	assert.True(t, Evaluate("@char:a:x <= 5", s, nil))
	assert.False(t, Evaluate("@char:a:x != 5", s, nil))
	assert.False(t, Evaluate("@char:a:x > 5", s, nil))
}

func TestEntity_StringFallback(t *testing.T) {
	story := testStory()
	s := state.New("s")

	assert.True(t, Evaluate(`@char:hero_2:mood == "calm"`, s, story))
	assert.True(t, Evaluate("@char:hero_2:mood != angry", s, story))
	assert.False(t, Evaluate("@char:hero_2:mood > angry", s, story))
	assert.False(t, Evaluate("@char:hero_2:mood < 5", s, story))
}

func TestEntity_Malformed(t *testing.T) {
	s := state.New("s")
	assert.False(t, Evaluate("@char:hero_1 > 5", s, nil))
	assert.False(t, Evaluate("@char:hero_1:loyalty", s, nil))
	assert.False(t, Evaluate("@::x == 0", s, nil))
}

func TestHasItemClueFlag(t *testing.T) {
	s := state.New("s")
	s.Inventory = []state.InventorySlot{{ItemID: "potion", Quantity: 1}, {ItemID: "empty", Quantity: 0}}
	s.CollectedClues["letter"] = struct{}{}
	s.Flags["met_guard"] = struct{}{}

	assert.True(t, Evaluate("has_item:potion", s, nil))
	assert.False(t, Evaluate("has_item:empty", s, nil))
	assert.False(t, Evaluate("has_item:sword", s, nil))
	assert.True(t, Evaluate("has_clue:letter", s, nil))
	assert.False(t, Evaluate("has_clue:map", s, nil))
	assert.True(t, Evaluate("flag:met_guard", s, nil))
	assert.False(t, Evaluate("flag:met_king", s, nil))
}

func TestReputation(t *testing.T) {
	s := state.New("s")
	s.FactionReputations["guild"] = 15

	assert.True(t, Evaluate("reputation:guild >= 10", s, nil))
	assert.False(t, Evaluate("reputation:guild < 10", s, nil))
	assert.True(t, Evaluate("reputation:thieves == 0", s, nil))
	assert.False(t, Evaluate("reputation:guild>=10", s, nil))
	assert.False(t, Evaluate("reputation:guild >= ten", s, nil))
	assert.False(t, Evaluate("reputation:guild ~ 10", s, nil))
}

func TestBareVariables(t *testing.T) {
	s := state.New("s")
	s.Variables["gold"] = "12"
	s.Variables["name"] = "Ari"
	s.Variables["junk"] = "abc"

	assert.True(t, Evaluate("gold > 10", s, nil))
	assert.False(t, Evaluate("gold < 10", s, nil))
	assert.True(t, Evaluate("missing < 1", s, nil))
	assert.True(t, Evaluate("junk < 1", s, nil))
	assert.True(t, Evaluate("name == Ari", s, nil))
	assert.False(t, Evaluate("name == ari", s, nil))
	assert.False(t, Evaluate("missing == ", s, nil))
	assert.False(t, Evaluate("gold > lots", s, nil))
	// ">=" is not bare syntax: the right side becomes "= 10".
	assert.False(t, Evaluate("gold >= 10", s, nil))
}

func TestLogicalOperators(t *testing.T) {
	s := state.New("s")
	s.EntityVariables["item:item_sword:isOwned"] = "true"

	equip := "@item:item_sword:isOwned == true && @item:item_sword:isEquipped != true"
	assert.True(t, Evaluate(equip, s, nil))

	s.EntityVariables["item:item_sword:isEquipped"] = "true"
	assert.False(t, Evaluate(equip, s, nil))

	assert.True(t, Evaluate("flag:a || @item:item_sword:isEquipped == true", s, nil))
	assert.False(t, Evaluate("flag:a || flag:b && @item:item_sword:isOwned == true", s, nil))
	assert.False(t, Evaluate("flag:a && ", s, nil))
}

func TestUnknownAndEmpty(t *testing.T) {
	s := state.New("s")
	assert.False(t, Evaluate("", s, nil))
	assert.False(t, Evaluate("   ", s, nil))
	assert.False(t, Evaluate("whatever", s, nil))
	assert.False(t, Evaluate("flag:x", nil, nil))
}

func TestParse_TypedAST(t *testing.T) {
	e, err := Parse(`@char:hero_1:loyalty >= "50"`)
	require.NoError(t, err)
	assert.Equal(t, EntityCompare{
		Ref: EntityRef{Type: "char", ID: "hero_1", Key: "loyalty"},
		Op:  OpGE,
		Lit: "50",
	}, e)

	e, err = Parse("flag:a && has_item:b")
	require.NoError(t, err)
	assert.Equal(t, And{Terms: []Expr{Flag{Name: "a"}, HasItem{ItemID: "b"}}}, e)

	_, err = Parse("reputation:x >")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestQuotedLiteralsKeepOperators(t *testing.T) {
	e, err := Parse(`@char:a:motto == "a||b" && flag:x`)
	require.NoError(t, err)
	assert.Equal(t, And{Terms: []Expr{
		EntityCompare{Ref: EntityRef{Type: "char", ID: "a", Key: "motto"}, Op: OpEQ, Lit: "a||b"},
		Flag{Name: "x"},
	}}, e)

	e, err = Parse(`@char:a:motto == 'x>=y'`)
	require.NoError(t, err)
	assert.Equal(t, EntityCompare{Ref: EntityRef{Type: "char", ID: "a", Key: "motto"}, Op: OpEQ, Lit: "x>=y"}, e)

	s := state.New("s")
	s.EntityVariables["char:a:motto"] = "a||b"
	assert.True(t, Evaluate(`@char:a:motto == "a||b"`, s, nil))
	assert.True(t, Evaluate(`flag:none || @char:a:motto == "a||b"`, s, nil))
	assert.False(t, Evaluate(`@char:a:motto == "a&&b"`, s, nil))

	s.EntityVariables["char:a:name"] = "O'Neil"
	assert.True(t, Evaluate(`@char:a:name == O'Neil || flag:none`, s, nil))
}
