package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/novelsim/resource"
)

// SampleStoryID is the id of SampleStory.
const SampleStoryID = "demo"

// SampleStory returns a small story touching every node type:
//
//	n1 (CHOICE) --take--> n2 (DIALOGUE) --> check (CONDITION has_item:potion)
//	   |                                      |-- true  --> fight (BATTLE slime) --> won / lost
//	   |                                      `-- false --> n1
//	   |--gate (needs key)--> gate (DIALOGUE) --> end
//	   `--pay--> pay (ITEM_ACTION REMOVE coin x3) --> gate | n2
//	loop_a (CONDITION) <-> loop_b (VARIABLE_ACTION) never settles.
func SampleStory() *resource.Story {
	return &resource.Story{
		ID:          SampleStoryID,
		Title:       "Demo",
		Description: "A short test story.",
		Author:      "tests",
		Version:     "1",
		StartNodeID: "n1",
		InitialVariables: map[string]string{
			"courage": "3",
		},
		Nodes: map[string]resource.StoryNode{
			"n1": {ID: "n1", Type: resource.NodeChoice, LocationID: "loc_town", Content: resource.ChoiceContent{
				Prompt: "Where to?",
				Options: []resource.ChoiceOption{
					{ID: "take", Text: "Take the potion", NextNodeID: "n2", Effects: resource.Effects{
						resource.GiveItem{ItemID: "potion", Quantity: 1},
					}},
					{ID: "gate", Text: "Open the gate", Condition: "has_item:key", NextNodeID: "gate"},
					{ID: "pay", Text: "Pay the toll", NextNodeID: "pay"},
				},
			}},
			"n2": {ID: "n2", Type: resource.NodeDialogue, LocationID: "loc_town", Connections: []string{"check"}, Content: resource.DialogueContent{
				Speaker: "Guide", Text: "You pocket the potion.",
			}},
			"check": {ID: "check", Type: resource.NodeCondition, Content: resource.ConditionContent{
				Expression: "has_item:potion", TrueNextNodeID: "fight", FalseNextNodeID: "n1",
			}},
			"fight": {ID: "fight", Type: resource.NodeBattle, LocationID: "loc_forest", Content: resource.BattleContent{
				EnemyID: "slime", EnemyName: "Slime", WinNextNodeID: "won", LoseNextNodeID: "lost",
			}},
			"ambush": {ID: "ambush", Type: resource.NodeBattle, Content: resource.BattleContent{
				EnemyID: "bandit", EnemyName: "Bandit", WinNextNodeID: "won", LoseNextNodeID: "lost",
				EnemyStats: resource.CharacterStats{MaxHP: 1, CurrentHP: 1, Attack: 1, Defense: 0, Speed: 1, Level: 1},
			}},
			"won": {ID: "won", Type: resource.NodeEnd, Content: resource.EndingContent{
				Title: "Victory", Description: "The slime is gone.", EndingType: resource.EndingGood,
			}},
			"lost": {ID: "lost", Type: resource.NodeEnd, Content: resource.EndingContent{
				Title: "Retreat", Description: "You flee home.", EndingType: resource.EndingBad,
			}},
			"gate": {ID: "gate", Type: resource.NodeDialogue, Connections: []string{"won"}, Content: resource.DialogueContent{
				Speaker: "Gatekeeper", Text: "The gate creaks open.",
			}},
			"pay": {ID: "pay", Type: resource.NodeItemAction, Content: resource.ItemActionContent{
				ItemID: "coin", ItemName: "Coin", Quantity: 3, Action: resource.ItemActionRemove,
				NextNodeID: "gate", FailNextNodeID: "n2",
			}},
			"loop_a": {ID: "loop_a", Type: resource.NodeCondition, Content: resource.ConditionContent{
				Expression: "flag:never", TrueNextNodeID: "won", FalseNextNodeID: "loop_b",
			}},
			"loop_b": {ID: "loop_b", Type: resource.NodeVariableAction, Content: resource.VariableActionContent{
				VariableName: "spins", Operation: resource.OpAdd, Value: "1", NextNodeID: "loop_a",
			}},
		},
		Characters: []resource.Character{
			{ID: "hero_1", Name: "Aria", Description: "tired.", Variables: map[string]string{"loyalty": "40"}},
			{ID: "char_bea", Name: "Bea", Description: "cheerful."},
		},
		Items: []resource.Item{
			{ID: "potion", Name: "Potion", Type: resource.ItemConsumable, Effect: resource.Heal{HP: 30}},
			{ID: "sword", Name: "Sword", Type: resource.ItemEquipment, Effect: resource.EquipmentBonus{Slot: resource.SlotWeapon, AttackBonus: 5}},
			{ID: "key", Name: "Key", Type: resource.ItemKey},
			{ID: "coin", Name: "Coin", Type: resource.ItemMaterial},
			{ID: "item_lamp", Name: "Lamp", Type: resource.ItemEquipment, Effect: resource.EquipmentBonus{Slot: resource.SlotAccessory, DefenseBonus: 1}},
		},
		Locations: []resource.Location{
			{ID: "loc_town", Name: "Town", Description: "Quiet streets.", NPCs: []string{"char_bea"}, Items: []string{"item_lamp"}, ConnectedLocationIDs: []string{"loc_forest"}},
			{ID: "loc_forest", Name: "Forest", Description: "Tall pines.", Enemies: []string{"slime"}, ConnectedLocationIDs: []string{"loc_town"}},
			{ID: "loc_cave", Name: "Cave", Description: "Dripping water."},
		},
		Clues: []resource.Clue{{ID: "c_map", Name: "Map"}},
		Factions: []resource.Faction{{ID: "guild", Name: "Guild"}},
		CustomItems: []resource.ItemInstance{
			{UID: "sword#1", TemplateID: "sword", Name: "Old Sword", BonusAttack: 2},
		},
		Skills: []resource.Skill{
			{ID: "fire", Name: "Fire", MPCost: 10, Damage: 8},
		},
	}
}

// SampleEvents returns the events of SampleStory.
func SampleEvents() []resource.GameEvent {
	return []resource.GameEvent{
		{ID: "bell", Name: "Bell", Effects: resource.Effects{
			resource.ModifyVariable{VariableName: "bells", Operation: resource.OpAdd, Value: "1"},
		}},
	}
}

// SampleEnemies returns the enemy table of SampleStory.
func SampleEnemies() []resource.Enemy {
	stats := resource.DefaultStats()
	stats.MaxHP, stats.CurrentHP = 1, 1
	stats.Attack, stats.Defense, stats.Luck = 1, 0, 0
	return []resource.Enemy{{
		ID: "slime", Name: "Slime", Stats: stats, ExpReward: 150, GoldReward: 7,
		Drops: []resource.EnemyDrop{{ItemID: "coin", Chance: 1, MinQuantity: 2, MaxQuantity: 2}},
	}}
}

// SampleLoader serves SampleStory, its events and enemies, and a catalogue
// as JSON documents.
func SampleLoader(t testing.TB) resource.MemoryLoader {
	t.Helper()
	doc := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		return string(raw)
	}
	story := SampleStory()
	return resource.MemoryLoader{
		"index.json": doc([]resource.StorySummary{{ID: story.ID, Title: story.Title, Description: story.Description, Author: story.Author}}),
		"stories/" + SampleStoryID + ".json": doc(story),
		"events/" + SampleStoryID + ".json":  doc(SampleEvents()),
		"enemies/" + SampleStoryID + ".json": doc(SampleEnemies()),
	}
}

// SampleRepository is an AssetRepository over SampleLoader without a cache.
func SampleRepository(t testing.TB) *resource.AssetRepository {
	t.Helper()
	return resource.NewAssetRepository(SampleLoader(t), nil, 0, nil)
}
