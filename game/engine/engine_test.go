package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/battle"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
	"github.com/kasuganosora/novelsim/testutil"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, hooks *hook.Center) *Engine {
	t.Helper()
	return New(Config{
		Repo:   testutil.SampleRepository(t),
		Hooks:  hooks,
		Logger: zap.NewNop(),
		Clock:  func() time.Time { return testNow },
		NewRNG: func() *rand.Rand { return rand.New(rand.NewSource(1)) },
	})
}

func load(t *testing.T, e *Engine) *Session {
	t.Helper()
	sess, node, err := e.LoadStory(context.Background(), testutil.SampleStoryID)
	require.NoError(t, err)
	require.Equal(t, "n1", node.ID)
	return sess
}

func historyOf(s *state.GameState, typ state.HistoryType) []state.HistoryItem {
	var out []state.HistoryItem
	for _, h := range s.History {
		if h.Type == typ {
			out = append(out, h)
		}
	}
	return out
}

// stubRepo serves a single in-memory story.
type stubRepo struct{ story *resource.Story }

func (r stubRepo) StoryByID(_ context.Context, id string) (*resource.Story, error) {
	if r.story == nil || r.story.ID != id {
		return nil, resource.ErrNotFound
	}
	return r.story, nil
}
func (stubRepo) Events(context.Context, string) ([]resource.GameEvent, error) { return nil, nil }
func (stubRepo) Enemies(context.Context, string) ([]resource.Enemy, error)    { return nil, nil }

func TestLoadStory(t *testing.T) {
	sess := load(t, newTestEngine(t, nil))

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "n1", sess.State.CurrentNodeID)
	assert.Equal(t, "3", sess.State.Variables["courage"])
	assert.Contains(t, sess.State.ItemInstances, "sword#1")
	assert.Contains(t, sess.Events, "bell")
	assert.Contains(t, sess.Enemies, "slime")
	assert.Contains(t, sess.Skills, "fire")
	assert.Empty(t, sess.State.History)
}

func TestLoadStory_NotFound(t *testing.T) {
	e := newTestEngine(t, nil)
	_, _, err := e.LoadStory(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	broken := testutil.SampleStory()
	broken.StartNodeID = "missing"
	e = New(Config{Repo: stubRepo{story: broken}})
	_, _, err = e.LoadStory(context.Background(), broken.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessChoice_GivesItemAndNavigates(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)

	node, err := e.ChooseOption(context.Background(), sess, "take")
	require.NoError(t, err)
	assert.Equal(t, "n2", node.ID)
	assert.Equal(t, []state.InventorySlot{{ItemID: "potion", Quantity: 1}}, sess.State.Inventory)

	choices := historyOf(sess.State, state.HistoryChoice)
	require.Len(t, choices, 1)
	assert.Equal(t, state.HistoryItem{NodeID: "n1", Type: state.HistoryChoice, Text: "Take the potion", Timestamp: testNow}, choices[0])

	nodes := historyOf(sess.State, state.HistoryNode)
	require.Len(t, nodes, 1)
	assert.Equal(t, "You pocket the potion.", nodes[0].Text)
}

func TestProcessChoice_ConditionNotMet(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)

	_, err := e.ChooseOption(context.Background(), sess, "gate")
	assert.ErrorIs(t, err, ErrConditionNotMet)
	assert.Equal(t, "n1", sess.State.CurrentNodeID)
	assert.Empty(t, sess.State.History)

	assert.Len(t, e.AvailableOptions(sess), 2)
	require.NoError(t, e.ApplyEffect(context.Background(), sess, resource.GiveItem{ItemID: "key", Quantity: 1}))
	assert.Len(t, e.AvailableOptions(sess), 3)

	node, err := e.ChooseOption(context.Background(), sess, "gate")
	require.NoError(t, err)
	assert.Equal(t, "gate", node.ID)

	_, err = e.ChooseOption(context.Background(), sess, "gate")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessChoice_UnknownTargetAppliesNothing(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)

	opt := resource.ChoiceOption{ID: "wander", Text: "Wander", NextNodeID: "SIM_CONTINUE", Effects: resource.Effects{
		resource.GiveItem{ItemID: "potion", Quantity: 1},
	}}
	for i := 0; i < 2; i++ {
		_, err := e.ProcessChoice(context.Background(), sess, opt)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Zero(t, sess.State.ItemCount("potion"))
	assert.Empty(t, sess.State.History)
	assert.Equal(t, "n1", sess.State.CurrentNodeID)
}

func TestProcessChoice_Unloaded(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.ProcessChoice(context.Background(), nil, resource.ChoiceOption{NextNodeID: "n2"})
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = e.ProcessChoice(context.Background(), &Session{}, resource.ChoiceOption{NextNodeID: "n2"})
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, e.EvaluateCondition(nil, "courage > 1"))
}

func TestProcessChoice_VetoedByHook(t *testing.T) {
	hooks := hook.NewCenter(nil)
	var after int
	hooks.Register(hook.BeforeChoice, 0, "veto", func(_ context.Context, _ string, d any) (any, error) {
		if d.(hook.ChoiceMade).OptionID == "take" {
			return d, hook.ErrInterrupt
		}
		return d, nil
	})
	hooks.Register(hook.AfterChoice, 0, "count", func(_ context.Context, _ string, d any) (any, error) {
		after++
		return d, nil
	})
	e := newTestEngine(t, hooks)
	sess := load(t, e)

	_, err := e.ChooseOption(context.Background(), sess, "take")
	assert.ErrorIs(t, err, hook.ErrInterrupt)
	assert.Empty(t, sess.State.Inventory)
	assert.Equal(t, 0, after)

	_, err = e.ChooseOption(context.Background(), sess, "pay")
	require.NoError(t, err)
	assert.Equal(t, 1, after)
}

func TestContinueDialogue_ResolvesConditionIntoBattle(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)
	_, err := e.ChooseOption(context.Background(), sess, "take")
	require.NoError(t, err)

	node, err := e.ContinueDialogue(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "fight", node.ID)
	assert.Equal(t, "fight", sess.State.CurrentNodeID)

	nodes := historyOf(sess.State, state.HistoryNode)
	assert.Equal(t, "encountered enemy: Slime", nodes[len(nodes)-1].Text)
}

func TestContinueDialogue_NoConnection(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)
	_, err := e.ContinueDialogue(context.Background(), sess)
	assert.ErrorIs(t, err, ErrNoNextNode)
}

func TestNavigate_ItemAction(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	sess := load(t, e)
	node, err := e.ChooseOption(ctx, sess, "pay")
	require.NoError(t, err)
	assert.Equal(t, "n2", node.ID)

	sess = load(t, e)
	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "coin", Quantity: 5}))
	node, err = e.ChooseOption(ctx, sess, "pay")
	require.NoError(t, err)
	assert.Equal(t, "gate", node.ID)
	assert.Equal(t, 2, sess.State.ItemCount("coin"))
}

func TestNavigate_Errors(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)

	_, err := e.NavigateToNode(context.Background(), sess, "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "n1", sess.State.CurrentNodeID)

	_, err = e.NavigateToNode(context.Background(), sess, "loop_a")
	assert.ErrorIs(t, err, ErrNavigationLoop)
	assert.Equal(t, "32", sess.State.Variables["spins"])
}

func TestApplyEffect_TriggersEvent(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)
	require.NoError(t, e.ApplyEffect(context.Background(), sess, resource.TriggerEvent{EventID: "bell"}))
	require.NoError(t, e.ApplyEffect(context.Background(), sess, resource.TriggerEvent{EventID: "bell"}))
	assert.Equal(t, "1", sess.State.Variables["bells"])
	assert.True(t, sess.State.TriggeredEvents.Has("bell"))
}

func TestFlagsAndPlayTime(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)

	require.NoError(t, e.SetFlag(sess, "gate_open"))
	assert.True(t, e.EvaluateCondition(sess, "flag:gate_open"))
	require.NoError(t, e.ClearFlag(sess, "gate_open"))
	assert.False(t, e.EvaluateCondition(sess, "flag:gate_open"))

	require.NoError(t, e.UpdatePlayTime(sess, 90))
	require.NoError(t, e.UpdatePlayTime(sess, -5))
	assert.Equal(t, int64(90), sess.State.PlayTime)

	assert.ErrorIs(t, e.SetFlag(nil, "x"), ErrNotLoaded)
}

func TestUseItem(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sess := load(t, e)
	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "potion", Quantity: 2}))
	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "sword", Quantity: 1}))
	sess.State.PlayerStats.CurrentHP = 50

	err := e.UseItem(ctx, sess, state.InventorySlot{ItemID: "potion", Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, e.UseItem(ctx, sess, state.InventorySlot{ItemID: "potion", Quantity: 2}))
	assert.Equal(t, 80, sess.State.PlayerStats.CurrentHP)
	assert.Equal(t, 1, sess.State.ItemCount("potion"))

	require.NoError(t, e.UseItem(ctx, sess, state.InventorySlot{ItemID: "potion", Quantity: 1}))
	assert.Equal(t, 100, sess.State.PlayerStats.CurrentHP)
	assert.Equal(t, 0, sess.State.ItemCount("potion"))

	err = e.UseItem(ctx, sess, state.InventorySlot{ItemID: "sword", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)
	err = e.UseItem(ctx, sess, state.InventorySlot{ItemID: "ghost", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestEquipUnequip(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sess := load(t, e)
	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "sword#1"}))
	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "sword", Quantity: 1}))
	before := append([]state.InventorySlot(nil), sess.State.Inventory...)

	instance := state.InventorySlot{ItemID: "sword", Quantity: 1, InstanceID: "sword#1"}
	require.NoError(t, e.EquipItem(ctx, sess, instance))
	assert.Equal(t, "sword#1", sess.State.Equipment.Weapon)
	assert.Equal(t, []state.InventorySlot{{ItemID: "sword", Quantity: 1}}, sess.State.Inventory)
	assert.Equal(t, 17, e.PlayerStats(sess).Attack)
	assert.Equal(t, 10, sess.State.PlayerStats.Attack)

	require.NoError(t, e.EquipItem(ctx, sess, state.InventorySlot{ItemID: "sword", Quantity: 1}))
	assert.Equal(t, "sword", sess.State.Equipment.Weapon)
	assert.Equal(t, []state.InventorySlot{instance}, sess.State.Inventory)

	require.NoError(t, e.UnequipItem(ctx, sess, resource.SlotWeapon))
	assert.ElementsMatch(t, before, sess.State.Inventory)
	assert.Equal(t, state.Equipment{}, sess.State.Equipment)
	require.NoError(t, e.UnequipItem(ctx, sess, resource.SlotWeapon))

	require.NoError(t, e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: "key", Quantity: 1}))
	err := e.EquipItem(ctx, sess, state.InventorySlot{ItemID: "key", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestBattle_VictoryGrantsRewards(t *testing.T) {
	hooks := hook.NewCenter(nil)
	var finished []hook.BattleFinished
	var levels []int
	hooks.Register(hook.OnBattleFinish, 0, "t", func(_ context.Context, _ string, d any) (any, error) {
		finished = append(finished, d.(hook.BattleFinished))
		return d, nil
	})
	hooks.Register(hook.OnLevelUp, 0, "t", func(_ context.Context, _ string, d any) (any, error) {
		levels = append(levels, d.(hook.LevelUp).Level)
		return d, nil
	})
	e := newTestEngine(t, hooks)
	ctx := context.Background()
	sess := load(t, e)
	_, err := e.NavigateToNode(ctx, sess, "fight")
	require.NoError(t, err)

	st, err := e.StartBattle(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Slime", st.Enemy.Name)
	assert.Equal(t, 1, st.EnemyHP)

	after, out, err := e.BattleTurn(ctx, sess, battle.Attack{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, battle.PhaseVictory, after.Phase)
	assert.Equal(t, 150, out.Reward.Exp)
	assert.Equal(t, 1, out.Levels)
	require.NotNil(t, out.Node)
	assert.Equal(t, "won", out.Node.ID)

	gs := sess.State
	assert.Equal(t, 7, gs.Gold)
	assert.Equal(t, 2, gs.PlayerStats.Level)
	assert.Equal(t, 50, gs.PlayerStats.Exp)
	assert.Equal(t, 2, gs.ItemCount("coin"))
	assert.Nil(t, sess.Battle)

	battles := historyOf(gs, state.HistoryBattle)
	require.Len(t, battles, 1)
	assert.Equal(t, "defeated Slime", battles[0].Text)

	require.Len(t, finished, 1)
	assert.Equal(t, "VICTORY", finished[0].Phase)
	assert.Equal(t, []int{2}, levels)
}

func TestBattle_InlineEnemyAndDefeat(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sess := load(t, e)
	_, err := e.NavigateToNode(ctx, sess, "ambush")
	require.NoError(t, err)

	st, err := e.StartBattle(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Bandit", st.Enemy.Name)
	assert.Equal(t, resource.DefaultExpReward, st.Enemy.ExpReward)

	_, err = e.FinishBattle(ctx, sess)
	assert.ErrorIs(t, err, ErrBattleActive)

	sess.Battle.Phase = battle.PhaseDefeat
	sess.Battle.PlayerStats.CurrentHP = 0
	out, err := e.FinishBattle(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "lost", out.Node.ID)
	assert.Equal(t, battle.Reward{}, out.Reward)
	assert.Equal(t, 1, sess.State.PlayerStats.CurrentHP)
	assert.Equal(t, 0, sess.State.Gold)

	_, err = e.FinishBattle(ctx, sess)
	assert.ErrorIs(t, err, ErrNoBattle)
}

func TestBattleTurn_FailedFleeGivesEnemyTurn(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sess := load(t, e)
	_, err := e.NavigateToNode(ctx, sess, "ambush")
	require.NoError(t, err)
	_, err = e.StartBattle(ctx, sess)
	require.NoError(t, err)

	sess.Battle.PlayerStats.Speed = 0
	sess.Battle.Enemy.Stats.Speed = 100
	hp := sess.Battle.PlayerStats.CurrentHP

	after, out, err := e.BattleTurn(ctx, sess, battle.Flee{})
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, battle.PhasePlayerTurn, after.Phase)
	assert.Equal(t, 2, after.Turn)
	assert.Less(t, after.PlayerStats.CurrentHP, hp)
}

func TestStartBattle_NotOnBattleNode(t *testing.T) {
	e := newTestEngine(t, nil)
	sess := load(t, e)
	_, err := e.StartBattle(context.Background(), sess)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = e.BattleTurn(context.Background(), sess, battle.Attack{})
	assert.ErrorIs(t, err, ErrNoBattle)
}

func TestLoadFromSave(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	sess := load(t, e)
	_, err := e.ChooseOption(ctx, sess, "take")
	require.NoError(t, err)

	save := state.SaveData{ID: "save_1_1", StoryID: testutil.SampleStoryID, GameState: sess.State.Clone()}
	restored, node, err := e.LoadFromSave(ctx, save)
	require.NoError(t, err)
	assert.Equal(t, "n2", node.ID)
	assert.NotEqual(t, sess.ID, restored.ID)
	assert.Equal(t, sess.State.Inventory, restored.State.Inventory)
	assert.Equal(t, sess.State.History, restored.State.History)

	restored.State.Variables["courage"] = "99"
	assert.Equal(t, "3", save.GameState.Variables["courage"])

	save.GameState.CurrentNodeID = "deleted"
	_, _, err = e.LoadFromSave(ctx, save)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = e.LoadFromSave(ctx, state.SaveData{ID: "empty"})
	assert.ErrorIs(t, err, ErrNotFound)
}
