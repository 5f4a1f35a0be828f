package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/battle"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
)

// BattleOutcome is the result of a finished battle.
type BattleOutcome struct {
	State  battle.BattleState  `json:"state"`
	Reward battle.Reward       `json:"reward"`
	Levels int                 `json:"levels,omitempty"`
	Node   *resource.StoryNode `json:"node,omitempty"`
}

// StartBattle opens the encounter of the current BATTLE node. Player stats
// are the base stats plus equipment bonuses.
func (e *Engine) StartBattle(ctx context.Context, sess *Session) (*battle.BattleState, error) {
	node, err := sess.CurrentNode()
	if err != nil {
		return nil, err
	}
	bc, ok := node.Content.(resource.BattleContent)
	if !ok {
		return nil, fmt.Errorf("node %q is not a battle: %w", node.ID, ErrNotFound)
	}
	if sess.Battle != nil && !sess.Battle.Finished() {
		return sess.Battle, nil
	}
	st := sess.battle.StartBattle(e.PlayerStats(sess), e.resolveEnemy(sess, bc))
	sess.Battle = &st
	return sess.Battle, nil
}

// resolveEnemy looks the enemy up in the story's enemy table and falls back
// to the node's inline definition.
func (e *Engine) resolveEnemy(sess *Session, bc resource.BattleContent) resource.Enemy {
	if en, ok := sess.Enemies[bc.EnemyID]; ok {
		return en
	}
	if bc.EnemyID != "" {
		e.logger.Warn("enemy not in table, using inline stats",
			zap.String("session_id", sess.ID),
			zap.String("enemy_id", bc.EnemyID))
	}
	stats := bc.EnemyStats
	if stats.MaxHP <= 0 {
		stats = resource.DefaultStats()
	}
	return resource.Enemy{
		ID:         bc.EnemyID,
		Name:       bc.EnemyName,
		Stats:      stats,
		ExpReward:  resource.DefaultExpReward,
		GoldReward: resource.DefaultGoldReward,
	}
}

// BattleTurn plays the player's action and, if the battle continues, the
// enemy's reply. A battle that ends is finished immediately.
func (e *Engine) BattleTurn(ctx context.Context, sess *Session, action battle.Action) (*battle.BattleState, *BattleOutcome, error) {
	if !sess.Loaded() {
		return nil, nil, ErrNotLoaded
	}
	if sess.Battle == nil {
		return nil, nil, ErrNoBattle
	}
	st := sess.battle.ExecutePlayerTurn(*sess.Battle, action, sess.Skills)
	if _, fled := action.(battle.Flee); fled && !st.Finished() {
		// a failed escape still costs the player the round
		st.Phase = battle.PhaseEnemyTurn
	}
	st = sess.battle.ExecuteEnemyTurn(st)
	sess.Battle = &st
	if !st.Finished() {
		return sess.Battle, nil, nil
	}
	out, err := e.FinishBattle(ctx, sess)
	return &st, out, err
}

// FinishBattle folds a finished battle back into the session. A victory
// grants exp, gold and drops; either way hp and mp carry over (clamped to
// the base maximum, at least 1 hp) and the story moves to the win or lose
// node.
func (e *Engine) FinishBattle(ctx context.Context, sess *Session) (*BattleOutcome, error) {
	if !sess.Loaded() {
		return nil, ErrNotLoaded
	}
	if sess.Battle == nil {
		return nil, ErrNoBattle
	}
	st := *sess.Battle
	if !st.Finished() {
		return nil, ErrBattleActive
	}
	node, err := sess.CurrentNode()
	if err != nil {
		return nil, err
	}
	bc, _ := node.Content.(resource.BattleContent)
	gs := sess.State
	out := &BattleOutcome{State: st}

	gs.PlayerStats.CurrentHP = min(max(1, st.PlayerStats.CurrentHP), gs.PlayerStats.MaxHP)
	gs.PlayerStats.CurrentMP = min(max(0, st.PlayerStats.CurrentMP), gs.PlayerStats.MaxMP)

	next := bc.LoseNextNodeID
	text := "defeated by " + st.Enemy.Name
	if st.Phase == battle.PhaseVictory {
		next = bc.WinNextNodeID
		text = "defeated " + st.Enemy.Name
		out.Reward = sess.battle.CalculateReward(st)
		e.grant(ctx, sess, out)
	}
	gs.AddHistory(node.ID, state.HistoryBattle, text, e.clock())
	sess.Battle = nil

	e.logger.Info("battle finished",
		zap.String("session_id", sess.ID),
		zap.String("enemy_id", st.Enemy.ID),
		zap.String("phase", string(st.Phase)),
		zap.Int("turns", st.Turn))
	_ = e.fire(ctx, hook.OnBattleFinish, hook.BattleFinished{
		Scope:   sess.Scope(),
		EnemyID: st.Enemy.ID,
		Phase:   string(st.Phase),
		Exp:     out.Reward.Exp,
		Gold:    out.Reward.Gold,
	})

	if next == "" && len(node.Connections) > 0 {
		next = node.Connections[0]
	}
	if next == "" {
		return out, nil
	}
	out.Node, err = e.NavigateToNode(ctx, sess, next)
	return out, err
}

func (e *Engine) grant(ctx context.Context, sess *Session, out *BattleOutcome) {
	gs := sess.State
	gs.Gold += out.Reward.Gold
	before := gs.PlayerStats.Level
	gs.PlayerStats, out.Levels = battle.GainExp(gs.PlayerStats, out.Reward.Exp)
	for _, d := range out.Reward.Drops {
		_ = e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: d.ItemID, Quantity: d.Quantity})
	}
	if out.Levels > 0 {
		e.logger.Info("level up",
			zap.String("session_id", sess.ID),
			zap.Int("from", before),
			zap.Int("to", gs.PlayerStats.Level))
		_ = e.fire(ctx, hook.OnLevelUp, hook.LevelUp{Scope: sess.Scope(), Level: gs.PlayerStats.Level})
	}
}
