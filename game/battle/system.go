// Package battle implements one-on-one turn-based combat between the player
// and a single enemy. BattleState is a value: every turn returns a new state
// and leaves its input untouched.
package battle

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/resource"
)

// Phase is the battle state machine position.
type Phase string

const (
	PhasePlayerTurn Phase = "PLAYER_TURN"
	PhaseEnemyTurn  Phase = "ENEMY_TURN"
	PhaseVictory    Phase = "VICTORY"
	PhaseDefeat     Phase = "DEFEAT"
)

// LogType classifies a battle log line for display.
type LogType string

const (
	LogInfo     LogType = "INFO"
	LogDamage   LogType = "DAMAGE"
	LogHeal     LogType = "HEAL"
	LogBuff     LogType = "BUFF"
	LogCritical LogType = "CRITICAL"
)

type LogEntry struct {
	Message string  `json:"message"`
	Type    LogType `json:"type"`
}

// BattleState is the full state of one encounter.
type BattleState struct {
	PlayerStats resource.CharacterStats `json:"playerStats"`
	Enemy       resource.Enemy          `json:"enemy"`
	EnemyHP     int                     `json:"enemyHp"`
	Turn        int                     `json:"turn"`
	Phase       Phase                   `json:"phase"`
	Log         []LogEntry              `json:"log"`
	IsDefending bool                    `json:"isDefending"`
}

// Finished reports whether the battle reached VICTORY or DEFEAT.
func (st BattleState) Finished() bool {
	return st.Phase == PhaseVictory || st.Phase == PhaseDefeat
}

// Config configures a System. Zero values get defaults.
type Config struct {
	RNG    *rand.Rand
	Logger *zap.Logger
}

// System resolves battle turns. It is not safe for concurrent use because
// it owns its random source.
type System struct {
	rng    *rand.Rand
	logger *zap.Logger
}

// NewSystem creates a System.
func NewSystem(cfg Config) *System {
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &System{rng: cfg.RNG, logger: cfg.Logger}
}

// StartBattle opens an encounter on the player's turn.
func (s *System) StartBattle(player resource.CharacterStats, enemy resource.Enemy) BattleState {
	s.logger.Debug("battle started",
		zap.String("enemy_id", enemy.ID),
		zap.Int("enemy_hp", enemy.Stats.CurrentHP))
	return BattleState{
		PlayerStats: player,
		Enemy:       enemy,
		EnemyHP:     enemy.Stats.CurrentHP,
		Turn:        1,
		Phase:       PhasePlayerTurn,
		Log:         []LogEntry{{Message: fmt.Sprintf("%s appeared!", enemy.Name), Type: LogInfo}},
	}
}

// ExecutePlayerTurn resolves the player's action. It is a no-op outside
// PLAYER_TURN. Unless the battle ends or the player tried to flee, the
// state advances to ENEMY_TURN.
func (s *System) ExecutePlayerTurn(st BattleState, action Action, skills map[string]resource.Skill) BattleState {
	if st.Phase != PhasePlayerTurn {
		return st
	}
	next := st
	next.IsDefending = false
	next.Log = append([]LogEntry(nil), st.Log...)
	enemy := st.Enemy.Name

	switch a := action.(type) {
	case Attack:
		dmg, crit := s.CalculateDamage(st.PlayerStats.Attack, st.Enemy.Stats.Defense, st.PlayerStats.Luck)
		if crit {
			next.log(LogCritical, "Critical hit! Dealt %d damage to %s!", dmg, enemy)
		} else {
			next.log(LogDamage, "Dealt %d damage to %s", dmg, enemy)
		}
		next.hitEnemy(dmg)

	case Defend:
		next.log(LogBuff, "You take a defensive stance")
		next.IsDefending = true

	case Flee:
		chance := 0.3 + float64(st.PlayerStats.Speed-st.Enemy.Stats.Speed)*0.05
		if s.rng.Float64() < chance {
			next.log(LogInfo, "Escaped successfully!")
			next.Phase = PhaseDefeat
		} else {
			next.log(LogInfo, "Failed to escape!")
		}

	case UseSkill:
		s.useSkill(&next, a.SkillID, skills)

	case UseItem:
		next.log(LogInfo, "Items cannot be used in battle yet")

	default:
		s.logger.Warn("unknown battle action", zap.String("type", fmt.Sprintf("%T", action)))
		return st
	}

	if _, fled := action.(Flee); !next.Finished() && !fled {
		next.Phase = PhaseEnemyTurn
	}
	return next
}

func (s *System) useSkill(st *BattleState, id string, skills map[string]resource.Skill) {
	skill, ok := skills[id]
	if !ok {
		st.log(LogInfo, "Skill not found!")
		return
	}
	if st.PlayerStats.CurrentMP < skill.MPCost {
		st.log(LogInfo, "Not enough MP!")
		return
	}
	st.PlayerStats.CurrentMP -= skill.MPCost

	damaging := skill.Damage > 0 || skill.Formula != ""
	dmg := 0
	if damaging {
		r := s.skillDamage(skill, st.PlayerStats, st.Enemy.Stats)
		typ := LogDamage
		if r.IsCrit {
			typ = LogCritical
		}
		dmg = r.Damage
		st.log(typ, "Used %s, dealt %d damage to %s!", skill.Name, dmg, st.Enemy.Name)
	}
	if skill.Heal > 0 {
		st.PlayerStats.CurrentHP = min(st.PlayerStats.CurrentHP+skill.Heal, st.PlayerStats.MaxHP)
		st.log(LogHeal, "Used %s, restored %d HP!", skill.Name, skill.Heal)
	}
	if !damaging && skill.Heal <= 0 {
		st.log(LogInfo, "Used %s!", skill.Name)
	}
	if damaging {
		st.hitEnemy(dmg)
	}
}

// ExecuteEnemyTurn resolves the enemy's attack. It is a no-op outside
// ENEMY_TURN. Damage is halved while the player defends.
func (s *System) ExecuteEnemyTurn(st BattleState) BattleState {
	if st.Phase != PhaseEnemyTurn {
		return st
	}
	next := st
	next.Log = append([]LogEntry(nil), st.Log...)
	enemy := st.Enemy.Name

	dmg, crit := s.CalculateDamage(st.Enemy.Stats.Attack, st.PlayerStats.Defense, st.Enemy.Stats.Luck)
	if st.IsDefending {
		dmg /= 2
	}
	typ := LogDamage
	if crit {
		typ = LogCritical
	}
	switch {
	case st.IsDefending:
		next.log(typ, "%s attacks, but you defend and take %d damage", enemy, dmg)
	case crit:
		next.log(typ, "Critical hit! %s deals %d damage to you!", enemy, dmg)
	default:
		next.log(typ, "%s deals %d damage to you", enemy, dmg)
	}

	next.PlayerStats.CurrentHP = max(0, st.PlayerStats.CurrentHP-dmg)
	if next.PlayerStats.CurrentHP <= 0 {
		next.log(LogInfo, "You were defeated...")
		next.Phase = PhaseDefeat
	} else {
		next.Phase = PhasePlayerTurn
		next.Turn++
	}
	next.IsDefending = false
	return next
}

func (st *BattleState) log(typ LogType, format string, args ...any) {
	st.Log = append(st.Log, LogEntry{Message: fmt.Sprintf(format, args...), Type: typ})
}

func (st *BattleState) hitEnemy(dmg int) {
	st.EnemyHP = max(0, st.EnemyHP-dmg)
	if st.EnemyHP <= 0 {
		st.log(LogInfo, "%s was defeated!", st.Enemy.Name)
		st.Phase = PhaseVictory
	}
}
