package battle

import "github.com/kasuganosora/novelsim/resource"

// Drop is one item that dropped.
type Drop struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Reward is what a won battle yields.
type Reward struct {
	Exp   int    `json:"exp"`
	Gold  int    `json:"gold"`
	Drops []Drop `json:"drops,omitempty"`
}

// CalculateReward rolls the enemy's drop table. Each entry drops with its own
// chance; quantity is uniform in [MinQuantity, MaxQuantity] and a roll of
// zero drops nothing. Anything but a victory yields the zero Reward.
func (s *System) CalculateReward(st BattleState) Reward {
	if st.Phase != PhaseVictory {
		return Reward{}
	}
	r := Reward{Exp: st.Enemy.ExpReward, Gold: st.Enemy.GoldReward}
	for _, d := range st.Enemy.Drops {
		if s.rng.Float64() >= d.Chance {
			continue
		}
		if n := s.quantity(d); n > 0 {
			r.Drops = append(r.Drops, Drop{ItemID: d.ItemID, Quantity: n})
		}
	}
	return r
}

func (s *System) quantity(d resource.EnemyDrop) int {
	lo, hi := max(0, d.MinQuantity), d.MaxQuantity
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// ExpToNext returns the exp needed to advance past level.
func ExpToNext(level int) int {
	if level <= 0 {
		return 100
	}
	return 100 * level
}

// GainExp adds exp to stats and applies every level-up it earns. Each level
// raises max hp by 10, max mp by 5, attack and defense by 2, speed by 1, and
// fully restores hp and mp. It returns the number of levels gained.
func GainExp(stats resource.CharacterStats, exp int) (resource.CharacterStats, int) {
	stats.Exp += exp
	if stats.ExpToNextLevel <= 0 {
		stats.ExpToNextLevel = ExpToNext(stats.Level)
	}
	levels := 0
	for stats.Exp >= stats.ExpToNextLevel {
		stats.Exp -= stats.ExpToNextLevel
		stats.Level++
		stats.MaxHP += 10
		stats.MaxMP += 5
		stats.Attack += 2
		stats.Defense += 2
		stats.Speed++
		stats.CurrentHP = stats.MaxHP
		stats.CurrentMP = stats.MaxMP
		stats.ExpToNextLevel = ExpToNext(stats.Level)
		levels++
	}
	return stats, levels
}
