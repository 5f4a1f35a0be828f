package battle

import (
	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/resource"
)

const (
	varianceSpread = 0.2
	critMultiplier = 1.5
)

// DamageResult holds the outcome of a damage calculation.
type DamageResult struct {
	Damage int  `json:"damage"`
	IsCrit bool `json:"isCrit"`
}

// CalculateDamage computes max(1, atk*2-def), applies a ±10% variance and
// rolls a critical hit with probability luck%.
func (s *System) CalculateDamage(atk, def, luck int) (int, bool) {
	r := s.roll(float64(max(1, atk*2-def)), luck)
	return r.Damage, r.IsCrit
}

// roll applies variance and critical hits to a base damage value.
func (s *System) roll(base float64, luck int) DamageResult {
	variance := s.rng.Float64()*varianceSpread - varianceSpread/2
	dmg := max(1, int(base*(1+variance)))
	crit := s.rng.Float64() < float64(luck)*0.01
	if crit {
		dmg = int(float64(dmg) * critMultiplier)
	}
	return DamageResult{Damage: dmg, IsCrit: crit}
}

// skillDamage evaluates a damaging skill. A formula that fails to evaluate
// falls back to attack + skill.Damage.
func (s *System) skillDamage(skill resource.Skill, attacker, defender resource.CharacterStats) DamageResult {
	if skill.Formula != "" {
		v, err := EvalFormula(skill.Formula, &attacker, &defender)
		if err == nil {
			return s.roll(max(1, v), attacker.Luck)
		}
		s.logger.Warn("skill formula rejected, using base damage",
			zap.String("skill_id", skill.ID),
			zap.String("formula", skill.Formula),
			zap.Error(err))
	}
	dmg, crit := s.CalculateDamage(attacker.Attack+skill.Damage, defender.Defense, attacker.Luck)
	return DamageResult{Damage: dmg, IsCrit: crit}
}
