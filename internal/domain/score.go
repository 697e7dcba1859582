package domain

import (
	"math"
	"time"
)

// ScoringRules are the tunable knobs of the score calculator.
type ScoringRules struct {
	MaxTimeBonus  int     `yaml:"max_time_bonus"`
	StreakStep    float64 `yaml:"streak_step"`
	MaxMultiplier float64 `yaml:"max_multiplier"`
}

// DefaultScoringRules returns the standard scoring parameters.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		MaxTimeBonus:  500,
		StreakStep:    0.1,
		MaxMultiplier: 1.5,
	}
}

// Score computes the breakdown for one answered question. streak is the
// player's streak before this answer. A partial ratio scales the combined
// total proportionally; rounding happens once when bonuses are combined.
// The resulting Streak is streak+1 only on full credit, otherwise 0.
func Score(q Question, ratio float64, elapsed time.Duration, streak int, rules ScoringRules) ScoreBreakdown {
	if ratio <= 0 {
		return ScoreBreakdown{Multiplier: 1, Elapsed: elapsed}
	}

	limit := q.TimeLimitDuration()
	base := float64(q.BasePoints())

	timeFactor := 1 - elapsed.Seconds()/limit.Seconds()
	if timeFactor < 0 {
		timeFactor = 0
	}
	timeBonus := float64(rules.MaxTimeBonus) * timeFactor

	multiplier := 1 + rules.StreakStep*float64(streak)
	if multiplier > rules.MaxMultiplier {
		multiplier = rules.MaxMultiplier
	}

	total := int(math.Round((base + timeBonus) * multiplier * ratio))

	nextStreak := 0
	if ratio >= 1 {
		nextStreak = streak + 1
	}

	return ScoreBreakdown{
		Base:       q.BasePoints(),
		TimeBonus:  int(math.Round(timeBonus)),
		Multiplier: multiplier,
		Total:      total,
		Correct:    ratio >= 1,
		Ratio:      ratio,
		Elapsed:    elapsed,
		Streak:     nextStreak,
	}
}
