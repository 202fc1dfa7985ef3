// Package game holds the leveling and reward rules. Every function here is
// pure: same inputs, same outputs, no I/O.
package game

import "math"

const (
	// LevelXPBase is the minimum XP needed to clear any level.
	LevelXPBase = 100

	// XPGrowthExponent shapes the curve: L2 ~146, L3 ~183.
	XPGrowthExponent = 0.55
)

// FatigueTable holds the XP multipliers for the Nth completion of a day.
var FatigueTable = [...]float64{1.0, 0.9, 0.85, 0.8, 0.75}

// Progress describes where a total XP value sits inside its level.
type Progress struct {
	Level     int `json:"level"`
	InLevel   int `json:"in_level"`
	Span      int `json:"span"`
	Remaining int `json:"remaining"`
}

// XPRequiredForLevel returns the XP needed to advance from level to level+1.
// Levels below 1 are treated as 1.
func XPRequiredForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	raw := LevelXPBase * math.Pow(float64(level), XPGrowthExponent)
	return max(LevelXPBase, int(roundHalfUp(raw)))
}

// TotalXPForLevel returns the cumulative XP at which level begins.
func TotalXPForLevel(level int) int {
	total := 0
	for l := 1; l < level; l++ {
		total += XPRequiredForLevel(l)
	}
	return total
}

// LevelFromXP returns the last level fully paid for by totalXP.
func LevelFromXP(totalXP int) int {
	level := 1
	remaining := max(0, totalXP)
	for {
		needed := XPRequiredForLevel(level)
		if remaining < needed {
			return level
		}
		remaining -= needed
		level++
	}
}

// XPProgress splits totalXP into level and in-level progress.
func XPProgress(totalXP int) Progress {
	totalXP = max(0, totalXP)
	level := LevelFromXP(totalXP)
	span := XPRequiredForLevel(level)
	inLevel := totalXP - TotalXPForLevel(level)
	return Progress{
		Level:     level,
		InLevel:   inLevel,
		Span:      span,
		Remaining: span - inLevel,
	}
}

// FatigueMultiplier looks up the fatigue table, clamping index at both ends.
func FatigueMultiplier(index int) float64 {
	if index < 0 {
		return FatigueTable[0]
	}
	if index >= len(FatigueTable) {
		return FatigueTable[len(FatigueTable)-1]
	}
	return FatigueTable[index]
}

// CalcXPGain scales baseXP by a multiplier and rounds. Non-finite or negative
// inputs count as 0.
func CalcXPGain(baseXP, multiplier float64) int {
	baseXP = sanitize(baseXP)
	multiplier = sanitize(multiplier)
	v := roundHalfUp(baseXP * multiplier)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return max(0, int(v))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
