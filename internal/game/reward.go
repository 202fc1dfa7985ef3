package game

import "math"

// EffortLevel grades how demanding a task is.
type EffortLevel string

const (
	EffortLight    EffortLevel = "light"
	EffortStandard EffortLevel = "standard"
	EffortHard     EffortLevel = "hard"
)

// DefaultTaskBaseXP is the base XP of a task created without one.
const DefaultTaskBaseXP = 10

// IsValid reports whether e is a known effort level.
func (e EffortLevel) IsValid() bool {
	switch e {
	case EffortLight, EffortStandard, EffortHard:
		return true
	default:
		return false
	}
}

// BaseXPForEffort returns the suggested base XP for an effort level.
func BaseXPForEffort(e EffortLevel) int {
	switch e {
	case EffortLight:
		return 8
	case EffortHard:
		return 18
	default:
		return 12
	}
}

// Effect types carried by equipment and consumable items.
const (
	EffectFatigueStep   = "fatigue_step"
	EffectXPPercent     = "xp_percent"
	EffectFatigueReduce = "fatigue_reduce"
	EffectXPBoost       = "xp_boost"
)

// Effect is the (type, value) pair attached to equipment and shop items.
type Effect struct {
	Type  string
	Value float64
}

// EquipmentBonus is the combined effect of everything equipped.
type EquipmentBonus struct {
	FatigueSteps int     `json:"fatigue_steps"`
	XPPercent    float64 `json:"xp_percent"`
}

// SumEquipment folds equipped effects into one bonus. Unknown effect types
// are ignored.
func SumEquipment(effects []Effect) EquipmentBonus {
	var b EquipmentBonus
	for _, e := range effects {
		v := finite(e.Value)
		switch e.Type {
		case EffectFatigueStep:
			b.FatigueSteps += int(roundHalfUp(v))
		case EffectXPPercent:
			b.XPPercent += v
		}
	}
	return b
}

// ItemFatigueSteps converts a fatigue_reduce item value into steps.
func ItemFatigueSteps(value float64) int {
	return max(0, int(roundHalfUp(finite(value))))
}

// ItemFlatXP converts an xp_boost item value into flat XP.
func ItemFlatXP(value float64) int {
	return int(roundHalfUp(finite(value)))
}

// RewardInput gathers everything that shapes one completion's reward.
type RewardInput struct {
	BaseXP           float64
	CompletedToday   int
	Category         Category
	Stats            Stats
	Equipment        EquipmentBonus
	ItemFatigueSteps int
	ItemFlatXP       int
}

// Reward is the outcome of ComputeReward.
type Reward struct {
	FatigueIndex      int     `json:"fatigue_index"`
	EffectiveIndex    int     `json:"effective_index"`
	FatigueMultiplier float64 `json:"fatigue_multiplier"`
	StatMultiplier    float64 `json:"stat_multiplier"`
	BaseGain          int     `json:"base_gain"`
	FinalXP           int     `json:"final_xp"`
	BonusXP           int     `json:"bonus_xp"`
	Coins             int     `json:"coins"`
}

// ComputeReward applies fatigue, stat, equipment and item modifiers:
//
//	final = round(CalcXPGain(base, fatigue(effective)) * stat * (1 + pct/100)) + flat
//
// BaseGain is what the backend credits on its own (fatigue at the raw
// index); BonusXP is the remainder the client must add.
func ComputeReward(in RewardInput) Reward {
	index := max(0, in.CompletedToday)
	afterEquipment := max(0, index-max(0, in.Equipment.FatigueSteps))
	effective := max(0, afterEquipment-max(0, in.ItemFatigueSteps))

	statMul, _ := StatMultiplier(in.Category, in.Stats)
	fatigue := FatigueMultiplier(effective)

	gain := CalcXPGain(in.BaseXP, fatigue)
	scaled := float64(gain) * statMul * (1 + finite(in.Equipment.XPPercent)/100)
	final := max(0, int(roundHalfUp(scaled))+in.ItemFlatXP)

	baseGain := CalcXPGain(in.BaseXP, FatigueMultiplier(index))
	return Reward{
		FatigueIndex:      index,
		EffectiveIndex:    effective,
		FatigueMultiplier: fatigue,
		StatMultiplier:    statMul,
		BaseGain:          baseGain,
		FinalXP:           final,
		BonusXP:           max(0, final-baseGain),
		Coins:             CoinsForXP(final),
	}
}

// CoinsForXP returns the coin payout for a completion worth xp.
func CoinsForXP(xp int) int {
	return max(1, int(math.Floor(float64(xp)/2)))
}

// Preview is the XP shown next to a task before it is completed.
type Preview struct {
	Total int `json:"total"`
	Base  int `json:"base"`
}

// PreviewReward computes the preview for a task that would be the
// position-th completion after the ones already done today. Consumables are
// never part of a preview.
func PreviewReward(in RewardInput, position int) Preview {
	in.CompletedToday = max(0, in.CompletedToday) + max(0, position)
	in.ItemFatigueSteps = 0
	in.ItemFlatXP = 0
	r := ComputeReward(in)
	return Preview{Total: max(r.FinalXP, r.BaseGain), Base: r.BaseGain}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
