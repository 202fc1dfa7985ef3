package game

import (
	"math"

	"github.com/goccy/go-json"
)

// StatKey names one of the four character stats.
type StatKey string

const (
	StatStr  StatKey = "str"
	StatInt  StatKey = "int"
	StatWill StatKey = "will"
	StatCha  StatKey = "cha"
)

// StatKeys lists every stat in display order.
var StatKeys = []StatKey{StatStr, StatInt, StatWill, StatCha}

// IsValid reports whether k is a known stat.
func (k StatKey) IsValid() bool {
	switch k {
	case StatStr, StatInt, StatWill, StatCha:
		return true
	default:
		return false
	}
}

// Category is the kind of activity a task belongs to.
type Category string

const (
	CategoryExercise Category = "exercise"
	CategoryStudy    Category = "study"
	CategoryLife     Category = "life"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryExercise, CategoryStudy, CategoryLife:
		return true
	default:
		return false
	}
}

// bonusPerPoint is the XP multiplier gained per stat point. Charisma has no
// category mapped to it yet.
var bonusPerPoint = map[StatKey]float64{
	StatStr:  0.05,
	StatInt:  0.05,
	StatWill: 0.04,
	StatCha:  0.03,
}

// BonusPerPoint returns the per-point rate for k, 0 for unknown stats.
func BonusPerPoint(k StatKey) float64 {
	return bonusPerPoint[k]
}

// PrimaryStat maps a task category to the stat that boosts it.
// Unknown categories fall back to willpower, like life tasks.
func PrimaryStat(c Category) StatKey {
	switch c {
	case CategoryExercise:
		return StatStr
	case CategoryStudy:
		return StatInt
	default:
		return StatWill
	}
}

// Stats holds the allocated stat points of a profile.
type Stats struct {
	Str  int `json:"str"`
	Int  int `json:"int"`
	Will int `json:"will"`
	Cha  int `json:"cha"`
}

// Get returns the value of stat k.
func (s Stats) Get(k StatKey) int {
	switch k {
	case StatStr:
		return s.Str
	case StatInt:
		return s.Int
	case StatWill:
		return s.Will
	case StatCha:
		return s.Cha
	default:
		return 0
	}
}

// With returns a copy of s with stat k set to v.
func (s Stats) With(k StatKey, v int) Stats {
	switch k {
	case StatStr:
		s.Str = v
	case StatInt:
		s.Int = v
	case StatWill:
		s.Will = v
	case StatCha:
		s.Cha = v
	}
	return s
}

// UnmarshalJSON accepts null, non-objects and non-numeric fields, all of which
// read as zero.
func (s *Stats) UnmarshalJSON(data []byte) error {
	*s = Stats{}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	for _, k := range StatKeys {
		f, ok := raw[string(k)].(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		*s = s.With(k, int(f))
	}
	return nil
}

// StatMultiplier returns the XP multiplier a task of category c earns from
// stats, and the same bonus expressed as a percentage.
func StatMultiplier(c Category, stats Stats) (multiplier, bonusPercent float64) {
	key := PrimaryStat(c)
	bonus := float64(stats.Get(key)) * BonusPerPoint(key)
	return 1 + bonus, bonus * 100
}

// BonusSummary returns the bonus percentage granted by each stat.
func BonusSummary(stats Stats) map[StatKey]float64 {
	out := make(map[StatKey]float64, len(StatKeys))
	for _, k := range StatKeys {
		out[k] = float64(stats.Get(k)) * BonusPerPoint(k) * 100
	}
	return out
}
