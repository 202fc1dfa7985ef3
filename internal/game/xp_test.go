package game

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

// =============================================================================
// Curve scenarios
// =============================================================================

func TestXPRequiredForLevel_Scenarios(t *testing.T) {
	if got := XPRequiredForLevel(1); got != 100 {
		t.Fatalf("XPRequiredForLevel(1) = %d, want 100", got)
	}
	want2 := int(math.Floor(100*math.Pow(2, 0.55) + 0.5))
	if got := XPRequiredForLevel(2); got != want2 {
		t.Fatalf("XPRequiredForLevel(2) = %d, want %d", got, want2)
	}
	if got := XPRequiredForLevel(2); got != 146 {
		t.Fatalf("XPRequiredForLevel(2) = %d, want 146", got)
	}
	if got := XPRequiredForLevel(0); got != 100 {
		t.Fatalf("XPRequiredForLevel(0) = %d, want clamped 100", got)
	}
	if got := XPRequiredForLevel(-3); got != 100 {
		t.Fatalf("XPRequiredForLevel(-3) = %d, want clamped 100", got)
	}
}

func TestLevelFromXP_Scenarios(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{245, 2},
		{246, 3},
		{-50, 1},
	}
	for _, tt := range tests {
		if got := LevelFromXP(tt.xp); got != tt.want {
			t.Errorf("LevelFromXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestTotalXPForLevel_One(t *testing.T) {
	if got := TotalXPForLevel(1); got != 0 {
		t.Fatalf("TotalXPForLevel(1) = %d, want 0", got)
	}
	if got := TotalXPForLevel(2); got != 100 {
		t.Fatalf("TotalXPForLevel(2) = %d, want 100", got)
	}
}

func TestXPProgress_Example(t *testing.T) {
	p := XPProgress(130)
	if p.Level != 2 || p.InLevel != 30 || p.Span != 146 || p.Remaining != 116 {
		t.Fatalf("XPProgress(130) = %+v, want {2 30 146 116}", p)
	}
}

func TestCalcXPGain_Scenarios(t *testing.T) {
	tests := []struct {
		base, mul float64
		want      int
	}{
		{12, 0.9, 11},
		{18, 1.0, 18},
		{10, 0.75, 8},
		{-5, 1, 0},
		{math.NaN(), 1, 0},
		{10, math.Inf(1), 0},
		{10, -0.5, 0},
	}
	for _, tt := range tests {
		if got := CalcXPGain(tt.base, tt.mul); got != tt.want {
			t.Errorf("CalcXPGain(%v, %v) = %d, want %d", tt.base, tt.mul, got, tt.want)
		}
	}
}

func TestFatigueMultiplier_Clamping(t *testing.T) {
	if FatigueMultiplier(-5) != 1.0 || FatigueMultiplier(0) != 1.0 {
		t.Fatalf("negative and zero index must both map to 1.0")
	}
	if got := FatigueMultiplier(4); got != 0.75 {
		t.Fatalf("FatigueMultiplier(4) = %v, want 0.75", got)
	}
	if got := FatigueMultiplier(100); got != 0.75 {
		t.Fatalf("FatigueMultiplier(100) = %v, want 0.75", got)
	}
}

// =============================================================================
// Properties
// =============================================================================

func TestProperty_LevelSpanMatchesRequirement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := rapid.IntRange(1, 400).Draw(t, "level")
		if diff := TotalXPForLevel(l+1) - TotalXPForLevel(l); diff != XPRequiredForLevel(l) {
			t.Fatalf("span of level %d = %d, want %d", l, diff, XPRequiredForLevel(l))
		}
	})
}

func TestProperty_LevelBracketsXP(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xp := rapid.IntRange(0, 2_000_000).Draw(t, "xp")
		l := LevelFromXP(xp)
		if TotalXPForLevel(l) > xp {
			t.Fatalf("TotalXPForLevel(%d) = %d exceeds xp %d", l, TotalXPForLevel(l), xp)
		}
		if xp >= TotalXPForLevel(l+1) {
			t.Fatalf("xp %d reaches level %d threshold %d", xp, l+1, TotalXPForLevel(l+1))
		}
	})
}

func TestProperty_LevelMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(0, 1_000_000).Draw(t, "a")
		b := rapid.IntRange(a, 1_000_001).Draw(t, "b")
		if LevelFromXP(a) > LevelFromXP(b) {
			t.Fatalf("LevelFromXP(%d) = %d > LevelFromXP(%d) = %d", a, LevelFromXP(a), b, LevelFromXP(b))
		}
	})
}

func TestProperty_ProgressReconstructsXP(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		xp := rapid.IntRange(0, 1_000_000).Draw(t, "xp")
		p := XPProgress(xp)
		if p.InLevel+TotalXPForLevel(p.Level) != xp {
			t.Fatalf("inLevel %d + total(%d) != %d", p.InLevel, p.Level, xp)
		}
		if p.InLevel < 0 || p.InLevel >= p.Span {
			t.Fatalf("inLevel %d outside [0, %d)", p.InLevel, p.Span)
		}
		if p.Remaining != p.Span-p.InLevel {
			t.Fatalf("remaining %d, want %d", p.Remaining, p.Span-p.InLevel)
		}
	})
}

func TestProperty_FatigueNonIncreasing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		i := rapid.IntRange(-10, 50).Draw(t, "i")
		if FatigueMultiplier(i+1) > FatigueMultiplier(i) {
			t.Fatalf("FatigueMultiplier(%d) > FatigueMultiplier(%d)", i+1, i)
		}
		if i >= len(FatigueTable) && FatigueMultiplier(i) != FatigueTable[len(FatigueTable)-1] {
			t.Fatalf("FatigueMultiplier(%d) not constant beyond table", i)
		}
	})
}

func TestProperty_CalcXPGainNonNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.Float64().Draw(t, "base")
		mul := rapid.Float64().Draw(t, "mul")
		if got := CalcXPGain(base, mul); got < 0 {
			t.Fatalf("CalcXPGain(%v, %v) = %d", base, mul, got)
		}
	})
}
