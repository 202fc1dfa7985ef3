package chronoquest

import (
	"time"

	"github.com/chronoquest/chronoquest/internal/game"
)

// Engine types used throughout the public API.
type (
	StatKey     = game.StatKey
	Stats       = game.Stats
	Category    = game.Category
	EffortLevel = game.EffortLevel
	Reward      = game.Reward
	Preview     = game.Preview
	Progress    = game.Progress
	Requirement = game.Requirement
)

// Re-exported engine constants.
const (
	StatStr  = game.StatStr
	StatInt  = game.StatInt
	StatWill = game.StatWill
	StatCha  = game.StatCha

	CategoryExercise = game.CategoryExercise
	CategoryStudy    = game.CategoryStudy
	CategoryLife     = game.CategoryLife

	EffortLight    = game.EffortLight
	EffortStandard = game.EffortStandard
	EffortHard     = game.EffortHard
)

// BaseXPForEffort returns the suggested base XP for an effort level.
func BaseXPForEffort(e EffortLevel) int { return game.BaseXPForEffort(e) }

// RepeatType controls when a task shows up on the today list.
type RepeatType string

const (
	RepeatOnce   RepeatType = "once"
	RepeatDaily  RepeatType = "daily"
	RepeatWeekly RepeatType = "weekly"
)

// IsValid reports whether r is a known repeat type.
func (r RepeatType) IsValid() bool {
	switch r {
	case RepeatOnce, RepeatDaily, RepeatWeekly:
		return true
	default:
		return false
	}
}

// WeekdayKeys are the weekly_days values, indexed by time.Weekday.
var WeekdayKeys = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayKey returns the weekly_days key for t's local weekday.
func WeekdayKey(t time.Time) string {
	return WeekdayKeys[t.Weekday()]
}

// Task is a quest the user can complete.
type Task struct {
	ID             string      `json:"id,omitempty"`
	UserID         string      `json:"user_id"`
	Title          string      `json:"title"`
	Category       Category    `json:"category"`
	BaseXP         int         `json:"base_xp"`
	EffortLevel    EffortLevel `json:"effort_level,omitempty"`
	RepeatType     RepeatType  `json:"repeat_type,omitempty"`
	WeeklyDays     []string    `json:"weekly_days,omitempty"`
	DueDate        string      `json:"due_date,omitempty"`
	RequiresCount  bool        `json:"requires_count"`
	TargetCount    int         `json:"target_count,omitempty"`
	Unit           string      `json:"unit,omitempty"`
	StoryQuestCode string      `json:"story_quest_code,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      string      `json:"created_at,omitempty"`
}

// Target returns the count needed to complete a count task (at least 1).
func (t Task) Target() int {
	if t.TargetCount <= 0 {
		return 1
	}
	return t.TargetCount
}

// Repeat returns the repeat type, treating empty as once.
func (t Task) Repeat() RepeatType {
	if t.RepeatType == "" {
		return RepeatOnce
	}
	return t.RepeatType
}

// NewTask is the input to AddTask. Zero values take defaults.
type NewTask struct {
	Title          string
	Category       Category
	BaseXP         int
	Effort         EffortLevel
	Repeat         RepeatType
	WeeklyDays     []string
	DueDate        string
	RequiresCount  bool
	TargetCount    int
	Unit           string
	StoryQuestCode string
	Notes          string
}

// Profile is the player's character sheet.
type Profile struct {
	ID            string `json:"id"`
	Level         int    `json:"level"`
	XP            int    `json:"xp"`
	UnspentPoints int    `json:"unspent_points"`
	Stats         Stats  `json:"stats_json"`
	Coins         int    `json:"coins"`
	DisplayName   string `json:"display_name"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// Streak is the user's completion streak.
type Streak struct {
	Current           int    `json:"current_streak"`
	Longest           int    `json:"longest_streak"`
	LastCompletedDate string `json:"last_completed_date,omitempty"`
	LoggedToday       bool   `json:"logged_today,omitempty"`
	LastLoginAt       string `json:"last_login_at,omitempty"`
}

// DailyRewardState records the last daily reward claim.
type DailyRewardState struct {
	LastClaimedAt string `json:"last_claimed_at,omitempty"`
	CoinsAwarded  int    `json:"coins_awarded"`
	StreakAwarded int    `json:"streak_awarded"`
}

// DailyRewardClaim is what claim_daily_reward grants.
type DailyRewardClaim struct {
	Coins       int `json:"coins"`
	StreakAward int `json:"streak_award"`
}

// ShopItem is a consumable sold in the shop.
type ShopItem struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	PriceCoins  int     `json:"price_coins"`
	EffectType  string  `json:"effect_type"`
	EffectValue float64 `json:"effect_value"`
	Active      bool    `json:"active"`
}

// InventoryItem is a held shop item.
type InventoryItem struct {
	ShopItem
	Quantity int `json:"quantity"`
}

// Purchase is the result of buying a shop item.
type Purchase struct {
	ItemID         string `json:"item_id"`
	RemainingCoins int    `json:"remaining_coins"`
	Quantity       int    `json:"quantity"`
}

// Slot is an equipment slot.
type Slot string

const (
	SlotAmulet  Slot = "amulet"
	SlotArmor   Slot = "armor"
	SlotTrinket Slot = "trinket"
)

// Slots lists every equipment slot in display order.
var Slots = []Slot{SlotAmulet, SlotArmor, SlotTrinket}

// IsValid reports whether s is a known slot.
func (s Slot) IsValid() bool {
	switch s {
	case SlotAmulet, SlotArmor, SlotTrinket:
		return true
	default:
		return false
	}
}

// Equipment is a permanent item worn in a slot.
type Equipment struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Slot        Slot    `json:"slot"`
	PriceCoins  int     `json:"price_coins"`
	EffectType  string  `json:"effect_type"`
	EffectValue float64 `json:"effect_value"`
	Active      bool    `json:"active"`
}

// EquipmentState is the catalogue, what the user owns, and what is worn.
type EquipmentState struct {
	Catalogue []Equipment         `json:"catalogue"`
	Owned     map[string]bool     `json:"owned"`
	Equipped  map[Slot]*Equipment `json:"equipped"`
}

// Chapter is a story chapter.
type Chapter struct {
	ID                string  `json:"id"`
	Code              string  `json:"code"`
	OrderIndex        int     `json:"order_index"`
	Title             string  `json:"title"`
	Summary           string  `json:"summary,omitempty"`
	Logline           string  `json:"logline,omitempty"`
	ImageURL          string  `json:"image_url,omitempty"`
	RequiredStatKey   StatKey `json:"required_stat_key,omitempty"`
	RequiredStatValue int     `json:"required_stat_value,omitempty"`
	RequiredStreak    int     `json:"required_streak,omitempty"`
	RequiredQuestCode string  `json:"required_quest_code,omitempty"`
	RewardEquipmentID string  `json:"reward_equipment_id,omitempty"`
}

// StoryQuest is a quest template attached to a chapter.
type StoryQuest struct {
	ID                string      `json:"id"`
	Code              string      `json:"code"`
	ChapterID         string      `json:"chapter_id"`
	OrderIndex        int         `json:"order_index"`
	Title             string      `json:"title"`
	Description       string      `json:"description,omitempty"`
	Notes             string      `json:"notes,omitempty"`
	TaskCategory      Category    `json:"task_category,omitempty"`
	EffortLevel       EffortLevel `json:"effort_level,omitempty"`
	RewardCoins       int         `json:"reward_coins"`
	TaskTitle         string      `json:"task_title,omitempty"`
	TaskRequiresCount bool        `json:"task_requires_count,omitempty"`
	TaskTargetCount   int         `json:"task_target_count,omitempty"`
	TaskUnit          string      `json:"task_unit,omitempty"`
	SuggestedByAI     bool        `json:"suggested_by_ai,omitempty"`
}

// ChapterProgress marks a chapter unlocked.
type ChapterProgress struct {
	ChapterID  string `json:"chapter_id"`
	UnlockedAt string `json:"unlocked_at"`
}

// Achievement is an unlockable badge.
type Achievement struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Threshold   int      `json:"threshold,omitempty"`
	Category    Category `json:"category,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Active      bool     `json:"active"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// AchievementState is an achievement merged with the user's unlock.
type AchievementState struct {
	Achievement
	Unlocked   bool   `json:"unlocked"`
	UnlockedAt string `json:"unlocked_at,omitempty"`
}

// Suggestion is a proposed quest.
type Suggestion struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	ChapterID    string      `json:"chapter_id,omitempty"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Notes        string      `json:"notes,omitempty"`
	TaskCategory Category    `json:"task_category,omitempty"`
	EffortLevel  EffortLevel `json:"effort_level,omitempty"`
	CreatedAt    string      `json:"created_at,omitempty"`
	AcceptedAt   string      `json:"accepted_at,omitempty"`
	DismissedAt  string      `json:"dismissed_at,omitempty"`
	Source       string      `json:"source,omitempty"`
}
