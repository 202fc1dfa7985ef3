package game

import "sort"

// LocalSuggestionCount is how many suggestions are generated offline.
const LocalSuggestionCount = 2

// SuggestionTemplate is a quest idea from the built-in pool.
type SuggestionTemplate struct {
	Code        string
	Title       string
	Description string
	Notes       string
	Category    Category
	Effort      EffortLevel
}

var suggestionPool = []SuggestionTemplate{
	{
		Code:        "ai-suggest-study-session",
		Title:       "Focus time at the library",
		Description: "Sharpen your intellect somewhere quiet",
		Notes:       "At 18:00, spend 30 minutes memorising key points from a reference book",
		Category:    CategoryStudy,
		Effort:      EffortStandard,
	},
	{
		Code:        "ai-suggest-morning-run",
		Title:       "Morning sprint",
		Description: "Build stamina for the journey ahead",
		Notes:       "At 7:00, run for 10 minutes and stretch",
		Category:    CategoryExercise,
		Effort:      EffortLight,
	},
	{
		Code:        "ai-suggest-life-reset",
		Title:       "Reset your home base",
		Description: "Tidy up the base and clear your head",
		Notes:       "Sort the closet and list unneeded items within 30 minutes",
		Category:    CategoryLife,
		Effort:      EffortStandard,
	},
}

// LocalSuggestions picks suggestions from the built-in pool. The order is
// stable for a given seed (usually the current chapter code).
func LocalSuggestions(seed string) []SuggestionTemplate {
	if seed == "" {
		seed = "default"
	}
	pool := make([]SuggestionTemplate, len(suggestionPool))
	copy(pool, suggestionPool)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Code+seed < pool[j].Code+seed
	})
	return pool[:LocalSuggestionCount]
}
