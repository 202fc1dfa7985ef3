package game

import "fmt"

// ChapterGate holds the unlock conditions of a story chapter. Zero values
// mean "no requirement".
type ChapterGate struct {
	StatKey   StatKey
	StatValue int
	Streak    int
	QuestCode string
	QuestName string
}

// RequirementKind identifies what a chapter requirement checks.
type RequirementKind string

const (
	RequireStat   RequirementKind = "stat"
	RequireStreak RequirementKind = "streak"
	RequireQuest  RequirementKind = "quest"
)

// QuestState tracks a key quest against the player's tasks.
type QuestState struct {
	HasTask   bool
	Completed bool
}

// Requirement is one evaluated unlock condition.
type Requirement struct {
	Kind      RequirementKind `json:"kind"`
	Label     string          `json:"label"`
	Satisfied bool            `json:"satisfied"`
	Info      string          `json:"info"`
}

// EvaluateGate checks gate against the player's stats, current streak, and
// key-quest progress keyed by quest code.
func EvaluateGate(gate ChapterGate, stats Stats, streak int, quests map[string]QuestState) []Requirement {
	var reqs []Requirement
	if gate.StatKey != "" {
		current := stats.Get(gate.StatKey)
		reqs = append(reqs, Requirement{
			Kind:      RequireStat,
			Label:     fmt.Sprintf("stat %s >= %d", gate.StatKey, gate.StatValue),
			Satisfied: current >= gate.StatValue,
			Info:      fmt.Sprintf("%d/%d", current, gate.StatValue),
		})
	}
	if gate.Streak > 0 {
		reqs = append(reqs, Requirement{
			Kind:      RequireStreak,
			Label:     fmt.Sprintf("%d-day streak", gate.Streak),
			Satisfied: streak >= gate.Streak,
			Info:      fmt.Sprintf("%d/%d", streak, gate.Streak),
		})
	}
	if gate.QuestCode != "" {
		state := quests[gate.QuestCode]
		label := "key quest"
		if gate.QuestName != "" {
			label = fmt.Sprintf("key quest %q", gate.QuestName)
		}
		info := "not added"
		switch {
		case state.Completed:
			info = "completed"
		case state.HasTask:
			info = "in progress"
		}
		reqs = append(reqs, Requirement{
			Kind:      RequireQuest,
			Label:     label,
			Satisfied: state.Completed,
			Info:      info,
		})
	}
	return reqs
}

// AllSatisfied reports whether every requirement is met.
func AllSatisfied(reqs []Requirement) bool {
	for _, r := range reqs {
		if !r.Satisfied {
			return false
		}
	}
	return true
}

// ChapterPosition locates the current and next chapter in an ordered list of
// chapter ids. current is the end of the contiguous unlocked prefix (0 when
// nothing is unlocked); next is the first locked chapter. Both are -1 when
// not applicable.
func ChapterPosition(ordered []string, unlocked map[string]bool) (current, next int) {
	current, next = -1, -1
	for i, id := range ordered {
		if !unlocked[id] {
			break
		}
		current = i
	}
	for i, id := range ordered {
		if !unlocked[id] {
			next = i
			break
		}
	}
	if current == -1 && len(ordered) > 0 {
		current = 0
	}
	return current, next
}
