package chronoquest

import "fmt"

// EventKind classifies an Event.
type EventKind string

const (
	EventXPGranted           EventKind = "xp_granted"
	EventCoinsGranted        EventKind = "coins_granted"
	EventItemConsumed        EventKind = "item_consumed"
	EventQueued              EventKind = "queued"
	EventSynced              EventKind = "synced"
	EventOpDropped           EventKind = "op_dropped"
	EventAchievementUnlocked EventKind = "achievement_unlocked"
	EventLevelUp             EventKind = "level_up"
	EventFailed              EventKind = "failed"
)

// Event is a user-visible outcome of an operation. Presentation layers
// translate events into notices; the library never prints.
type Event struct {
	Kind    EventKind `json:"kind"`
	TaskID  string    `json:"task_id,omitempty"`
	Amount  int       `json:"amount,omitempty"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventXPGranted:
		return fmt.Sprintf("+%d XP", e.Amount)
	case EventCoinsGranted:
		return fmt.Sprintf("+%d coins", e.Amount)
	case EventItemConsumed:
		return fmt.Sprintf("used %s", e.Name)
	case EventQueued:
		return "saved offline, will sync"
	case EventSynced:
		return fmt.Sprintf("synced %d pending operation(s)", e.Amount)
	case EventOpDropped:
		return fmt.Sprintf("dropped pending %s: %s", e.Name, e.Message)
	case EventAchievementUnlocked:
		return fmt.Sprintf("achievement unlocked: %s", e.Name)
	case EventLevelUp:
		return fmt.Sprintf("level up! now level %d", e.Amount)
	case EventFailed:
		return fmt.Sprintf("%s failed: %s", e.Name, e.Message)
	default:
		return string(e.Kind)
	}
}

// Notifier receives events produced outside a direct call, i.e. by
// background drains.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

func notifyAll(n Notifier, events []Event) {
	if n == nil {
		return
	}
	for _, e := range events {
		n.Notify(e)
	}
}
