package rotation

import (
	"fmt"
	"time"
)

// State is the machine-readable part of a Status.
type State string

const (
	StateCompleted State = "completed"
	StateLate      State = "late"
	StatePending   State = "pending"
	StateMissing   State = "missing"
	StateNoUsers   State = "no_users"
	StateDone      State = "done"
	StateYesterday State = "yesterday"
	StateOverdue   State = "overdue"
	StateNever     State = "never"
)

// Status is one line of the kiosk's task board.
type Status struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Message  string `json:"message"`
	State    State  `json:"state"`
	DaysLate int    `json:"days_late,omitempty"`
}

// MissingCategory reports a tracked task whose category doesn't exist.
// hint, when set, names the category to create.
func MissingCategory(task, hint string) Status {
	msg := "Category missing."
	if hint != "" {
		msg = fmt.Sprintf("Category missing. Add a '%s' category to enable tracking.", hint)
	}
	return Status{Name: task, Icon: "⚪", Message: msg, State: StateMissing}
}

// RotationStatus reports the turn in the first slot of schedule. completed
// tells whether the assigned user logged the chore within the recent
// window.
func RotationStatus(task string, schedule []Assignment, completed bool, now time.Time) Status {
	if len(schedule) == 0 {
		return Status{Name: task, Icon: "⚪", Message: "Add users to start.", State: StateNoUsers}
	}

	turn := schedule[0]
	if completed {
		return Status{
			Name:    task,
			Icon:    "✅",
			Message: fmt.Sprintf("%s completed their turn.", turn.UserName),
			State:   StateCompleted,
		}
	}

	if late := daysBetween(turn.Date.In(now.Location()), now); late > 0 {
		return Status{
			Name:     task,
			Icon:     "🔴",
			Message:  fmt.Sprintf("%s is late by %d days!", turn.UserName, late),
			State:    StateLate,
			DaysLate: late,
		}
	}

	return Status{
		Name:    task,
		Icon:    "⚠️",
		Message: fmt.Sprintf("Pending: %s's turn (%s).", turn.UserName, turn.Date.Format("2006-01-02")),
		State:   StatePending,
	}
}

// RecencyStatus reports how long ago a whoever-does-it chore was last done.
func RecencyStatus(task string, last *Completion, now time.Time) Status {
	if last == nil {
		return Status{Name: task, Icon: "🔴", Message: "Never registered.", State: StateNever}
	}

	elapsed := now.Sub(last.At)
	if elapsed < 0 {
		elapsed = 0
	}
	days := int(elapsed / (24 * time.Hour))

	switch {
	case days < 1:
		return Status{
			Name:    task,
			Icon:    "🟢",
			Message: fmt.Sprintf("Done by %s (%dh ago).", last.UserName, int(elapsed/time.Hour)),
			State:   StateDone,
		}
	case days < 2:
		return Status{
			Name:    task,
			Icon:    "🟡",
			Message: fmt.Sprintf("Done yesterday by %s.", last.UserName),
			State:   StateYesterday,
		}
	default:
		return Status{
			Name:    task,
			Icon:    "🔴",
			Message: fmt.Sprintf("Not done for %d days!", days),
			State:   StateOverdue,
		}
	}
}

// daysBetween counts calendar days from a to b, ignoring the time of day.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
