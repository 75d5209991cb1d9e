// Package rotation computes weekly chore turns and task status lines.
//
// Everything here is pure: callers pass the current time and the
// history they loaded, so the results are reproducible in tests.
package rotation

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWeeks = 6
	MaxWeeks     = 52

	week = 7
)

// Config describes when a rotation cycle ends.
type Config struct {
	// Weekday is the day turns change hands.
	Weekday time.Weekday
	// CutoffHour is the hour on Weekday after which the next cycle starts.
	CutoffHour int
	// RecentWindow is how far back a completion counts as this turn's.
	RecentWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Weekday:      time.Saturday,
		CutoffHour:   12,
		RecentWindow: 6 * 24 * time.Hour,
	}
}

// Member is an eligible user, in rotation order.
type Member struct {
	ID   uuid.UUID
	Name string
}

// Completion is the latest event of the rotating category.
type Completion struct {
	UserID   uuid.UUID
	UserName string
	At       time.Time
}

// Assignment is one weekly slot of the schedule.
type Assignment struct {
	Date     time.Time `json:"-"`
	Label    string    `json:"date"`
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user"`
}

const labelLayout = "2006-01-02 (Mon)"

// NextRotation returns the first rotation boundary strictly after now, in
// now's location.
func (c Config) NextRotation(now time.Time) time.Time {
	days := (int(c.Weekday) - int(now.Weekday()) + week) % week
	if days == 0 && now.Hour() >= c.CutoffHour {
		days = week
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, c.CutoffHour, 0, 0, 0, now.Location())
}

// CycleStarts returns the start of the running cycle and of the one before.
func (c Config) CycleStarts(now time.Time) (current, previous time.Time) {
	next := c.NextRotation(now)
	current = next.AddDate(0, 0, -week)
	previous = current.AddDate(0, 0, -week)
	return current, previous
}

// RecentSince is the earliest completion time that still counts for the
// running turn.
func (c Config) RecentSince(now time.Time) time.Time {
	return now.Add(-c.RecentWindow)
}

// Schedule lays out weeks consecutive turns over members starting from the
// one due now.
//
// A completion inside the running cycle keeps the turn on whoever did it,
// so the status can report it as done. A completion in the previous cycle
// hands the turn to the next member. Anything older means the next member
// skipped their turn: they stay assigned and the first slot carries the
// date they missed, so the status reports them late.
func (c Config) Schedule(members []Member, last *Completion, now time.Time, weeks int) []Assignment {
	if len(members) == 0 || weeks <= 0 {
		return nil
	}

	next := c.NextRotation(now)
	current, previous := c.CycleStarts(now)

	start := 0
	first := next
	if last != nil {
		if idx := indexOf(members, last.UserID); idx >= 0 {
			at := last.At.In(now.Location())
			switch {
			case !at.Before(current):
				start = idx
			case !at.Before(previous):
				start = (idx + 1) % len(members)
			default:
				start = (idx + 1) % len(members)
				first = c.NextRotation(at).AddDate(0, 0, week)
			}
		}
	}

	schedule := make([]Assignment, 0, weeks)
	for i := 0; i < weeks; i++ {
		date := next.AddDate(0, 0, week*i)
		if i == 0 {
			date = first
		}
		m := members[(start+i)%len(members)]
		schedule = append(schedule, Assignment{
			Date:     date,
			Label:    date.Format(labelLayout),
			UserID:   m.ID,
			UserName: m.Name,
		})
	}

	return schedule
}

// ClampWeeks maps a requested horizon onto [1, MaxWeeks], defaulting
// non-positive values to DefaultWeeks.
func ClampWeeks(weeks int) int {
	switch {
	case weeks <= 0:
		return DefaultWeeks
	case weeks > MaxWeeks:
		return MaxWeeks
	default:
		return weeks
	}
}

func indexOf(members []Member, id uuid.UUID) int {
	for i, m := range members {
		if m.ID == id {
			return i
		}
	}
	return -1
}
