package rotation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aldo  = Member{ID: uuid.New(), Name: "Aldo"}
	jaz   = Member{ID: uuid.New(), Name: "Jaz"}
	maia  = Member{ID: uuid.New(), Name: "Maia"}
	simon = Member{ID: uuid.New(), Name: "Simon"}

	members = []Member{aldo, jaz, maia, simon}
)

func date(month time.Month, day, hour, min int) time.Time {
	return time.Date(2025, month, day, hour, min, 0, 0, time.UTC)
}

func names(schedule []Assignment) []string {
	out := make([]string, 0, len(schedule))
	for _, a := range schedule {
		out = append(out, a.UserName)
	}
	return out
}

func TestNextRotation(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "midweek", now: date(time.November, 26, 10, 0), want: date(time.November, 29, 12, 0)},
		{name: "rotation day before cutoff", now: date(time.November, 29, 11, 59), want: date(time.November, 29, 12, 0)},
		{name: "rotation day at cutoff", now: date(time.November, 29, 12, 0), want: date(time.December, 6, 12, 0)},
		{name: "day after rotation", now: date(time.November, 30, 9, 0), want: date(time.December, 6, 12, 0)},
		{name: "crosses year", now: date(time.December, 28, 9, 0), want: time.Date(2026, time.January, 3, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.NextRotation(tt.now)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.True(t, got.After(tt.now))
		})
	}
}

func TestNextRotationKeepsLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	now := time.Date(2025, time.November, 29, 11, 0, 0, 0, loc)

	got := DefaultConfig().NextRotation(now)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 29, got.Day())
	assert.Equal(t, 12, got.Hour())
}

func TestCycleStarts(t *testing.T) {
	current, previous := DefaultConfig().CycleStarts(date(time.November, 26, 10, 0))
	assert.True(t, date(time.November, 22, 12, 0).Equal(current))
	assert.True(t, date(time.November, 15, 12, 0).Equal(previous))
}

func TestScheduleWithoutHistory(t *testing.T) {
	schedule := DefaultConfig().Schedule(members, nil, date(time.November, 26, 10, 0), 6)
	require.Len(t, schedule, 6)

	assert.Equal(t, []string{"Aldo", "Jaz", "Maia", "Simon", "Aldo", "Jaz"}, names(schedule))
	assert.Equal(t, "2025-11-29 (Sat)", schedule[0].Label)
	assert.Equal(t, "2025-12-06 (Sat)", schedule[1].Label)
	assert.Equal(t, "2026-01-03 (Sat)", schedule[5].Label)
	assert.Equal(t, aldo.ID, schedule[0].UserID)
}

func TestScheduleCompletionThisCycleStays(t *testing.T) {
	last := &Completion{UserID: aldo.ID, UserName: aldo.Name, At: date(time.November, 24, 18, 0)}

	schedule := DefaultConfig().Schedule(members, last, date(time.November, 26, 10, 0), 3)
	assert.Equal(t, []string{"Aldo", "Jaz", "Maia"}, names(schedule))
	assert.Equal(t, "2025-11-29 (Sat)", schedule[0].Label)
}

func TestScheduleCompletionAtBoundaryBelongsToNewCycle(t *testing.T) {
	last := &Completion{UserID: jaz.ID, At: date(time.November, 22, 12, 0)}

	schedule := DefaultConfig().Schedule(members, last, date(time.November, 26, 10, 0), 1)
	assert.Equal(t, []string{"Jaz"}, names(schedule))
}

func TestScheduleCompletionLastCycleAdvances(t *testing.T) {
	last := &Completion{UserID: aldo.ID, At: date(time.November, 20, 9, 0)}

	schedule := DefaultConfig().Schedule(members, last, date(time.November, 26, 10, 0), 2)
	assert.Equal(t, []string{"Jaz", "Maia"}, names(schedule))
	assert.Equal(t, "2025-11-29 (Sat)", schedule[0].Label)
}

func TestScheduleStuckTurnKeepsMissedDate(t *testing.T) {
	cfg := DefaultConfig()
	now := date(time.November, 24, 9, 0)
	last := &Completion{UserID: maia.ID, At: date(time.November, 3, 20, 0)}

	schedule := cfg.Schedule(members, last, now, 3)
	require.Len(t, schedule, 3)

	// Simon owed the turn ending Nov 15 and never did it
	assert.Equal(t, []string{"Simon", "Aldo", "Jaz"}, names(schedule))
	assert.Equal(t, "2025-11-15 (Sat)", schedule[0].Label)
	assert.Equal(t, "2025-12-06 (Sat)", schedule[1].Label)

	status := RotationStatus("Room Cleaning", schedule, false, now)
	assert.Equal(t, StateLate, status.State)
	assert.Equal(t, 9, status.DaysLate)
	assert.Equal(t, "Simon is late by 9 days!", status.Message)
}

func TestScheduleStuckTurnTwoCyclesLate(t *testing.T) {
	last := &Completion{UserID: aldo.ID, At: date(time.November, 1, 10, 0)}

	tests := []struct {
		name string
		now  time.Time
		late int
	}{
		{name: "rotation day ending the second missed cycle", now: date(time.November, 15, 13, 0), late: 7},
		{name: "day after", now: date(time.November, 16, 9, 0), late: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := DefaultConfig().Schedule(members, last, tt.now, 2)
			require.Len(t, schedule, 2)

			// Jaz was due Nov 8 and is still on the hook
			assert.Equal(t, []string{"Jaz", "Maia"}, names(schedule))
			assert.Equal(t, "2025-11-08 (Sat)", schedule[0].Label)

			status := RotationStatus("Room Cleaning", schedule, false, tt.now)
			assert.Equal(t, StateLate, status.State)
			assert.Equal(t, tt.late, status.DaysLate)
		})
	}
}

func TestScheduleWrapsAround(t *testing.T) {
	last := &Completion{UserID: simon.ID, At: date(time.November, 19, 9, 0)}

	schedule := DefaultConfig().Schedule(members, last, date(time.November, 26, 10, 0), 5)
	assert.Equal(t, []string{"Aldo", "Jaz", "Maia", "Simon", "Aldo"}, names(schedule))
}

func TestScheduleIgnoresFormerMembers(t *testing.T) {
	last := &Completion{UserID: uuid.New(), UserName: "Moved out", At: date(time.November, 25, 9, 0)}

	schedule := DefaultConfig().Schedule(members, last, date(time.November, 26, 10, 0), 1)
	assert.Equal(t, []string{"Aldo"}, names(schedule))
	assert.Equal(t, "2025-11-29 (Sat)", schedule[0].Label)
}

func TestScheduleEmpty(t *testing.T) {
	now := date(time.November, 26, 10, 0)
	assert.Empty(t, DefaultConfig().Schedule(nil, nil, now, 6))
	assert.Empty(t, DefaultConfig().Schedule(members, nil, now, 0))
}

func TestClampWeeks(t *testing.T) {
	assert.Equal(t, DefaultWeeks, ClampWeeks(0))
	assert.Equal(t, DefaultWeeks, ClampWeeks(-3))
	assert.Equal(t, 1, ClampWeeks(1))
	assert.Equal(t, MaxWeeks, ClampWeeks(500))
}

func TestRecentSince(t *testing.T) {
	now := date(time.November, 26, 10, 0)
	assert.True(t, date(time.November, 20, 10, 0).Equal(DefaultConfig().RecentSince(now)))
}
