package trial_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/labgrid/pkg/trial"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clockAt(now time.Time) trial.Clock {
	return trial.New(30*24*time.Hour, trial.WithNow(func() time.Time { return now }))
}

func TestClock_IsExpired_Boundary(t *testing.T) {
	t.Parallel()

	window := 30 * 24 * time.Hour

	assert.False(t, clockAt(start).IsExpired(start))
	assert.False(t, clockAt(start.Add(window)).IsExpired(start), "exactly one window is not expired")
	assert.True(t, clockAt(start.Add(window+time.Nanosecond)).IsExpired(start))
	assert.True(t, clockAt(start.Add(31*24*time.Hour)).IsExpired(start))
}

func TestClock_RemainingDays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"fresh trial", 0, 30},
		{"one second in rounds up", time.Second, 30},
		{"one day in", 24 * time.Hour, 29},
		{"last hour", 30*24*time.Hour - time.Hour, 1},
		{"exact boundary", 30 * 24 * time.Hour, 0},
		{"long after", 90 * 24 * time.Hour, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, clockAt(start.Add(tt.elapsed)).RemainingDays(start))
		})
	}
}

func TestClock_RemainingDays_NeverNegative(t *testing.T) {
	t.Parallel()

	for h := -48; h < 24*40; h += 7 {
		got := clockAt(start.Add(time.Duration(h) * time.Hour)).RemainingDays(start)
		assert.GreaterOrEqual(t, got, 0)
	}
}

func TestConfig_Window(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*24*time.Hour, trial.Config{}.Window())
	assert.Equal(t, 15*24*time.Hour, trial.Config{Days: 15}.Window())
	assert.Equal(t, start.Add(15*24*time.Hour), trial.NewFromConfig(trial.Config{Days: 15}).EndsAt(start))
}
