package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDailySchedule(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		expected DailySchedule
	}{
		{"five past midnight", "5 0 * * *", DailySchedule{Hour: 0, Minute: 5}},
		{"half past three", "30 3 * * *", DailySchedule{Hour: 3, Minute: 30}},
		{"last minute of the day", "59 23 * * *", DailySchedule{Hour: 23, Minute: 59}},
		{"short form", "0 2", DailySchedule{Hour: 2, Minute: 0}},
		{"extra whitespace", "  15   6  *  *  * ", DailySchedule{Hour: 6, Minute: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDailySchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDailySchedule_Invalid(t *testing.T) {
	for _, expr := range []string{"", "5", "60 1 * * *", "0 24 * * *", "*/5 * * * *", "0 2 1 * *", "a b * * *", "0 2 * * * *"} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseDailySchedule(expr)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestDailySchedule_Next(t *testing.T) {
	s := DailySchedule{Hour: 0, Minute: 5}
	loc := time.FixedZone("ICT", 7*3600)

	before := time.Date(2026, 3, 16, 0, 1, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 5, 0, 0, loc), s.Next(before))

	at := time.Date(2026, 3, 16, 0, 5, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 17, 0, 5, 0, 0, loc), s.Next(at))

	endOfMonth := time.Date(2026, 3, 31, 12, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 5, 0, 0, loc), s.Next(endOfMonth))

	assert.True(t, s.Due(at.Add(30*time.Second)))
	assert.False(t, s.Due(at.Add(time.Minute)))
	assert.Equal(t, "00:05 daily", s.String())
}
