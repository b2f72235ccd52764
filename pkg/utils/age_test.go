package utils_test

import (
	"testing"
	"time"

	"github.com/robalyx/roprofile/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestAccountAgeDays(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		created time.Time
		want    int
	}{
		{name: "unknown creation", created: time.Time{}, want: 0},
		{name: "created now", created: now, want: 0},
		{name: "partial day rounds down", created: now.Add(-23 * time.Hour), want: 0},
		{name: "exactly 400 days", created: now.Add(-400 * 24 * time.Hour), want: 400},
		{name: "400 days and change", created: now.Add(-400*24*time.Hour - 5*time.Hour), want: 400},
		{name: "future creation", created: now.Add(time.Hour), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.AccountAgeDays(tt.created, now))
		})
	}
}

func TestFormatAccountAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		days int
		want string
	}{
		{days: 0, want: "0 days"},
		{days: 1, want: "1 days"},
		{days: 29, want: "29 days"},
		{days: 30, want: "1 months"},
		{days: 45, want: "1 months, 15 days"},
		{days: 364, want: "12 months, 4 days"},
		{days: 365, want: "1 years, 0 months"},
		{days: 370, want: "1 years, 0 months, 5 days"},
		{days: 400, want: "1 years, 1 months, 5 days"},
		{days: 3000, want: "8 years, 2 months, 20 days"},
		{days: -5, want: "0 days"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.FormatAccountAge(tt.days))
		})
	}
}
