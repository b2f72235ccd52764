package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DaysPerYear is the year length used for account age labels.
	DaysPerYear = 365
	// DaysPerMonth is the month length used for account age labels.
	DaysPerMonth = 30
)

// AccountAgeDays returns the number of whole days between created and now.
// An unknown (zero) creation time or one in the future yields 0.
func AccountAgeDays(created, now time.Time) int {
	if created.IsZero() || now.Before(created) {
		return 0
	}

	return int(now.Sub(created) / (24 * time.Hour))
}

// FormatAccountAge renders an age in days as "<y> years, <m> months, <d> days".
//
// The breakdown is calendar-naive: a year is 365 days and a month is 30 days,
// so 400 days renders as "1 years, 1 months, 5 days". Leading zero units are
// omitted and a zero day remainder is dropped unless it is the only unit.
func FormatAccountAge(ageDays int) string {
	if ageDays < 0 {
		ageDays = 0
	}

	years := ageDays / DaysPerYear
	remainder := ageDays % DaysPerYear
	months := remainder / DaysPerMonth
	days := remainder % DaysPerMonth

	parts := make([]string, 0, 3)

	switch {
	case years > 0:
		parts = append(parts, fmt.Sprintf("%d years", years), fmt.Sprintf("%d months", months))
	case months > 0:
		parts = append(parts, fmt.Sprintf("%d months", months))
	default:
		return fmt.Sprintf("%d days", days)
	}

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}

	return strings.Join(parts, ", ")
}
