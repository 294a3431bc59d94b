// Package signaldsl defines the Signal DSL's data model: the tagged
// expression tree, conditions, filters, and the compact duration grammar
// used for windows, snapshots, and cooldowns.
package signaldsl

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern matches the canonical duration literal grammar: an
// unsigned integer amount followed by a single unit letter.
var durationPattern = regexp.MustCompile(`^(\d+)(s|m|h|d|w)$`)

var unitDurations = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// unitsLargestFirst orders units from largest to smallest for canonical
// formatting: prefer the largest unit that divides evenly.
var unitsLargestFirst = []byte{'w', 'd', 'h', 'm', 's'}

// ErrDurationFormat is returned when a duration literal does not match
// `^\d+(s|m|h|d|w)$`.
type ErrDurationFormat struct {
	Input string
}

func (e *ErrDurationFormat) Error() string {
	return fmt.Sprintf("invalid duration format %q: expected <amount><unit> with unit in s,m,h,d,w", e.Input)
}

// ParseDuration parses a duration literal into a time.Duration.
// Only non-negative integer amounts with a single-letter unit are accepted.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &ErrDurationFormat{Input: s}
	}
	amount, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, &ErrDurationFormat{Input: s}
	}
	unit := unitDurations[m[2][0]]
	return time.Duration(amount) * unit, nil
}

// FormatDuration renders a duration in canonical form: the largest unit
// that divides it evenly, ties broken toward the larger unit. A zero
// duration formats as "0s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d == 0 {
		return "0s"
	}
	for _, unit := range unitsLargestFirst {
		unitDur := unitDurations[unit]
		if d%unitDur == 0 {
			return fmt.Sprintf("%d%c", d/unitDur, unit)
		}
	}
	// Unreachable: seconds always divides evenly.
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

// IsDurationLiteral reports whether s matches the duration grammar without
// allocating an error.
func IsDurationLiteral(s string) bool {
	return durationPattern.MatchString(s)
}
