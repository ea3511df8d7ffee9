package format

import (
	"fmt"
	"math"
)

// Rounding thresholds for relative durations. A value is expressed in the
// largest unit whose rounded count stays under the next threshold
const (
	secondsThreshold = 45
	minutesThreshold = 45
	hoursThreshold   = 22
	daysThreshold    = 26
	monthsThreshold  = 11
)

// HumanizeDuration renders a number of seconds as a relative phrase such as
// "a few seconds", "5 hours" or "2 years". The sign is ignored
func HumanizeDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	abs := math.Abs(seconds)

	secs := math.Round(abs)
	minutes := math.Round(abs / 60)
	hours := math.Round(abs / 3600)
	days := math.Round(abs / 86400)
	// 400 years hold 146097 days
	months := math.Round(abs / 86400 * 4800 / 146097)
	years := math.Round(abs / 86400 * 400 / 146097)

	switch {
	case secs < secondsThreshold:
		return "a few seconds"
	case minutes <= 1:
		return "a minute"
	case minutes < minutesThreshold:
		return fmt.Sprintf("%d minutes", int64(minutes))
	case hours <= 1:
		return "an hour"
	case hours < hoursThreshold:
		return fmt.Sprintf("%d hours", int64(hours))
	case days <= 1:
		return "a day"
	case days < daysThreshold:
		return fmt.Sprintf("%d days", int64(days))
	case months <= 1:
		return "a month"
	case months < monthsThreshold:
		return fmt.Sprintf("%d months", int64(months))
	case years <= 1:
		return "a year"
	default:
		return fmt.Sprintf("%d years", int64(years))
	}
}
