package dispatch

import "time"

// Interval policies.
const (
	IntervalFixed   = "fixed"
	IntervalRandom  = "random"
	IntervalOptimal = "optimal"
)

// optimalHours is the fixed peak-engagement cycle used by the optimal
// policy. Post i lands on day i/5 relative to the start date, at hour
// optimalHours[i%5], minute zero.
var optimalHours = [5]int{9, 12, 15, 18, 21}

// SendTime computes the send time for the post at zero-based position i
// within the ordered selection.
//
// The random policy draws one gap uniformly from
// [0.5*interval, 1.5*interval] minutes and multiplies it by i, so jitter
// grows with position instead of accumulating independent gaps. That
// matches the long-observed behavior and is kept deliberately.
func SendTime(intervalType string, start time.Time, intervalMinutes int, i int, randFloat func() float64) time.Time {
	switch intervalType {
	case IntervalRandom:
		gap := float64(intervalMinutes) * (0.5 + randFloat())
		return start.Add(time.Duration(float64(i) * gap * float64(time.Minute)))
	case IntervalOptimal:
		dayOffset := i / len(optimalHours)
		hour := optimalHours[i%len(optimalHours)]
		day := start.AddDate(0, 0, dayOffset)
		return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, start.Location())
	default: // fixed
		return start.Add(time.Duration(i) * time.Duration(intervalMinutes) * time.Minute)
	}
}
