// Package clock provides time-interval arithmetic shared by the lock and
// session domains. All durations exposed to callers are whole minutes so that
// repeated save/load cycles cannot accumulate sub-minute drift.
package clock

import "time"

// NowFunc supplies the current time. Services take a NowFunc so tests can
// substitute a fixed or stepped clock.
type NowFunc func() time.Time

// Minutes converts a duration to whole minutes, rounding to the nearest
// minute. Negative durations clamp to zero.
func Minutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int((d + 30*time.Second) / time.Minute)
}

// MinutesBetween returns the whole-minute duration from start to end.
func MinutesBetween(start, end time.Time) int {
	return Minutes(end.Sub(start))
}

// Interval is a span of time that may still be open.
type Interval struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Closed reports whether the interval has ended.
func (iv Interval) Closed() bool {
	return iv.End != nil
}

// Elapsed returns the interval length. Open intervals are measured up to now.
func (iv Interval) Elapsed(now time.Time) time.Duration {
	end := now
	if iv.End != nil {
		end = *iv.End
	}
	if end.Before(iv.Start) {
		return 0
	}
	return end.Sub(iv.Start)
}
