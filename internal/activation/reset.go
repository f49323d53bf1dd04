package activation

import "time"

// LastDailyReset returns the most recent daily reset at or before t.
// The daily reset happens at 00:00 UTC.
func LastDailyReset(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDailyReset returns the first daily reset strictly after t.
func NextDailyReset(t time.Time) time.Time {
	return LastDailyReset(t).AddDate(0, 0, 1)
}

// NextMapReset returns the first map reset boundary strictly after t.
// Boundaries are LastDailyReset(t) + offset + k*cycle for any integer k.
// A trigger landing exactly on a boundary wakes one full cycle later, so a
// marker is never suppressed with a wake time it has already reached.
// A zero cycle falls back to the next daily reset.
func NextMapReset(t time.Time, cycle, offset time.Duration) time.Time {
	if cycle <= 0 {
		return NextDailyReset(t)
	}
	base := LastDailyReset(t).Add(offset)
	diff := t.Sub(base)
	k := diff / cycle
	if diff < 0 && diff%cycle != 0 {
		k--
	}
	return base.Add((k + 1) * cycle)
}
