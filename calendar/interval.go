package calendar

// =============================================================================
// INTERVAL - Half-open range of nights [Start, End)
// =============================================================================

// Interval is a half-open date range. For a stay, Start is the check-in day and
// End is the check-out day, which is the first free night.
type Interval struct {
	Start Date
	End   Date
}

// NewInterval returns [start, end).
func NewInterval(start, end Date) Interval {
	return Interval{Start: start, End: end}
}

// IsEmpty reports whether the interval holds no nights (including inverted ranges).
func (i Interval) IsEmpty() bool {
	return !i.Start.Before(i.End)
}

// Nights returns the number of nights, 0 for empty intervals.
func (i Interval) Nights() int {
	if i.IsEmpty() {
		return 0
	}
	return i.Start.DaysUntil(i.End)
}

// EachNight calls fn with the start date of every night in the interval.
func (i Interval) EachNight(fn func(Date)) {
	for d := i.Start; d.Before(i.End); d = d.AddDays(1) {
		fn(d)
	}
}

// Overlaps reports whether the two intervals share at least one night.
func (i Interval) Overlaps(o Interval) bool {
	return IntervalsOverlap(i.Start, i.End, o.Start, o.End)
}

func (i Interval) String() string {
	return "[" + i.Start.String() + ", " + i.End.String() + ")"
}

// IntervalsOverlap is the half-open overlap test: a1 < b2 AND b1 < a2.
// Empty intervals never overlap anything, including themselves.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd Date) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
