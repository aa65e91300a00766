package shared

import "time"

// Reporting period keywords accepted across the analytics surface.
const (
	PeriodYTD     = "YTD"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
	PeriodCustom  = "custom"
)

// DateRange is an inclusive start/end pair.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ResolvePeriod converts a period keyword and optional explicit bounds into a
// concrete inclusive date range, using today as the reference date.
//
// Unrecognized keywords collapse to a single-day range of today. Custom
// requires both bounds; they are returned verbatim without ordering checks,
// so callers must tolerate an empty range.
func ResolvePeriod(period string, customStart, customEnd time.Time, today time.Time) DateRange {
	today = truncateToDay(today)

	switch period {
	case PeriodYTD:
		return DateRange{Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location()), End: today}
	case PeriodMonth:
		return DateRange{Start: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()), End: today}
	case PeriodQuarter:
		quarter := (int(today.Month())-1)/3 + 1
		firstMonth := time.Month(3*quarter - 2)
		return DateRange{Start: time.Date(today.Year(), firstMonth, 1, 0, 0, 0, 0, today.Location()), End: today}
	case PeriodYear:
		return DateRange{
			Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location()),
			End:   time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, today.Location()),
		}
	case PeriodCustom:
		if !customStart.IsZero() && !customEnd.IsZero() {
			return DateRange{Start: truncateToDay(customStart), End: truncateToDay(customEnd)}
		}
	}
	return DateRange{Start: today, End: today}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
