// Package datewindow computes the reporting window for order pulls. The
// source store's admin API filters on calendar dates, so the window start is
// "the same day of the month, N months back" rather than N*30 days.
package datewindow

import "time"

// DateFormat is the wire format both remote systems use for dates.
const DateFormat = "2006-01-02"

// lastDayOfMonth returns the last day number of the given month.
func lastDayOfMonth(year int, month time.Month) int {
	// day 0 of the next month normalizes to the last day of this month
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// StartDate returns the date monthsBack calendar months before end, keeping
// the day of the month. When the target month is shorter than end's day, the
// day clamps to the last day of that month (Jan 31 back 1 month is Feb 28,
// or Feb 29 in a leap year).
func StartDate(end time.Time, monthsBack int) time.Time {
	if monthsBack < 0 {
		monthsBack = 0
	}

	year := end.Year()
	month := int(end.Month()) - monthsBack
	for month < 1 {
		month += 12
		year--
	}

	m := time.Month(month)
	day := end.Day()
	if last := lastDayOfMonth(year, m); day > last {
		day = last
	}

	return time.Date(year, m, day, 0, 0, 0, 0, time.UTC)
}

// NextDay returns the day after d. The source API treats its "added to"
// filter as exclusive, so range queries are sent with NextDay(end).
func NextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}
