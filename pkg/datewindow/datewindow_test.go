package datewindow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/datewindow"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStartDate(t *testing.T) {
	end := day(2019, time.June, 13)

	tests := []struct {
		name       string
		monthsBack int
		expected   time.Time
	}{
		{"one month", 1, day(2019, time.May, 13)},
		{"six months crosses year", 6, day(2018, time.December, 13)},
		{"full year", 12, day(2018, time.June, 13)},
		{"more than two years", 26, day(2017, time.April, 13)},
		{"zero months", 0, day(2019, time.June, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := datewindow.StartDate(end, tt.monthsBack)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStartDateClampsDay(t *testing.T) {
	// March 31 back one month lands in February
	got := datewindow.StartDate(day(2019, time.March, 31), 1)
	assert.Equal(t, day(2019, time.February, 28), got)

	// leap year keeps the 29th
	got = datewindow.StartDate(day(2020, time.March, 31), 1)
	assert.Equal(t, day(2020, time.February, 29), got)

	// 31st back to a 30-day month
	got = datewindow.StartDate(day(2019, time.July, 31), 1)
	assert.Equal(t, day(2019, time.June, 30), got)
}

func TestStartDateNegativeMonths(t *testing.T) {
	end := day(2019, time.June, 13)
	assert.Equal(t, end, datewindow.StartDate(end, -3))
}

func TestNextDay(t *testing.T) {
	got := datewindow.NextDay(day(2019, time.June, 30))
	assert.Equal(t, day(2019, time.July, 1), got)

	// month rollover at year boundary
	got = datewindow.NextDay(day(2019, time.December, 31))
	assert.Equal(t, day(2020, time.January, 1), got)
}

func TestDateFormatRoundTrip(t *testing.T) {
	parsed, err := time.Parse(datewindow.DateFormat, "2019-06-13")
	require.NoError(t, err)
	assert.Equal(t, "2019-06-13", parsed.Format(datewindow.DateFormat))
}
