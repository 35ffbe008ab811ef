// Package calendar holds the date rules shared by obligation generation and
// prioritisation.  All functions work on date-only values in UTC; callers
// truncate wall-clock instants with DateOf before comparing.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var monthNamesEN = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var monthNamesFR = [12]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// Date returns midnight UTC of year-month-day.  A day past the end of the
// month is clamped to the month's last day, so Date(2025, 2, 30) is
// 2025-02-28.
func Date(year int, month time.Month, day int) time.Time {
	if last := LastDayOfMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar day in t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LastDayOfMonth returns 28..31.
func LastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthLabel renders "March 2025".  An out-of-range month yields "" so that
// callers treat it like an unparseable period.
func MonthLabel(month time.Month, year int) string {
	if month < time.January || month > time.December {
		return ""
	}
	return fmt.Sprintf("%s %d", monthNamesEN[month-1], year)
}

// MonthName returns the English month name.
func MonthName(month time.Month) string {
	if month < time.January || month > time.December {
		return ""
	}
	return monthNamesEN[month-1]
}

// QuarterLabel renders "T1 2025".
func QuarterLabel(quarter, year int) string {
	return fmt.Sprintf("T%d %d", quarter, year)
}

// FiscalYearLabel renders "Exercice 2024".
func FiscalYearLabel(year int) string {
	return fmt.Sprintf("Exercice %d", year)
}

// ParsePeriodLabel reads a label produced by MonthLabel back into its month
// and year.  French month names and the numeric forms "03/2025" and
// "2025-03" are accepted as well.  ok is false for anything else.
func ParsePeriodLabel(label string) (month time.Month, year int, ok bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, 0, false
	}

	if parts := strings.Fields(label); len(parts) == 2 {
		y, err := strconv.Atoi(parts[1])
		if err != nil || y < 1900 || y > 9999 {
			return 0, 0, false
		}
		for i := range monthNamesEN {
			if strings.EqualFold(parts[0], monthNamesEN[i]) || strings.EqualFold(parts[0], monthNamesFR[i]) {
				return time.Month(i + 1), y, true
			}
		}
		return 0, 0, false
	}

	for _, layout := range []string{"01/2006", "2006-01"} {
		if t, err := time.Parse(layout, label); err == nil {
			return t.Month(), t.Year(), true
		}
	}
	return 0, 0, false
}

// RollForwardIfWeekend moves a Saturday two days and a Sunday one day
// forward.  Weekdays are returned unchanged.
func RollForwardIfWeekend(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, 2)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// AddMonths shifts (year, month) by delta months, wrapping across years in
// both directions.
func AddMonths(year int, month time.Month, delta int) (int, time.Month) {
	idx := year*12 + int(month-1) + delta
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// DueInFollowingMonth returns day dueDay of the month after (year, month),
// clamped to that month's length.
func DueInFollowingMonth(year int, month time.Month, dueDay int) time.Time {
	y, m := AddMonths(year, month, 1)
	return Date(y, m, dueDay)
}

// DaysBetween counts whole calendar days from "from" to "to"; negative when
// "to" is earlier.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// QuarterOf returns 1..4.
func QuarterOf(month time.Month) int {
	return (int(month)-1)/3 + 1
}

// QuarterBounds returns the first and last day of quarter q of year.
func QuarterBounds(year, quarter int) (start, end time.Time) {
	firstMonth := time.Month((quarter-1)*3 + 1)
	start = Date(year, firstMonth, 1)
	lastMonth := firstMonth + 2
	end = Date(year, lastMonth, LastDayOfMonth(year, lastMonth))
	return start, end
}

// MonthBounds returns the first and last day of a month.
func MonthBounds(year int, month time.Month) (start, end time.Time) {
	return Date(year, month, 1), Date(year, month, LastDayOfMonth(year, month))
}
