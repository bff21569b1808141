package payroll

import "time"

const dateKeyLayout = "2006-01-02"

// dateOnly drops the clock and location so dates from different sources compare equal.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// inPeriod reports whether t falls in [start, end], comparing dates only.
func inPeriod(t, start, end time.Time) bool {
	d := dateOnly(t)
	return !d.Before(dateOnly(start)) && !d.After(dateOnly(end))
}

// HolidaySet is a lookup of holiday dates.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates []time.Time) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[dateOnly(d).Format(dateKeyLayout)] = struct{}{}
	}
	return set
}

func (h HolidaySet) Contains(t time.Time) bool {
	_, ok := h[dateOnly(t).Format(dateKeyLayout)]
	return ok
}

// BusinessDaysInPeriod counts Monday to Friday dates in [start, end] that are not holidays.
func BusinessDaysInPeriod(start, end time.Time, holidays HolidaySet) int {
	days := 0
	for d := dateOnly(start); !d.After(dateOnly(end)); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) && !holidays.Contains(d) {
			days++
		}
	}
	return days
}

// HolidayDaysInPeriod counts holidays in [start, end] that fall on a weekday.
func HolidayDaysInPeriod(start, end time.Time, holidays HolidaySet) int {
	days := 0
	for d := dateOnly(start); !d.After(dateOnly(end)); d = d.AddDate(0, 0, 1) {
		if isWeekday(d) && holidays.Contains(d) {
			days++
		}
	}
	return days
}
