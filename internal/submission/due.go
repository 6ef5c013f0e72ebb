package submission

import (
	"strconv"

	"google.golang.org/api/classroom/v1"
)

// NoDueDate is shown for coursework without a due date.
const NoDueDate = "No due date"

// missingComponent replaces an absent year, month or day.
const missingComponent = "N/A"

// DueDate is a calendar date whose components may each be absent (zero).
type DueDate struct {
	Year  int64
	Month int64
	Day   int64
}

// dueDateFrom converts the API date, preserving nil.
func dueDateFrom(d *classroom.Date) *DueDate {
	if d == nil {
		return nil
	}

	return &DueDate{Year: d.Year, Month: d.Month, Day: d.Day}
}

// FormatDue renders d as year-month-day without zero padding, e.g.
// "2024-5-N/A". A nil date or one with no components yields NoDueDate.
func FormatDue(d *DueDate) string {
	if d == nil || (d.Year == 0 && d.Month == 0 && d.Day == 0) {
		return NoDueDate
	}

	return component(d.Year) + "-" + component(d.Month) + "-" + component(d.Day)
}

func component(v int64) string {
	if v == 0 {
		return missingComponent
	}

	return strconv.FormatInt(v, 10)
}
