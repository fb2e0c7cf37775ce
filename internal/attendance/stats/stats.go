// Package stats derives weekly and monthly views from attendance records.
// Pure functions over value snapshots; nothing here touches storage.
package stats

import (
	"sort"
	"time"

	"punchd/internal/attendance/models"
)

// Weekly produces exactly 7 entries for the trailing window ending at today,
// in calendar order oldest to newest. Days without a record, and days whose
// record is incomplete, contribute zero hours.
func Weekly(records []models.Record, today time.Time, loc *time.Location) []models.DailyStat {
	if loc == nil {
		loc = time.Local
	}
	byDay := make(map[string]models.Record, len(records))
	for _, rec := range records {
		byDay[rec.Day.Format("2006-01-02")] = rec
	}

	end := models.DayOf(today, loc)
	out := make([]models.DailyStat, 0, 7)
	for i := 6; i >= 0; i-- {
		day := end.AddDate(0, 0, -i)
		hours := 0.0
		if rec, ok := byDay[day.Format("2006-01-02")]; ok {
			if d, defined := rec.WorkDuration(); defined {
				hours = d.Hours()
			}
		}
		out = append(out, models.DailyStat{
			Date:    day,
			Hours:   hours,
			Weekday: day.Format("Mon"),
		})
	}
	return out
}

// MonthBounds returns the first and last calendar day of the month containing t.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// Monthly aggregates the records falling inside the visible month: count of
// complete days, total worked time, and the average over complete days only.
// A month with no complete record averages to zero, never NaN.
func Monthly(records []models.Record, month time.Time, loc *time.Location) models.MonthlySummary {
	first, last := MonthBounds(month, loc)

	var summary models.MonthlySummary
	for _, rec := range records {
		if rec.Day.Before(first) || rec.Day.After(last) {
			continue
		}
		summary.Records = append(summary.Records, rec)
		if rec.IsComplete() {
			summary.CompleteDays++
		}
		if d, defined := rec.WorkDuration(); defined {
			summary.TotalWorked += d
		}
	}
	sort.Slice(summary.Records, func(i, j int) bool {
		return summary.Records[i].Day.After(summary.Records[j].Day)
	})
	if summary.CompleteDays > 0 {
		summary.AverageWorkHours = summary.TotalWorked.Hours() / float64(summary.CompleteDays)
	}
	return summary
}
