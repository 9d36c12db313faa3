package dashboard

import "time"

// DayNames labels Grid rows.
var DayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Grid is a week of hourly readings, one row per weekday starting Sunday.
type Grid struct {
	Values  [7][24]float64
	Present [7][24]bool
	Min     float64
	Max     float64
}

// BuildGrid places cells into a Grid. Day 7 (Sunday) lands on row 0 and
// day 1 (Monday) on row 1. Cells outside 1..7 x 0..23 are skipped.
func BuildGrid(cells []HeatmapCell) Grid {
	var g Grid
	seen := false
	for _, c := range cells {
		if c.Day < 1 || c.Day > 7 || c.Hour < 0 || c.Hour > 23 {
			continue
		}
		row := c.Day % 7
		g.Values[row][c.Hour] = c.Value
		g.Present[row][c.Hour] = true

		if !seen {
			g.Min, g.Max = c.Value, c.Value
			seen = true
			continue
		}
		g.Min = min(g.Min, c.Value)
		g.Max = max(g.Max, c.Value)
	}
	if !seen {
		g.Min, g.Max = 0, 1
	}
	return g
}

// Level maps v onto 0..steps-1 between the grid's Min and Max.
func (g Grid) Level(v float64, steps int) int {
	if steps <= 1 || g.Max <= g.Min {
		return 0
	}
	l := int((v - g.Min) / (g.Max - g.Min) * float64(steps-1))
	return max(0, min(steps-1, l))
}

// WeekRange returns the Sunday and Saturday around t, formatted YYYY-MM-DD.
func WeekRange(t time.Time) (start, end string) {
	sunday := t.AddDate(0, 0, -int(t.Weekday()))
	saturday := sunday.AddDate(0, 0, 6)
	return sunday.Format(time.DateOnly), saturday.Format(time.DateOnly)
}
