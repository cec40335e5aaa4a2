// Package analytics aggregates the incident collection into the figures shown
// on the staff dashboard.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/models"
)

// TrendDays is the length of the daily trend window, today included.
const TrendDays = 7

// NotAvailable is reported when no incident has a measurable resolution time.
const NotAvailable = "N/A"

// DayLabeler renders a calendar day for display, e.g. "29 nov".
type DayLabeler func(time.Time) string

// CategoryStats is the per-category breakdown.
type CategoryStats struct {
	Name              models.Category `json:"name"`
	Count             int             `json:"count"`
	Percentage        int             `json:"percentage"`
	AvgUrgency        float64         `json:"avgUrgency"`
	AvgResolutionTime string          `json:"avgResolutionTime"`
}

// DailyCount is the number of incidents created on one local calendar day.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// Stats is the dashboard summary.
type Stats struct {
	Total             int                   `json:"total"`
	CompletionRate    int                   `json:"completionRate"`
	AvgResolutionTime string                `json:"avgResolutionTime"`
	Categories        []CategoryStats       `json:"sortedCategories"`
	HighImpact        *CategoryStats        `json:"highImpact"`
	DailyCounts       [TrendDays]DailyCount `json:"dailyCounts"`
	StatusCounts      map[models.Status]int `json:"statusCounts"`
}

type categoryAcc struct {
	count           int
	totalUrgency    int
	resolved        int
	totalResolution time.Duration
}

// ComputeStats aggregates incidents as of now. It returns nil for an empty
// collection. The result depends only on its arguments.
func ComputeStats(incidents []models.Incident, now time.Time, label DayLabeler) *Stats {
	if len(incidents) == 0 {
		return nil
	}
	if label == nil {
		label = defaultLabel
	}

	total := len(incidents)
	stats := &Stats{
		Total:        total,
		StatusCounts: make(map[models.Status]int, len(models.Statuses)),
	}

	var (
		resolved        int
		measured        int
		totalResolution time.Duration
		order           []models.Category
		byCategory      = make(map[models.Category]*categoryAcc)
	)

	for i := range incidents {
		inc := &incidents[i]
		stats.StatusCounts[inc.Status]++

		acc, ok := byCategory[inc.Category]
		if !ok {
			acc = &categoryAcc{}
			byCategory[inc.Category] = acc
			order = append(order, inc.Category)
		}
		acc.count++
		acc.totalUrgency += inc.UrgencyLevel

		if inc.Status != models.StatusResolved {
			continue
		}
		resolved++
		if d, ok := inc.ResolutionTime(); ok {
			measured++
			totalResolution += d
			acc.resolved++
			acc.totalResolution += d
		}
	}

	stats.CompletionRate = percent(resolved, total)
	stats.AvgResolutionTime = average(totalResolution, measured)

	stats.Categories = make([]CategoryStats, 0, len(order))
	for _, name := range order {
		acc := byCategory[name]
		stats.Categories = append(stats.Categories, CategoryStats{
			Name:              name,
			Count:             acc.count,
			Percentage:        percent(acc.count, total),
			AvgUrgency:        math.Round(float64(acc.totalUrgency)/float64(acc.count)*10) / 10,
			AvgResolutionTime: average(acc.totalResolution, acc.resolved),
		})
	}
	sort.SliceStable(stats.Categories, func(i, j int) bool {
		return stats.Categories[i].Count > stats.Categories[j].Count
	})

	for i := range stats.Categories {
		if stats.HighImpact == nil || stats.Categories[i].AvgUrgency > stats.HighImpact.AvgUrgency {
			c := stats.Categories[i]
			stats.HighImpact = &c
		}
	}

	stats.DailyCounts = dailySeries(incidents, now, label)
	return stats
}

// dailySeries buckets incidents into the TrendDays local days ending at now,
// oldest first. Days without incidents are present with a zero count.
func dailySeries(incidents []models.Incident, now time.Time, label DayLabeler) [TrendDays]DailyCount {
	loc := now.Location()
	counts := make(map[string]int)
	for i := range incidents {
		counts[incidents[i].CreatedAt.In(loc).Format("2006-01-02")]++
	}

	var out [TrendDays]DailyCount
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for i := 0; i < TrendDays; i++ {
		day := today.AddDate(0, 0, i-(TrendDays-1))
		out[i] = DailyCount{
			Date:  day,
			Label: label(day),
			Count: counts[day.Format("2006-01-02")],
		}
	}
	return out
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func average(sum time.Duration, n int) string {
	if n == 0 {
		return NotAvailable
	}
	return FormatDuration(sum / time.Duration(n))
}

// FormatDuration renders d as "Nm" below an hour, "Hh Mm" below a day and
// "Dd Hh" otherwise. Components are truncated, not rounded.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	hours := minutes / 60
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", minutes)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	}
}

// UrgencyLabel returns the localization key for an urgency level.
func UrgencyLabel(level int) string {
	for _, bound := range []int{5, 4, 3} {
		if level >= bound {
			return config.UrgencyThresholds[bound]
		}
	}
	return "urgency_low"
}

func defaultLabel(t time.Time) string {
	return t.Format("2 Jan")
}
