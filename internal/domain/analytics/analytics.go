// Package analytics derives statistics and dashboard views from task records.
// The same functions run on the server and, as a degraded fallback, on the
// client against its last known task list.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

// Stats summarises one owner's tasks
type Stats struct {
	Total           int     `json:"total" yaml:"total"`
	Completed       int     `json:"completed" yaml:"completed"`
	InProgress      int     `json:"inProgress" yaml:"inProgress"`
	Pending         int     `json:"pending" yaml:"pending"`
	Overdue         int     `json:"overdue" yaml:"overdue"`
	AverageProgress float64 `json:"averageProgress" yaml:"averageProgress"`
	TotalTimeSpent  float64 `json:"totalTimeSpent" yaml:"totalTimeSpent"`
	CompletionRate  float64 `json:"completionRate" yaml:"completionRate"`
}

// DayProductivity aggregates the daily updates marked as worked on for one day
type DayProductivity struct {
	TasksWorkedOn   int `json:"tasksWorkedOn" yaml:"tasksWorkedOn"`
	TotalProgress   int `json:"totalProgress" yaml:"totalProgress"`
	Accomplishments int `json:"accomplishments" yaml:"accomplishments"`
	Blockers        int `json:"blockers" yaml:"blockers"`
}

// ProgressAnalytics is the rollup returned by GET /tasks/analytics
type ProgressAnalytics struct {
	TotalTasks          int                         `json:"totalTasks" yaml:"totalTasks"`
	AverageProgress     float64                     `json:"averageProgress" yaml:"averageProgress"`
	TotalTimeSpent      float64                     `json:"totalTimeSpent" yaml:"totalTimeSpent"`
	TotalEstimatedHours float64                     `json:"totalEstimatedHours" yaml:"totalEstimatedHours"`
	ProductivityByDay   map[string]*DayProductivity `json:"productivityByDay" yaml:"productivityByDay"`
	TimeByDay           map[string]float64          `json:"timeByDay" yaml:"timeByDay"`
}

// ComputeStats counts tasks by status and averages progress. An empty list
// yields zero averages.
func ComputeStats(tasks []*entities.Task, now time.Time) Stats {
	var stats Stats
	progressSum := 0
	for _, task := range tasks {
		stats.Total++
		switch task.Status {
		case entities.TaskStatusCompleted:
			stats.Completed++
		case entities.TaskStatusInProgress:
			stats.InProgress++
		case entities.TaskStatusPending:
			stats.Pending++
		}
		if task.IsOverdue(now) {
			stats.Overdue++
		}
		progressSum += task.Progress
		stats.TotalTimeSpent += task.TotalTimeSpent
	}
	if stats.Total > 0 {
		stats.AverageProgress = round2(float64(progressSum) / float64(stats.Total))
		stats.CompletionRate = round2(float64(stats.Completed) / float64(stats.Total) * 100)
	}
	stats.TotalTimeSpent = round2(stats.TotalTimeSpent)
	return stats
}

// ComputeProgress builds the per-day productivity and time rollups.
func ComputeProgress(tasks []*entities.Task) ProgressAnalytics {
	result := ProgressAnalytics{
		TotalTasks:        len(tasks),
		ProductivityByDay: make(map[string]*DayProductivity),
		TimeByDay:         make(map[string]float64),
	}

	progressSum := 0
	for _, task := range tasks {
		progressSum += task.Progress
		result.TotalTimeSpent += task.TotalTimeSpent
		if task.EstimatedHours != nil {
			result.TotalEstimatedHours += *task.EstimatedHours
		}

		for day, update := range task.DailyUpdates {
			if !update.WorkedOn {
				continue
			}
			bucket, ok := result.ProductivityByDay[day]
			if !ok {
				bucket = &DayProductivity{}
				result.ProductivityByDay[day] = bucket
			}
			bucket.TasksWorkedOn++
			if entry, ok := task.ProgressHistory.Get(day); ok {
				bucket.TotalProgress += entry.Progress
			} else {
				bucket.TotalProgress += task.Progress
			}
			bucket.Accomplishments += len(update.Accomplishments)
			bucket.Blockers += len(update.Blockers)
		}

		for day, entry := range task.TimeEntries {
			result.TimeByDay[day] += entry.Hours
		}
	}

	if len(tasks) > 0 {
		result.AverageProgress = round2(float64(progressSum) / float64(len(tasks)))
	}
	result.TotalTimeSpent = round2(result.TotalTimeSpent)
	return result
}

// Bucket is one bar of the progress histogram
type Bucket struct {
	Label string `json:"label" yaml:"label"`
	Min   int    `json:"min" yaml:"min"`
	Max   int    `json:"max" yaml:"max"`
	Count int    `json:"count" yaml:"count"`
}

// ProgressBuckets histograms tasks into 0%, 1-25%, 26-50%, 51-75%, 76-99% and 100%.
func ProgressBuckets(tasks []*entities.Task) []Bucket {
	buckets := []Bucket{
		{Label: "0%", Min: 0, Max: 0},
		{Label: "1-25%", Min: 1, Max: 25},
		{Label: "26-50%", Min: 26, Max: 50},
		{Label: "51-75%", Min: 51, Max: 75},
		{Label: "76-99%", Min: 76, Max: 99},
		{Label: "100%", Min: 100, Max: 100},
	}
	for _, task := range tasks {
		for i := range buckets {
			if task.Progress >= buckets[i].Min && task.Progress <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// CompletionRate is completed/total as a percentage, 0 when there are no tasks.
func CompletionRate(stats Stats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return round2(float64(stats.Completed) / float64(stats.Total) * 100)
}

// Activity is one row of the recent activity list
type Activity struct {
	TaskID       string              `json:"taskId" yaml:"taskId"`
	Title        string              `json:"title" yaml:"title"`
	Status       entities.TaskStatus `json:"status" yaml:"status"`
	Progress     int                 `json:"progress" yaml:"progress"`
	LastWorkedOn string              `json:"lastWorkedOn" yaml:"lastWorkedOn"`
}

// RecentActivity returns up to limit tasks ordered by lastWorkedOn, newest first.
// Tasks that were never worked on are left out.
func RecentActivity(tasks []*entities.Task, limit int) []Activity {
	activity := make([]Activity, 0, len(tasks))
	for _, task := range tasks {
		last := task.LastWorkedOn()
		if last == nil {
			continue
		}
		activity = append(activity, Activity{
			TaskID:       task.ID.String(),
			Title:        task.Title,
			Status:       task.Status,
			Progress:     task.Progress,
			LastWorkedOn: *last,
		})
	}
	sort.SliceStable(activity, func(i, j int) bool {
		return activity[i].LastWorkedOn > activity[j].LastWorkedOn
	})
	if limit > 0 && len(activity) > limit {
		activity = activity[:limit]
	}
	return activity
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
