package services

import (
	"sort"
	"strings"
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// FilterTasks keeps the tasks matching every set criterion. Statuses are an
// OR-list; search is a case-insensitive substring of title or description.
func FilterTasks(tasks []*entities.Task, filter ports.TaskFilter) []*entities.Task {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]*entities.Task, 0, len(tasks))
	for _, task := range tasks {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, task.Status) {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func containsStatus(statuses []entities.TaskStatus, status entities.TaskStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// SortTasks orders tasks in place. The default is createdAt descending; an
// unknown field keeps the current order. Missing dates and numbers sort last.
func SortTasks(tasks []*entities.Task, sortBy, sortOrder string) {
	if sortBy == "" {
		sortBy = "createdAt"
	}
	desc := !strings.EqualFold(sortOrder, "asc")

	key, ok := sortKeys[sortBy]
	if !ok {
		return
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := key(tasks[i]), key(tasks[j])
		if a.missing || b.missing {
			return !a.missing && b.missing
		}
		c := a.compare(b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

type sortValue struct {
	missing bool
	num     float64
	str     string
	isStr   bool
	at      time.Time
	isTime  bool
}

func (v sortValue) compare(o sortValue) int {
	if v.isStr {
		return strings.Compare(v.str, o.str)
	}
	if v.isTime {
		return v.at.Compare(o.at)
	}
	switch {
	case v.num < o.num:
		return -1
	case v.num > o.num:
		return 1
	}
	return 0
}

func timeValue(t *time.Time) sortValue {
	if t == nil {
		return sortValue{missing: true}
	}
	return sortValue{at: *t, isTime: true}
}

func numValue(f float64) sortValue { return sortValue{num: f} }

func strValue(s string) sortValue { return sortValue{str: strings.ToLower(s), isStr: true} }

var sortKeys = map[string]func(*entities.Task) sortValue{
	"createdAt":   func(t *entities.Task) sortValue { return timeValue(&t.CreatedAt) },
	"updatedAt":   func(t *entities.Task) sortValue { return timeValue(&t.UpdatedAt) },
	"dueDate":     func(t *entities.Task) sortValue { return timeValue(t.DueDate) },
	"completedAt": func(t *entities.Task) sortValue { return timeValue(t.CompletedAt) },
	"title":       func(t *entities.Task) sortValue { return strValue(t.Title) },
	"status":      func(t *entities.Task) sortValue { return strValue(string(t.Status)) },
	"priority":    func(t *entities.Task) sortValue { return numValue(float64(priorityRank[t.Priority])) },
	"progress":    func(t *entities.Task) sortValue { return numValue(float64(t.Progress)) },
	"totalTimeSpent": func(t *entities.Task) sortValue {
		return numValue(t.TotalTimeSpent)
	},
	"estimatedHours": func(t *entities.Task) sortValue {
		if t.EstimatedHours == nil {
			return sortValue{missing: true}
		}
		return numValue(*t.EstimatedHours)
	},
}

var priorityRank = map[entities.Priority]int{
	entities.PriorityLow:    1,
	entities.PriorityMedium: 2,
	entities.PriorityHigh:   3,
}
