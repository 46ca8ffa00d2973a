package entities

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task represents a tracked piece of work owned by one user
type Task struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	OwnerID         uuid.UUID             `json:"ownerId" db:"owner_id"`
	Title           string                `json:"title" db:"title"`
	Description     string                `json:"description" db:"description"`
	Status          TaskStatus            `json:"status" db:"status"`
	Priority        Priority              `json:"priority" db:"priority"`
	Progress        int                   `json:"progress" db:"progress"`
	DueDate         *time.Time            `json:"dueDate,omitempty" db:"due_date"`
	EstimatedHours  *float64              `json:"estimatedHours,omitempty" db:"estimated_hours"`
	TotalTimeSpent  float64               `json:"totalTimeSpent" db:"total_time_spent"`
	Tags            StringList            `json:"tags" db:"tags"`
	ProgressHistory DayLog[ProgressEntry] `json:"progressHistory" db:"progress_history"`
	TimeEntries     DayLog[TimeEntry]     `json:"timeEntries" db:"time_entries"`
	DailyUpdates    DayLog[DailyUpdate]   `json:"dailyUpdates" db:"daily_updates"`
	CreatedAt       time.Time             `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time             `json:"updatedAt" db:"updated_at"`
	CompletedAt     *time.Time            `json:"completedAt,omitempty" db:"completed_at"`
}

// TaskPatch lists the updatable attributes. A nil field leaves the task untouched.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *TaskStatus
	Priority       *Priority
	Progress       *int
	DueDate        *time.Time
	EstimatedHours *float64
	Tags           []string
}

// DailyUpdateInput carries the optional fields of a daily update.
type DailyUpdateInput struct {
	WorkedOn        *bool
	Status          *TaskStatus
	Accomplishments []string
	Blockers        []string
	NextSteps       []string
	Mood            *Mood
}

// NewTask builds a task with default status, priority and empty history.
func NewTask(ownerID uuid.UUID, title string, now time.Time) *Task {
	return &Task{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(title),
		Status:          TaskStatusPending,
		Priority:        PriorityMedium,
		Tags:            StringList{},
		ProgressHistory: DayLog[ProgressEntry]{},
		TimeEntries:     DayLog[TimeEntry]{},
		DailyUpdates:    DayLog[DailyUpdate]{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate checks the field invariants of a task.
func (t *Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return NewValidationError("title", "Title is required")
	}
	if len([]rune(title)) > MaxTitleLength {
		return NewValidationError("title", "Title cannot exceed %d characters", MaxTitleLength)
	}
	if len([]rune(t.Description)) > MaxDescriptionLength {
		return NewValidationError("description", "Description cannot exceed %d characters", MaxDescriptionLength)
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "Invalid status %q", t.Status)
	}
	if !t.Priority.IsValid() {
		return NewValidationError("priority", "Invalid priority %q", t.Priority)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return NewValidationError("progress", "Progress must be between 0 and 100")
	}
	if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
		return NewValidationError("estimatedHours", "Estimated hours cannot be negative")
	}
	if len(t.Tags) > MaxTags {
		return NewValidationError("tags", "A task can have at most %d tags", MaxTags)
	}
	for _, tag := range t.Tags {
		if len([]rune(tag)) > MaxTagLength {
			return NewValidationError("tags", "Tags cannot exceed %d characters", MaxTagLength)
		}
	}
	return nil
}

// ApplyPatch copies the present fields of p onto the task.
func (t *Task) ApplyPatch(p TaskPatch, now time.Time) error {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.EstimatedHours != nil {
		hours := *p.EstimatedHours
		t.EstimatedHours = &hours
	}
	if p.Tags != nil {
		t.Tags = append(StringList{}, p.Tags...)
	}
	if p.Status != nil {
		t.Status = *p.Status
		// only the first completion forces full progress
		if t.Status == TaskStatusCompleted && t.CompletedAt == nil {
			t.Progress = 100
		}
	}
	if t.Status == TaskStatusCompleted || t.Progress == 100 {
		t.markCompleted(now)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// RecordProgress sets the progress and upserts today's history entry. Reaching
// 100 sets completedAt but leaves the status alone.
func (t *Task) RecordProgress(progress int, note string, now time.Time) error {
	if progress < 0 || progress > 100 {
		return NewValidationError("progress", "Progress must be between 0 and 100")
	}
	t.Progress = progress
	t.ProgressHistory.Put(ProgressEntry{Date: DayOf(now), Progress: progress, Note: note})
	if progress == 100 {
		t.markCompleted(now)
	}
	t.UpdatedAt = now
	return nil
}

// LogTime upserts today's time entry and recomputes the total.
func (t *Task) LogTime(hours float64, description string, now time.Time) error {
	if hours <= 0 || hours > MaxHoursPerEntry {
		return NewValidationError("hours", "Hours must be greater than 0 and at most %g", MaxHoursPerEntry)
	}
	t.TimeEntries.Put(TimeEntry{Date: DayOf(now), Hours: hours, Description: description})
	t.TotalTimeSpent = t.sumTimeEntries()
	t.UpdatedAt = now
	return nil
}

// RecordDailyUpdate upserts today's daily update, defaulting missing fields.
func (t *Task) RecordDailyUpdate(in DailyUpdateInput, now time.Time) error {
	update := DailyUpdate{
		Date:            DayOf(now),
		Status:          t.Status,
		Accomplishments: nonNil(in.Accomplishments),
		Blockers:        nonNil(in.Blockers),
		NextSteps:       nonNil(in.NextSteps),
		Mood:            MoodNeutral,
	}
	if in.WorkedOn != nil {
		update.WorkedOn = *in.WorkedOn
	}
	if in.Status != nil {
		if !in.Status.IsValid() {
			return NewValidationError("status", "Invalid status %q", *in.Status)
		}
		update.Status = *in.Status
	}
	if in.Mood != nil {
		if !in.Mood.IsValid() {
			return NewValidationError("mood", "Invalid mood %q", *in.Mood)
		}
		update.Mood = *in.Mood
	}
	t.DailyUpdates.Put(update)
	t.UpdatedAt = now
	return nil
}

// IsOverdue reports whether an unfinished task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// LastWorkedOn is the latest day a daily update marked as worked on, falling
// back to the latest progress or time entry. Nil when the task has no activity.
func (t *Task) LastWorkedOn() *string {
	latest := ""
	for day, update := range t.DailyUpdates {
		if update.WorkedOn && day > latest {
			latest = day
		}
	}
	if latest == "" {
		latest = t.ProgressHistory.Latest()
		if day := t.TimeEntries.Latest(); day > latest {
			latest = day
		}
	}
	if latest == "" {
		return nil
	}
	return &latest
}

// Clone returns a deep copy so stored tasks never alias caller memory.
func (t *Task) Clone() *Task {
	out := *t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.EstimatedHours != nil {
		hours := *t.EstimatedHours
		out.EstimatedHours = &hours
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		out.CompletedAt = &completed
	}
	out.Tags = append(StringList{}, t.Tags...)
	out.ProgressHistory = t.ProgressHistory.Clone()
	out.TimeEntries = t.TimeEntries.Clone()
	out.DailyUpdates = make(DayLog[DailyUpdate], len(t.DailyUpdates))
	for day, update := range t.DailyUpdates {
		update.Accomplishments = append([]string{}, update.Accomplishments...)
		update.Blockers = append([]string{}, update.Blockers...)
		update.NextSteps = append([]string{}, update.NextSteps...)
		out.DailyUpdates[day] = update
	}
	return &out
}

// MarshalJSON adds the derived lastWorkedOn field.
func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return json.Marshal(struct {
		plain
		LastWorkedOn *string `json:"lastWorkedOn,omitempty"`
	}{plain(t), t.LastWorkedOn()})
}

// completedAt is set once and never cleared.
func (t *Task) markCompleted(now time.Time) {
	if t.CompletedAt == nil {
		completed := now
		t.CompletedAt = &completed
	}
}

func (t *Task) sumTimeEntries() float64 {
	total := 0.0
	for _, entry := range t.TimeEntries {
		total += entry.Hours
	}
	return total
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return append([]string{}, items...)
}
