package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskmaster/tracker/internal/domain/analytics"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

// AuthService is the Auth Gateway used by the HTTP layer
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*entities.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*entities.User, error)
}

// TaskService is the Task Store used by the HTTP layer
type TaskService interface {
	Create(ctx context.Context, ownerID uuid.UUID, req CreateTaskRequest) (*entities.Task, error)
	List(ctx context.Context, ownerID uuid.UUID, filter TaskFilter) ([]*entities.Task, int, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, req UpdateTaskRequest) (*entities.Task, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error)
	AddProgressUpdate(ctx context.Context, id, ownerID uuid.UUID, req ProgressUpdateRequest) (*entities.Task, error)
	AddTimeEntry(ctx context.Context, id, ownerID uuid.UUID, req TimeEntryRequest) (*entities.Task, error)
	AddDailyUpdate(ctx context.Context, id, ownerID uuid.UUID, req DailyUpdateRequest) (*entities.Task, error)
	GetStats(ctx context.Context, ownerID uuid.UUID) (*analytics.Stats, error)
	GetProgressAnalytics(ctx context.Context, ownerID uuid.UUID, taskID *uuid.UUID) (*analytics.ProgressAnalytics, error)
}

// Auth related types
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type AuthResponse struct {
	User         *entities.User `json:"user"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
}

// Task related types
type CreateTaskRequest struct {
	Title          string              `json:"title" validate:"required,max=100"`
	Description    string              `json:"description" validate:"max=500"`
	Status         entities.TaskStatus `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority       entities.Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Progress       *int                `json:"progress" validate:"omitempty,min=0,max=100"`
	DueDate        *Date               `json:"dueDate"`
	EstimatedHours *float64            `json:"estimatedHours" validate:"omitempty,min=0"`
	Tags           []string            `json:"tags" validate:"omitempty,max=10,dive,max=30"`
}

type UpdateTaskRequest struct {
	Title          *string              `json:"title" validate:"omitempty,max=100"`
	Description    *string              `json:"description" validate:"omitempty,max=500"`
	Status         *entities.TaskStatus `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority       *entities.Priority   `json:"priority" validate:"omitempty,oneof=low medium high"`
	Progress       *int                 `json:"progress" validate:"omitempty,min=0,max=100"`
	DueDate        *Date                `json:"dueDate"`
	EstimatedHours *float64             `json:"estimatedHours" validate:"omitempty,min=0"`
	Tags           []string             `json:"tags" validate:"omitempty,max=10,dive,max=30"`
}

// Patch converts the request into the domain patch.
func (r UpdateTaskRequest) Patch() entities.TaskPatch {
	patch := entities.TaskPatch{
		Title:          r.Title,
		Description:    r.Description,
		Status:         r.Status,
		Priority:       r.Priority,
		Progress:       r.Progress,
		EstimatedHours: r.EstimatedHours,
		Tags:           r.Tags,
	}
	if r.DueDate != nil {
		due := r.DueDate.Time
		patch.DueDate = &due
	}
	return patch
}

type ProgressUpdateRequest struct {
	Progress *int   `json:"progress" validate:"required"`
	Note     string `json:"note" validate:"max=500"`
}

type TimeEntryRequest struct {
	Hours       *float64 `json:"hours" validate:"required"`
	Description string   `json:"description" validate:"max=500"`
}

type DailyUpdateRequest struct {
	WorkedOn        *bool                `json:"workedOn"`
	Status          *entities.TaskStatus `json:"status"`
	Accomplishments []string             `json:"accomplishments"`
	Blockers        []string             `json:"blockers"`
	NextSteps       []string             `json:"nextSteps"`
	Mood            *entities.Mood       `json:"mood"`
}

// Input converts the request into the domain input.
func (r DailyUpdateRequest) Input() entities.DailyUpdateInput {
	return entities.DailyUpdateInput{
		WorkedOn:        r.WorkedOn,
		Status:          r.Status,
		Accomplishments: r.Accomplishments,
		Blockers:        r.Blockers,
		NextSteps:       r.NextSteps,
		Mood:            r.Mood,
	}
}

// TaskFilter holds the list endpoint's query parameters
type TaskFilter struct {
	Statuses  []entities.TaskStatus
	Priority  *entities.Priority
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
}

// Date accepts either an RFC 3339 timestamp or a bare YYYY-MM-DD day.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(entities.DayLayout, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q", raw)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(time.RFC3339))
}
