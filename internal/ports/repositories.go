package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create stores a new user, failing with entities.ErrDuplicateEmail when the
	// normalized email is already taken.
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
}

// TaskRepository defines the interface for task data operations. Every lookup
// is scoped to an owner; tasks of other owners behave as missing.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error)
	// ListByOwner returns the owner's tasks in insertion order.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Task, error)
	// UpdateFunc loads the task, applies fn and stores the result atomically.
	// Nothing is stored when fn returns an error.
	UpdateFunc(ctx context.Context, id, ownerID uuid.UUID, fn func(task *entities.Task) error) (*entities.Task, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error)
}

// TokenRevocationStore remembers revoked refresh token ids until they expire
type TokenRevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// EventPublisher delivers task lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event TaskEvent) error
	Close() error
}

// TaskEvent is the payload of a task lifecycle event
type TaskEvent struct {
	Type       string              `json:"type"`
	TaskID     uuid.UUID           `json:"taskId"`
	OwnerID    uuid.UUID           `json:"ownerId"`
	Status     entities.TaskStatus `json:"status"`
	Progress   int                 `json:"progress"`
	OccurredAt time.Time           `json:"occurredAt"`
}

// Task event routing keys
const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskDeleted   = "task.deleted"
)

// HealthChecker is implemented by backends that can report connectivity
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}
