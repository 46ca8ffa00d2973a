package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

// MemoryUserRepository keeps users in process memory
type MemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*entities.User
	byEmail map[string]uuid.UUID
}

// NewMemoryUserRepository creates an empty in-memory user repository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   make(map[uuid.UUID]*entities.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

var _ ports.UserRepository = (*MemoryUserRepository)(nil)

func (r *MemoryUserRepository) Create(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := entities.NormalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return entities.ErrDuplicateEmail
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = email

	stored := *user
	r.users[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, entities.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byEmail[entities.NormalizeEmail(email)]
	if !exists {
		return nil, entities.ErrUserNotFound
	}
	out := *r.users[id]
	return &out, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.users[user.ID]
	if !exists {
		return entities.ErrUserNotFound
	}

	email := entities.NormalizeEmail(user.Email)
	if owner, taken := r.byEmail[email]; taken && owner != user.ID {
		return entities.ErrDuplicateEmail
	}
	delete(r.byEmail, current.Email)

	user.Email = email
	stored := *user
	r.users[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

// Delete removes a user. It exists for account cleanup tooling and tests.
func (r *MemoryUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return entities.ErrUserNotFound
	}
	delete(r.byEmail, user.Email)
	delete(r.users, id)
	return nil
}

// MemoryTaskRepository keeps tasks in process memory. Iteration follows
// insertion order. Stored tasks are copied on every read and write.
type MemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*entities.Task
	order []uuid.UUID
}

// NewMemoryTaskRepository creates an empty in-memory task repository
func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{
		tasks: make(map[uuid.UUID]*entities.Task),
	}
}

var _ ports.TaskRepository = (*MemoryTaskRepository)(nil)

func (r *MemoryTaskRepository) Create(ctx context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.tasks[task.ID] = task.Clone()
	r.order = append(r.order, task.ID)
	return nil
}

func (r *MemoryTaskRepository) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, err := r.lookup(id, ownerID)
	if err != nil {
		return nil, err
	}
	return task.Clone(), nil
}

func (r *MemoryTaskRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []*entities.Task{}
	for _, id := range r.order {
		if task := r.tasks[id]; task.OwnerID == ownerID {
			tasks = append(tasks, task.Clone())
		}
	}
	return tasks, nil
}

func (r *MemoryTaskRepository) UpdateFunc(ctx context.Context, id, ownerID uuid.UUID, fn func(task *entities.Task) error) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.lookup(id, ownerID)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID, working.OwnerID = current.ID, current.OwnerID

	r.tasks[id] = working.Clone()
	return working, nil
}

func (r *MemoryTaskRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.lookup(id, ownerID)
	if err != nil {
		return nil, err
	}

	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return task, nil
}

// lookup must be called with the lock held.
func (r *MemoryTaskRepository) lookup(id, ownerID uuid.UUID) (*entities.Task, error) {
	task, exists := r.tasks[id]
	if !exists || task.OwnerID != ownerID {
		return nil, entities.ErrTaskNotFound
	}
	return task, nil
}
