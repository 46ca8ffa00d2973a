package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

func newUser(email string) *entities.User {
	now := time.Now()
	return &entities.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      "test",
		Role:      entities.UserRoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryUserRepositoryCaseInsensitiveEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	require.NoError(t, repo.Create(ctx, newUser("Alice@Example.com")))

	found, err := repo.GetByEmail(ctx, "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", found.Email)

	err = repo.Create(ctx, newUser("ALICE@example.com"))
	assert.ErrorIs(t, err, entities.ErrDuplicateEmail)

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
}

func TestMemoryUserRepositoryUpdateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	alice := newUser("alice@example.com")
	bob := newUser("bob@example.com")
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, bob))

	bob.Email = "Alice@example.com"
	assert.ErrorIs(t, repo.Update(ctx, bob), entities.ErrDuplicateEmail)

	alice.Email = "alice@new.example.com"
	require.NoError(t, repo.Update(ctx, alice))

	_, err := repo.GetByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
	found, err := repo.GetByEmail(ctx, "alice@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)
}

func TestMemoryTaskRepositoryOwnerScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	owner, stranger := uuid.New(), uuid.New()

	task := entities.NewTask(owner, "mine", time.Now())
	require.NoError(t, repo.Create(ctx, task))

	_, err := repo.GetForOwner(ctx, task.ID, stranger)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	_, err = repo.UpdateFunc(ctx, task.ID, stranger, func(*entities.Task) error { return nil })
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	_, err = repo.Delete(ctx, task.ID, stranger)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	tasks, err := repo.ListByOwner(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMemoryTaskRepositoryInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	owner := uuid.New()

	var ids []uuid.UUID
	for _, title := range []string{"one", "two", "three"} {
		task := entities.NewTask(owner, title, time.Now())
		require.NoError(t, repo.Create(ctx, task))
		ids = append(ids, task.ID)
	}
	_, err := repo.Delete(ctx, ids[1], owner)
	require.NoError(t, err)

	tasks, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "one", tasks[0].Title)
	assert.Equal(t, "three", tasks[1].Title)
}

func TestMemoryTaskRepositoryUpdateFuncIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	owner := uuid.New()

	task := entities.NewTask(owner, "counter", time.Now())
	require.NoError(t, repo.Create(ctx, task))

	// a failing update leaves the stored task untouched
	_, err := repo.UpdateFunc(ctx, task.ID, owner, func(t *entities.Task) error {
		t.Title = "changed"
		return errors.New("boom")
	})
	require.Error(t, err)
	stored, err := repo.GetForOwner(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "counter", stored.Title)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateFunc(ctx, task.ID, owner, func(t *entities.Task) error {
				t.Progress++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err = repo.GetForOwner(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Progress)
}

func TestMemoryTaskRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	owner := uuid.New()

	task := entities.NewTask(owner, "original", time.Now())
	require.NoError(t, repo.Create(ctx, task))
	task.Title = "mutated by caller"

	stored, err := repo.GetForOwner(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "original", stored.Title)
}

func TestMemoryTokenStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Revoke(ctx, "jti-1", now.Add(time.Hour)))

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
