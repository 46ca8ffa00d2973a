package services

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster/tracker/internal/adapters/events"
	"github.com/taskmaster/tracker/internal/adapters/repository"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

type fixture struct {
	users  *UserService
	auth   *AuthService
	tasks  *TaskService
	events *events.RecordingPublisher
	clock  *clock
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewNop()
	clk := &clock{t: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)}
	recorder := &events.RecordingPublisher{}

	users := NewUserService(repository.NewMemoryUserRepository(), log)
	users.cost = bcrypt.MinCost
	users.now = clk.now

	auth := NewAuthService(users, repository.NewMemoryTokenStore(), config.JWTConfig{
		Secret:           "test-secret",
		ExpiresIn:        15 * time.Minute,
		RefreshExpiresIn: 7 * 24 * time.Hour,
		Issuer:           "test",
	}, log)
	auth.now = clk.now

	tasks := NewTaskService(repository.NewMemoryTaskRepository(), recorder, log)
	tasks.now = clk.now

	return &fixture{users: users, auth: auth, tasks: tasks, events: recorder, clock: clk}
}
