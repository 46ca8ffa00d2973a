package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/tracker/internal/adapters/events"
	"github.com/taskmaster/tracker/internal/adapters/repository"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Backend bundles the storage, token revocation and event adapters the
// server runs on.
type Backend struct {
	Storage     string
	Users       ports.UserRepository
	Tasks       ports.TaskRepository
	Revocations ports.TokenRevocationStore
	Events      ports.EventPublisher
	Checkers    []ports.HealthChecker
	Registry    *prometheus.Registry

	closers []func() error
}

// NewMemoryBackend keeps everything in process memory and drops events
func NewMemoryBackend() *Backend {
	b := newMemoryStores()
	b.Events = events.NewMeteredPublisher(events.NopPublisher{}, b.Registry)
	return b
}

func newMemoryStores() *Backend {
	return &Backend{
		Storage:     "memory",
		Users:       repository.NewMemoryUserRepository(),
		Tasks:       repository.NewMemoryTaskRepository(),
		Revocations: repository.NewMemoryTokenStore(),
		Registry:    prometheus.NewRegistry(),
	}
}

// NewBackend picks adapters from the configuration. Without DATABASE_URL the
// stores are in memory; without REDIS_URL revocations stay in memory; without
// AMQP_URL events are dropped.
func NewBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := newMemoryStores()
	var publisher ports.EventPublisher = events.NopPublisher{}

	if !cfg.Database.InMemory() {
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		b.Storage = "postgres"
		b.Users = repository.NewUserRepository(db.DB)
		b.Tasks = repository.NewTaskRepository(db)
		b.Checkers = append(b.Checkers, db)
		b.closers = append(b.closers, db.Close)
		b.Registry.MustRegister(db.Collector())
	}

	if cfg.Redis.URL != "" {
		store, err := repository.NewRedisTokenStore(ctx, cfg.Redis.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Revocations = store
		b.Checkers = append(b.Checkers, store)
		b.closers = append(b.closers, store.Close)
	}

	if cfg.MQ.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			b.Close()
			return nil, err
		}
		publisher = amqpPublisher
		b.Checkers = append(b.Checkers, amqpPublisher)
		b.closers = append(b.closers, amqpPublisher.Close)
	}
	b.Events = events.NewMeteredPublisher(publisher, b.Registry)

	log.Infow("Backend ready",
		"storage", b.Storage,
		"redis", cfg.Redis.URL != "",
		"events", cfg.MQ.URL != "",
	)
	return b, nil
}

// Close releases every connection opened by NewBackend
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close backend: %w", errors.Join(errs...))
	}
	return nil
}
