package events

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/tracker/internal/ports"
)

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, event ports.TaskEvent) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

// MeteredPublisher counts published events per routing key and outcome
type MeteredPublisher struct {
	next   ports.EventPublisher
	events *prometheus.CounterVec
}

// NewMeteredPublisher wraps next and registers tracker_task_events_total on reg
func NewMeteredPublisher(next ports.EventPublisher, reg prometheus.Registerer) *MeteredPublisher {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_task_events_total",
			Help: "Task lifecycle events by routing key and result",
		},
		[]string{"event", "result"},
	)
	if reg != nil {
		reg.MustRegister(counter)
	}
	return &MeteredPublisher{next: next, events: counter}
}

func (p *MeteredPublisher) Publish(ctx context.Context, routingKey string, event ports.TaskEvent) error {
	err := p.next.Publish(ctx, routingKey, event)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.events.WithLabelValues(routingKey, result).Inc()
	return err
}

func (p *MeteredPublisher) Close() error {
	return p.next.Close()
}

// RecordingPublisher keeps events in memory. Tests use it to assert on the
// lifecycle events a service emitted.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []ports.TaskEvent
}

func (r *RecordingPublisher) Publish(ctx context.Context, routingKey string, event ports.TaskEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *RecordingPublisher) Close() error { return nil }

// Types returns the recorded event types in order
func (r *RecordingPublisher) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
