// Package eventpublisher delivers committed ledger events to external
// systems. The engine hands events to an AsyncPublisher, whose worker
// forwards them to a broker publisher off the request path.
package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/domain"
)

// ErrQueueFull is returned when the async queue cannot take another event.
var ErrQueueFull = errors.New("event queue is full")

// ErrClosed is returned by Publish after the worker has stopped.
var ErrClosed = errors.New("event publisher is closed")

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
}

// Message is the wire form of a ledger event.
type Message struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	LedgerID   string         `json:"ledger_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// Encode renders event as JSON.
func Encode(event *domain.LedgerEvent) ([]byte, error) {
	return json.Marshal(Message{
		ID:         event.ID,
		Type:       event.Type,
		LedgerID:   event.LedgerID,
		OccurredAt: event.OccurredAt.UTC(),
		Payload:    event.Payload,
	})
}

// AsyncPublisher queues events and publishes them from a worker.
type AsyncPublisher struct {
	publisher Publisher
	logger    zerolog.Logger
	queue     chan *domain.LedgerEvent
	done      chan struct{}
	timeout   time.Duration
	onFailure func(eventType string)
}

// Config for AsyncPublisher.
type Config struct {
	Publisher Publisher
	Logger    zerolog.Logger
	QueueSize int           // Number of events buffered before Publish fails
	Timeout   time.Duration // Per-event publish deadline
	// OnFailure is called for every event the worker could not deliver.
	OnFailure func(eventType string)
}

// NewAsyncPublisher creates a new AsyncPublisher. Start must be running for
// queued events to be delivered.
func NewAsyncPublisher(cfg Config) *AsyncPublisher {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.OnFailure == nil {
		cfg.OnFailure = func(string) {}
	}

	return &AsyncPublisher{
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		queue:     make(chan *domain.LedgerEvent, cfg.QueueSize),
		done:      make(chan struct{}),
		timeout:   cfg.Timeout,
		onFailure: cfg.OnFailure,
	}
}

// Publish enqueues event without blocking.
func (p *AsyncPublisher) Publish(_ context.Context, event *domain.LedgerEvent) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start delivers queued events until ctx is cancelled, then drains what is
// left with a fresh deadline per event.
func (p *AsyncPublisher) Start(ctx context.Context) error {
	p.logger.Info().Int("queue_size", cap(p.queue)).Msg("event publisher started")

	for {
		select {
		case <-ctx.Done():
			close(p.done)
			p.drain()
			p.logger.Info().Msg("event publisher shutting down")
			return nil
		case event := <-p.queue:
			p.deliver(ctx, event)
		}
	}
}

func (p *AsyncPublisher) drain() {
	for {
		select {
		case event := <-p.queue:
			p.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ctx context.Context, event *domain.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.onFailure(event.Type)
		p.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Str("ledger_id", event.LedgerID).
			Msg("failed to publish event")
		return
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Msg("event published")
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event *domain.LedgerEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("ledger_id", event.LedgerID).
		RawJSON("payload", payload).
		Msg("ledger event")

	return nil
}
