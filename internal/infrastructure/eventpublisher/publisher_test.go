package eventpublisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashbook/internal/domain"
)

func testEvent(id string) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		ID:         id,
		Type:       domain.EventTypeEntryAdded,
		LedgerID:   "default",
		OccurredAt: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
		Payload:    map[string]any{"entry_id": "e1", "amount": "500.00"},
	}
}

type stubPublisher struct {
	mu         sync.Mutex
	published  []*domain.LedgerEvent
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(_ context.Context, event *domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.published = append(s.published, event)
	return nil
}

func (s *stubPublisher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

func TestEncode(t *testing.T) {
	data, err := Encode(testEvent("evt-1"))
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "evt-1", msg.ID)
	assert.Equal(t, "entry.added", msg.Type)
	assert.Equal(t, "default", msg.LedgerID)
	assert.Equal(t, "500.00", msg.Payload["amount"])
}

func TestAsyncPublisherDeliversQueuedEvents(t *testing.T) {
	pub := &stubPublisher{}
	ap := NewAsyncPublisher(Config{Publisher: pub, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ap.Start(ctx) }()

	for _, id := range []string{"evt-1", "evt-2", "evt-3"} {
		require.NoError(t, ap.Publish(context.Background(), testEvent(id)))
	}

	assert.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, ap.Publish(context.Background(), testEvent("late")), ErrClosed)
}

func TestAsyncPublisherDrainsOnShutdown(t *testing.T) {
	pub := &stubPublisher{}
	ap := NewAsyncPublisher(Config{Publisher: pub, Logger: zerolog.Nop(), QueueSize: 4})

	require.NoError(t, ap.Publish(context.Background(), testEvent("evt-1")))
	require.NoError(t, ap.Publish(context.Background(), testEvent("evt-2")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ap.Start(ctx))

	assert.Equal(t, 2, pub.count())
}

func TestAsyncPublisherQueueFull(t *testing.T) {
	ap := NewAsyncPublisher(Config{Publisher: &stubPublisher{}, Logger: zerolog.Nop(), QueueSize: 1})

	require.NoError(t, ap.Publish(context.Background(), testEvent("evt-1")))
	assert.ErrorIs(t, ap.Publish(context.Background(), testEvent("evt-2")), ErrQueueFull)
}

func TestAsyncPublisherReportsFailures(t *testing.T) {
	pub := &stubPublisher{errorsByID: map[string]error{"evt-1": errors.New("broker down")}}

	var (
		mu     sync.Mutex
		failed []string
	)
	ap := NewAsyncPublisher(Config{
		Publisher: pub,
		Logger:    zerolog.Nop(),
		OnFailure: func(eventType string) {
			mu.Lock()
			failed = append(failed, eventType)
			mu.Unlock()
		},
	})

	require.NoError(t, ap.Publish(context.Background(), testEvent("evt-1")))
	require.NoError(t, ap.Publish(context.Background(), testEvent("evt-2")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ap.Start(ctx))

	assert.Equal(t, []string{domain.EventTypeEntryAdded}, failed)
	assert.Equal(t, 1, pub.count(), "later events must still be delivered")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	require.NoError(t, pub.Publish(context.Background(), testEvent("evt-1")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "evt-1", line["event_id"])
	assert.Equal(t, "entry.added", line["event_type"])
	assert.Equal(t, map[string]any{"entry_id": "e1", "amount": "500.00"}, line["payload"])
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(w)

	require.NoError(t, pub.Publish(context.Background(), testEvent("evt-1")))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "default", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("entry.added")}}, msg.Headers)

	var decoded Message
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.ID)

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	boom := errors.New("no leader")
	pub := NewKafkaPublisherWithWriter(&fakeWriter{err: boom})

	err := pub.Publish(context.Background(), testEvent("evt-1"))
	assert.ErrorIs(t, err, boom)
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisher(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewAMQPPublisherWithChannel(ch, "cashbook.events")

	require.NoError(t, pub.Publish(context.Background(), testEvent("evt-1")))

	assert.Equal(t, "cashbook.events", ch.exchange)
	assert.Equal(t, "entry.added", ch.key)
	assert.Equal(t, "evt-1", ch.msg.MessageId)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, "default", ch.msg.Headers["ledger_id"])
	assert.NoError(t, pub.Close())
}

func TestAMQPPublisherError(t *testing.T) {
	boom := errors.New("channel closed")
	pub := NewAMQPPublisherWithChannel(&fakeChannel{err: boom}, "x")

	assert.ErrorIs(t, pub.Publish(context.Background(), testEvent("evt-1")), boom)
}
