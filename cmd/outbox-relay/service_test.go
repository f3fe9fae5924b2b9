package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := orderCreatedRow(t, "event-one")
	second := orderCreatedRow(t, "event-two")
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	streams := &fakeStreams{errs: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, streams, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("transient failure must not park the row")
	}
}

func TestPublishWritesEnvelopeFields(t *testing.T) {
	row := orderCreatedRow(t, "evt-42")
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	streams := &fakeStreams{}
	service := newTestService(t, repo, streams, &config.OutboxConfig{Stream: "orders", StreamMaxLen: 500})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(streams.appended) != 1 {
		t.Fatalf("expected one stream entry, got %d", len(streams.appended))
	}
	entry := streams.appended[0]
	if entry.stream != "orders" || entry.maxLen != 500 {
		t.Fatalf("unexpected stream target %s maxlen=%d", entry.stream, entry.maxLen)
	}
	if entry.values["event_id"] != "evt-42" {
		t.Fatalf("unexpected event id %v", entry.values["event_id"])
	}
	if entry.values["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event type %v", entry.values["event_type"])
	}
	if entry.values["aggregate_id"] != row.AggregateID.String() {
		t.Fatalf("unexpected aggregate id %v", entry.values["aggregate_id"])
	}
	if entry.values["payload"] != string(row.Payload) {
		t.Fatalf("payload must be relayed verbatim")
	}
}

func TestProcessBatchParksUndecodableRow(t *testing.T) {
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     "unknown.event",
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t, "bad", map[string]any{}),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	streams := &fakeStreams{}
	service := newTestService(t, repo, streams, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(streams.appended) != 0 {
		t.Fatalf("undecodable rows must not be published")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != row.ID {
		t.Fatalf("expected row parked, got %v", repo.terminal)
	}
	if repo.terminalAttempts != 5 {
		t.Fatalf("expected parked at max attempts, got %d", repo.terminalAttempts)
	}
}

func TestProcessBatchParksAtMaxAttempts(t *testing.T) {
	row := orderCreatedRow(t, "max-attempts")
	row.AttemptCount = 1
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	streams := &fakeStreams{errs: []error{errors.New("transient")}}
	service := newTestService(t, repo, streams, &config.OutboxConfig{MaxAttempts: 2})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("final attempt should park, not retry")
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != row.ID {
		t.Fatalf("expected row parked, got %v", repo.terminal)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeStreams{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("empty batch must report nothing processed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeStreams{}, &config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := service.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestRunFailsWhenRedisDown(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeStreams{pingErr: errors.New("refused")}, nil)

	if err := service.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness failure")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, maxBackoff); got != 2*time.Second {
		t.Fatalf("unexpected first backoff %s", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap, got %s", got)
	}
	if got := withJitter(time.Second); got < time.Second || got >= time.Second+jitterWindow {
		t.Fatalf("jitter out of window: %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, streams streamClient, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if override != nil {
		if override.BatchSize > 0 {
			outboxCfg.BatchSize = override.BatchSize
		}
		if override.PollIntervalMS > 0 {
			outboxCfg.PollIntervalMS = override.PollIntervalMS
		}
		if override.MaxAttempts > 0 {
			outboxCfg.MaxAttempts = override.MaxAttempts
		}
		outboxCfg.Stream = override.Stream
		outboxCfg.StreamMaxLen = override.StreamMaxLen
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-relay-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     &config.Config{Outbox: outboxCfg},
		Logger:     logg,
		DB:         &fakeDB{},
		Streams:    streams,
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderCreatedRow(tb testing.TB, eventID string) models.OutboxEvent {
	tb.Helper()
	orderID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelopePayload(tb, eventID, payloads.OrderCreatedEvent{OrderID: orderID, ItemCount: 1}),
	}
}

func envelopePayload(tb testing.TB, eventID string, data any) json.RawMessage {
	tb.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		tb.Fatalf("marshal data: %v", err)
	}
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       raw,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type appendCall struct {
	stream string
	maxLen int64
	values map[string]any
}

type fakeStreams struct {
	pingErr  error
	errs     []error
	appended []appendCall
}

func (f *fakeStreams) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeStreams) AppendStream(_ context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err != nil {
		return "", err
	}
	f.appended = append(f.appended, appendCall{stream: stream, maxLen: maxLen, values: values})
	return "1-0", nil
}
