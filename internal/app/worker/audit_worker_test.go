package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"codesteps/internal/domain/model"
	"codesteps/internal/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type capturingAuditRepo struct {
	mu      sync.Mutex
	entries []model.AdminAuditLog
	done    chan struct{}
}

func (r *capturingAuditRepo) Create(_ context.Context, l *model.AdminAuditLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, *l)
	r.mu.Unlock()
	select {
	case r.done <- struct{}{}:
	default:
	}
	return nil
}

func (r *capturingAuditRepo) List(_ context.Context, _, _ int) ([]model.AdminAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AdminAuditLog(nil), r.entries...), nil
}

func TestAuditWorkerPersistsQueuedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := &capturingAuditRepo{done: make(chan struct{}, 1)}
	w := NewAuditWorker(client, repo, "audit_test_queue", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	entityID := "course-1"
	event := model.AuditEvent{
		AdminID:    "admin-1",
		Action:     "REORDER_STEPS",
		EntityType: "course",
		EntityID:   &entityID,
		NewValue:   json.RawMessage(`{"a":2,"b":1}`),
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.LPush(ctx, "audit_test_queue", payload).Err(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-repo.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not persist the event in time")
	}

	entries, _ := repo.List(ctx, 0, 0)
	if len(entries) != 1 {
		t.Fatalf("persisted %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.AdminID != "admin-1" || got.Action != "REORDER_STEPS" || got.EntityType != "course" {
		t.Errorf("entry = %+v", got)
	}
	if got.EntityID == nil || *got.EntityID != "course-1" {
		t.Errorf("entity id = %v", got.EntityID)
	}
	if got.ID == "" {
		t.Error("persisted entry must get its own id")
	}
	if !got.Timestamp.Equal(event.OccurredAt) {
		t.Errorf("timestamp = %v, want event time", got.Timestamp)
	}
}

func TestAuditWorkerDropsMalformedPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := &capturingAuditRepo{done: make(chan struct{}, 1)}
	w := NewAuditWorker(client, repo, "audit_test_queue", logger.NewNop())

	// Malformed payloads must be consumed without being requeued.
	w.process(context.Background(), []byte("not json"))

	entries, _ := repo.List(context.Background(), 0, 0)
	if len(entries) != 0 {
		t.Fatalf("malformed payload persisted: %+v", entries)
	}
	if n, _ := client.LLen(context.Background(), "audit_test_queue").Result(); n != 0 {
		t.Fatalf("malformed payload requeued, queue len %d", n)
	}
}
