package service

import (
	"context"
	"encoding/json"
	"testing"

	"codesteps/internal/domain/model"
	"codesteps/internal/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestAuditServicePublishesEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewAuditService(client, nil, "audit_q", logger.NewNop())
	ctx := context.Background()

	stepID := "step-9"
	s.Record(ctx, "admin-1", "DELETE_STEP", "problem", &stepID,
		map[string]int{"step_number": 3}, nil)

	raw, err := client.RPop(ctx, "audit_q").Bytes()
	if err != nil {
		t.Fatalf("queue empty after Record: %v", err)
	}

	var event model.AuditEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if event.AdminID != "admin-1" || event.Action != "DELETE_STEP" {
		t.Errorf("event = %+v", event)
	}
	if event.EntityID == nil || *event.EntityID != "step-9" {
		t.Errorf("entity id = %v", event.EntityID)
	}
	if string(event.OldValue) != `{"step_number":3}` {
		t.Errorf("old value = %s", event.OldValue)
	}
	if len(event.NewValue) != 0 {
		t.Errorf("new value = %s, want empty", event.NewValue)
	}
	if event.OccurredAt.IsZero() {
		t.Error("occurred_at must be stamped")
	}
}

func TestAuditServiceSurvivesDeadRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	s := NewAuditService(client, nil, "audit_q", logger.NewNop())
	// Fire-and-forget: a dead broker must not panic or surface an error.
	s.Record(context.Background(), "admin-1", "CREATE_COURSE", "course", nil, nil, nil)
}
