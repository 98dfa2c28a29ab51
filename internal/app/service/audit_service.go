package service

import (
	"context"
	"encoding/json"
	"time"

	"codesteps/internal/domain/model"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

// AuditService publishes privileged-mutation events onto a Redis list for
// the audit worker. Fire-and-forget: a publish failure is logged and never
// surfaced to the admin operation that triggered it. Reads go straight to
// the persisted table.
type AuditService struct {
	rdb       *redis.Client
	auditRepo repository.AuditRepository
	queue     string
	log       *logger.Logger
}

func NewAuditService(rdb *redis.Client, auditRepo repository.AuditRepository, queue string, log *logger.Logger) *AuditService {
	return &AuditService{rdb: rdb, auditRepo: auditRepo, queue: queue, log: log}
}

func (s *AuditService) List(ctx context.Context, limit, offset int) ([]model.AdminAuditLog, error) {
	return s.auditRepo.List(ctx, limit, offset)
}

func (s *AuditService) Record(ctx context.Context, adminID, action, entityType string, entityID *string, oldValue, newValue interface{}) {
	event := model.AuditEvent{
		AdminID:    adminID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
	var err error
	if event.OldValue, err = marshalAuditValue(oldValue); err != nil {
		s.log.Error("audit event old value marshal failed", "action", action, "error", err)
		return
	}
	if event.NewValue, err = marshalAuditValue(newValue); err != nil {
		s.log.Error("audit event new value marshal failed", "action", action, "error", err)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("audit event marshal failed", "action", action, "error", err)
		return
	}
	if err := s.rdb.LPush(ctx, s.queue, payload).Err(); err != nil {
		s.log.Error("audit event publish failed", "action", action, "error", err)
	}
}

func marshalAuditValue(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
