package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"codesteps/internal/domain/model"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AuditWorker drains the audit queue and persists events as admin audit
// rows. It is the only writer of admin_audit_logs; producers only LPUSH.
type AuditWorker struct {
	rdb       *redis.Client
	auditRepo repository.AuditRepository
	queue     string
	log       *logger.Logger
}

func NewAuditWorker(rdb *redis.Client, auditRepo repository.AuditRepository, queue string, log *logger.Logger) *AuditWorker {
	return &AuditWorker{rdb: rdb, auditRepo: auditRepo, queue: queue, log: log}
}

// Start blocks until ctx is cancelled. A short BRPOP timeout keeps the loop
// responsive to shutdown without busy-polling.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info("audit worker started", "queue", w.queue)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("audit worker stopping")
			return
		default:
		}

		res, err := w.rdb.BRPop(ctx, 5*time.Second, w.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.log.Info("audit worker stopping")
				return
			}
			w.log.Error("audit queue pop failed", "queue", w.queue, "error", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if len(res) < 2 || res[1] == "" {
			continue
		}
		w.process(ctx, []byte(res[1]))
	}
}

func (w *AuditWorker) process(ctx context.Context, payload []byte) {
	var event model.AuditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Malformed payloads are dropped; requeueing would loop forever.
		w.log.Error("audit event unmarshal failed", "error", err)
		return
	}

	entry := &model.AdminAuditLog{
		ID:         uuid.NewString(),
		AdminID:    event.AdminID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		OldValue:   event.OldValue,
		NewValue:   event.NewValue,
		Timestamp:  event.OccurredAt,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := w.auditRepo.Create(ctx, entry); err != nil {
		w.log.Error("audit log persist failed", "action", event.Action, "error", err)
		// Put the event back so a transient database outage loses nothing.
		if rErr := w.rdb.RPush(ctx, w.queue, payload).Err(); rErr != nil {
			w.log.Error("audit event requeue failed", "action", event.Action, "error", rErr)
		}
		return
	}
	w.log.Debug("audit event persisted", "action", event.Action, "admin_id", event.AdminID)
}
