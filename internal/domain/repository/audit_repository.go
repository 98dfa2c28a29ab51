package repository

import (
	"context"
	"database/sql"
	"fmt"

	"codesteps/internal/domain/model"
)

type AuditRepository interface {
	Create(ctx context.Context, log *model.AdminAuditLog) error
	List(ctx context.Context, limit, offset int) ([]model.AdminAuditLog, error)
}

type pgAuditRepository struct {
	db *sql.DB
}

func NewPgAuditRepository(db *sql.DB) AuditRepository {
	return &pgAuditRepository{db: db}
}

func (r *pgAuditRepository) Create(ctx context.Context, l *model.AdminAuditLog) error {
	query := `INSERT INTO admin_audit_logs (id, admin_id, action, entity_type, entity_id, old_value, new_value, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.AdminID, l.Action, l.EntityType, l.EntityID, []byte(l.OldValue), []byte(l.NewValue), l.Timestamp)
	if err != nil {
		return fmt.Errorf("pgAuditRepository.Create: %w", err)
	}
	return nil
}

func (r *pgAuditRepository) List(ctx context.Context, limit, offset int) ([]model.AdminAuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, admin_id, action, entity_type, entity_id, old_value, new_value, created_at
	          FROM admin_audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgAuditRepository.List: %w", err)
	}
	defer rows.Close()

	logs := []model.AdminAuditLog{}
	for rows.Next() {
		var l model.AdminAuditLog
		var oldVal, newVal []byte
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Action, &l.EntityType, &l.EntityID, &oldVal, &newVal, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("pgAuditRepository.List scan: %w", err)
		}
		l.OldValue = oldVal
		l.NewValue = newVal
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgAuditRepository.List rows: %w", err)
	}
	return logs, nil
}
