package repository

import (
	"context"
	"database/sql"
	"fmt"

	"codesteps/internal/domain/model"
)

// StepStats aggregates the submission log per course step.
type StepStats struct {
	ProblemID  string `json:"problem_id"`
	StepNumber int    `json:"step_number"`
	Attempts   int    `json:"attempts"`
	Passes     int    `json:"passes"`
}

// SubmissionLogRepository is append-only; rows are never updated or read on
// the access-decision path.
type SubmissionLogRepository interface {
	Create(ctx context.Context, log *model.SubmissionLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.SubmissionLog, error)
	StatsByCourse(ctx context.Context, courseID string) ([]StepStats, error)
}

type pgSubmissionLogRepository struct {
	db *sql.DB
}

func NewPgSubmissionLogRepository(db *sql.DB) SubmissionLogRepository {
	return &pgSubmissionLogRepository{db: db}
}

func (r *pgSubmissionLogRepository) Create(ctx context.Context, l *model.SubmissionLog) error {
	query := `INSERT INTO submission_logs (id, user_id, problem_id, verdict, execution_time_ms, timeout_flag, payload_size)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.ProblemID, l.Verdict, l.ExecutionTimeMs, l.TimeoutFlag, l.PayloadSize)
	if err != nil {
		return fmt.Errorf("pgSubmissionLogRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.SubmissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, user_id, problem_id, verdict, execution_time_ms, timeout_flag, payload_size, created_at
	          FROM submission_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionLogRepository.ListByUser: %w", err)
	}
	defer rows.Close()

	logs := []model.SubmissionLog{}
	for rows.Next() {
		var l model.SubmissionLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProblemID, &l.Verdict, &l.ExecutionTimeMs, &l.TimeoutFlag, &l.PayloadSize, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("pgSubmissionLogRepository.ListByUser scan: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionLogRepository.ListByUser rows: %w", err)
	}
	return logs, nil
}

func (r *pgSubmissionLogRepository) StatsByCourse(ctx context.Context, courseID string) ([]StepStats, error) {
	query := `SELECT cp.id, cp.step_number,
	                 COUNT(sl.id) AS attempts,
	                 COUNT(sl.id) FILTER (WHERE sl.verdict = 'Passed') AS passes
	          FROM course_problems cp
	          LEFT JOIN submission_logs sl ON sl.problem_id = cp.id
	          WHERE cp.course_id = $1
	          GROUP BY cp.id, cp.step_number
	          ORDER BY cp.step_number ASC`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionLogRepository.StatsByCourse: %w", err)
	}
	defer rows.Close()

	stats := []StepStats{}
	for rows.Next() {
		var s StepStats
		if err := rows.Scan(&s.ProblemID, &s.StepNumber, &s.Attempts, &s.Passes); err != nil {
			return nil, fmt.Errorf("pgSubmissionLogRepository.StatsByCourse scan: %w", err)
		}
		stats = append(stats, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgSubmissionLogRepository.StatsByCourse rows: %w", err)
	}
	return stats, nil
}
