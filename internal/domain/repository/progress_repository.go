package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"codesteps/internal/common"
	"codesteps/internal/domain/model"
)

// ProgressUser is one row of an admin course roster: a learner joined with
// their progression cursor.
type ProgressUser struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	CurrentStep int    `json:"current_step"`
}

type ProgressRepository interface {
	// GetOrCreate inserts the row at step 1 if absent and returns the
	// current row either way. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, id, userID, courseID string) (*model.UserCourseProgress, error)
	Find(ctx context.Context, userID, courseID string) (*model.UserCourseProgress, error)
	// FindForUpdate locks the progress row for the duration of tx.
	FindForUpdate(ctx context.Context, tx *sql.Tx, userID, courseID string) (*model.UserCourseProgress, error)
	// AdvanceStep is a compare-and-swap: the cursor moves to fromStep+1
	// only if it still equals fromStep. Returns false when another
	// transaction advanced it first.
	AdvanceStep(ctx context.Context, tx *sql.Tx, userID, courseID string, fromStep int) (bool, error)
	Delete(ctx context.Context, userID, courseID string) error
	ListByCourse(ctx context.Context, courseID string) ([]ProgressUser, error)
	// CountPastStep counts users whose cursor has moved beyond stepNumber,
	// i.e. users who completed that step.
	CountPastStep(ctx context.Context, courseID string, stepNumber int) (int, error)
	StepDistribution(ctx context.Context, courseID string) (map[int]int, error)
	// CompletedStepsByUser sums completed steps across all of a user's
	// courses (cursor minus one per course).
	CompletedStepsByUser(ctx context.Context, userID string) (int, error)
}

type pgProgressRepository struct {
	db *sql.DB
}

func NewPgProgressRepository(db *sql.DB) ProgressRepository {
	return &pgProgressRepository{db: db}
}

func (r *pgProgressRepository) GetOrCreate(ctx context.Context, id, userID, courseID string) (*model.UserCourseProgress, error) {
	insert := `INSERT INTO user_course_progress (id, user_id, course_id, current_step)
	           VALUES ($1, $2, $3, 1)
	           ON CONFLICT (user_id, course_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, id, userID, courseID); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.GetOrCreate insert: %w", err)
	}
	return r.Find(ctx, userID, courseID)
}

func (r *pgProgressRepository) Find(ctx context.Context, userID, courseID string) (*model.UserCourseProgress, error) {
	query := `SELECT id, user_id, course_id, current_step, updated_at
	          FROM user_course_progress WHERE user_id = $1 AND course_id = $2`
	p := &model.UserCourseProgress{}
	err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(
		&p.ID, &p.UserID, &p.CourseID, &p.CurrentStep, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.Find: %w", err)
	}
	return p, nil
}

func (r *pgProgressRepository) FindForUpdate(ctx context.Context, tx *sql.Tx, userID, courseID string) (*model.UserCourseProgress, error) {
	query := `SELECT id, user_id, course_id, current_step, updated_at
	          FROM user_course_progress WHERE user_id = $1 AND course_id = $2 FOR UPDATE`
	p := &model.UserCourseProgress{}
	err := tx.QueryRowContext(ctx, query, userID, courseID).Scan(
		&p.ID, &p.UserID, &p.CourseID, &p.CurrentStep, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProgressRepository.FindForUpdate: %w", err)
	}
	return p, nil
}

func (r *pgProgressRepository) AdvanceStep(ctx context.Context, tx *sql.Tx, userID, courseID string, fromStep int) (bool, error) {
	query := `UPDATE user_course_progress
	          SET current_step = current_step + 1, updated_at = CURRENT_TIMESTAMP
	          WHERE user_id = $1 AND course_id = $2 AND current_step = $3`
	var (
		res sql.Result
		err error
	)
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, userID, courseID, fromStep)
	} else {
		res, err = r.db.ExecContext(ctx, query, userID, courseID, fromStep)
	}
	if err != nil {
		return false, fmt.Errorf("pgProgressRepository.AdvanceStep: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *pgProgressRepository) Delete(ctx context.Context, userID, courseID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_course_progress WHERE user_id = $1 AND course_id = $2`, userID, courseID)
	if err != nil {
		return fmt.Errorf("pgProgressRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgProgressRepository) ListByCourse(ctx context.Context, courseID string) ([]ProgressUser, error) {
	query := `SELECT u.id, u.username, u.email, p.current_step
	          FROM user_course_progress p
	          JOIN users u ON u.id = p.user_id
	          WHERE p.course_id = $1
	          ORDER BY p.current_step DESC, u.username ASC`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByCourse: %w", err)
	}
	defer rows.Close()

	users := []ProgressUser{}
	for rows.Next() {
		var pu ProgressUser
		if err := rows.Scan(&pu.UserID, &pu.Username, &pu.Email, &pu.CurrentStep); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.ListByCourse scan: %w", err)
		}
		users = append(users, pu)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.ListByCourse rows: %w", err)
	}
	return users, nil
}

func (r *pgProgressRepository) CountPastStep(ctx context.Context, courseID string, stepNumber int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_course_progress WHERE course_id = $1 AND current_step > $2`,
		courseID, stepNumber).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgProgressRepository.CountPastStep: %w", err)
	}
	return count, nil
}

func (r *pgProgressRepository) CompletedStepsByUser(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(current_step - 1), 0) FROM user_course_progress WHERE user_id = $1`,
		userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("pgProgressRepository.CompletedStepsByUser: %w", err)
	}
	return total, nil
}

func (r *pgProgressRepository) StepDistribution(ctx context.Context, courseID string) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT current_step, COUNT(*) FROM user_course_progress WHERE course_id = $1 GROUP BY current_step`,
		courseID)
	if err != nil {
		return nil, fmt.Errorf("pgProgressRepository.StepDistribution: %w", err)
	}
	defer rows.Close()

	dist := map[int]int{}
	for rows.Next() {
		var step, count int
		if err := rows.Scan(&step, &count); err != nil {
			return nil, fmt.Errorf("pgProgressRepository.StepDistribution scan: %w", err)
		}
		dist[step] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgProgressRepository.StepDistribution rows: %w", err)
	}
	return dist, nil
}
