package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"codesteps/internal/common"
	"codesteps/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

// stepOffset is the disjoint temporary numbering used by the two-phase
// reorder. Courses never legitimately reach step numbers this high.
const stepOffset = 1000

// CourseRepository owns courses, their ordered steps and per-step test
// cases. Write methods that participate in a larger transaction accept an
// optional *sql.Tx; nil falls back to the pool.
type CourseRepository interface {
	CreateCourse(ctx context.Context, course *model.Course) error
	FindCourseByID(ctx context.Context, id string) (*model.Course, error)
	FindCourseBySlug(ctx context.Context, slug string) (*model.Course, error)
	FindCourseByLanguage(ctx context.Context, language string) (*model.Course, error)
	ListCourses(ctx context.Context, activeOnly bool) ([]model.Course, error)
	SetCourseActive(ctx context.Context, id string, active bool) error

	CreateStep(ctx context.Context, tx *sql.Tx, step *model.CourseProblem) error
	UpdateStepContent(ctx context.Context, step *model.CourseProblem) error
	DeleteStep(ctx context.Context, tx *sql.Tx, stepID string) error
	FindStepByID(ctx context.Context, id string) (*model.CourseProblem, error)
	FindStepByNumber(ctx context.Context, courseID string, stepNumber int) (*model.CourseProblem, error)
	ListStepsByCourse(ctx context.Context, courseID string) ([]model.CourseProblem, error)
	MaxStepNumber(ctx context.Context, tx *sql.Tx, courseID string) (int, error)
	CountSteps(ctx context.Context, courseID string) (int, error)
	ApplyStepNumbers(ctx context.Context, tx *sql.Tx, courseID string, mappings map[string]int) error

	CreateTestCase(ctx context.Context, tc *model.CourseTestCase) error
	UpdateTestCase(ctx context.Context, tc *model.CourseTestCase) error
	DeleteTestCase(ctx context.Context, id string) error
	ListTestCasesByStep(ctx context.Context, stepID string) ([]model.CourseTestCase, error)
}

type pgCourseRepository struct {
	db *sql.DB
}

func NewPgCourseRepository(db *sql.DB) CourseRepository {
	return &pgCourseRepository{db: db}
}

func (r *pgCourseRepository) CreateCourse(ctx context.Context, c *model.Course) error {
	query := `INSERT INTO courses (id, language, editor_language, slug, is_active)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Language, c.EditorLanguage, c.Slug, c.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("course for this language already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgCourseRepository.CreateCourse: %w", err)
	}
	return nil
}

func (r *pgCourseRepository) FindCourseByID(ctx context.Context, id string) (*model.Course, error) {
	return r.findCourse(ctx, "id", id)
}

func (r *pgCourseRepository) FindCourseBySlug(ctx context.Context, slug string) (*model.Course, error) {
	return r.findCourse(ctx, "slug", slug)
}

func (r *pgCourseRepository) FindCourseByLanguage(ctx context.Context, language string) (*model.Course, error) {
	return r.findCourse(ctx, "language", language)
}

func (r *pgCourseRepository) findCourse(ctx context.Context, column, value string) (*model.Course, error) {
	query := fmt.Sprintf(`SELECT id, language, editor_language, slug, is_active, created_at
	          FROM courses WHERE %s = $1`, column)
	c := &model.Course{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&c.ID, &c.Language, &c.EditorLanguage, &c.Slug, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCourseRepository.findCourse(%s): %w", column, err)
	}
	return c, nil
}

func (r *pgCourseRepository) ListCourses(ctx context.Context, activeOnly bool) ([]model.Course, error) {
	query := `SELECT id, language, editor_language, slug, is_active, created_at FROM courses`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY language ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListCourses: %w", err)
	}
	defer rows.Close()

	courses := []model.Course{}
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Language, &c.EditorLanguage, &c.Slug, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgCourseRepository.ListCourses scan: %w", err)
		}
		courses = append(courses, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListCourses rows: %w", err)
	}
	return courses, nil
}

func (r *pgCourseRepository) SetCourseActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE courses SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.SetCourseActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) CreateStep(ctx context.Context, tx *sql.Tx, s *model.CourseProblem) error {
	policy, err := marshalPolicy(s.ValidationPolicy)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.CreateStep policy: %w", err)
	}
	query := `INSERT INTO course_problems (id, course_id, step_number, title, description, starter_code, solution_code, validation_policy)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, s.ID, s.CourseID, s.StepNumber, s.Title, s.Description, s.StarterCode, s.SolutionCode, policy)
	} else {
		_, err = r.db.ExecContext(ctx, query, s.ID, s.CourseID, s.StepNumber, s.Title, s.Description, s.StarterCode, s.SolutionCode, policy)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("step %d already exists in course: %w", s.StepNumber, common.ErrConflict)
		}
		return fmt.Errorf("pgCourseRepository.CreateStep: %w", err)
	}
	return nil
}

// UpdateStepContent touches content fields only. step_number and course_id
// are immutable here; moving a step goes through ApplyStepNumbers.
func (r *pgCourseRepository) UpdateStepContent(ctx context.Context, s *model.CourseProblem) error {
	policy, err := marshalPolicy(s.ValidationPolicy)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.UpdateStepContent policy: %w", err)
	}
	query := `UPDATE course_problems
	          SET title = $1, description = $2, starter_code = $3, solution_code = $4, validation_policy = $5
	          WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, s.Title, s.Description, s.StarterCode, s.SolutionCode, policy, s.ID)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.UpdateStepContent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) DeleteStep(ctx context.Context, tx *sql.Tx, stepID string) error {
	query := `DELETE FROM course_problems WHERE id = $1`
	var (
		res sql.Result
		err error
	)
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, stepID)
	} else {
		res, err = r.db.ExecContext(ctx, query, stepID)
	}
	if err != nil {
		return fmt.Errorf("pgCourseRepository.DeleteStep: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) FindStepByID(ctx context.Context, id string) (*model.CourseProblem, error) {
	return r.findStep(ctx, `WHERE id = $1`, id)
}

func (r *pgCourseRepository) FindStepByNumber(ctx context.Context, courseID string, stepNumber int) (*model.CourseProblem, error) {
	return r.findStep(ctx, `WHERE course_id = $1 AND step_number = $2`, courseID, stepNumber)
}

func (r *pgCourseRepository) findStep(ctx context.Context, where string, args ...interface{}) (*model.CourseProblem, error) {
	query := `SELECT id, course_id, step_number, title, description, starter_code, solution_code, validation_policy, created_at
	          FROM course_problems ` + where

	s := &model.CourseProblem{}
	var policy []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID, &s.CourseID, &s.StepNumber, &s.Title, &s.Description, &s.StarterCode, &s.SolutionCode, &policy, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCourseRepository.findStep: %w", err)
	}
	if s.ValidationPolicy, err = unmarshalPolicy(policy); err != nil {
		return nil, fmt.Errorf("pgCourseRepository.findStep policy: %w", err)
	}
	return s, nil
}

func (r *pgCourseRepository) ListStepsByCourse(ctx context.Context, courseID string) ([]model.CourseProblem, error) {
	query := `SELECT id, course_id, step_number, title, description, starter_code, solution_code, validation_policy, created_at
	          FROM course_problems WHERE course_id = $1 ORDER BY step_number ASC`
	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListStepsByCourse: %w", err)
	}
	defer rows.Close()

	steps := []model.CourseProblem{}
	for rows.Next() {
		var s model.CourseProblem
		var policy []byte
		if err := rows.Scan(&s.ID, &s.CourseID, &s.StepNumber, &s.Title, &s.Description, &s.StarterCode, &s.SolutionCode, &policy, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgCourseRepository.ListStepsByCourse scan: %w", err)
		}
		if s.ValidationPolicy, err = unmarshalPolicy(policy); err != nil {
			return nil, fmt.Errorf("pgCourseRepository.ListStepsByCourse policy: %w", err)
		}
		steps = append(steps, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListStepsByCourse rows: %w", err)
	}
	return steps, nil
}

func (r *pgCourseRepository) MaxStepNumber(ctx context.Context, tx *sql.Tx, courseID string) (int, error) {
	query := `SELECT COALESCE(MAX(step_number), 0) FROM course_problems WHERE course_id = $1`
	var max int
	var err error
	if tx != nil {
		err = tx.QueryRowContext(ctx, query, courseID).Scan(&max)
	} else {
		err = r.db.QueryRowContext(ctx, query, courseID).Scan(&max)
	}
	if err != nil {
		return 0, fmt.Errorf("pgCourseRepository.MaxStepNumber: %w", err)
	}
	return max, nil
}

func (r *pgCourseRepository) CountSteps(ctx context.Context, courseID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM course_problems WHERE course_id = $1`, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgCourseRepository.CountSteps: %w", err)
	}
	return count, nil
}

// ApplyStepNumbers permutes step numbers in two phases inside the caller's
// transaction: every row first moves to new_step+stepOffset, then to the
// final number. Skipping the intermediate hop trips the per-course unique
// constraint whenever two rows swap.
func (r *pgCourseRepository) ApplyStepNumbers(ctx context.Context, tx *sql.Tx, courseID string, mappings map[string]int) error {
	for id, newStep := range mappings {
		res, err := tx.ExecContext(ctx,
			`UPDATE course_problems SET step_number = $1 WHERE id = $2 AND course_id = $3`,
			newStep+stepOffset, id, courseID)
		if err != nil {
			return fmt.Errorf("pgCourseRepository.ApplyStepNumbers phase1: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("step %s not found in course: %w", id, common.ErrNotFound)
		}
	}
	for id, newStep := range mappings {
		if _, err := tx.ExecContext(ctx,
			`UPDATE course_problems SET step_number = $1 WHERE id = $2 AND course_id = $3`,
			newStep, id, courseID); err != nil {
			return fmt.Errorf("pgCourseRepository.ApplyStepNumbers phase2: %w", err)
		}
	}
	return nil
}

func (r *pgCourseRepository) CreateTestCase(ctx context.Context, tc *model.CourseTestCase) error {
	query := `INSERT INTO course_test_cases (id, problem_id, input_data, expected_output, is_hidden)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, tc.ID, tc.ProblemID, tc.InputData, tc.ExpectedOutput, tc.IsHidden)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.CreateTestCase: %w", err)
	}
	return nil
}

func (r *pgCourseRepository) UpdateTestCase(ctx context.Context, tc *model.CourseTestCase) error {
	query := `UPDATE course_test_cases SET input_data = $1, expected_output = $2, is_hidden = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, tc.InputData, tc.ExpectedOutput, tc.IsHidden, tc.ID)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.UpdateTestCase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) DeleteTestCase(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgCourseRepository.DeleteTestCase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgCourseRepository) ListTestCasesByStep(ctx context.Context, stepID string) ([]model.CourseTestCase, error) {
	query := `SELECT id, problem_id, input_data, expected_output, is_hidden, created_at
	          FROM course_test_cases WHERE problem_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, stepID)
	if err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListTestCasesByStep: %w", err)
	}
	defer rows.Close()

	cases := []model.CourseTestCase{}
	for rows.Next() {
		var tc model.CourseTestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.InputData, &tc.ExpectedOutput, &tc.IsHidden, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgCourseRepository.ListTestCasesByStep scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgCourseRepository.ListTestCasesByStep rows: %w", err)
	}
	return cases, nil
}

func marshalPolicy(p *model.ValidationPolicy) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func unmarshalPolicy(raw []byte) (*model.ValidationPolicy, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p := &model.ValidationPolicy{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	return p, nil
}
