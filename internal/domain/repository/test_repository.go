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

// TestRepository owns the assessment side: the library problem bank,
// scheduled tests and their problem links, enrollments, graded submissions
// and proctoring behavior logs.
type TestRepository interface {
	CreateProblem(ctx context.Context, p *model.Problem) error
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	ListProblems(ctx context.Context, testOnly bool) ([]model.Problem, error)
	ListTestCasesByProblem(ctx context.Context, problemID string) ([]model.TestCase, error)
	CreateProblemTestCase(ctx context.Context, tc *model.TestCase) error

	CreateTest(ctx context.Context, t *model.ScheduledTest) error
	FindTestByID(ctx context.Context, id string) (*model.ScheduledTest, error)
	ListTests(ctx context.Context) ([]model.ScheduledTest, error)
	AddProblemToTest(ctx context.Context, link *model.TestProblem) error
	ListTestProblems(ctx context.Context, testID string) ([]model.Problem, error)
	CountTestProblems(ctx context.Context, testID string) (int, error)

	GetOrCreateEnrollment(ctx context.Context, id, testID, userID string) (*model.TestEnrollment, error)
	FindEnrollment(ctx context.Context, testID, userID string) (*model.TestEnrollment, error)
	UpdateEnrollmentStatus(ctx context.Context, enrollmentID, status string) error
	ListCompletedEnrollments(ctx context.Context, userID string) ([]model.TestEnrollment, error)

	CreateSubmission(ctx context.Context, s *model.Submission) error
	// ListTestSubmissions returns a user's true test submissions for one
	// test, newest first. Scoring depends on that ordering.
	ListTestSubmissions(ctx context.Context, testID, userID string) ([]model.Submission, error)
	CountUserSubmissions(ctx context.Context, userID string) (int, error)
	CountUserSolvedProblems(ctx context.Context, userID string) (int, error)

	CreateBehaviorLog(ctx context.Context, l *model.BehaviorLog) error
	ListBehaviorLogs(ctx context.Context, testID, userID string) ([]model.BehaviorLog, error)
	CountBehaviorLogs(ctx context.Context, testID, userID string) (int, error)
}

type pgTestRepository struct {
	db *sql.DB
}

func NewPgTestRepository(db *sql.DB) TestRepository {
	return &pgTestRepository{db: db}
}

func (r *pgTestRepository) CreateProblem(ctx context.Context, p *model.Problem) error {
	starters, err := marshalStarters(p.StarterCodes)
	if err != nil {
		return fmt.Errorf("pgTestRepository.CreateProblem starters: %w", err)
	}
	query := `INSERT INTO problems (id, title, description, difficulty, category, starter_codes, is_test_problem)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Description, p.Difficulty, p.Category, starters, p.IsTestProblem); err != nil {
		return fmt.Errorf("pgTestRepository.CreateProblem: %w", err)
	}
	return nil
}

func (r *pgTestRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `SELECT id, title, description, difficulty, category, starter_codes, is_test_problem, created_at
	          FROM problems WHERE id = $1`
	p := &model.Problem{}
	var starters []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Difficulty, &p.Category, &starters, &p.IsTestProblem, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindProblemByID: %w", err)
	}
	if p.StarterCodes, err = unmarshalStarters(starters); err != nil {
		return nil, fmt.Errorf("pgTestRepository.FindProblemByID starters: %w", err)
	}
	return p, nil
}

func (r *pgTestRepository) ListProblems(ctx context.Context, testOnly bool) ([]model.Problem, error) {
	query := `SELECT id, title, description, difficulty, category, starter_codes, is_test_problem, created_at
	          FROM problems`
	if testOnly {
		query += ` WHERE is_test_problem = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListProblems: %w", err)
	}
	defer rows.Close()
	return scanProblems(rows)
}

func (r *pgTestRepository) ListTestCasesByProblem(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input_data, expected_output, is_hidden
	          FROM problem_test_cases WHERE problem_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestCasesByProblem: %w", err)
	}
	defer rows.Close()

	cases := []model.TestCase{}
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.InputData, &tc.ExpectedOutput, &tc.IsHidden); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListTestCasesByProblem scan: %w", err)
		}
		cases = append(cases, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestCasesByProblem rows: %w", err)
	}
	return cases, nil
}

func (r *pgTestRepository) CreateProblemTestCase(ctx context.Context, tc *model.TestCase) error {
	query := `INSERT INTO problem_test_cases (id, problem_id, input_data, expected_output, is_hidden)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, tc.ID, tc.ProblemID, tc.InputData, tc.ExpectedOutput, tc.IsHidden); err != nil {
		return fmt.Errorf("pgTestRepository.CreateProblemTestCase: %w", err)
	}
	return nil
}

func (r *pgTestRepository) CreateTest(ctx context.Context, t *model.ScheduledTest) error {
	query := `INSERT INTO scheduled_tests (id, title, start_time, end_time, is_active)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.Title, t.StartTime, t.EndTime, t.IsActive); err != nil {
		return fmt.Errorf("pgTestRepository.CreateTest: %w", err)
	}
	return nil
}

func (r *pgTestRepository) FindTestByID(ctx context.Context, id string) (*model.ScheduledTest, error) {
	query := `SELECT id, title, start_time, end_time, is_active FROM scheduled_tests WHERE id = $1`
	t := &model.ScheduledTest{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Title, &t.StartTime, &t.EndTime, &t.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindTestByID: %w", err)
	}
	return t, nil
}

func (r *pgTestRepository) ListTests(ctx context.Context) ([]model.ScheduledTest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, is_active FROM scheduled_tests ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTests: %w", err)
	}
	defer rows.Close()

	tests := []model.ScheduledTest{}
	for rows.Next() {
		var t model.ScheduledTest
		if err := rows.Scan(&t.ID, &t.Title, &t.StartTime, &t.EndTime, &t.IsActive); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListTests scan: %w", err)
		}
		tests = append(tests, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTests rows: %w", err)
	}
	return tests, nil
}

func (r *pgTestRepository) AddProblemToTest(ctx context.Context, link *model.TestProblem) error {
	query := `INSERT INTO test_problems (id, test_id, problem_id, problem_order)
	          VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, link.ID, link.TestID, link.ProblemID, link.Order)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("problem already linked to test: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgTestRepository.AddProblemToTest: %w", err)
	}
	return nil
}

func (r *pgTestRepository) ListTestProblems(ctx context.Context, testID string) ([]model.Problem, error) {
	query := `SELECT p.id, p.title, p.description, p.difficulty, p.category, p.starter_codes, p.is_test_problem, p.created_at
	          FROM test_problems tp
	          JOIN problems p ON p.id = tp.problem_id
	          WHERE tp.test_id = $1
	          ORDER BY tp.problem_order ASC`
	rows, err := r.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestProblems: %w", err)
	}
	defer rows.Close()
	return scanProblems(rows)
}

func (r *pgTestRepository) CountTestProblems(ctx context.Context, testID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_problems WHERE test_id = $1`, testID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountTestProblems: %w", err)
	}
	return count, nil
}

func (r *pgTestRepository) GetOrCreateEnrollment(ctx context.Context, id, testID, userID string) (*model.TestEnrollment, error) {
	insert := `INSERT INTO test_enrollments (id, test_id, user_id, status)
	           VALUES ($1, $2, $3, $4)
	           ON CONFLICT (test_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, id, testID, userID, model.EnrollmentRegistered); err != nil {
		return nil, fmt.Errorf("pgTestRepository.GetOrCreateEnrollment insert: %w", err)
	}
	return r.FindEnrollment(ctx, testID, userID)
}

func (r *pgTestRepository) FindEnrollment(ctx context.Context, testID, userID string) (*model.TestEnrollment, error) {
	query := `SELECT id, test_id, user_id, status FROM test_enrollments WHERE test_id = $1 AND user_id = $2`
	e := &model.TestEnrollment{}
	err := r.db.QueryRowContext(ctx, query, testID, userID).Scan(&e.ID, &e.TestID, &e.UserID, &e.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTestRepository.FindEnrollment: %w", err)
	}
	return e, nil
}

func (r *pgTestRepository) UpdateEnrollmentStatus(ctx context.Context, enrollmentID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE test_enrollments SET status = $1 WHERE id = $2`, status, enrollmentID)
	if err != nil {
		return fmt.Errorf("pgTestRepository.UpdateEnrollmentStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTestRepository) ListCompletedEnrollments(ctx context.Context, userID string) ([]model.TestEnrollment, error) {
	query := `SELECT id, test_id, user_id, status
	          FROM test_enrollments
	          WHERE user_id = $1 AND status IN ($2, $3)`
	rows, err := r.db.QueryContext(ctx, query, userID, model.EnrollmentCompleted, model.EnrollmentDisqualified)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListCompletedEnrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []model.TestEnrollment{}
	for rows.Next() {
		var e model.TestEnrollment
		if err := rows.Scan(&e.ID, &e.TestID, &e.UserID, &e.Status); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListCompletedEnrollments scan: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListCompletedEnrollments rows: %w", err)
	}
	return enrollments, nil
}

func (r *pgTestRepository) CreateSubmission(ctx context.Context, s *model.Submission) error {
	query := `INSERT INTO submissions (id, user_id, problem_id, test_id, code, verdict, passed_cases, total_cases, execution_time_ms, error_message, is_test_submission)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.ProblemID, s.TestID, s.Code, s.Verdict,
		s.PassedCases, s.TotalCases, s.ExecutionTimeMs, s.ErrorMessage, s.IsTestSubmission)
	if err != nil {
		return fmt.Errorf("pgTestRepository.CreateSubmission: %w", err)
	}
	return nil
}

func (r *pgTestRepository) ListTestSubmissions(ctx context.Context, testID, userID string) ([]model.Submission, error) {
	query := `SELECT id, user_id, problem_id, test_id, verdict, passed_cases, total_cases, execution_time_ms, error_message, is_test_submission, created_at
	          FROM submissions
	          WHERE test_id = $1 AND user_id = $2 AND is_test_submission = TRUE
	          ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestSubmissions: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ProblemID, &s.TestID, &s.Verdict, &s.PassedCases,
			&s.TotalCases, &s.ExecutionTimeMs, &s.ErrorMessage, &s.IsTestSubmission, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListTestSubmissions scan: %w", err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListTestSubmissions rows: %w", err)
	}
	return subs, nil
}

func (r *pgTestRepository) CountUserSubmissions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountUserSubmissions: %w", err)
	}
	return count, nil
}

func (r *pgTestRepository) CountUserSolvedProblems(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT problem_id) FROM submissions WHERE user_id = $1 AND verdict = 'Passed'`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountUserSolvedProblems: %w", err)
	}
	return count, nil
}

func (r *pgTestRepository) CreateBehaviorLog(ctx context.Context, l *model.BehaviorLog) error {
	query := `INSERT INTO behavior_logs (id, user_id, problem_id, submission_id, test_id, event_type, severity, details)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.ProblemID, l.SubmissionID, l.TestID, l.EventType, l.Severity, l.Details)
	if err != nil {
		return fmt.Errorf("pgTestRepository.CreateBehaviorLog: %w", err)
	}
	return nil
}

func (r *pgTestRepository) ListBehaviorLogs(ctx context.Context, testID, userID string) ([]model.BehaviorLog, error) {
	query := `SELECT id, user_id, problem_id, submission_id, test_id, event_type, severity, details, created_at
	          FROM behavior_logs WHERE test_id = $1 AND user_id = $2 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListBehaviorLogs: %w", err)
	}
	defer rows.Close()

	logs := []model.BehaviorLog{}
	for rows.Next() {
		var l model.BehaviorLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProblemID, &l.SubmissionID, &l.TestID, &l.EventType, &l.Severity, &l.Details, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("pgTestRepository.ListBehaviorLogs scan: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTestRepository.ListBehaviorLogs rows: %w", err)
	}
	return logs, nil
}

func (r *pgTestRepository) CountBehaviorLogs(ctx context.Context, testID, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM behavior_logs WHERE test_id = $1 AND user_id = $2`, testID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgTestRepository.CountBehaviorLogs: %w", err)
	}
	return count, nil
}

func scanProblems(rows *sql.Rows) ([]model.Problem, error) {
	problems := []model.Problem{}
	for rows.Next() {
		var p model.Problem
		var starters []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Difficulty, &p.Category, &starters, &p.IsTestProblem, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanProblems: %w", err)
		}
		var err error
		if p.StarterCodes, err = unmarshalStarters(starters); err != nil {
			return nil, fmt.Errorf("scanProblems starters: %w", err)
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanProblems rows: %w", err)
	}
	return problems, nil
}

func marshalStarters(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalStarters(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
