package service

import (
	"context"
	"fmt"
	"time"

	"codesteps/internal/app/grader"
	"codesteps/internal/app/sandbox"
	"codesteps/internal/common"
	"codesteps/internal/domain/model"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/logger"

	"github.com/google/uuid"
)

// TestSessionService runs proctored assessments: window-gated entry, the
// enrollment state machine, violation logging, grading and scoring.
type TestSessionService struct {
	testRepo     repository.TestRepository
	progressRepo repository.ProgressRepository
	grader       *grader.Grader
	log          *logger.Logger
	now          func() time.Time
}

func NewTestSessionService(
	testRepo repository.TestRepository,
	progressRepo repository.ProgressRepository,
	runner grader.CaseRunner,
	log *logger.Logger,
) *TestSessionService {
	return &TestSessionService{
		testRepo:     testRepo,
		progressRepo: progressRepo,
		grader:       grader.New(runner),
		log:          log,
		now:          time.Now,
	}
}

type ActiveTestView struct {
	Test     model.ScheduledTest `json:"test"`
	Problems []model.Problem     `json:"problems"`
	Status   string              `json:"enrollment_status"`
}

type ExecuteRequest struct {
	ProblemID string  `json:"problem_id"`
	Code      string  `json:"code"`
	Language  string  `json:"language"`
	TestID    *string `json:"test_id,omitempty"`
}

type ExecuteResponse struct {
	SubmissionID    string        `json:"submission_id"`
	Verdict         model.Verdict `json:"verdict"`
	PassedCases     int           `json:"passed_cases"`
	TotalCases      int           `json:"total_cases"`
	ExecutionTimeMs float64       `json:"execution_time_ms"`
	OutputLog       string        `json:"output_log"`
}

type BehaviorRequest struct {
	ProblemID    *string `json:"problem_id,omitempty"`
	SubmissionID *string `json:"submission_id,omitempty"`
	TestID       *string `json:"test_id,omitempty"`
	EventType    string  `json:"event_type"`
	Severity     string  `json:"severity"`
	Details      string  `json:"details,omitempty"`
}

type ProblemResult struct {
	ProblemID string        `json:"problem_id"`
	Title     string        `json:"title"`
	Attempted bool          `json:"attempted"`
	Solved    bool          `json:"solved"`
	Verdict   model.Verdict `json:"verdict,omitempty"`
}

type TestResultView struct {
	TestID     string          `json:"test_id"`
	Title      string          `json:"title"`
	Status     string          `json:"enrollment_status"`
	Solved     int             `json:"solved"`
	Total      int             `json:"total"`
	Score      float64         `json:"score"`
	Violations int             `json:"violations"`
	Problems   []ProblemResult `json:"problems"`
}

type TestHistoryEntry struct {
	Test   model.ScheduledTest `json:"test"`
	Status string              `json:"status"`
}

type StudentStats struct {
	SolvedProblems int     `json:"solved_problems"`
	TotalAttempts  int     `json:"total_attempts"`
	StepsMastered  int     `json:"steps_mastered"`
	StrikeRate     float64 `json:"strike_rate"`
}

// ActiveTest finds the one currently-running test and moves the caller's
// enrollment to PRESENT. Terminal enrollments never re-enter.
func (s *TestSessionService) ActiveTest(ctx context.Context, userID string) (*ActiveTestView, error) {
	tests, err := s.testRepo.ListTests(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var active *model.ScheduledTest
	for i := range tests {
		if tests[i].EffectiveActive(now) {
			active = &tests[i]
			break
		}
	}
	if active == nil {
		return nil, fmt.Errorf("no active test: %w", common.ErrNotFound)
	}

	enrollment, err := s.testRepo.GetOrCreateEnrollment(ctx, uuid.NewString(), active.ID, userID)
	if err != nil {
		return nil, err
	}
	if enrollment.Terminal() {
		return nil, fmt.Errorf("test already %s: %w", enrollment.Status, common.ErrForbidden)
	}
	if enrollment.Status == model.EnrollmentRegistered {
		if err := s.testRepo.UpdateEnrollmentStatus(ctx, enrollment.ID, model.EnrollmentPresent); err != nil {
			return nil, err
		}
		enrollment.Status = model.EnrollmentPresent
	}

	problems, err := s.testRepo.ListTestProblems(ctx, active.ID)
	if err != nil {
		return nil, err
	}
	return &ActiveTestView{Test: *active, Problems: problems, Status: enrollment.Status}, nil
}

func (s *TestSessionService) CompleteTest(ctx context.Context, testID, userID string) error {
	return s.finish(ctx, testID, userID, model.EnrollmentCompleted)
}

// Disqualify terminates the enrollment and records a HIGH severity log.
func (s *TestSessionService) Disqualify(ctx context.Context, testID, userID, reason string) error {
	if err := s.finish(ctx, testID, userID, model.EnrollmentDisqualified); err != nil {
		return err
	}
	logEntry := &model.BehaviorLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		TestID:    &testID,
		EventType: "DISQUALIFIED",
		Severity:  "HIGH",
		Details:   reason,
	}
	if err := s.testRepo.CreateBehaviorLog(ctx, logEntry); err != nil {
		s.log.Error("disqualification log write failed", "test_id", testID, "user_id", userID, "error", err)
	}
	return nil
}

func (s *TestSessionService) finish(ctx context.Context, testID, userID, status string) error {
	enrollment, err := s.testRepo.FindEnrollment(ctx, testID, userID)
	if err != nil {
		return err
	}
	if enrollment.Terminal() {
		return fmt.Errorf("test already %s: %w", enrollment.Status, common.ErrForbidden)
	}
	return s.testRepo.UpdateEnrollmentStatus(ctx, enrollment.ID, status)
}

func (s *TestSessionService) LogBehavior(ctx context.Context, userID string, req BehaviorRequest) (*model.BehaviorLog, error) {
	if req.EventType == "" {
		return nil, fmt.Errorf("event_type is required: %w", common.ErrValidation)
	}
	if req.Severity == "" {
		req.Severity = "LOW"
	}
	logEntry := &model.BehaviorLog{
		ID:           uuid.NewString(),
		UserID:       userID,
		ProblemID:    req.ProblemID,
		SubmissionID: req.SubmissionID,
		TestID:       req.TestID,
		EventType:    req.EventType,
		Severity:     req.Severity,
		Details:      req.Details,
	}
	if err := s.testRepo.CreateBehaviorLog(ctx, logEntry); err != nil {
		return nil, err
	}
	return logEntry, nil
}

// Execute grades code against a library problem and records the submission.
// With a test id the attempt counts toward that test's score and requires a
// live (PRESENT) enrollment inside the test window.
func (s *TestSessionService) Execute(ctx context.Context, userID string, req ExecuteRequest) (*ExecuteResponse, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("code must not be empty: %w", common.ErrBadRequest)
	}
	problem, err := s.testRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	lang, ok := sandbox.Lookup(req.Language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", req.Language, common.ErrBadRequest)
	}

	if req.TestID != nil {
		test, err := s.testRepo.FindTestByID(ctx, *req.TestID)
		if err != nil {
			return nil, err
		}
		if !test.EffectiveActive(s.now()) {
			return nil, fmt.Errorf("test window is closed: %w", common.ErrForbidden)
		}
		enrollment, err := s.testRepo.FindEnrollment(ctx, *req.TestID, userID)
		if err != nil {
			return nil, err
		}
		if enrollment.Status != model.EnrollmentPresent {
			return nil, fmt.Errorf("enrollment is %s, not present: %w", enrollment.Status, common.ErrForbidden)
		}
	}

	stored, err := s.testRepo.ListTestCasesByProblem(ctx, problem.ID)
	if err != nil {
		return nil, err
	}
	cases := make([]grader.TestCase, 0, len(stored))
	for _, tc := range stored {
		cases = append(cases, grader.TestCase{InputData: tc.InputData, ExpectedOutput: tc.ExpectedOutput})
	}

	result := s.grader.Grade(ctx, req.Code, lang, cases)

	sub := &model.Submission{
		ID:               uuid.NewString(),
		UserID:           userID,
		ProblemID:        problem.ID,
		TestID:           req.TestID,
		Code:             req.Code,
		Verdict:          result.Verdict,
		PassedCases:      result.PassedCases,
		TotalCases:       result.TotalCases,
		ExecutionTimeMs:  result.ExecutionTimeMs,
		IsTestSubmission: req.TestID != nil,
	}
	if result.Verdict != model.VerdictPassed && result.OutputLog != "" {
		msg := result.OutputLog
		sub.ErrorMessage = &msg
	}
	if err := s.testRepo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	return &ExecuteResponse{
		SubmissionID:    sub.ID,
		Verdict:         result.Verdict,
		PassedCases:     result.PassedCases,
		TotalCases:      result.TotalCases,
		ExecutionTimeMs: result.ExecutionTimeMs,
		OutputLog:       result.OutputLog,
	}, nil
}

// Results scores a user's test: per problem only the latest true submission
// counts, solved/total*100 overall, with the violation count attached.
func (s *TestSessionService) Results(ctx context.Context, testID, userID string) (*TestResultView, error) {
	test, err := s.testRepo.FindTestByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.testRepo.FindEnrollment(ctx, testID, userID)
	if err != nil {
		return nil, err
	}
	problems, err := s.testRepo.ListTestProblems(ctx, testID)
	if err != nil {
		return nil, err
	}
	subs, err := s.testRepo.ListTestSubmissions(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	latest := latestByProblem(subs)

	results := make([]ProblemResult, 0, len(problems))
	solved := 0
	for _, p := range problems {
		pr := ProblemResult{ProblemID: p.ID, Title: p.Title}
		if sub, ok := latest[p.ID]; ok {
			pr.Attempted = true
			pr.Verdict = sub.Verdict
			pr.Solved = sub.Verdict == model.VerdictPassed
		}
		if pr.Solved {
			solved++
		}
		results = append(results, pr)
	}

	violations, err := s.testRepo.CountBehaviorLogs(ctx, testID, userID)
	if err != nil {
		return nil, err
	}

	score := 0.0
	if len(problems) > 0 {
		score = float64(solved) / float64(len(problems)) * 100
	}
	return &TestResultView{
		TestID:     test.ID,
		Title:      test.Title,
		Status:     enrollment.Status,
		Solved:     solved,
		Total:      len(problems),
		Score:      score,
		Violations: violations,
		Problems:   results,
	}, nil
}

func (s *TestSessionService) History(ctx context.Context, userID string) ([]TestHistoryEntry, error) {
	enrollments, err := s.testRepo.ListCompletedEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]TestHistoryEntry, 0, len(enrollments))
	for _, e := range enrollments {
		test, err := s.testRepo.FindTestByID(ctx, e.TestID)
		if err != nil {
			s.log.Warn("history lookup skipped missing test", "test_id", e.TestID, "error", err)
			continue
		}
		entries = append(entries, TestHistoryEntry{Test: *test, Status: e.Status})
	}
	return entries, nil
}

func (s *TestSessionService) Stats(ctx context.Context, userID string) (*StudentStats, error) {
	solved, err := s.testRepo.CountUserSolvedProblems(ctx, userID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.testRepo.CountUserSubmissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	mastered, err := s.progressRepo.CompletedStepsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &StudentStats{
		SolvedProblems: solved,
		TotalAttempts:  attempts,
		StepsMastered:  mastered,
	}
	if attempts > 0 {
		stats.StrikeRate = float64(solved) / float64(attempts) * 100
	}
	return stats, nil
}

type CreateTestRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsActive  bool      `json:"is_active"`
}

type LibraryProblemRequest struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Difficulty    string            `json:"difficulty"`
	Category      string            `json:"category"`
	StarterCodes  map[string]string `json:"starter_codes,omitempty"`
	IsTestProblem bool              `json:"is_test_problem"`
}

func (s *TestSessionService) CreateTest(ctx context.Context, req CreateTestRequest) (*model.ScheduledTest, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, fmt.Errorf("end_time must be after start_time: %w", common.ErrValidation)
	}
	test := &model.ScheduledTest{
		ID:        uuid.NewString(),
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	}
	if err := s.testRepo.CreateTest(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

// AddProblemToTest links a library problem into a test. A non-positive order
// appends at the end.
func (s *TestSessionService) AddProblemToTest(ctx context.Context, testID, problemID string, order int) (*model.TestProblem, error) {
	if _, err := s.testRepo.FindTestByID(ctx, testID); err != nil {
		return nil, err
	}
	if _, err := s.testRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, err
	}
	if order <= 0 {
		count, err := s.testRepo.CountTestProblems(ctx, testID)
		if err != nil {
			return nil, err
		}
		order = count + 1
	}
	link := &model.TestProblem{
		ID:        uuid.NewString(),
		TestID:    testID,
		ProblemID: problemID,
		Order:     order,
	}
	if err := s.testRepo.AddProblemToTest(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *TestSessionService) CreateLibraryProblem(ctx context.Context, req LibraryProblemRequest) (*model.Problem, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	problem := &model.Problem{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Difficulty:    req.Difficulty,
		Category:      req.Category,
		StarterCodes:  req.StarterCodes,
		IsTestProblem: req.IsTestProblem,
	}
	if err := s.testRepo.CreateProblem(ctx, problem); err != nil {
		return nil, err
	}
	return problem, nil
}

func (s *TestSessionService) AddLibraryTestCase(ctx context.Context, problemID string, req TestCaseRequest) (*model.TestCase, error) {
	if _, err := s.testRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, err
	}
	tc := &model.TestCase{
		ID:             uuid.NewString(),
		ProblemID:      problemID,
		InputData:      req.InputData,
		ExpectedOutput: req.ExpectedOutput,
		IsHidden:       req.IsHidden,
	}
	if err := s.testRepo.CreateProblemTestCase(ctx, tc); err != nil {
		return nil, err
	}
	return tc, nil
}

// ListViolations returns one user's full behavior trail for a test.
func (s *TestSessionService) ListViolations(ctx context.Context, testID, userID string) ([]model.BehaviorLog, error) {
	if _, err := s.testRepo.FindTestByID(ctx, testID); err != nil {
		return nil, err
	}
	return s.testRepo.ListBehaviorLogs(ctx, testID, userID)
}

func (s *TestSessionService) ListLibraryProblems(ctx context.Context) ([]model.Problem, error) {
	return s.testRepo.ListProblems(ctx, false)
}

func (s *TestSessionService) ListTests(ctx context.Context) ([]model.ScheduledTest, error) {
	return s.testRepo.ListTests(ctx)
}

// latestByProblem keeps the first submission seen per problem. Input must be
// ordered newest first; the repository guarantees that.
func latestByProblem(subs []model.Submission) map[string]model.Submission {
	latest := make(map[string]model.Submission, len(subs))
	for _, sub := range subs {
		if _, ok := latest[sub.ProblemID]; !ok {
			latest[sub.ProblemID] = sub
		}
	}
	return latest
}
