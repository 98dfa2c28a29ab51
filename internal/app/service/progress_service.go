package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codesteps/internal/app/grader"
	"codesteps/internal/app/progression"
	"codesteps/internal/app/ratelimit"
	"codesteps/internal/app/sandbox"
	"codesteps/internal/common"
	"codesteps/internal/domain/model"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/cache"
	"codesteps/internal/platform/logger"

	"github.com/google/uuid"
)

// ProgressService owns the learner-facing side of courses: listing,
// step-gated curriculum views and the submit pipeline.
type ProgressService struct {
	db           *sql.DB
	courseRepo   repository.CourseRepository
	progressRepo repository.ProgressRepository
	logRepo      repository.SubmissionLogRepository
	grader       *grader.Grader
	runner       grader.CaseRunner
	limiter      *ratelimit.Limiter
	cache        *cache.CurriculumCache
	log          *logger.Logger
	maxPayload   int
}

func NewProgressService(
	db *sql.DB,
	courseRepo repository.CourseRepository,
	progressRepo repository.ProgressRepository,
	logRepo repository.SubmissionLogRepository,
	runner grader.CaseRunner,
	limiter *ratelimit.Limiter,
	curriculumCache *cache.CurriculumCache,
	log *logger.Logger,
	maxPayload int,
) *ProgressService {
	return &ProgressService{
		db:           db,
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		logRepo:      logRepo,
		grader:       grader.New(runner),
		runner:       runner,
		limiter:      limiter,
		cache:        curriculumCache,
		log:          log,
		maxPayload:   maxPayload,
	}
}

type CourseSummary struct {
	model.Course
	TotalSteps  int     `json:"total_steps"`
	CurrentStep int     `json:"current_step"`
	Percentage  float64 `json:"percentage"`
	IsStarted   bool    `json:"is_started"`
	IsCompleted bool    `json:"is_completed"`
}

// StepView is the learner's view of one step. Locked steps keep their title
// but hide everything else; solution code is never present.
type StepView struct {
	ID          string                 `json:"id"`
	StepNumber  int                    `json:"step_number"`
	Title       string                 `json:"title"`
	Status      progression.StepStatus `json:"status"`
	Description *string                `json:"description,omitempty"`
	StarterCode *string                `json:"starter_code,omitempty"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
}

type ProgressView struct {
	CourseID       string  `json:"course_id"`
	CurrentStep    int     `json:"current_step"`
	TotalSteps     int     `json:"total_steps"`
	CompletedSteps int     `json:"completed_steps"`
	Percentage     float64 `json:"percentage"`
	IsCompleted    bool    `json:"is_completed"`
}

type SubmitRequest struct {
	ProblemID string `json:"problem_id"`
	Code      string `json:"code"`
}

type SubmitResponse struct {
	Success         bool          `json:"success"`
	Verdict         model.Verdict `json:"verdict"`
	Message         string        `json:"message"`
	PassedCases     int           `json:"passed_cases"`
	TotalCases      int           `json:"total_cases"`
	ExecutionTimeMs float64       `json:"execution_time_ms"`
	CurrentStep     int           `json:"current_step"`
}

func (s *ProgressService) ListCourses(ctx context.Context, userID string) ([]CourseSummary, error) {
	courses, err := s.courseRepo.ListCourses(ctx, true)
	if err != nil {
		return nil, err
	}

	summaries := make([]CourseSummary, 0, len(courses))
	for _, c := range courses {
		summary, err := s.summarize(ctx, userID, c)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetCourseBySlug resolves one course by its URL slug.
func (s *ProgressService) GetCourseBySlug(ctx context.Context, userID, courseSlug string) (*CourseSummary, error) {
	course, err := s.courseRepo.FindCourseBySlug(ctx, courseSlug)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course is not active: %w", common.ErrForbidden)
	}
	summary, err := s.summarize(ctx, userID, *course)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *ProgressService) summarize(ctx context.Context, userID string, c model.Course) (CourseSummary, error) {
	total, err := s.courseRepo.CountSteps(ctx, c.ID)
	if err != nil {
		return CourseSummary{}, err
	}
	summary := CourseSummary{Course: c, TotalSteps: total}

	prog, err := s.progressRepo.Find(ctx, userID, c.ID)
	switch {
	case err == nil:
		summary.IsStarted = true
		summary.CurrentStep = prog.CurrentStep
		summary.Percentage = progression.Percentage(prog.CurrentStep, total)
		summary.IsCompleted = progression.CourseComplete(prog.CurrentStep, total)
	case errors.Is(err, common.ErrNotFound):
		summary.CurrentStep = 1
	default:
		return CourseSummary{}, err
	}
	return summary, nil
}

// GetCourseProblems returns the gated step listing and implicitly enrolls
// the user on first access.
func (s *ProgressService) GetCourseProblems(ctx context.Context, userID, courseID string) ([]StepView, error) {
	course, err := s.courseRepo.FindCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course is not active: %w", common.ErrForbidden)
	}

	prog, err := s.progressRepo.GetOrCreate(ctx, uuid.NewString(), userID, courseID)
	if err != nil {
		return nil, err
	}

	steps, err := s.loadSteps(ctx, courseID)
	if err != nil {
		return nil, err
	}

	views := make([]StepView, 0, len(steps))
	for i := range steps {
		views = append(views, newStepView(&steps[i], prog.CurrentStep))
	}
	return views, nil
}

// GetProblem returns one step if the progression gate allows viewing it.
func (s *ProgressService) GetProblem(ctx context.Context, userID, problemID string) (*StepView, error) {
	step, err := s.courseRepo.FindStepByID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	course, err := s.courseRepo.FindCourseByID(ctx, step.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course is not active: %w", common.ErrForbidden)
	}

	prog, err := s.progressRepo.GetOrCreate(ctx, uuid.NewString(), userID, step.CourseID)
	if err != nil {
		return nil, err
	}

	if ok, reason := progression.CanAccess(step.StepNumber, prog.CurrentStep); !ok {
		return nil, fmt.Errorf("%s: %w", reason, common.ErrForbidden)
	}

	view := newStepView(step, prog.CurrentStep)
	return &view, nil
}

// GetStepByNumber resolves a step by its position in the course, under the
// same access gate as lookup by id.
func (s *ProgressService) GetStepByNumber(ctx context.Context, userID, courseID string, stepNumber int) (*StepView, error) {
	course, err := s.courseRepo.FindCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course is not active: %w", common.ErrForbidden)
	}

	step, err := s.courseRepo.FindStepByNumber(ctx, courseID, stepNumber)
	if err != nil {
		return nil, err
	}
	prog, err := s.progressRepo.GetOrCreate(ctx, uuid.NewString(), userID, courseID)
	if err != nil {
		return nil, err
	}
	if ok, reason := progression.CanAccess(step.StepNumber, prog.CurrentStep); !ok {
		return nil, fmt.Errorf("%s: %w", reason, common.ErrForbidden)
	}

	view := newStepView(step, prog.CurrentStep)
	return &view, nil
}

// RecentSubmissions returns the caller's latest attempts, newest first.
func (s *ProgressService) RecentSubmissions(ctx context.Context, userID string, limit int) ([]model.SubmissionLog, error) {
	return s.logRepo.ListByUser(ctx, userID, limit)
}

func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID string) (*ProgressView, error) {
	if _, err := s.courseRepo.FindCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	total, err := s.courseRepo.CountSteps(ctx, courseID)
	if err != nil {
		return nil, err
	}
	prog, err := s.progressRepo.GetOrCreate(ctx, uuid.NewString(), userID, courseID)
	if err != nil {
		return nil, err
	}
	return &ProgressView{
		CourseID:       courseID,
		CurrentStep:    prog.CurrentStep,
		TotalSteps:     total,
		CompletedSteps: progression.CompletedSteps(prog.CurrentStep),
		Percentage:     progression.Percentage(prog.CurrentStep, total),
		IsCompleted:    progression.CourseComplete(prog.CurrentStep, total),
	}, nil
}

// Submit runs the full pipeline: existence, format, gate, payload cap, rate
// limit, static policy, grading, logging, and the guarded step advance.
// Check order is part of the contract; callers rely on the status codes.
func (s *ProgressService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResponse, error) {
	step, err := s.courseRepo.FindStepByID(ctx, req.ProblemID)
	if err != nil {
		return nil, err
	}
	course, err := s.courseRepo.FindCourseByID(ctx, step.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsActive {
		return nil, fmt.Errorf("course is not active: %w", common.ErrForbidden)
	}

	if req.Code == "" {
		return nil, fmt.Errorf("code must not be empty: %w", common.ErrBadRequest)
	}
	lang, ok := sandbox.Lookup(course.EditorLanguage)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", course.EditorLanguage, common.ErrBadRequest)
	}

	prog, err := s.progressRepo.GetOrCreate(ctx, uuid.NewString(), userID, step.CourseID)
	if err != nil {
		return nil, err
	}
	if ok, reason := progression.CanSubmit(step.StepNumber, prog.CurrentStep); !ok {
		return nil, fmt.Errorf("%s: %w", reason, common.ErrForbidden)
	}

	if len(req.Code) > s.maxPayload {
		return nil, fmt.Errorf("submission exceeds %d bytes: %w", s.maxPayload, common.ErrPayloadTooLarge)
	}

	if err := s.limiter.Check(userID); err != nil {
		return nil, err
	}

	result := s.runChecks(ctx, step, lang, req.Code)

	passed := result.Verdict == model.VerdictPassed
	s.limiter.LogResult(userID, passed)

	// The attempt is recorded no matter the outcome.
	logEntry := &model.SubmissionLog{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProblemID:       step.ID,
		Verdict:         result.Verdict,
		ExecutionTimeMs: result.ExecutionTimeMs,
		TimeoutFlag:     result.TimedOut,
		PayloadSize:     len(req.Code),
	}
	if err := s.logRepo.Create(ctx, logEntry); err != nil {
		s.log.Error("submission log write failed", "user_id", userID, "problem_id", step.ID, "error", err)
	}

	resp := &SubmitResponse{
		Success:         passed,
		Verdict:         result.Verdict,
		Message:         result.OutputLog,
		PassedCases:     result.PassedCases,
		TotalCases:      result.TotalCases,
		ExecutionTimeMs: result.ExecutionTimeMs,
		CurrentStep:     prog.CurrentStep,
	}
	if !passed {
		return resp, nil
	}

	newStep, err := s.advance(ctx, userID, step.CourseID, step.StepNumber)
	if err != nil {
		return nil, err
	}
	resp.CurrentStep = newStep
	return resp, nil
}

// runChecks applies the static validation policy, resolves the expected
// outputs, and grades. Steps without stored test cases fall back to the
// reference solution: its stdout becomes the single expected output.
func (s *ProgressService) runChecks(ctx context.Context, step *model.CourseProblem, lang sandbox.LanguageSpec, code string) grader.Result {
	if ok, reason := grader.VerifyLogic(code, step.ValidationPolicy); !ok {
		return grader.Result{
			Verdict:   model.VerdictFailed,
			OutputLog: reason,
		}
	}

	stored, err := s.courseRepo.ListTestCasesByStep(ctx, step.ID)
	if err != nil {
		s.log.Error("test case load failed", "problem_id", step.ID, "error", err)
		return grader.Result{Verdict: model.VerdictError, OutputLog: "Internal error loading test cases"}
	}

	cases := make([]grader.TestCase, 0, len(stored))
	for _, tc := range stored {
		cases = append(cases, grader.TestCase{InputData: tc.InputData, ExpectedOutput: tc.ExpectedOutput})
	}

	if len(cases) == 0 && step.SolutionCode != nil {
		ref := s.runner.Run(ctx, *step.SolutionCode, lang, "", "")
		if ref.TimedOut || ref.CompileFailed {
			s.log.Error("reference solution failed", "problem_id", step.ID, "error", ref.Error)
			return grader.Result{Verdict: model.VerdictError, OutputLog: "Internal error evaluating reference solution"}
		}
		cases = append(cases, grader.TestCase{InputData: "", ExpectedOutput: ref.Output})
	}

	return s.grader.Grade(ctx, code, lang, cases)
}

// advance moves the cursor one step forward under a row lock, guarded by a
// compare-and-swap so two racing submissions cannot both fire.
func (s *ProgressService) advance(ctx context.Context, userID, courseID string, fromStep int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback()

	prog, err := s.progressRepo.FindForUpdate(ctx, tx, userID, courseID)
	if err != nil {
		return 0, err
	}
	if prog.CurrentStep != fromStep {
		// A concurrent submission advanced first; keep its result.
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit advance tx: %w", err)
		}
		return prog.CurrentStep, nil
	}

	moved, err := s.progressRepo.AdvanceStep(ctx, tx, userID, courseID, fromStep)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit advance tx: %w", err)
	}
	if !moved {
		return prog.CurrentStep, nil
	}
	return fromStep + 1, nil
}

// loadSteps serves the curriculum from Redis when possible. Cache errors
// degrade to a database read; they are logged, never returned.
func (s *ProgressService) loadSteps(ctx context.Context, courseID string) ([]model.CourseProblem, error) {
	var steps []model.CourseProblem
	err := s.cache.GetProblems(ctx, courseID, &steps)
	if err == nil {
		return steps, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("curriculum cache read failed", "course_id", courseID, "error", err)
	}

	steps, err = s.courseRepo.ListStepsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProblems(ctx, courseID, steps); err != nil {
		s.log.Warn("curriculum cache write failed", "course_id", courseID, "error", err)
	}
	return steps, nil
}

func newStepView(step *model.CourseProblem, currentStep int) StepView {
	status := progression.Status(step.StepNumber, currentStep)
	view := StepView{
		ID:         step.ID,
		StepNumber: step.StepNumber,
		Title:      step.Title,
		Status:     status,
	}
	if status != progression.StatusLocked {
		desc := step.Description
		created := step.CreatedAt
		view.Description = &desc
		view.StarterCode = step.StarterCode
		view.CreatedAt = &created
	}
	return view
}
