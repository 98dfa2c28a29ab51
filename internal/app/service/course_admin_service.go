package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"codesteps/internal/common"
	"codesteps/internal/domain/model"
	"codesteps/internal/domain/repository"
	"codesteps/internal/platform/cache"
	"codesteps/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// CourseAdminService owns every privileged curriculum mutation. Each one is
// audit-logged; structural changes also invalidate the curriculum cache.
type CourseAdminService struct {
	db           *sql.DB
	courseRepo   repository.CourseRepository
	progressRepo repository.ProgressRepository
	logRepo      repository.SubmissionLogRepository
	audit        *AuditService
	cache        *cache.CurriculumCache
	log          *logger.Logger
}

func NewCourseAdminService(
	db *sql.DB,
	courseRepo repository.CourseRepository,
	progressRepo repository.ProgressRepository,
	logRepo repository.SubmissionLogRepository,
	audit *AuditService,
	curriculumCache *cache.CurriculumCache,
	log *logger.Logger,
) *CourseAdminService {
	return &CourseAdminService{
		db:           db,
		courseRepo:   courseRepo,
		progressRepo: progressRepo,
		logRepo:      logRepo,
		audit:        audit,
		cache:        curriculumCache,
		log:          log,
	}
}

type CreateCourseRequest struct {
	Language       string `json:"language"`
	EditorLanguage string `json:"editor_language"`
}

type StepRequest struct {
	StepNumber       int                     `json:"step_number"`
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	StarterCode      *string                 `json:"starter_code,omitempty"`
	SolutionCode     *string                 `json:"solution_code,omitempty"`
	ValidationPolicy *model.ValidationPolicy `json:"validation_policy,omitempty"`
}

// UpdateStepRequest carries content fields only. step_number and course_id
// cannot be changed here; moving a step goes through ReorderSteps.
type UpdateStepRequest struct {
	Title            string                  `json:"title"`
	Description      string                  `json:"description"`
	StarterCode      *string                 `json:"starter_code,omitempty"`
	SolutionCode     *string                 `json:"solution_code,omitempty"`
	ValidationPolicy *model.ValidationPolicy `json:"validation_policy,omitempty"`
}

type TestCaseRequest struct {
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

type CourseDetail struct {
	Course model.Course          `json:"course"`
	Steps  []model.CourseProblem `json:"steps"`
}

type CourseStatistics struct {
	CourseID       string                 `json:"course_id"`
	TotalSteps     int                    `json:"total_steps"`
	EnrolledUsers  int                    `json:"enrolled_users"`
	CompletedUsers int                    `json:"completed_users"`
	StepStats      []repository.StepStats `json:"step_stats"`
	Distribution   map[int]int            `json:"step_distribution"`
}

func (s *CourseAdminService) CreateCourse(ctx context.Context, adminID string, req CreateCourseRequest) (*model.Course, error) {
	if req.Language == "" || req.EditorLanguage == "" {
		return nil, fmt.Errorf("language and editor_language are required: %w", common.ErrValidation)
	}
	if _, err := s.courseRepo.FindCourseByLanguage(ctx, req.Language); err == nil {
		return nil, fmt.Errorf("course for language %q already exists: %w", req.Language, common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	course := &model.Course{
		ID:             uuid.NewString(),
		Language:       req.Language,
		EditorLanguage: req.EditorLanguage,
		Slug:           slug.Make(req.Language),
		IsActive:       true,
	}
	if err := s.courseRepo.CreateCourse(ctx, course); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, adminID, "CREATE_COURSE", "course", &course.ID, nil, course)
	return course, nil
}

func (s *CourseAdminService) SetCourseActive(ctx context.Context, adminID, courseID string, active bool) error {
	old, err := s.courseRepo.FindCourseByID(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.courseRepo.SetCourseActive(ctx, courseID, active); err != nil {
		return err
	}

	action := "DEACTIVATE_COURSE"
	if active {
		action = "ACTIVATE_COURSE"
	}
	s.audit.Record(ctx, adminID, action, "course", &courseID, old.IsActive, active)
	return nil
}

// CourseDetail is the admin view: all steps with solution code and policy.
func (s *CourseAdminService) CourseDetail(ctx context.Context, courseID string) (*CourseDetail, error) {
	course, err := s.courseRepo.FindCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	steps, err := s.courseRepo.ListStepsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseDetail{Course: *course, Steps: steps}, nil
}

// AddStep appends a step. The new number must be exactly max+1: this path
// never creates gaps or renumbers neighbors.
func (s *CourseAdminService) AddStep(ctx context.Context, adminID, courseID string, req StepRequest) (*model.CourseProblem, error) {
	if _, err := s.courseRepo.FindCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add step tx: %w", err)
	}
	defer tx.Rollback()

	max, err := s.courseRepo.MaxStepNumber(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if req.StepNumber != max+1 {
		return nil, fmt.Errorf("step_number must be %d (next sequential), got %d: %w",
			max+1, req.StepNumber, common.ErrValidation)
	}

	step := &model.CourseProblem{
		ID:               uuid.NewString(),
		CourseID:         courseID,
		StepNumber:       req.StepNumber,
		Title:            req.Title,
		Description:      req.Description,
		StarterCode:      req.StarterCode,
		SolutionCode:     req.SolutionCode,
		ValidationPolicy: req.ValidationPolicy,
	}
	if err := s.courseRepo.CreateStep(ctx, tx, step); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add step tx: %w", err)
	}

	s.invalidate(ctx, courseID)
	s.audit.Record(ctx, adminID, "ADD_STEP", "problem", &step.ID, nil, step)
	return step, nil
}

func (s *CourseAdminService) UpdateStep(ctx context.Context, adminID, stepID string, req UpdateStepRequest) (*model.CourseProblem, error) {
	old, err := s.courseRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}

	updated := *old
	updated.Title = req.Title
	updated.Description = req.Description
	updated.StarterCode = req.StarterCode
	updated.SolutionCode = req.SolutionCode
	updated.ValidationPolicy = req.ValidationPolicy

	if err := s.courseRepo.UpdateStepContent(ctx, &updated); err != nil {
		return nil, err
	}

	s.invalidate(ctx, old.CourseID)
	s.audit.Record(ctx, adminID, "UPDATE_STEP", "problem", &stepID, old, &updated)
	return &updated, nil
}

// DeleteStep refuses to remove a step some learner has already passed,
// unless forced. A forced delete leaves a permanent numbering gap and
// strands affected cursors; the audit record keeps the prior state.
func (s *CourseAdminService) DeleteStep(ctx context.Context, adminID, stepID string, force bool) error {
	step, err := s.courseRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}

	passed, err := s.progressRepo.CountPastStep(ctx, step.CourseID, step.StepNumber)
	if err != nil {
		return err
	}
	if passed > 0 && !force {
		return fmt.Errorf("%d user(s) have progressed past step %d; use force to delete anyway: %w",
			passed, step.StepNumber, common.ErrConflict)
	}

	if err := s.courseRepo.DeleteStep(ctx, nil, stepID); err != nil {
		return err
	}
	if passed > 0 {
		s.log.Warn("forced step delete left inconsistent progress",
			"course_id", step.CourseID, "step_number", step.StepNumber, "affected_users", passed)
	}

	s.invalidate(ctx, step.CourseID)
	s.audit.Record(ctx, adminID, "DELETE_STEP", "problem", &stepID, step, map[string]interface{}{
		"forced": force, "affected_users": passed,
	})
	return nil
}

// ReorderSteps atomically applies a full permutation of a course's step
// numbers. Progress cursors are deliberately left untouched: a user's
// numeric position survives, the problem behind it may change.
func (s *CourseAdminService) ReorderSteps(ctx context.Context, adminID, courseID string, mappings map[string]int) error {
	steps, err := s.courseRepo.ListStepsByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := validateReorderMappings(steps, mappings); err != nil {
		return err
	}

	oldOrder := stepOrder(steps)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.courseRepo.ApplyStepNumbers(ctx, tx, courseID, mappings); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}

	s.invalidate(ctx, courseID)
	s.audit.Record(ctx, adminID, "REORDER_STEPS", "course", &courseID, oldOrder, mappings)
	return nil
}

// ResetProgress deletes a user's progress row; their next course access
// starts over at step 1.
func (s *CourseAdminService) ResetProgress(ctx context.Context, adminID, userID, courseID string) error {
	old, err := s.progressRepo.Find(ctx, userID, courseID)
	if err != nil {
		return err
	}
	if err := s.progressRepo.Delete(ctx, userID, courseID); err != nil {
		return err
	}
	s.audit.Record(ctx, adminID, "RESET_PROGRESS", "progress", &old.ID, old, nil)
	return nil
}

func (s *CourseAdminService) ListCourseUsers(ctx context.Context, courseID string) ([]repository.ProgressUser, error) {
	if _, err := s.courseRepo.FindCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.progressRepo.ListByCourse(ctx, courseID)
}

func (s *CourseAdminService) Statistics(ctx context.Context, courseID string) (*CourseStatistics, error) {
	if _, err := s.courseRepo.FindCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	total, err := s.courseRepo.CountSteps(ctx, courseID)
	if err != nil {
		return nil, err
	}
	users, err := s.progressRepo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completed, err := s.progressRepo.CountPastStep(ctx, courseID, total)
	if err != nil {
		return nil, err
	}
	stepStats, err := s.logRepo.StatsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	dist, err := s.progressRepo.StepDistribution(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return &CourseStatistics{
		CourseID:       courseID,
		TotalSteps:     total,
		EnrolledUsers:  len(users),
		CompletedUsers: completed,
		StepStats:      stepStats,
		Distribution:   dist,
	}, nil
}

func (s *CourseAdminService) AddTestCase(ctx context.Context, adminID, stepID string, req TestCaseRequest) (*model.CourseTestCase, error) {
	step, err := s.courseRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	tc := &model.CourseTestCase{
		ID:             uuid.NewString(),
		ProblemID:      stepID,
		InputData:      req.InputData,
		ExpectedOutput: req.ExpectedOutput,
		IsHidden:       req.IsHidden,
	}
	if err := s.courseRepo.CreateTestCase(ctx, tc); err != nil {
		return nil, err
	}
	s.invalidate(ctx, step.CourseID)
	s.audit.Record(ctx, adminID, "ADD_TEST_CASE", "test_case", &tc.ID, nil, tc)
	return tc, nil
}

func (s *CourseAdminService) UpdateTestCase(ctx context.Context, adminID, stepID, caseID string, req TestCaseRequest) (*model.CourseTestCase, error) {
	step, err := s.courseRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return nil, err
	}
	old, err := findTestCase(ctx, s.courseRepo, stepID, caseID)
	if err != nil {
		return nil, err
	}

	updated := *old
	updated.InputData = req.InputData
	updated.ExpectedOutput = req.ExpectedOutput
	updated.IsHidden = req.IsHidden
	if err := s.courseRepo.UpdateTestCase(ctx, &updated); err != nil {
		return nil, err
	}

	s.invalidate(ctx, step.CourseID)
	s.audit.Record(ctx, adminID, "UPDATE_TEST_CASE", "test_case", &caseID, old, &updated)
	return &updated, nil
}

func (s *CourseAdminService) DeleteTestCase(ctx context.Context, adminID, stepID, caseID string) error {
	step, err := s.courseRepo.FindStepByID(ctx, stepID)
	if err != nil {
		return err
	}
	old, err := findTestCase(ctx, s.courseRepo, stepID, caseID)
	if err != nil {
		return err
	}
	if err := s.courseRepo.DeleteTestCase(ctx, caseID); err != nil {
		return err
	}
	s.invalidate(ctx, step.CourseID)
	s.audit.Record(ctx, adminID, "DELETE_TEST_CASE", "test_case", &caseID, old, nil)
	return nil
}

func (s *CourseAdminService) ListTestCases(ctx context.Context, stepID string) ([]model.CourseTestCase, error) {
	if _, err := s.courseRepo.FindStepByID(ctx, stepID); err != nil {
		return nil, err
	}
	return s.courseRepo.ListTestCasesByStep(ctx, stepID)
}

func (s *CourseAdminService) invalidate(ctx context.Context, courseID string) {
	if err := s.cache.Invalidate(ctx, courseID); err != nil {
		s.log.Warn("curriculum cache invalidation failed", "course_id", courseID, "error", err)
	}
}

func findTestCase(ctx context.Context, repo repository.CourseRepository, stepID, caseID string) (*model.CourseTestCase, error) {
	cases, err := repo.ListTestCasesByStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == caseID {
			return &cases[i], nil
		}
	}
	return nil, common.ErrNotFound
}

// validateReorderMappings accepts only a complete, duplicate-free mapping of
// every step in the course onto exactly the contiguous range [1..N].
func validateReorderMappings(steps []model.CourseProblem, mappings map[string]int) error {
	if len(mappings) != len(steps) {
		return fmt.Errorf("mappings must cover every step: got %d, course has %d: %w",
			len(mappings), len(steps), common.ErrValidation)
	}

	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	numbers := make([]int, 0, len(mappings))
	seen := make(map[int]bool, len(mappings))
	for id, n := range mappings {
		if !known[id] {
			return fmt.Errorf("problem %s does not belong to this course: %w", id, common.ErrValidation)
		}
		if seen[n] {
			return fmt.Errorf("duplicate step number %d: %w", n, common.ErrValidation)
		}
		seen[n] = true
		numbers = append(numbers, n)
	}

	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			return fmt.Errorf("step numbers must be exactly 1..%d: %w", len(steps), common.ErrValidation)
		}
	}
	return nil
}

func stepOrder(steps []model.CourseProblem) map[string]int {
	order := make(map[string]int, len(steps))
	for _, s := range steps {
		order[s.ID] = s.StepNumber
	}
	return order
}
