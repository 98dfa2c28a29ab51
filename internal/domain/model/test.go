package model

import (
	"time"
)

// Problem is a library problem used by scheduled tests. A test references
// problems through TestProblem rather than owning them, so one problem can
// appear in several tests.
type Problem struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Difficulty    string            `json:"difficulty"` // "Easy", "Medium", "Hard"
	Category      string            `json:"category"`
	StarterCodes  map[string]string `json:"starter_codes,omitempty"` // keyed by editor language
	IsTestProblem bool              `json:"is_test_problem"`
	CreatedAt     time.Time         `json:"created_at"`
}

// TestCase grades one library problem.
type TestCase struct {
	ID             string `json:"id"`
	ProblemID      string `json:"problem_id"`
	InputData      string `json:"input_data"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
}

// TestWindow classifies a scheduled test against wall-clock now.
type TestWindow string

const (
	WindowUpcoming TestWindow = "UPCOMING"
	WindowActive   TestWindow = "ACTIVE"
	WindowExpired  TestWindow = "EXPIRED"
)

type ScheduledTest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	IsActive  bool      `json:"is_active"`
}

// Window compares stored timestamps against now. Offsets are stripped first
// so the comparison is timezone-naive, matching how test times are authored.
func (t *ScheduledTest) Window(now time.Time) TestWindow {
	naive := stripOffset(now)
	start := stripOffset(t.StartTime)
	end := stripOffset(t.EndTime)
	switch {
	case naive.Before(start):
		return WindowUpcoming
	case naive.After(end):
		return WindowExpired
	default:
		return WindowActive
	}
}

// EffectiveActive is the stored flag gated by the time window.
func (t *ScheduledTest) EffectiveActive(now time.Time) bool {
	return t.IsActive && t.Window(now) == WindowActive
}

func stripOffset(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
}

// TestProblem links a problem into a test with an explicit position.
type TestProblem struct {
	ID        string `json:"id"`
	TestID    string `json:"test_id"`
	ProblemID string `json:"problem_id"`
	Order     int    `json:"order"`
}

const (
	EnrollmentRegistered   = "REGISTERED"
	EnrollmentPresent      = "PRESENT"
	EnrollmentCompleted    = "COMPLETED"
	EnrollmentDisqualified = "DISQUALIFIED"
)

// TestEnrollment tracks one user's status in one scheduled test.
// COMPLETED and DISQUALIFIED are terminal.
type TestEnrollment struct {
	ID     string `json:"id"`
	TestID string `json:"test_id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// Terminal reports whether the enrollment blocks any further test access.
func (e *TestEnrollment) Terminal() bool {
	return e.Status == EnrollmentCompleted || e.Status == EnrollmentDisqualified
}

// Submission is a graded attempt against a library problem, optionally tied
// to a scheduled test. Only records flagged IsTestSubmission count toward a
// test score; plain runs feed the attempts metric only.
type Submission struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	ProblemID        string    `json:"problem_id"`
	TestID           *string   `json:"test_id,omitempty"`
	Code             string    `json:"code,omitempty"`
	Verdict          Verdict   `json:"verdict"`
	PassedCases      int       `json:"passed_cases"`
	TotalCases       int       `json:"total_cases"`
	ExecutionTimeMs  float64   `json:"execution_time_ms"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	IsTestSubmission bool      `json:"is_test_submission"`
	CreatedAt        time.Time `json:"created_at"`
}

// BehaviorLog records one proctoring violation.
type BehaviorLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ProblemID    *string   `json:"problem_id,omitempty"`
	SubmissionID *string   `json:"submission_id,omitempty"`
	TestID       *string   `json:"test_id,omitempty"`
	EventType    string    `json:"event_type"` // "TAB_SWITCH", "OBJECT_DETECTED", ...
	Severity     string    `json:"severity"`   // "LOW", "MEDIUM", "HIGH"
	Details      string    `json:"details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
