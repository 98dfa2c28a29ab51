package model

import (
	"time"
)

// UserCourseProgress is the progression cursor for one (user, course) pair.
// current_step is the next step to complete: step N is completed iff
// N < current_step, active iff N == current_step, locked iff N > current_step.
type UserCourseProgress struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	CurrentStep int       `json:"current_step"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmissionLog is an immutable record of one learning submission attempt.
// Used for analytics and audit, never for access decisions.
type SubmissionLog struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ProblemID       string    `json:"problem_id"`
	Verdict         Verdict   `json:"verdict"`
	ExecutionTimeMs float64   `json:"execution_time_ms"`
	TimeoutFlag     bool      `json:"timeout_flag"`
	PayloadSize     int       `json:"payload_size"`
	Timestamp       time.Time `json:"timestamp"`
}
