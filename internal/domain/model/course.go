package model

import (
	"time"
)

// Course owns an ordered curriculum of steps for one editor language.
// Step numbers within a course are unique and contiguous starting at 1;
// the admin write paths enforce that, reads assume it.
type Course struct {
	ID             string    `json:"id"`
	Language       string    `json:"language"`        // Display name, e.g. "Python"
	EditorLanguage string    `json:"editor_language"` // Sandbox identifier, e.g. "python"
	Slug           string    `json:"slug"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// ValidationPolicy holds the optional static-analysis rules of a step.
type ValidationPolicy struct {
	RequiredVariables []string `json:"required_variables,omitempty"`
	ForbiddenPatterns []string `json:"forbidden_patterns,omitempty"`
}

// CourseProblem is one step within a course. step_number and course_id are
// immutable after creation; moving a step requires the atomic reorder.
type CourseProblem struct {
	ID               string            `json:"id"`
	CourseID         string            `json:"course_id"`
	StepNumber       int               `json:"step_number"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	StarterCode      *string           `json:"starter_code,omitempty"`
	SolutionCode     *string           `json:"solution_code,omitempty"` // Admin only view
	ValidationPolicy *ValidationPolicy `json:"validation_policy,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// CourseTestCase grades one step. Hidden cases are never exposed to learners.
type CourseTestCase struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	InputData      string    `json:"input_data"`
	ExpectedOutput string    `json:"expected_output"`
	IsHidden       bool      `json:"is_hidden"`
	CreatedAt      time.Time `json:"created_at"`
}
