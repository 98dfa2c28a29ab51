// Package progression holds the ordered-gate rules shared by the learning
// curriculum. The cursor semantics: current_step is the next step to complete,
// every lower step is done, every higher step is locked.
package progression

import "fmt"

type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusCurrent   StepStatus = "current"
	StatusLocked    StepStatus = "locked"
)

// Status classifies one step against the progression cursor.
func Status(stepNumber, currentStep int) StepStatus {
	switch {
	case stepNumber < currentStep:
		return StatusCompleted
	case stepNumber == currentStep:
		return StatusCurrent
	default:
		return StatusLocked
	}
}

// CanAccess reports whether a step's content may be viewed. Callers must gate
// field inclusion on this, not on row existence, so locked steps leak nothing.
func CanAccess(stepNumber, currentStep int) (bool, string) {
	if stepNumber > currentStep {
		return false, fmt.Sprintf("Step %d is locked. Complete step %d first.", stepNumber, currentStep)
	}
	return true, ""
}

// CanSubmit reports whether a step accepts a submission. Only the exact
// current step does: completed steps are permanently rejected, later steps
// cannot be skipped to.
func CanSubmit(stepNumber, currentStep int) (bool, string) {
	if stepNumber < currentStep {
		return false, fmt.Sprintf("Step %d is already completed. You are on step %d.", stepNumber, currentStep)
	}
	if stepNumber > currentStep {
		return false, fmt.Sprintf("Cannot skip to step %d. Complete step %d first.", stepNumber, currentStep)
	}
	return true, ""
}

// CourseComplete is a derived predicate, never a stored flag.
func CourseComplete(currentStep, totalSteps int) bool {
	return currentStep > totalSteps
}

// CompletedSteps converts the cursor into a completed count for reporting.
func CompletedSteps(currentStep int) int {
	if currentStep < 1 {
		return 0
	}
	return currentStep - 1
}

// Percentage is the completion ratio rounded to one decimal place.
func Percentage(currentStep, totalSteps int) float64 {
	if totalSteps <= 0 {
		return 0
	}
	completed := CompletedSteps(currentStep)
	if completed > totalSteps {
		completed = totalSteps
	}
	raw := float64(completed) / float64(totalSteps) * 100
	return float64(int(raw*10+0.5)) / 10
}
