package model

// Verdict is the outcome of grading one submission.
type Verdict string

const (
	VerdictPassed Verdict = "Passed"
	VerdictFailed Verdict = "Failed"
	VerdictError  Verdict = "Error"
)
