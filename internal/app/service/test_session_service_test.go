package service

import (
	"testing"
	"time"

	"codesteps/internal/domain/model"
)

func subAt(problemID string, verdict model.Verdict, minutesAgo int) model.Submission {
	return model.Submission{
		ProblemID: problemID,
		Verdict:   verdict,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

func TestLatestByProblemKeepsNewest(t *testing.T) {
	// Input is newest-first; the first submission seen per problem wins.
	subs := []model.Submission{
		subAt("p1", model.VerdictFailed, 1),
		subAt("p2", model.VerdictPassed, 2),
		subAt("p1", model.VerdictPassed, 5),
		subAt("p2", model.VerdictFailed, 9),
	}

	latest := latestByProblem(subs)
	if len(latest) != 2 {
		t.Fatalf("got %d problems, want 2", len(latest))
	}
	// p1's newest attempt failed even though an older one passed.
	if latest["p1"].Verdict != model.VerdictFailed {
		t.Errorf("p1 verdict = %s, want Failed (latest attempt governs)", latest["p1"].Verdict)
	}
	if latest["p2"].Verdict != model.VerdictPassed {
		t.Errorf("p2 verdict = %s, want Passed", latest["p2"].Verdict)
	}
}

func TestLatestByProblemEmpty(t *testing.T) {
	if got := latestByProblem(nil); len(got) != 0 {
		t.Fatalf("latestByProblem(nil) = %v", got)
	}
}
