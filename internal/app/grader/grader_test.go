package grader

import (
	"context"
	"strings"
	"testing"

	"codesteps/internal/app/sandbox"
	"codesteps/internal/domain/model"
)

// stubRunner replays canned results in order.
type stubRunner struct {
	results []sandbox.RunResult
	calls   int
}

func (s *stubRunner) Run(_ context.Context, _ string, _ sandbox.LanguageSpec, _, _ string) sandbox.RunResult {
	res := s.results[s.calls]
	s.calls++
	return res
}

func twoCases() []TestCase {
	return []TestCase{
		{InputData: "", ExpectedOutput: "1"},
		{InputData: "", ExpectedOutput: "2"},
	}
}

func TestGradeAllCasesPass(t *testing.T) {
	runner := &stubRunner{results: []sandbox.RunResult{
		{Success: true, ExecutionTimeMs: 10},
		{Success: true, ExecutionTimeMs: 15},
	}}
	g := New(runner)

	res := g.Grade(context.Background(), "print(1)", sandbox.Python, twoCases())
	if res.Verdict != model.VerdictPassed {
		t.Fatalf("verdict = %s, want Passed", res.Verdict)
	}
	if res.PassedCases != 2 || res.TotalCases != 2 {
		t.Errorf("counts = %d/%d, want 2/2", res.PassedCases, res.TotalCases)
	}
	if res.ExecutionTimeMs != 25 {
		t.Errorf("execution time = %v, want summed 25", res.ExecutionTimeMs)
	}
	if !strings.Contains(res.OutputLog, "Test 1: PASS") || !strings.Contains(res.OutputLog, "Test 2: PASS") {
		t.Errorf("output log missing per-case lines: %q", res.OutputLog)
	}
}

func TestGradePartialFailure(t *testing.T) {
	runner := &stubRunner{results: []sandbox.RunResult{
		{Success: true},
		{Error: "Expected: '2', Got: '3'"},
	}}
	g := New(runner)

	res := g.Grade(context.Background(), "print(1)", sandbox.Python, twoCases())
	if res.Verdict != model.VerdictFailed {
		t.Fatalf("verdict = %s, want Failed", res.Verdict)
	}
	if runner.calls != 2 {
		t.Errorf("ordinary mismatch must not abort remaining cases, ran %d", runner.calls)
	}
	if !strings.Contains(res.OutputLog, "Test 2: FAIL - Expected") {
		t.Errorf("output log = %q", res.OutputLog)
	}
}

func TestGradeZeroCasesNeverPasses(t *testing.T) {
	g := New(&stubRunner{})
	res := g.Grade(context.Background(), "print(1)", sandbox.Python, nil)
	if res.Verdict != model.VerdictFailed {
		t.Fatalf("verdict with zero cases = %s, want Failed", res.Verdict)
	}
}

func TestGradeSecurityMarkerAborts(t *testing.T) {
	runner := &stubRunner{results: []sandbox.RunResult{
		{Error: "Security violation detected"},
		{Success: true},
	}}
	g := New(runner)

	res := g.Grade(context.Background(), "print(1)", sandbox.Python, twoCases())
	if runner.calls != 1 {
		t.Fatalf("security failure must abort remaining cases, ran %d", runner.calls)
	}
	if res.Verdict != model.VerdictFailed {
		t.Errorf("verdict = %s, want Failed", res.Verdict)
	}
}

func TestGradeCompileFailureIsError(t *testing.T) {
	runner := &stubRunner{results: []sandbox.RunResult{
		{Error: "Compilation Error: syntax", CompileFailed: true},
	}}
	g := New(runner)

	res := g.Grade(context.Background(), "int main(", sandbox.Compiled("c", "C", "gcc", ".c"), twoCases())
	if res.Verdict != model.VerdictError {
		t.Fatalf("verdict = %s, want Error", res.Verdict)
	}
	if runner.calls != 1 {
		t.Errorf("compile failure must abort remaining cases, ran %d", runner.calls)
	}
}

func TestGradeUnsafeCodeShortCircuits(t *testing.T) {
	runner := &stubRunner{}
	g := New(runner)

	res := g.Grade(context.Background(), "import os\nprint(1)", sandbox.Python, twoCases())
	if res.Verdict != model.VerdictError {
		t.Fatalf("verdict = %s, want Error", res.Verdict)
	}
	if runner.calls != 0 {
		t.Errorf("unsafe code must not reach the runner, ran %d cases", runner.calls)
	}
	if !strings.Contains(res.OutputLog, "Security violation: Forbidden import: os") {
		t.Errorf("output log = %q", res.OutputLog)
	}
	if res.TotalCases != 2 || res.PassedCases != 0 {
		t.Errorf("counts = %d/%d, want 0/2", res.PassedCases, res.TotalCases)
	}
}

func TestGradeTimeoutFlag(t *testing.T) {
	runner := &stubRunner{results: []sandbox.RunResult{
		{Error: "Timed Out: exceeded 5s limit", TimedOut: true, ExecutionTimeMs: 5000},
		{Success: true},
	}}
	g := New(runner)

	res := g.Grade(context.Background(), "while True: pass", sandbox.Python, twoCases())
	if !res.TimedOut {
		t.Error("aggregate result must carry the timeout flag")
	}
	if res.Verdict != model.VerdictFailed {
		t.Errorf("verdict = %s, want Failed", res.Verdict)
	}
}
