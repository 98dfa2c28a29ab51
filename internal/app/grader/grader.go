// Package grader orchestrates the sandbox runner across the test cases of a
// problem and aggregates one verdict. The safety pre-check is a blocklist,
// documented as best-effort screening rather than a security boundary.
package grader

import (
	"context"
	"fmt"
	"strings"

	"codesteps/internal/app/sandbox"
	"codesteps/internal/domain/model"
)

// TestCase is one grading unit: stdin input and the expected trimmed stdout.
type TestCase struct {
	InputData      string
	ExpectedOutput string
}

// Result aggregates the full grading run.
type Result struct {
	Verdict         model.Verdict
	PassedCases     int
	TotalCases      int
	ExecutionTimeMs float64
	OutputLog       string
	TimedOut        bool
}

// CaseRunner executes one submission against one test case.
type CaseRunner interface {
	Run(ctx context.Context, code string, lang sandbox.LanguageSpec, inputData, expectedOutput string) sandbox.RunResult
}

type Grader struct {
	runner CaseRunner
}

func New(runner CaseRunner) *Grader {
	return &Grader{runner: runner}
}

// Grade runs the static safety check, then each test case sequentially.
// A case whose failure carries a security marker aborts the remaining cases;
// a compile failure or internal runner fault yields an Error verdict. The
// aggregate time is the sum across executed cases and the output log holds
// one line per case.
func (g *Grader) Grade(ctx context.Context, code string, lang sandbox.LanguageSpec, cases []TestCase) Result {
	if ok, reason := CheckSafety(code, lang.ID); !ok {
		return Result{
			Verdict:    model.VerdictError,
			TotalCases: len(cases),
			OutputLog:  "Security violation: " + reason,
		}
	}

	res := Result{TotalCases: len(cases)}
	var lines []string
	fatal := false

	for i, tc := range cases {
		caseRes := g.runner.Run(ctx, code, lang, tc.InputData, tc.ExpectedOutput)
		res.ExecutionTimeMs += caseRes.ExecutionTimeMs
		if caseRes.TimedOut {
			res.TimedOut = true
		}

		if caseRes.Success {
			res.PassedCases++
			lines = append(lines, fmt.Sprintf("Test %d: PASS", i+1))
			continue
		}

		lines = append(lines, fmt.Sprintf("Test %d: FAIL - %s", i+1, caseRes.Error))

		if caseRes.CompileFailed {
			fatal = true
			break
		}
		// Fail fast on security markers, not on ordinary mismatches.
		if strings.Contains(caseRes.Error, "Security") {
			break
		}
	}

	res.OutputLog = strings.Join(lines, "\n")

	switch {
	case fatal:
		res.Verdict = model.VerdictError
	case res.PassedCases == res.TotalCases && res.TotalCases > 0:
		res.Verdict = model.VerdictPassed
	default:
		res.Verdict = model.VerdictFailed
	}
	return res
}
