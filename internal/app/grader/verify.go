package grader

import (
	"fmt"
	"regexp"
	"strings"

	"codesteps/internal/domain/model"
)

// VerifyLogic checks a submission against a step's validation policy before
// execution: every required variable must be assigned somewhere, and no
// forbidden substring may occur. A failure here is a protocol violation
// rather than a runtime test failure; it blocks trivial hardcoding of the
// expected output.
func VerifyLogic(code string, policy *model.ValidationPolicy) (bool, string) {
	if policy == nil {
		return true, ""
	}

	for _, name := range policy.RequiredVariables {
		if !assignsVariable(code, name) {
			return false, fmt.Sprintf("Protocol Violation: Missing mandatory variable assignment for '%s'.", name)
		}
	}

	for _, pattern := range policy.ForbiddenPatterns {
		if strings.Contains(code, pattern) {
			return false, fmt.Sprintf("Protocol Violation: Forbidden pattern detected: '%s'.", pattern)
		}
	}

	return true, ""
}

// assignsVariable detects a plain assignment to name, covering the `x = ...`,
// `x += ...`, `let/const/var x = ...` and `x := ...` spellings without being
// fooled by `==` comparisons.
func assignsVariable(code, name string) bool {
	quoted := regexp.QuoteMeta(name)
	// [^=] after the assignment operator rejects == comparisons.
	re := regexp.MustCompile(`(?m)^\s*(?:let\s+|const\s+|var\s+)?` + quoted + `\s*(?::=|[+\-*/]?=[^=])`)
	return re.MatchString(code)
}
