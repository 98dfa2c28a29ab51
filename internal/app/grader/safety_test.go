package grader

import (
	"strings"
	"testing"

	"codesteps/internal/domain/model"
)

func policyWith(required, forbidden []string) *model.ValidationPolicy {
	return &model.ValidationPolicy{RequiredVariables: required, ForbiddenPatterns: forbidden}
}

func TestPythonSafety(t *testing.T) {
	cases := []struct {
		name   string
		code   string
		safe   bool
		reason string
	}{
		{"clean", "x = 1\nprint(x)", true, ""},
		{"import os", "import os\nos.system('ls')", false, "Forbidden import: os"},
		{"from subprocess", "from subprocess import run", false, "Forbidden import: subprocess"},
		{"dunder import", "__import__('socket')", false, "Forbidden import: socket"},
		{"eval call", "eval('1+1')", false, "Forbidden function: eval"},
		{"open call", "open('/etc/passwd')", false, "Forbidden function: open"},
		{"eval as name only", "evaluation = 2\nprint(evaluation)", true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := CheckSafety(tc.code, "python")
			if ok != tc.safe {
				t.Fatalf("safe = %v, want %v (reason %q)", ok, tc.safe, reason)
			}
			if !tc.safe && reason != tc.reason {
				t.Errorf("reason = %q, want %q", reason, tc.reason)
			}
		})
	}
}

func TestJavaScriptSafety(t *testing.T) {
	cases := []struct {
		name string
		code string
		safe bool
	}{
		{"clean", "const x = 1; console.log(x);", true},
		{"require fs", "const fs = require('fs');", false},
		{"require backtick", "require(`child_process`)", false},
		{"process exit", "process.exit(1)", false},
		{"eval", "eval('1+1')", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := CheckSafety(tc.code, "javascript")
			if ok != tc.safe {
				t.Fatalf("safe = %v, want %v (reason %q)", ok, tc.safe, reason)
			}
		})
	}
}

func TestUnknownLanguagePassesSafety(t *testing.T) {
	if ok, _ := CheckSafety("anything", "c"); !ok {
		t.Fatal("languages without a table are not screened")
	}
}

func TestVerifyLogic(t *testing.T) {
	policy := policyWith([]string{"total"}, []string{"42"})

	ok, _ := VerifyLogic("total = 40 + 2\nprint(total)", policyWith([]string{"total"}, nil))
	if !ok {
		t.Fatal("assignment to required variable must pass")
	}

	ok, reason := VerifyLogic("print(42)", policy)
	if ok {
		t.Fatal("missing required variable must fail")
	}
	if !strings.Contains(reason, "Missing mandatory variable assignment for 'total'") {
		t.Errorf("reason = %q", reason)
	}

	ok, reason = VerifyLogic("total = 42\nprint(total)", policy)
	if ok {
		t.Fatal("forbidden pattern must fail")
	}
	if !strings.Contains(reason, "Forbidden pattern detected: '42'") {
		t.Errorf("reason = %q", reason)
	}

	// A comparison is not an assignment.
	ok, _ = VerifyLogic("if total == 1:\n    print(1)", policyWith([]string{"total"}, nil))
	if ok {
		t.Fatal("== comparison must not count as assignment")
	}

	if ok, _ := VerifyLogic("whatever", nil); !ok {
		t.Fatal("nil policy always passes")
	}
}

func TestVerifyLogicJavaScriptDeclarations(t *testing.T) {
	pol := policyWith([]string{"sum"}, nil)
	for _, code := range []string{"let sum = 1;", "const sum = 2;", "var sum = 3;", "sum += 4;"} {
		if ok, reason := VerifyLogic(code, pol); !ok {
			t.Errorf("VerifyLogic(%q) rejected: %s", code, reason)
		}
	}
}
