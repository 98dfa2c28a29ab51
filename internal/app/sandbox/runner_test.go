package sandbox

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	if _, ok := Lookup("python"); !ok {
		t.Fatal("python spec must be registered")
	}
	if _, ok := Lookup("javascript"); !ok {
		t.Fatal("javascript spec must be registered")
	}
	if _, ok := Lookup("cobol"); ok {
		t.Fatal("unknown language must not resolve")
	}
}

func TestExpandPlaceholders(t *testing.T) {
	spec := Compiled("c", "C", "gcc", ".c")
	got := spec.expand(spec.CompileCmd, "/tmp/w/main.c", "/tmp/w/main")
	want := []string{"gcc", "-o", "/tmp/w/main", "/tmp/w/main.c"}
	if len(got) != len(want) {
		t.Fatalf("expand produced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expand produced %v, want %v", got, want)
		}
	}
}

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestRunMatchesTrimmedOutput(t *testing.T) {
	requirePython(t)
	r := NewRunner(5*time.Second, 128)

	res := r.Run(context.Background(), "print('hello')", Python, "", "hello\n")
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Output != "hello" {
		t.Errorf("output = %q, want %q", res.Output, "hello")
	}
}

func TestRunReportsMismatch(t *testing.T) {
	requirePython(t)
	r := NewRunner(5*time.Second, 128)

	res := r.Run(context.Background(), "print('nope')", Python, "", "hello")
	if res.Success {
		t.Fatal("expected mismatch failure")
	}
	if !strings.Contains(res.Error, "Expected: 'hello'") {
		t.Errorf("mismatch error should quote expectation, got %q", res.Error)
	}
}

func TestRunFeedsStdin(t *testing.T) {
	requirePython(t)
	r := NewRunner(5*time.Second, 128)

	res := r.Run(context.Background(), "print(input())", Python, "echo me\n", "echo me")
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
}

func TestRunTimesOutDeterministically(t *testing.T) {
	requirePython(t)
	r := NewRunner(500*time.Millisecond, 128)

	res := r.Run(context.Background(), "while True:\n    pass", Python, "", "")
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if !strings.Contains(res.Error, "Timed Out") {
		t.Errorf("timeout error = %q, want Timed Out marker", res.Error)
	}
}

func TestRunRuntimeErrorSurfacesStderr(t *testing.T) {
	requirePython(t)
	r := NewRunner(5*time.Second, 128)

	res := r.Run(context.Background(), "raise ValueError('boom')", Python, "", "")
	if res.Success {
		t.Fatal("expected runtime failure")
	}
	if !strings.Contains(res.Error, "ValueError") {
		t.Errorf("runtime error should carry stderr, got %q", res.Error)
	}
}

func TestCompileFailureIsDistinct(t *testing.T) {
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not available")
	}
	r := NewRunner(5*time.Second, 128)
	spec := Compiled("c", "C", "gcc", ".c")

	res := r.Run(context.Background(), "int main( { return 0; }", spec, "", "")
	if !res.CompileFailed {
		t.Fatalf("expected compile failure, got %+v", res)
	}
	if !strings.HasPrefix(res.Error, "Compilation Error:") {
		t.Errorf("compile error = %q, want Compilation Error prefix", res.Error)
	}
}
