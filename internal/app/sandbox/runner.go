package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// RunResult is the outcome of one test-case execution.
type RunResult struct {
	Success         bool
	Output          string
	Error           string
	ExecutionTimeMs float64
	TimedOut        bool
	CompileFailed   bool
}

// Runner executes one submission against one test case per call, in a fresh
// process rooted in a throwaway temp directory.
type Runner struct {
	Timeout time.Duration
	// MemoryLimitMB is declared on the contract but not enforced on every
	// platform; the wall-clock timeout is the hard stop.
	MemoryLimitMB int
}

func NewRunner(timeout time.Duration, memoryLimitMB int) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{Timeout: timeout, MemoryLimitMB: memoryLimitMB}
}

// Run writes the submission to a temp workspace, optionally compiles it, then
// executes it with inputData on stdin and compares trimmed stdout against the
// trimmed expected output for exact string equality. The workspace and the
// spawned process are cleaned up on every exit path, including timeout.
func (r *Runner) Run(ctx context.Context, code string, lang LanguageSpec, inputData, expectedOutput string) RunResult {
	start := time.Now()

	workDir, err := os.MkdirTemp("", "sandbox-*")
	if err != nil {
		return RunResult{Error: fmt.Sprintf("Execution error: %v", err)}
	}
	defer os.RemoveAll(workDir)

	srcPath := filepath.Join(workDir, lang.SourceFile)
	if err := os.WriteFile(srcPath, []byte(code), 0o600); err != nil {
		return RunResult{Error: fmt.Sprintf("Execution error: %v", err)}
	}

	binPath := filepath.Join(workDir, lang.BinaryFile)
	if lang.Compiled {
		if res, ok := r.compile(ctx, lang, srcPath, binPath, start); !ok {
			return res
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := lang.expand(lang.RunCmd, srcPath, binPath)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = workDir
	if inputData != "" {
		cmd.Stdin = strings.NewReader(inputData)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return RunResult{
			Error:           fmt.Sprintf("Timed Out: exceeded %ds limit", int(r.Timeout.Seconds())),
			ExecutionTimeMs: float64(r.Timeout.Milliseconds()),
			TimedOut:        true,
		}
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return RunResult{Error: msg, ExecutionTimeMs: elapsed}
	}

	actual := strings.TrimSpace(stdout.String())
	expected := strings.TrimSpace(expectedOutput)
	if actual == expected {
		return RunResult{Success: true, Output: actual, ExecutionTimeMs: elapsed}
	}
	return RunResult{
		Output:          actual,
		Error:           fmt.Sprintf("Expected: '%s', Got: '%s'", expected, actual),
		ExecutionTimeMs: elapsed,
	}
}

func (r *Runner) compile(ctx context.Context, lang LanguageSpec, srcPath, binPath string, start time.Time) (RunResult, bool) {
	compileCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	args := lang.expand(lang.CompileCmd, srcPath, binPath)
	cmd := exec.CommandContext(compileCtx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return RunResult{
			Error:           "Compilation Error: " + msg,
			ExecutionTimeMs: float64(time.Since(start).Microseconds()) / 1000,
			CompileFailed:   true,
		}, false
	}
	return RunResult{}, true
}
