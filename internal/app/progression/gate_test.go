package progression

import (
	"strings"
	"testing"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		step, current int
		want          StepStatus
	}{
		{1, 1, StatusCurrent},
		{1, 2, StatusCompleted},
		{2, 2, StatusCurrent},
		{3, 2, StatusLocked},
		{10, 1, StatusLocked},
	}
	for _, tc := range cases {
		if got := Status(tc.step, tc.current); got != tc.want {
			t.Errorf("Status(%d, %d) = %s, want %s", tc.step, tc.current, got, tc.want)
		}
	}
}

func TestCanAccess(t *testing.T) {
	if ok, _ := CanAccess(1, 1); !ok {
		t.Fatal("current step must be accessible")
	}
	if ok, _ := CanAccess(1, 3); !ok {
		t.Fatal("completed step must be accessible")
	}
	ok, reason := CanAccess(2, 1)
	if ok {
		t.Fatal("locked step must not be accessible")
	}
	if !strings.Contains(reason, "Step 2 is locked") {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestCanSubmitExactMatchOnly(t *testing.T) {
	if ok, _ := CanSubmit(2, 2); !ok {
		t.Fatal("submission to current step must be allowed")
	}

	ok, reason := CanSubmit(1, 2)
	if ok {
		t.Fatal("re-submission to completed step must be rejected")
	}
	if !strings.Contains(reason, "already completed") {
		t.Errorf("unexpected reason: %q", reason)
	}

	ok, reason = CanSubmit(3, 1)
	if ok {
		t.Fatal("skip-ahead submission must be rejected")
	}
	if !strings.Contains(reason, "Cannot skip to step 3") {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestCourseComplete(t *testing.T) {
	if CourseComplete(3, 3) {
		t.Error("cursor on last step means course not complete yet")
	}
	if !CourseComplete(4, 3) {
		t.Error("cursor past last step means course complete")
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		current, total int
		want           float64
	}{
		{1, 3, 0},
		{2, 3, 33.3},
		{3, 3, 66.7},
		{4, 3, 100},
		{1, 0, 0},
	}
	for _, tc := range cases {
		if got := Percentage(tc.current, tc.total); got != tc.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tc.current, tc.total, got, tc.want)
		}
	}
}
