package model

import (
	"testing"
	"time"
)

func TestWindowClassification(t *testing.T) {
	test := &ScheduledTest{
		StartTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsActive:  true,
	}

	cases := []struct {
		name string
		now  time.Time
		want TestWindow
	}{
		{"before start", time.Date(2025, 6, 1, 9, 59, 59, 0, time.UTC), WindowUpcoming},
		{"at start", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), WindowActive},
		{"inside", time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC), WindowActive},
		{"at end", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), WindowActive},
		{"after end", time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC), WindowExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := test.Window(tc.now); got != tc.want {
				t.Fatalf("Window(%v) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}

func TestWindowIgnoresOffsets(t *testing.T) {
	// Stored times are naive wall-clock; a caller in another zone must get
	// the same classification for the same wall-clock reading.
	test := &ScheduledTest{
		StartTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	offset := time.FixedZone("plus5", 5*3600)
	now := time.Date(2025, 6, 1, 11, 0, 0, 0, offset)
	if got := test.Window(now); got != WindowActive {
		t.Fatalf("Window with offset zone = %s, want ACTIVE", got)
	}
}

func TestEffectiveActiveRequiresFlagAndWindow(t *testing.T) {
	inWindow := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	outWindow := time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

	test := &ScheduledTest{
		StartTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	if !test.EffectiveActive(inWindow) {
		t.Error("flag set and window open must be active")
	}
	if test.EffectiveActive(outWindow) {
		t.Error("flag set but window closed must not be active")
	}

	test.IsActive = false
	if test.EffectiveActive(inWindow) {
		t.Error("window open but flag cleared must not be active")
	}
}

func TestEnrollmentTerminal(t *testing.T) {
	cases := []struct {
		status   string
		terminal bool
	}{
		{EnrollmentRegistered, false},
		{EnrollmentPresent, false},
		{EnrollmentCompleted, true},
		{EnrollmentDisqualified, true},
	}
	for _, tc := range cases {
		e := &TestEnrollment{Status: tc.status}
		if e.Terminal() != tc.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tc.status, e.Terminal(), tc.terminal)
		}
	}
}
