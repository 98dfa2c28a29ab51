package service

import (
	"errors"
	"testing"

	"codesteps/internal/common"
	"codesteps/internal/domain/model"
)

func threeSteps() []model.CourseProblem {
	return []model.CourseProblem{
		{ID: "a", StepNumber: 1},
		{ID: "b", StepNumber: 2},
		{ID: "c", StepNumber: 3},
	}
}

func TestValidateReorderMappings(t *testing.T) {
	cases := []struct {
		name     string
		mappings map[string]int
		wantErr  bool
	}{
		{"identity", map[string]int{"a": 1, "b": 2, "c": 3}, false},
		{"swap", map[string]int{"a": 1, "b": 3, "c": 2}, false},
		{"full rotation", map[string]int{"a": 2, "b": 3, "c": 1}, false},
		{"missing step", map[string]int{"a": 1, "b": 2}, true},
		{"unknown problem", map[string]int{"a": 1, "b": 2, "x": 3}, true},
		{"duplicate number", map[string]int{"a": 1, "b": 2, "c": 2}, true},
		{"gap", map[string]int{"a": 1, "b": 2, "c": 4}, true},
		{"zero based", map[string]int{"a": 0, "b": 1, "c": 2}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateReorderMappings(threeSteps(), tc.mappings)
			if (err != nil) != tc.wantErr {
				t.Fatalf("validateReorderMappings = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, common.ErrValidation) {
				t.Errorf("error must wrap validation sentinel, got %v", err)
			}
		})
	}
}

func TestValidateReorderMappingsEmptyCourse(t *testing.T) {
	if err := validateReorderMappings(nil, map[string]int{}); err != nil {
		t.Fatalf("empty course with empty mappings: %v", err)
	}
	if err := validateReorderMappings(nil, map[string]int{"a": 1}); err == nil {
		t.Fatal("mappings for empty course must be rejected")
	}
}

func TestStepOrderSnapshot(t *testing.T) {
	order := stepOrder(threeSteps())
	if len(order) != 3 || order["a"] != 1 || order["b"] != 2 || order["c"] != 3 {
		t.Fatalf("stepOrder = %v", order)
	}
}
