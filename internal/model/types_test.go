package model

import "testing"

func TestRecount(t *testing.T) {
	rep := &JobReport{Targets: []TargetReport{
		{Seed: "https://ok.example", Captures: []CaptureResult{
			{URL: "https://ok.example", Success: true},
			{URL: "https://ok.example/about", Success: false, Error: ReasonPageAppearsEmpty},
		}},
		{Seed: "https://down.example", Captures: []CaptureResult{
			{URL: "https://down.example", Success: false, Error: ReasonPageLoadTimeout},
		}},
		{Seed: "not a url", Error: ReasonInvalidURL},
	}}

	rep.Recount()

	if rep.Attempted != 3 {
		t.Fatalf("attempted = %d, want 3", rep.Attempted)
	}
	if rep.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", rep.Succeeded)
	}
	if rep.Failed != 2 {
		t.Fatalf("failed = %d, want 2", rep.Failed)
	}
	// Rejected input is tallied on its own, not as a capture failure.
	if rep.Invalid != 1 {
		t.Fatalf("invalid = %d, want 1", rep.Invalid)
	}
}
