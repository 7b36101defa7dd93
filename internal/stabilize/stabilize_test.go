package stabilize

import (
	"testing"
	"time"

	"sitelens/internal/config"
	"sitelens/internal/model"
)

func TestValidGate(t *testing.T) {
	cases := []struct {
		name  string
		stats model.PageStats
		want  bool
	}{
		{
			name:  "blank page fails",
			stats: model.PageStats{HasBody: true, BodyHeight: 50},
			want:  false,
		},
		{
			name:  "images alone pass with enough height",
			stats: model.PageStats{HasBody: true, HasImages: true, BodyHeight: 150},
			want:  true,
		},
		{
			name:  "no body fails regardless of content",
			stats: model.PageStats{TextLength: 500, HasImages: true, HasLinks: true, BodyHeight: 2000},
			want:  false,
		},
		{
			name:  "text alone passes",
			stats: model.PageStats{HasBody: true, TextLength: 51, BodyHeight: 101},
			want:  true,
		},
		{
			name:  "short text without images or links fails",
			stats: model.PageStats{HasBody: true, TextLength: 50, BodyHeight: 500},
			want:  false,
		},
		{
			name:  "links alone pass",
			stats: model.PageStats{HasBody: true, HasLinks: true, BodyHeight: 500},
			want:  true,
		},
		{
			name:  "tall enough but empty fails",
			stats: model.PageStats{HasBody: true, BodyHeight: 5000},
			want:  false,
		},
		{
			name:  "content but trivial height fails",
			stats: model.PageStats{HasBody: true, TextLength: 400, BodyHeight: 100},
			want:  false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Valid(c.stats); got != c.want {
				t.Fatalf("Valid(%+v) = %v, want %v", c.stats, got, c.want)
			}
		})
	}
}

func TestSettleBoundAlwaysPositive(t *testing.T) {
	s := New(config.StabilizerConfig{FrameworkSettleTimeoutMs: 1_500}, nil)
	if got := s.settleBound(); got != 1500*time.Millisecond {
		t.Fatalf("settleBound = %v, want 1.5s from config", got)
	}

	// A zero config must never translate into an unbounded wait.
	s = New(config.StabilizerConfig{}, nil)
	if got := s.settleBound(); got <= 0 {
		t.Fatalf("settleBound = %v for zero config, want a positive fallback", got)
	}
}
