// Package job drives one run end to end: classify seeds, optionally
// fan each out through link discovery, capture every URL sequentially
// over one shared browser session, feed representative screenshots to
// the analysis collaborator, and assemble the aggregate report.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitelens/internal/analyze"
	"sitelens/internal/config"
	"sitelens/internal/model"
	"sitelens/internal/target"
)

// ErrNoTargets aborts a run before any browser work: every supplied
// seed was invalid or the list was empty.
var ErrNoTargets = errors.New("no valid targets supplied")

// Capturer is the capture unit as seen by the runner.
type Capturer interface {
	Capture(ctx context.Context, tgt model.Target) model.CaptureResult
}

// Discoverer expands a seed URL into same-origin links. A non-nil
// error means the pass failed outright, as opposed to finding nothing.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string, maxLinks int) ([]string, error)
}

// Events is the injected observer sink. Calls are synchronous at
// defined points; implementations must not block.
type Events interface {
	TargetStarted(seed string)
	TargetFinished(seed string, captures int, failure string)
	StageDone(stage string)
}

type nopEvents struct{}

func (nopEvents) TargetStarted(string) {}

func (nopEvents) TargetFinished(string, int, string) {}

func (nopEvents) StageDone(string) {}

// Options selects which stages a run performs.
type Options struct {
	Discover bool
	Analyze  bool
}

// Runner owns all entities for the duration of one run. Targets are
// processed strictly sequentially; the only concurrency is inside the
// browser and network waits.
type Runner struct {
	cfg       *config.Config
	capturer  Capturer
	discover  Discoverer
	analyzer  analyze.Client
	events    Events
	opts      Options
	log       *slog.Logger
	sleep     func(context.Context, time.Duration)
	randDelay func(min, max time.Duration) time.Duration
}

func NewRunner(cfg *config.Config, capt Capturer, disc Discoverer, an analyze.Client, opts Options, ev Events, log *slog.Logger) *Runner {
	if ev == nil {
		ev = nopEvents{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		capturer: capt,
		discover: disc,
		analyzer: an,
		events:   ev,
		opts:     opts,
		log:      log,
		sleep: func(ctx context.Context, d time.Duration) {
			if d <= 0 {
				return
			}
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		},
		randDelay: func(min, max time.Duration) time.Duration {
			if max <= min {
				return min
			}
			return min + time.Duration(rand.Int63n(int64(max-min)))
		},
	}
}

// Run processes the seed list and always returns a report, even when
// every target failed. The error is non-nil only for the job-level
// abort conditions: no valid targets, a structurally required
// credential missing, or cancellation between targets.
func (r *Runner) Run(ctx context.Context, seeds []string) (*model.JobReport, error) {
	rep := &model.JobReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		rep.FinishedAt = time.Now().UTC()
		rep.Recount()
	}()

	if r.opts.Analyze && r.analyzer == nil {
		return rep, fmt.Errorf("%s: analysis requested but no provider configured", model.ReasonMissingCredential)
	}

	type seedEntry struct {
		raw string
		tgt model.Target
		err error
	}

	entries := make([]seedEntry, 0, len(seeds))
	valid := 0
	for _, raw := range seeds {
		tgt, err := target.Classify(raw)
		entries = append(entries, seedEntry{raw: raw, tgt: tgt, err: err})
		if err == nil {
			valid++
		}
	}
	if valid == 0 {
		for _, e := range entries {
			rep.Targets = append(rep.Targets, model.TargetReport{Seed: e.raw, Error: model.ReasonInvalidURL})
		}
		return rep, ErrNoTargets
	}

	first := true
	for _, e := range entries {
		if e.err != nil {
			rep.Targets = append(rep.Targets, model.TargetReport{Seed: e.raw, Error: model.ReasonInvalidURL})
			continue
		}

		// Politeness delay between seed targets, never before the first.
		if !first {
			r.sleep(ctx, r.randDelay(
				time.Duration(r.cfg.Politeness.SeedDelayMinMs)*time.Millisecond,
				time.Duration(r.cfg.Politeness.SeedDelayMaxMs)*time.Millisecond,
			))
		}
		first = false

		// Cancellation is honored between targets, not mid-capture.
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}

		rep.Targets = append(rep.Targets, r.processSeed(ctx, e.tgt))
	}

	r.events.StageDone("run")
	return rep, nil
}

// processSeed captures the seed and its discovered links, then runs
// analysis on the seed's representative screenshot. Failures stay
// local to the returned entry.
func (r *Runner) processSeed(ctx context.Context, seed model.Target) model.TargetReport {
	r.events.TargetStarted(seed.URL)

	entry := model.TargetReport{Seed: seed.URL, Kind: seed.Kind}
	urls, discoveryFailure := r.expand(ctx, seed)
	entry.Error = discoveryFailure

	for i, tgt := range urls {
		if i > 0 {
			r.sleep(ctx, r.cfg.Politeness.LinkDelay())
			if ctx.Err() != nil {
				break
			}
		}
		res := r.capturer.Capture(ctx, tgt)
		entry.Captures = append(entry.Captures, res)
		if res.Success {
			r.log.Info("captured", "url", tgt.URL, "fullPage", res.FullPagePath)
		} else {
			r.log.Warn("capture failed", "url", tgt.URL, "reason", res.Error)
		}
	}

	if r.opts.Analyze {
		entry.Analysis = r.analyzeSeed(ctx, seed, entry.Captures)
	}

	failure := ""
	for _, c := range entry.Captures {
		if !c.Success {
			failure = c.Error
			break
		}
	}
	r.events.TargetFinished(seed.URL, len(entry.Captures), failure)
	return entry
}

// expand turns one seed into its capture set: the seed first, then
// discovered same-origin links in discovery order. Discovery applies
// only to plain web seeds; design and store targets are captured as-is.
// A failed discovery pass degrades to the seed alone and is reported
// as the second return value for the seed's entry.
func (r *Runner) expand(ctx context.Context, seed model.Target) ([]model.Target, string) {
	urls := []model.Target{seed}
	if !r.opts.Discover || r.discover == nil || seed.Kind != model.KindWeb {
		return urls, ""
	}

	links, err := r.discover.Discover(ctx, seed.URL, r.cfg.Discovery.MaxLinks)
	if err != nil {
		r.log.Warn("link discovery failed, capturing seed alone", "seed", seed.URL, "err", err)
		return urls, model.ReasonLinkDiscoveryFailed
	}
	if len(links) == 0 {
		r.log.Debug("link discovery found nothing, capturing seed alone", "seed", seed.URL)
		return urls, ""
	}

	for _, link := range links {
		tgt, err := target.Classify(link)
		if err != nil {
			continue
		}
		tgt.Depth = 1
		// Discovered links are grouped under the seed's project.
		tgt.ProjectID = seed.ProjectID
		urls = append(urls, tgt)
	}
	return urls, ""
}

// analyzeSeed selects the representative screenshot for a seed and
// forwards it to the vision collaborator. The homepage capture is
// preferred; otherwise the first successful full-page capture stands
// in. All failures here are per-target and non-fatal.
func (r *Runner) analyzeSeed(ctx context.Context, seed model.Target, captures []model.CaptureResult) *model.AnalysisResult {
	res := &model.AnalysisResult{URL: seed.URL}

	rep := Representative(captures)
	if rep == nil {
		res.Error = model.ReasonNoScreenshotForAnalysis
		return res
	}

	image, err := os.ReadFile(rep.FullPagePath)
	if err != nil {
		res.Error = model.ReasonNoScreenshotForAnalysis
		return res
	}

	analysis, err := r.analyzer.AnalyzeScreenshot(ctx, analyze.Request{
		URL:      seed.URL,
		Image:    image,
		MimeType: mimeForPath(rep.FullPagePath),
		PageHTML: rep.HTML,
	})
	if err != nil {
		r.log.Warn("analysis failed", "url", seed.URL, "err", err)
		res.Error = model.ReasonAnalysisFailed
		return res
	}

	res.Success = true
	res.Text = analysis.Text

	dir := filepath.Join(r.cfg.Capture.OutputDir, seed.ProjectID)
	path := filepath.Join(dir, fmt.Sprintf("analysis_%d.md", time.Now().Unix()))
	if err := os.MkdirAll(dir, 0o755); err == nil {
		if err := os.WriteFile(path, []byte(analysis.Text), 0o644); err == nil {
			res.OutputPath = path
		}
	}
	return res
}

// Representative picks the screenshot that stands in for a seed:
// the homepage capture when present, else the first successful
// full-page capture. Nil when nothing usable was captured.
func Representative(captures []model.CaptureResult) *model.CaptureResult {
	for i := range captures {
		c := &captures[i]
		if c.Success && c.FullPagePath != "" && c.PathToken == "home" {
			return c
		}
	}
	for i := range captures {
		c := &captures[i]
		if c.Success && c.FullPagePath != "" {
			return c
		}
	}
	return nil
}

func mimeForPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
