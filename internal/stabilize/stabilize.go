// Package stabilize decides when a loaded browser page is ready to be
// photographed. No single signal (network idle, selector presence, a
// timer) reliably indicates "visually complete" across static pages,
// client-rendered SPAs, and image-heavy sites, so the stabilizer
// layers cheap heuristics under bounded timeouts: a slow or unusual
// page degrades to "best effort, capture anyway" rather than stalling
// the whole batch.
package stabilize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"sitelens/internal/config"
	"sitelens/internal/model"
)

// Terminal failure states of the readiness sequence.
var (
	ErrLoadTimeout = errors.New("page load timed out")
	ErrEmptyPage   = errors.New("page appears empty")
)

// anchorSelectors is the prioritized list of CSS selectors probed to
// detect that meaningful layout exists. Generic structural tags first,
// then the root containers of the common SPA frameworks.
var anchorSelectors = []string{
	"main",
	"article",
	"#root",
	"#app",
	"#__next",
	"#__nuxt",
	".app",
	"#content",
	"header",
	"body > div",
}

const statsJS = `() => {
	const body = document.body;
	if (!body) {
		return { hasBody: false, textLength: 0, hasImages: false, hasLinks: false, bodyHeight: 0 };
	}
	return {
		hasBody: true,
		textLength: (body.innerText || '').trim().length,
		hasImages: document.querySelectorAll('img').length > 0,
		hasLinks: document.querySelectorAll('a[href]').length > 0,
		bodyHeight: body.scrollHeight,
	};
}`

// Readiness is the ephemeral per-capture state the stabilizer builds
// up. It is discarded after each capture; only the Stats snapshot
// survives into failed results for diagnostics.
type Readiness struct {
	NavigationComplete bool
	AnchorSelector     string
	AnchorFound        bool
	TextObserved       int
	Stats              model.PageStats
	Valid              bool
}

// Valid is the content-validity predicate: a page is worth
// photographing when it has a body, non-trivial text or at least one
// image or link, and non-trivial height. It gates out blank and
// bot-blocked pages before any storage is spent on them.
func Valid(s model.PageStats) bool {
	return s.HasBody && (s.TextLength > 50 || s.HasImages || s.HasLinks) && s.BodyHeight > 100
}

type Stabilizer struct {
	cfg config.StabilizerConfig
	log *slog.Logger
}

func New(cfg config.StabilizerConfig, log *slog.Logger) *Stabilizer {
	if log == nil {
		log = slog.Default()
	}
	return &Stabilizer{cfg: cfg, log: log}
}

// Run navigates the page to url and drives it through the readiness
// sequence: navigate, settle, anchor search, text fallback, content
// validation, then the optional framework-settle extras. It returns
// ErrLoadTimeout or ErrEmptyPage on the two terminal failure states;
// the Readiness value is returned in both cases so callers can attach
// the diagnostic snapshot to their result.
func (s *Stabilizer) Run(ctx context.Context, page *rod.Page, url string) (*Readiness, error) {
	state := &Readiness{}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout())
	defer cancel()
	p := page.Context(navCtx)

	// Navigate and wait for network-almost-idle plus the load event.
	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := p.Navigate(url); err != nil {
		return state, fmt.Errorf("%w: %v", ErrLoadTimeout, err)
	}
	wait()
	if err := p.WaitLoad(); err != nil {
		return state, fmt.Errorf("%w: %v", ErrLoadTimeout, err)
	}
	if navCtx.Err() != nil {
		return state, fmt.Errorf("%w: %v", ErrLoadTimeout, navCtx.Err())
	}
	state.NavigationComplete = true

	// Fixed settle delay for immediate post-load scripts.
	if err := sleep(ctx, s.cfg.SettleDelay()); err != nil {
		return state, err
	}

	// Anchor search: first matching selector wins.
	base := page.Context(ctx)
	for _, sel := range anchorSelectors {
		if ctx.Err() != nil {
			return state, ctx.Err()
		}
		if _, err := base.Timeout(s.cfg.SelectorTimeout()).Element(sel); err == nil {
			state.AnchorFound = true
			state.AnchorSelector = sel
			break
		}
	}

	// Text fallback: bounded poll for enough visible text. Failing
	// both searches is non-fatal; validation still decides.
	if !state.AnchorFound {
		state.TextObserved = s.waitForText(ctx, base)
		if state.TextObserved < s.cfg.MinTextLength {
			s.log.Debug("no anchor or sufficient text found, validating anyway", "url", url)
		}
	}

	// Content validation is the terminal gate.
	stats, err := s.snapshot(base)
	if err != nil {
		return state, fmt.Errorf("%w: %v", ErrEmptyPage, err)
	}
	state.Stats = stats
	state.Valid = Valid(stats)
	if !state.Valid {
		return state, ErrEmptyPage
	}

	s.frameworkSettle(ctx, base)

	if err := sleep(ctx, s.cfg.PreCaptureDelay()); err != nil {
		return state, err
	}
	return state, nil
}

// Snapshot evaluates the diagnostic stats in-page without running the
// full readiness sequence. Used after scroll passes to refresh the
// recorded body height.
func (s *Stabilizer) Snapshot(page *rod.Page) (model.PageStats, error) {
	return s.snapshot(page)
}

func (s *Stabilizer) snapshot(page *rod.Page) (model.PageStats, error) {
	res, err := page.Eval(statsJS)
	if err != nil {
		return model.PageStats{}, err
	}
	v := res.Value
	return model.PageStats{
		HasBody:    v.Get("hasBody").Bool(),
		TextLength: v.Get("textLength").Int(),
		HasImages:  v.Get("hasImages").Bool(),
		HasLinks:   v.Get("hasLinks").Bool(),
		BodyHeight: v.Get("bodyHeight").Int(),
	}, nil
}

// waitForText polls the page's visible text length until it crosses
// the configured threshold or the bounded wait elapses. Returns the
// last observed length either way.
func (s *Stabilizer) waitForText(ctx context.Context, page *rod.Page) int {
	deadline := time.Now().Add(s.cfg.TextWaitTimeout())
	observed := 0
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return observed
		}
		res, err := page.Eval(`() => (document.body ? (document.body.innerText || '').trim().length : 0)`)
		if err == nil {
			observed = res.Value.Int()
			if observed >= s.cfg.MinTextLength {
				return observed
			}
		}
		if sleep(ctx, 500*time.Millisecond) != nil {
			return observed
		}
	}
	return observed
}

// frameworkSettle applies the optional post-validation waits: two
// animation-frame round-trips, outstanding image loads, and web-font
// readiness. Every step is best-effort, swallows failures, and carries
// its own short timeout so a frozen renderer or a never-settling font
// load cannot hold the page past its turn.
func (s *Stabilizer) frameworkSettle(ctx context.Context, page *rod.Page) {
	bound := s.settleBound()

	_, _ = page.Timeout(bound).Evaluate(rod.Eval(
		`() => new Promise(r => requestAnimationFrame(() => requestAnimationFrame(r)))`,
	).ByPromise())

	if s.cfg.WaitImages {
		if imgs, err := page.Elements("img"); err == nil {
			// Cap the number of waits so image galleries stay cheap.
			const maxImageWaits = 20
			for i, img := range imgs {
				if i >= maxImageWaits || ctx.Err() != nil {
					break
				}
				_ = img.Timeout(s.cfg.ImageTimeout()).WaitLoad()
			}
		}
	}

	if s.cfg.WaitFonts {
		_, _ = page.Timeout(bound).Evaluate(rod.Eval(
			`() => (document.fonts ? document.fonts.ready.then(() => true) : true)`,
		).ByPromise())
	}
}

// settleBound caps each framework-settle script wait. A zero or
// negative config value falls back to a fixed bound rather than an
// unbounded wait.
func (s *Stabilizer) settleBound() time.Duration {
	if d := s.cfg.FrameworkSettleTimeout(); d > 0 {
		return d
	}
	return 5 * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
