// Package capture orchestrates one screenshot attempt per URL:
// isolated page, stabilize, lazy-content scroll pass, then a full-page
// and a viewport capture. Failures never propagate past this boundary;
// they become fields on the returned result.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"sitelens/internal/config"
	"sitelens/internal/figma"
	"sitelens/internal/model"
	"sitelens/internal/stabilize"
	"sitelens/internal/target"
)

// Session owns the one browser process shared across all targets in a
// run. Pages are still opened in fresh incognito contexts per capture
// so state never bleeds between sites.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewSession connects to the browser at controlURL, or launches a
// local headless one when controlURL is empty.
func NewSession(ctx context.Context, controlURL string) (*Session, error) {
	s := &Session{}

	if controlURL == "" {
		s.launcher = launcher.New().Headless(true)
		u, err := s.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	s.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := s.browser.Connect(); err != nil {
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return s, nil
}

// Close shuts the browser down. Must be called exactly once per run;
// leaking the browser leaves an orphaned OS process behind.
func (s *Session) Close() error {
	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	return err
}

// Unit is the per-URL capture orchestrator.
type Unit struct {
	session    *Session
	stabilizer *stabilize.Stabilizer
	figma      *figma.Client
	browserCfg config.BrowserConfig
	stabCfg    config.StabilizerConfig
	captureCfg config.CaptureConfig
	log        *slog.Logger
}

func NewUnit(session *Session, stab *stabilize.Stabilizer, fig *figma.Client, cfg *config.Config, log *slog.Logger) *Unit {
	if log == nil {
		log = slog.Default()
	}
	return &Unit{
		session:    session,
		stabilizer: stab,
		figma:      fig,
		browserCfg: cfg.Browser,
		stabCfg:    cfg.Stabilizer,
		captureCfg: cfg.Capture,
		log:        log,
	}
}

// Capture runs one capture attempt for the target and returns its
// result. Design targets try the structured export path first and fall
// back to browser capture when it is unavailable.
func (u *Unit) Capture(ctx context.Context, tgt model.Target) model.CaptureResult {
	result := model.CaptureResult{
		URL:        tgt.URL,
		ProjectID:  tgt.ProjectID,
		PathToken:  target.PathToken(tgt.URL),
		CapturedAt: time.Now().UTC(),
	}

	dir := filepath.Join(u.captureCfg.OutputDir, tgt.ProjectID)

	if tgt.Kind == model.KindDesign {
		if done := u.tryStructuredExport(ctx, tgt, dir, &result); done {
			return result
		}
		u.log.Info("structured export unavailable, falling back to browser capture", "url", tgt.URL)
	}

	u.browserCapture(ctx, tgt, dir, &result)
	return result
}

// tryStructuredExport attempts the design-tool export path. It returns
// true when the result is final (success), false when the caller
// should fall back to generic browser capture.
func (u *Unit) tryStructuredExport(ctx context.Context, tgt model.Target, dir string, result *model.CaptureResult) bool {
	paths, err := u.figma.ExportFile(ctx, target.FileKey(tgt.URL), dir)
	if err != nil {
		u.log.Debug("structured export failed", "url", tgt.URL, "err", err)
		return false
	}
	result.Success = true
	result.ExportPaths = paths
	result.FullPagePath = paths[0]
	return true
}

func (u *Unit) browserCapture(ctx context.Context, tgt model.Target, dir string, result *model.CaptureResult) {
	// One isolated browser context per URL so cookies and storage from
	// one site never reach the next.
	incog, err := u.session.browser.Incognito()
	if err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}
	defer func() {
		if incog.BrowserContextID != "" {
			_ = proto.TargetDisposeBrowserContext{BrowserContextID: incog.BrowserContextID}.Call(incog)
		}
	}()

	page, err := incog.Page(proto.TargetCreateTarget{})
	if err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}
	defer page.Close()

	if err := u.preparePage(page); err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}

	state, err := u.stabilizer.Run(ctx, page, tgt.URL)
	if state != nil && state.Stats != (model.PageStats{}) {
		stats := state.Stats
		result.Stats = &stats
	}
	if err != nil {
		switch {
		case errors.Is(err, stabilize.ErrLoadTimeout):
			result.Error = model.ReasonPageLoadTimeout
		case errors.Is(err, stabilize.ErrEmptyPage):
			result.Error = model.ReasonPageAppearsEmpty
		default:
			result.Error = model.ReasonPageLoadTimeout
		}
		return
	}

	// Trigger lazy-loaded content. Skipped for design canvases where
	// scrolling can move a fixed viewport.
	if u.stabCfg.ScrollPass && tgt.Kind != model.KindDesign {
		u.scrollPass(page)
		if stats, err := u.stabilizer.Snapshot(page); err == nil {
			result.Stats = &stats
		}
	}

	if html, err := page.HTML(); err == nil {
		result.HTML = html
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}

	ts := time.Now().Unix()
	fullPath := filepath.Join(dir, fmt.Sprintf("%s_%d_full.jpg", result.PathToken, ts))
	viewportPath := filepath.Join(dir, fmt.Sprintf("%s_%d_viewport.jpg", result.PathToken, ts))

	if err := u.screenshot(page, true, fullPath); err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}
	if err := u.screenshot(page, false, viewportPath); err != nil {
		result.Error = model.ReasonCaptureIOError
		return
	}

	result.Success = true
	result.FullPagePath = fullPath
	result.ViewportPath = viewportPath
}

// preparePage applies the desktop viewport and a stable header set.
// This reduces the chance of a degraded bot-specific response; it is
// best-effort compatibility, not guaranteed evasion.
func (u *Unit) preparePage(page *rod.Page) error {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             u.browserCfg.ViewportWidth,
		Height:            u.browserCfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		return err
	}
	return page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      u.browserCfg.UserAgent,
		AcceptLanguage: u.browserCfg.AcceptLanguage,
	})
}

// scrollPass walks the page to the bottom in viewport-sized steps and
// returns to the top, bounded by the configured max duration.
func (u *Unit) scrollPass(page *rod.Page) {
	js := `async (stepDelay, maxMs) => {
		const start = Date.now();
		const step = Math.max(window.innerHeight * 0.8, 200);
		let y = 0;
		while (y + window.innerHeight < document.body.scrollHeight && Date.now() - start < maxMs) {
			y += step;
			window.scrollTo(0, y);
			await new Promise(r => setTimeout(r, stepDelay));
		}
		window.scrollTo(0, 0);
		await new Promise(r => setTimeout(r, 500));
	}`
	_, err := page.Evaluate(rod.Eval(js,
		u.stabCfg.ScrollStepDelayMs, u.stabCfg.ScrollMaxDurationMs).ByPromise())
	if err != nil {
		u.log.Debug("scroll pass failed", "err", err)
	}
}

func (u *Unit) screenshot(page *rod.Page, fullPage bool, dest string) error {
	data, err := page.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(u.captureCfg.JPEGQuality),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
