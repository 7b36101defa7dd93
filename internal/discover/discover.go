// Package discover expands one seed URL into a bounded set of
// same-origin links by fetching and parsing the seed's HTML.
// Discovery is best-effort: a failure yields an empty result plus an
// error the caller may record, so a dead seed page degrades to a
// seed-only capture instead of aborting a batch job.
package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	robotstxt "github.com/temoto/robotstxt"
)

// Options controls one discovery pass.
type Options struct {
	MaxLinks      int
	Timeout       time.Duration
	RespectRobots bool
	UserAgent     string
}

// Discoverer fetches seed pages over plain HTTP and extracts links.
type Discoverer struct {
	client *http.Client
	log    *slog.Logger
}

func New(timeout time.Duration, log *slog.Logger) *Discoverer {
	if log == nil {
		log = slog.Default()
	}
	return &Discoverer{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Discover returns up to opts.MaxLinks same-origin links found on the
// seed page, in document order of first appearance, fragments stripped
// and duplicates collapsed. The seed itself is not included; the
// caller prepends it. On any failure the result is empty and the error
// says why; a page with no usable links is not a failure.
func (d *Discoverer) Discover(ctx context.Context, seedURL string, opts Options) ([]string, error) {
	base, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if base.Hostname() == "" {
		return nil, errors.New("seed url has no host")
	}

	// Per-pass bound on top of the client's overall timeout.
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var robotsData *robotstxt.RobotsData
	if opts.RespectRobots {
		robotsData = d.fetchRobots(ctx, base, opts.UserAgent)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("link discovery fetch failed", "url", seedURL, "err", err)
		return nil, fmt.Errorf("fetch seed page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.log.Debug("link discovery non-200", "url", seedURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("seed page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse seed page: %w", err)
	}

	seen := make(map[string]struct{})
	links := make([]string, 0, opts.MaxLinks)

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
			return true
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return true
		}
		if !linkURL.IsAbs() {
			linkURL = base.ResolveReference(linkURL)
		}
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return true
		}
		if !strings.EqualFold(linkURL.Hostname(), base.Hostname()) {
			return true
		}
		linkURL.Fragment = ""

		final := linkURL.String()
		if final == base.String() {
			return true
		}
		if _, exists := seen[final]; exists {
			return true
		}
		if robotsData != nil {
			grp := robotsData.FindGroup(opts.UserAgent)
			if !grp.Test(linkURL.Path) {
				return true
			}
		}

		seen[final] = struct{}{}
		links = append(links, final)
		return opts.MaxLinks <= 0 || len(links) < opts.MaxLinks
	})

	return links, nil
}

// fetchRobots grabs robots.txt for the seed's origin. Failures are
// treated as "no rules".
func (d *Discoverer) fetchRobots(ctx context.Context, base *url.URL, userAgent string) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
