// Package target classifies seed URLs and derives the filesystem-safe
// identifiers used to group screenshots on disk.
package target

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"sitelens/internal/model"
)

// ErrInvalidURL is returned when the input does not parse as an
// absolute http(s) URL. Such targets are excluded before any network
// activity happens.
var ErrInvalidURL = errors.New(model.ReasonInvalidURL)

var (
	nonWord   = regexp.MustCompile(`\W+`)
	iosIDPath = regexp.MustCompile(`(?:^|/)id(\d+)`)
	safeToken = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

var designHosts = map[string]bool{
	"figma.com":     true,
	"www.figma.com": true,
}

var androidHosts = map[string]bool{
	"play.google.com": true,
}

var iosHosts = map[string]bool{
	"apps.apple.com":   true,
	"itunes.apple.com": true,
}

// Classify parses a raw URL and determines its kind plus the derived
// project identifier. It is pure and deterministic: the same input
// always yields the same (kind, projectId).
func Classify(raw string) (model.Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return model.Target{}, ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())

	switch {
	case designHosts[host]:
		return model.Target{
			URL:       u.String(),
			Kind:      model.KindDesign,
			ProjectID: designProjectID(u),
		}, nil
	case androidHosts[host]:
		return model.Target{
			URL:       u.String(),
			Kind:      model.KindStoreAndroid,
			ProjectID: sanitize(u.Query().Get("id")),
		}, nil
	case iosHosts[host]:
		id := ""
		if m := iosIDPath.FindStringSubmatch(u.Path); m != nil {
			id = m[1]
		}
		return model.Target{
			URL:       u.String(),
			Kind:      model.KindStoreIOS,
			ProjectID: sanitize("id" + id),
		}, nil
	default:
		return model.Target{
			URL:       u.String(),
			Kind:      model.KindWeb,
			ProjectID: webProjectID(host),
		}, nil
	}
}

// FileKey extracts the design document key from a design-tool URL
// (the segment after /file/ or /design/). Empty when absent.
func FileKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if (p == "file" || p == "design" || p == "proto") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// webProjectID strips the www. prefix and the public-suffix-like tail
// from a hostname, then replaces every non-word run with "_".
// "www.example.com" becomes "example".
func webProjectID(host string) string {
	host = strings.TrimPrefix(host, "www.")
	if i := strings.LastIndex(host, "."); i > 0 {
		host = host[:i]
	}
	return sanitize(host)
}

func designProjectID(u *url.URL) string {
	if key := FileKey(u.String()); key != "" {
		return sanitize(key)
	}
	return sanitize(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."))
}

// PathToken derives the token embedded in screenshot filenames from a
// URL's path. The root path maps to "home" so repeated captures of a
// homepage are recognizable by name.
func PathToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "home"
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "home"
	}
	return sanitize(p)
}

// sanitize makes a token safe to use as a directory or file name
// component. It never returns an empty string.
func sanitize(s string) string {
	s = nonWord.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "home"
	}
	return s
}

// IsSafeToken reports whether a derived identifier is filesystem-safe.
func IsSafeToken(s string) bool {
	return safeToken.MatchString(s)
}
