// Package analyze sends a representative screenshot to a vision-capable
// LLM and returns a structured free-text assessment of the site. The
// provider layer mirrors the shape of the capture pipeline's other
// collaborators: minimal request/response structs over plain net/http,
// one client per provider behind a shared interface.
package analyze

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"

	"sitelens/internal/config"
)

// Provider represents a logical vision-LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// ErrMissingCredential is returned by NewClientFromConfig when the
// selected provider has no API key. The job runner checks this once
// up front, before any browser work starts.
var ErrMissingCredential = errors.New("missing credential for analysis provider")

// Request carries one screenshot to the vision collaborator.
type Request struct {
	URL string
	// Image is the raw screenshot bytes; MimeType describes them
	// (image/jpeg for browser captures, image/png for design exports).
	Image    []byte
	MimeType string
	// PageHTML, when present, is converted to a bounded markdown
	// excerpt and attached as textual context alongside the image.
	PageHTML string
}

// Result is the free-text analysis body.
type Result struct {
	Text string
}

// Client is the vision-analysis abstraction used by the job runner.
type Client interface {
	AnalyzeScreenshot(ctx context.Context, req Request) (Result, error)
}

// promptTemplate is the fixed analysis instruction. The section list
// is part of the output contract consumed downstream.
const promptTemplate = `You are reviewing a screenshot of the website %s.
Write a portfolio-ready analysis with exactly these sections, each as a markdown heading:

## Short Description
One or two sentences on what the site is.

## Long Description
A paragraph covering purpose, audience, and content.

## Key Features
Bulleted list of the main features visible in the screenshot.

## Tech Stack
Your best inference of frameworks and platforms, with reasoning.

## Design Assessment
Layout, typography, color, imagery, visual hierarchy.

## UX Assessment
Navigation, clarity, calls to action, accessibility concerns.

## Professional Rating
A score out of 10 with a one-sentence justification.`

// maxContextChars bounds the markdown excerpt so prompts stay small.
const maxContextChars = 4000

// BuildPrompt assembles the full user prompt for a request.
func BuildPrompt(req Request) string {
	prompt := fmt.Sprintf(promptTemplate, req.URL)
	if excerpt := markdownExcerpt(req.PageHTML, req.URL); excerpt != "" {
		prompt += "\n\nPage text excerpt for additional context:\n\n" + excerpt
	}
	return prompt
}

// markdownExcerpt converts page HTML to markdown and truncates it.
// Conversion failures just drop the context; the image alone is enough.
func markdownExcerpt(pageHTML, pageURL string) string {
	if pageHTML == "" {
		return ""
	}
	host := ""
	if i := strings.Index(pageURL, "//"); i >= 0 {
		host = strings.SplitN(pageURL[i+2:], "/", 2)[0]
	}
	converter := htmlmd.NewConverter(host, true, nil)
	md, err := converter.ConvertString(pageHTML)
	if err != nil {
		return ""
	}
	md = strings.TrimSpace(md)
	if len(md) > maxContextChars {
		md = md[:maxContextChars]
	}
	return md
}

// NewClientFromConfig constructs a Client for the configured provider.
// A provider without an API key yields ErrMissingCredential.
func NewClientFromConfig(cfg config.AnalysisConfig) (Client, Provider, error) {
	prov := Provider(cfg.DefaultProvider)
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	switch prov {
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, prov, ErrMissingCredential
		}
		return &openAIClient{
			apiKey:  cfg.OpenAI.APIKey,
			baseURL: cfg.OpenAI.BaseURL,
			model:   cfg.OpenAI.Model,
			http:    newHTTPClient(timeout),
		}, prov, nil
	case ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, prov, ErrMissingCredential
		}
		return &anthropicClient{
			apiKey:  cfg.Anthropic.APIKey,
			baseURL: cfg.Anthropic.BaseURL,
			model:   cfg.Anthropic.Model,
			http:    newHTTPClient(timeout),
		}, prov, nil
	case ProviderGoogle:
		if cfg.Google.APIKey == "" {
			return nil, prov, ErrMissingCredential
		}
		return &googleClient{
			apiKey:  cfg.Google.APIKey,
			baseURL: cfg.Google.BaseURL,
			model:   cfg.Google.Model,
			http:    newHTTPClient(timeout),
		}, prov, nil
	default:
		return nil, prov, fmt.Errorf("unsupported analysis provider: %s", cfg.DefaultProvider)
	}
}

func encodeImage(req Request) (mime, b64 string) {
	mime = req.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return mime, base64.StdEncoding.EncodeToString(req.Image)
}
