package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type BrowserConfig struct {
	// ControlURL attaches to an already-running browser (devtools URL).
	// When empty a local headless Chromium is launched.
	ControlURL     string `yaml:"controlURL"`
	ViewportWidth  int    `yaml:"viewportWidth"`
	ViewportHeight int    `yaml:"viewportHeight"`
	UserAgent      string `yaml:"userAgent"`
	AcceptLanguage string `yaml:"acceptLanguage"`
}

// StabilizerConfig holds the timing knobs for the page-readiness
// heuristic. The defaults are empirically tuned and safe to adjust;
// none of them is a compatibility contract.
type StabilizerConfig struct {
	NavTimeoutMs             int  `yaml:"navTimeoutMs"`
	SettleDelayMs            int  `yaml:"settleDelayMs"`
	SelectorTimeoutMs        int  `yaml:"selectorTimeoutMs"`
	TextWaitTimeoutMs        int  `yaml:"textWaitTimeoutMs"`
	MinTextLength            int  `yaml:"minTextLength"`
	WaitImages               bool `yaml:"waitImages"`
	ImageTimeoutMs           int  `yaml:"imageTimeoutMs"`
	WaitFonts                bool `yaml:"waitFonts"`
	FrameworkSettleTimeoutMs int  `yaml:"frameworkSettleTimeoutMs"`
	PreCaptureDelayMs        int  `yaml:"preCaptureDelayMs"`
	ScrollPass               bool `yaml:"scrollPass"`
	ScrollStepDelayMs        int  `yaml:"scrollStepDelayMs"`
	ScrollMaxDurationMs      int  `yaml:"scrollMaxDurationMs"`
}

type CaptureConfig struct {
	OutputDir   string `yaml:"outputDir"`
	JPEGQuality int    `yaml:"jpegQuality"`
}

type DiscoveryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	MaxLinks      int    `yaml:"maxLinks"`
	TimeoutMs     int    `yaml:"timeoutMs"`
	RespectRobots bool   `yaml:"respectRobots"`
	UserAgent     string `yaml:"userAgent"`
}

type PolitenessConfig struct {
	SeedDelayMinMs int `yaml:"seedDelayMinMs"`
	SeedDelayMaxMs int `yaml:"seedDelayMaxMs"`
	LinkDelayMs    int `yaml:"linkDelayMs"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type GoogleConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
}

type AnalysisConfig struct {
	DefaultProvider string          `yaml:"defaultProvider"`
	TimeoutMs       int             `yaml:"timeoutMs"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
	Google          GoogleConfig    `yaml:"google"`
}

type FigmaConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"baseURL"`
}

type Config struct {
	Browser    BrowserConfig    `yaml:"browser"`
	Stabilizer StabilizerConfig `yaml:"stabilizer"`
	Capture    CaptureConfig    `yaml:"capture"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Figma      FigmaConfig      `yaml:"figma"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Stabilizer: StabilizerConfig{
			NavTimeoutMs:             90_000,
			SettleDelayMs:            2_500,
			SelectorTimeoutMs:        6_000,
			TextWaitTimeoutMs:        10_000,
			MinTextLength:            100,
			WaitImages:               true,
			ImageTimeoutMs:           4_000,
			WaitFonts:                true,
			FrameworkSettleTimeoutMs: 5_000,
			PreCaptureDelayMs:        3_000,
			ScrollPass:               true,
			ScrollStepDelayMs:        250,
			ScrollMaxDurationMs:      15_000,
		},
		Capture: CaptureConfig{
			OutputDir:   "screenshots",
			JPEGQuality: 80,
		},
		Discovery: DiscoveryConfig{
			MaxLinks:      10,
			TimeoutMs:     30_000,
			RespectRobots: true,
			UserAgent:     "sitelens/1.0",
		},
		Politeness: PolitenessConfig{
			SeedDelayMinMs: 5_000,
			SeedDelayMaxMs: 10_000,
			LinkDelayMs:    1_500,
		},
		Analysis: AnalysisConfig{
			DefaultProvider: "openai",
			TimeoutMs:       60_000,
			OpenAI:          OpenAIConfig{Model: "gpt-4o"},
			Anthropic:       AnthropicConfig{Model: "claude-3-5-sonnet-latest"},
			Google:          GoogleConfig{Model: "gemini-1.5-pro"},
		},
		Figma: FigmaConfig{
			BaseURL: "https://api.figma.com",
		},
	}
}

// Load reads a yaml config file and overlays it on the defaults. A
// missing file is not an error so the CLI can run with flags alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		applyEnv(cfg)
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv fills credentials from the environment when the config file
// left them empty, so tokens never need to live on disk.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Analysis.OpenAI.APIKey == "" {
		cfg.Analysis.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Analysis.Anthropic.APIKey == "" {
		cfg.Analysis.Anthropic.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" && cfg.Analysis.Google.APIKey == "" {
		cfg.Analysis.Google.APIKey = v
	}
	if v := os.Getenv("FIGMA_TOKEN"); v != "" && cfg.Figma.Token == "" {
		cfg.Figma.Token = v
	}
}

func (s StabilizerConfig) NavTimeout() time.Duration { return ms(s.NavTimeoutMs) }

func (s StabilizerConfig) SettleDelay() time.Duration { return ms(s.SettleDelayMs) }

func (s StabilizerConfig) SelectorTimeout() time.Duration { return ms(s.SelectorTimeoutMs) }

func (s StabilizerConfig) TextWaitTimeout() time.Duration { return ms(s.TextWaitTimeoutMs) }

func (s StabilizerConfig) ImageTimeout() time.Duration { return ms(s.ImageTimeoutMs) }

func (s StabilizerConfig) FrameworkSettleTimeout() time.Duration {
	return ms(s.FrameworkSettleTimeoutMs)
}

func (s StabilizerConfig) PreCaptureDelay() time.Duration { return ms(s.PreCaptureDelayMs) }

func (s StabilizerConfig) ScrollStepDelay() time.Duration { return ms(s.ScrollStepDelayMs) }

func (s StabilizerConfig) ScrollMaxDuration() time.Duration { return ms(s.ScrollMaxDurationMs) }

func (d DiscoveryConfig) Timeout() time.Duration { return ms(d.TimeoutMs) }

func (a AnalysisConfig) Timeout() time.Duration { return ms(a.TimeoutMs) }

func (p PolitenessConfig) LinkDelay() time.Duration { return ms(p.LinkDelayMs) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
