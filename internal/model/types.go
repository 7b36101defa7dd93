package model

import "time"

// Kind classifies what sort of thing a target URL points at. Store
// listings are split into the two marketplaces because their project
// identifiers are derived differently.
type Kind string

const (
	KindWeb          Kind = "web"
	KindDesign       Kind = "design"
	KindStoreAndroid Kind = "store-android"
	KindStoreIOS     Kind = "store-ios"
)

// Failure reasons attached to per-target results. Only MissingCredential
// (checked once up front) and an empty target set may abort a whole run;
// everything else is recorded and the run continues.
const (
	ReasonInvalidURL              = "InvalidUrl"
	ReasonPageLoadTimeout         = "PageLoadTimeout"
	ReasonPageAppearsEmpty        = "PageAppearsEmpty"
	ReasonCaptureIOError          = "CaptureIOError"
	ReasonLinkDiscoveryFailed     = "LinkDiscoveryFailed"
	ReasonAnalysisFailed          = "AnalysisFailed"
	ReasonNoScreenshotForAnalysis = "NoScreenshotForAnalysis"
	ReasonMissingCredential       = "MissingCredential"
)

// Target is one URL queued for capture. Depth 0 is a seed supplied by
// the caller; depth 1 is a link discovered from a seed.
type Target struct {
	URL       string `json:"url"`
	Kind      Kind   `json:"kind"`
	ProjectID string `json:"projectId"`
	Depth     int    `json:"depth"`
}

// PageStats is the diagnostic snapshot taken by the content-validity
// check. It is attached to failed captures so an operator can tell a
// blank page from a bot-blocked one without re-visiting the site.
type PageStats struct {
	HasBody    bool `json:"hasBody"`
	TextLength int  `json:"textLength"`
	HasImages  bool `json:"hasImages"`
	HasLinks   bool `json:"hasLinks"`
	BodyHeight int  `json:"bodyHeight"`
}

// CaptureResult is the outcome of one capture attempt. Immutable once
// appended to a report.
type CaptureResult struct {
	URL          string     `json:"url"`
	ProjectID    string     `json:"projectId"`
	PathToken    string     `json:"pathToken"`
	Success      bool       `json:"success"`
	FullPagePath string     `json:"fullPagePath,omitempty"`
	ViewportPath string     `json:"viewportPath,omitempty"`
	ExportPaths  []string   `json:"exportPaths,omitempty"`
	Error        string     `json:"error,omitempty"`
	Stats        *PageStats `json:"pageStats,omitempty"`
	CapturedAt   time.Time  `json:"capturedAt"`

	// HTML is the rendered page source, kept for the analysis stage
	// only; it is stripped before the report is serialized.
	HTML string `json:"-"`
}

// AnalysisResult is the outcome of feeding one representative
// screenshot to the vision collaborator.
type AnalysisResult struct {
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputPath string `json:"outputPath,omitempty"`
}

// TargetReport groups everything recorded for one seed target: its
// classification, the captures of the seed and any discovered links,
// and the optional analysis of the representative screenshot.
type TargetReport struct {
	Seed     string          `json:"seed"`
	Kind     Kind            `json:"kind,omitempty"`
	Error    string          `json:"error,omitempty"`
	Captures []CaptureResult `json:"captures,omitempty"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
}

// JobReport is the aggregate for one run, written once at the end.
// Invalid counts seeds rejected before any network activity; they are
// excluded from the attempted and failed capture counters.
type JobReport struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Targets    []TargetReport `json:"targets"`
	Attempted  int            `json:"attempted"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Invalid    int            `json:"invalid"`
}

// Recount recomputes the summary counters from the per-target entries.
func (r *JobReport) Recount() {
	r.Attempted, r.Succeeded, r.Failed, r.Invalid = 0, 0, 0, 0
	for _, t := range r.Targets {
		if t.Error == ReasonInvalidURL && len(t.Captures) == 0 {
			r.Invalid++
			continue
		}
		if t.Error != "" && len(t.Captures) == 0 {
			r.Attempted++
			r.Failed++
			continue
		}
		for _, c := range t.Captures {
			r.Attempted++
			if c.Success {
				r.Succeeded++
			} else {
				r.Failed++
			}
		}
	}
}
