package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitelens/internal/model"
)

func sampleReport() *model.JobReport {
	rep := &model.JobReport{
		RunID:     "test-run",
		StartedAt: time.Now().UTC(),
		Targets: []model.TargetReport{
			{
				Seed: "https://example.com",
				Kind: model.KindWeb,
				Captures: []model.CaptureResult{
					{
						URL:          "https://example.com",
						ProjectID:    "example",
						Success:      true,
						FullPagePath: "screenshots/example/home_1_full.jpg",
						ViewportPath: "screenshots/example/home_1_viewport.jpg",
					},
					{
						URL:     "https://example.com/broken",
						Success: false,
						Error:   model.ReasonPageLoadTimeout,
					},
				},
				Analysis: &model.AnalysisResult{URL: "https://example.com", Success: true, Text: "fine"},
			},
			{
				Seed:  "not-a-url",
				Error: model.ReasonInvalidURL,
			},
		},
		FinishedAt: time.Now().UTC(),
	}
	rep.Recount()
	return rep
}

func TestWriteBothFormats(t *testing.T) {
	dir := t.TempDir()

	jsonPath, csvPath, err := Write(sampleReport(), dir)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json report: %v", err)
	}
	var parsed model.JobReport
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("json report not parseable: %v", err)
	}
	if len(parsed.Targets) != 2 {
		t.Fatalf("json report has %d targets, want 2", len(parsed.Targets))
	}
	if parsed.Attempted != 2 || parsed.Succeeded != 1 || parsed.Failed != 1 {
		t.Fatalf("summary = %d/%d/%d, want 2/1/1", parsed.Attempted, parsed.Succeeded, parsed.Failed)
	}
	if parsed.Invalid != 1 {
		t.Fatalf("invalid = %d, want 1", parsed.Invalid)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open csv report: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("csv report not parseable: %v", err)
	}
	// Header plus one row per capture attempt plus one for the invalid seed.
	if len(rows) != 4 {
		t.Fatalf("csv has %d rows, want 4", len(rows))
	}
	if rows[0][0] != "seed" {
		t.Fatalf("unexpected csv header: %v", rows[0])
	}
	if rows[2][5] != model.ReasonPageLoadTimeout {
		t.Fatalf("failed capture row missing error reason: %v", rows[2])
	}
}

func TestWriteOneFormatFailureDoesNotBlockOther(t *testing.T) {
	dir := t.TempDir()

	// Pre-create the JSON path as a directory so that write fails.
	rep := sampleReport()
	blocked := filepath.Join(dir, "report_"+rep.RunID+".json")
	if err := os.MkdirAll(blocked, 0o755); err != nil {
		t.Fatal(err)
	}

	jsonPath, csvPath, err := Write(rep, dir)
	if err == nil {
		t.Fatal("expected an error for the blocked json format")
	}
	if jsonPath != "" {
		t.Fatalf("jsonPath should be empty on failure, got %q", jsonPath)
	}
	if csvPath == "" {
		t.Fatal("csv format should still have been written")
	}
	if _, err := os.Stat(csvPath); err != nil {
		t.Fatalf("csv file missing: %v", err)
	}
}
