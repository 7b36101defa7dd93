// Package report serializes a finished job into two artifacts: a
// machine-readable JSON report and a flattened CSV view with one row
// per capture attempt for spreadsheet consumption.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sitelens/internal/model"
)

// Write persists both report formats into dir. Each format is
// all-or-nothing on its own: a failure writing one is reported but
// does not prevent the other from being attempted.
func Write(rep *model.JobReport, dir string) (jsonPath, csvPath string, err error) {
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return "", "", mkErr
	}

	jsonPath = filepath.Join(dir, fmt.Sprintf("report_%s.json", rep.RunID))
	csvPath = filepath.Join(dir, fmt.Sprintf("report_%s.csv", rep.RunID))

	jsonErr := writeJSON(rep, jsonPath)
	csvErr := writeCSV(rep, csvPath)

	if jsonErr != nil {
		jsonPath = ""
	}
	if csvErr != nil {
		csvPath = ""
	}
	return jsonPath, csvPath, errors.Join(jsonErr, csvErr)
}

func writeJSON(rep *model.JobReport, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(rep *model.JobReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"seed", "url", "success", "fullPage", "viewport", "error", "analyzed"}); err != nil {
		return err
	}

	for _, t := range rep.Targets {
		analyzed := strconv.FormatBool(t.Analysis != nil && t.Analysis.Success)
		if len(t.Captures) == 0 {
			if err := w.Write([]string{t.Seed, t.Seed, "false", "", "", t.Error, analyzed}); err != nil {
				return err
			}
			continue
		}
		for _, c := range t.Captures {
			row := []string{
				t.Seed,
				c.URL,
				strconv.FormatBool(c.Success),
				c.FullPagePath,
				c.ViewportPath,
				c.Error,
				analyzed,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}
