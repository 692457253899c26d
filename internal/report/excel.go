package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"wb-sppmon/internal/models"
)

// ExportWorkbook writes the run's outcome to an xlsx workbook in dir and
// returns the file path. One sheet per concern: pass summaries, reported
// changes, collected failures.
func ExportWorkbook(dir, runID string, summaries []models.RunSummary, entries []Entry, failures []Failure) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	// the default sheet is renamed so the workbook has no empty "Sheet1"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", errors.Wrap(err, "rename summary sheet")
	}

	headers := []any{"Pass", "Started", "New", "Updated", "Unchanged", "Disappeared", "Failures"}
	if err := f.SetSheetRow(summarySheet, "A1", &headers); err != nil {
		return "", errors.Wrap(err, "write summary header")
	}
	for i, s := range summaries {
		row := []any{s.Pass, s.StartedAt.Format(time.RFC3339), s.New, s.Updated, s.Unchanged, s.Disappeared, s.Failures}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return "", errors.Wrap(err, "write summary row")
		}
	}

	changesSheet := "Changes"
	if _, err := f.NewSheet(changesSheet); err != nil {
		return "", errors.Wrap(err, "create changes sheet")
	}
	if err := f.SetSheetRow(changesSheet, "A1", &[]any{"Entity", "Change"}); err != nil {
		return "", errors.Wrap(err, "write changes header")
	}
	for i, e := range entries {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(changesSheet, cell, &[]any{e.Descr, e.Line}); err != nil {
			return "", errors.Wrap(err, "write change row")
		}
	}

	failuresSheet := "Failures"
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return "", errors.Wrap(err, "create failures sheet")
	}
	if err := f.SetSheetRow(failuresSheet, "A1", &[]any{"Entity", "Message", "At"}); err != nil {
		return "", errors.Wrap(err, "write failures header")
	}
	for i, fl := range failures {
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(failuresSheet, cell, &[]any{fl.Descr, fl.Message, fl.At.Format(time.RFC3339)}); err != nil {
			return "", errors.Wrap(err, "write failure row")
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("sppmon-run-%s.xlsx", runID))
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrapf(err, "save workbook %s", path)
	}
	return path, nil
}
