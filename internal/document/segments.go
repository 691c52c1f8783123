package document

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"quickscribe/internal/types"
)

const (
	SegmentsFileName = "transcript_segments.xlsx"
	SegmentsSheet    = "Segments"
)

// writeSegments lays the timed segments out one per row, times in seconds.
func writeSegments(path string, segments []types.Segment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SegmentsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SegmentsSheet, "A1", &[]interface{}{"Start", "End", "Text"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range segments {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{s.Start.Seconds(), s.End.Seconds(), s.Text}
		if err := f.SetSheetRow(SegmentsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", SegmentsFileName, err)
	}
	return nil
}
