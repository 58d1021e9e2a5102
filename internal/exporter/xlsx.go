package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// HistorySheet is the worksheet name of an XLSX export.
const HistorySheet = "History"

// WriteXLSX writes the history table to a single-sheet workbook. Share
// counts and ratios are numeric cells; the header row is frozen.
func WriteXLSX(out io.Writer, snaps []domain.SubscriptionSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", HistorySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(HistorySheet)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	header := make([]interface{}, len(HistoryHeaders))
	for i, h := range HistoryHeaders {
		header[i] = h
	}
	if err := sw.SetPanes(&excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range HistoryTable(snaps) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.CapturedAt.In(storage.IST).Format("2006-01-02 15:04:05"),
			r.OfferingID,
			r.OfferingName,
			string(r.Exchange),
			string(r.Board),
			r.Category,
			r.SharesOffered,
			r.SharesBid,
			r.SubscriptionRatio,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Write exports snaps to out in format f.
func Write(out io.Writer, f Format, snaps []domain.SubscriptionSnapshot) error {
	switch f {
	case FormatCSV:
		return WriteHistoryCSV(out, snaps)
	case FormatXLSX:
		return WriteXLSX(out, snaps)
	}
	return fmt.Errorf("unsupported export format %q", f)
}
