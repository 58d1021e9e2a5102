// Package exporter writes an offering's snapshot history as CSV or XLSX.
//
// HistoryTable flattens snapshots into one row per (snapshot, category)
// followed by a TOTAL row. CSVWriter writes the table with a UTF-8 BOM so
// Excel detects the encoding; WriteXLSX writes the same table to a
// workbook with numeric cells.
//
// Example usage:
//
//	snaps, _ := store.History(ctx, "acme_infra_ltd", 0)
//	w := exporter.NewCSVWriter(paths)
//	err := w.WriteHistory("acme_infra_ltd_20240115.csv", snaps)
package exporter
