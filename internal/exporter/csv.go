package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	var headers []string
	if !options.Append {
		headers = options.Headers
	}
	return writeRecords(file, headers, options.Records)
}

// WriteHistory writes the history table of snaps to filePath and returns
// the resolved path.
func (w *CSVWriter) WriteHistory(filePath string, snaps []domain.SubscriptionSnapshot) (string, error) {
	err := w.WriteCSV(filePath, WriteOptions{
		Headers:   HistoryHeaders,
		Records:   historyRecords(snaps),
		BOMPrefix: true,
	})
	return w.resolvePath(filePath), err
}

// AppendToCSV appends records to an existing CSV file
func (w *CSVWriter) AppendToCSV(filePath string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Records: records,
		Append:  true,
	})
}

// WriteHistoryCSV streams the history table with a BOM to out.
func WriteHistoryCSV(out io.Writer, snaps []domain.SubscriptionSnapshot) error {
	if _, err := out.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	return writeRecords(out, HistoryHeaders, historyRecords(snaps))
}

func writeRecords(out io.Writer, headers []string, records [][]string) error {
	writer := csv.NewWriter(out)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// StreamWriter provides streaming CSV writing, one snapshot at a time
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer with the history
// headers already written
func (w *CSVWriter) CreateStreamWriter(filePath string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	slog.Info("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(HistoryHeaders); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	return &StreamWriter{file: file, writer: writer}, nil
}

// WriteSnapshot writes the rows of one snapshot to the stream
func (s *StreamWriter) WriteSnapshot(snap domain.SubscriptionSnapshot) error {
	for _, r := range historyRecords([]domain.SubscriptionSnapshot{snap}) {
		if err := s.writer.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// resolvePath places relative paths under the exports directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return filepath.Join(w.paths.ExportsDir, filePath)
}
