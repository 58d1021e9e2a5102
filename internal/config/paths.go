package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains the resolved filesystem locations used by the binaries.
// Relative entries in PathsConfig are resolved against BaseDir.
type Paths struct {
	BaseDir    string
	DataDir    string
	ExportsDir string
	LogsDir    string
	SQLiteFile string
}

// ResolvePaths resolves the configured paths against baseDir. An empty
// baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	return &Paths{
		BaseDir:    baseDir,
		DataDir:    abs(c.Paths.DataDir),
		ExportsDir: abs(c.Paths.ExportsDir),
		LogsDir:    abs(c.Paths.LogsDir),
		SQLiteFile: abs(c.Storage.SQLitePath),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{p.DataDir, p.ExportsDir, p.LogsDir}
	if p.SQLiteFile != "" {
		directories = append(directories, filepath.Dir(p.SQLiteFile))
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// ExportPath returns the file an offering's history export is written to,
// e.g. data/exports/acme_ltd_20250624.csv.
func (p *Paths) ExportPath(slug string, day time.Time, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", slug, day.Format("20060102"), strings.TrimPrefix(ext, "."))
	return filepath.Join(p.ExportsDir, name)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
