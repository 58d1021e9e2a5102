// Package sqlite is the embedded SnapshotStore backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage/sqlite/migrations"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Store is a SnapshotStore in a single SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ storage.SnapshotStore = (*Store)(nil)

// Open opens (creating if needed) the database at dbPath and applies
// pending migrations.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Save implements storage.SnapshotStore.
func (s *Store) Save(ctx context.Context, snap domain.SubscriptionSnapshot) (string, error) {
	if err := storage.Validate(snap); err != nil {
		return "", err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", apierrors.NewStorageError("encoding snapshot", err)
	}
	id := storage.DocID(snap.OfferingID, snap.CapturedAt)
	captured := snap.CapturedAt.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", apierrors.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// The latest pointer only moves forward in capture time; a late save
	// of an older sample lands in history without hiding the newer one.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO offerings (offering_id, offering_name, exchange, board, status, latest_id, last_captured_at, updated_at)
		VALUES (?, ?, ?, ?, 'active', ?, ?, ?)
		ON CONFLICT(offering_id) DO UPDATE SET
			offering_name = excluded.offering_name,
			exchange = excluded.exchange,
			board = excluded.board,
			status = 'active',
			latest_id = CASE WHEN excluded.last_captured_at >= offerings.last_captured_at
				THEN excluded.latest_id ELSE offerings.latest_id END,
			last_captured_at = MAX(excluded.last_captured_at, offerings.last_captured_at),
			updated_at = excluded.updated_at
	`, snap.OfferingID, snap.OfferingName, string(snap.Exchange), string(snap.Board),
		id, captured, time.Now().UnixNano())
	if err != nil {
		return "", apierrors.NewStorageError("saving offering", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, offering_id, captured_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			captured_at = excluded.captured_at,
			payload = excluded.payload
	`, id, snap.OfferingID, captured, string(payload))
	if err != nil {
		return "", apierrors.NewStorageError("saving snapshot", err)
	}

	if err := tx.Commit(); err != nil {
		return "", apierrors.NewStorageError("commit snapshot", err)
	}
	return id, nil
}

// Latest implements storage.SnapshotStore.
func (s *Store) Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.payload FROM offerings o
		JOIN snapshots s ON s.id = o.latest_id
		WHERE o.offering_id = ?
	`, offeringID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SubscriptionSnapshot{}, fmt.Errorf("latest %s: %w", offeringID, storage.ErrNotFound)
	}
	if err != nil {
		return domain.SubscriptionSnapshot{}, apierrors.NewStorageError("loading latest snapshot", err)
	}
	return decode(payload)
}

// History implements storage.SnapshotStore.
func (s *Store) History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT payload, captured_at FROM snapshots
			WHERE offering_id = ?
			ORDER BY captured_at DESC
			LIMIT ?
		) ORDER BY captured_at ASC
	`, offeringID, limit)
	if err != nil {
		return nil, apierrors.NewStorageError("loading history", err)
	}
	defer rows.Close()

	var out []domain.SubscriptionSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, apierrors.NewStorageError("scanning history", err)
		}
		snap, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.NewStorageError("iterating history", err)
	}
	return out, nil
}

// ActiveOfferings implements storage.SnapshotStore.
func (s *Store) ActiveOfferings(ctx context.Context) ([]domain.TrackedOffering, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT offering_id, offering_name, exchange, board, status, latest_id, last_captured_at
		FROM offerings WHERE status = 'active'
		ORDER BY offering_id
	`)
	if err != nil {
		return nil, apierrors.NewStorageError("listing offerings", err)
	}
	defer rows.Close()

	var out []domain.TrackedOffering
	for rows.Next() {
		var (
			o        domain.TrackedOffering
			exchange string
			board    string
			status   string
			captured int64
		)
		if err := rows.Scan(&o.OfferingID, &o.OfferingName, &exchange, &board, &status, &o.LatestID, &captured); err != nil {
			return nil, apierrors.NewStorageError("scanning offering", err)
		}
		o.Exchange = domain.Exchange(exchange)
		o.Board = domain.Board(board)
		o.Status = domain.OfferingStatus(status)
		o.LastCapturedAt = time.Unix(0, captured).UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.NewStorageError("iterating offerings", err)
	}
	return out, nil
}

// Archive implements storage.SnapshotStore.
func (s *Store) Archive(ctx context.Context, offeringID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE offerings SET status = 'archived', updated_at = ? WHERE offering_id = ?",
		time.Now().UnixNano(), offeringID)
	if err != nil {
		return apierrors.NewStorageError("archiving offering", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("archive %s: %w", offeringID, storage.ErrNotFound)
	}
	return nil
}

func decode(payload string) (domain.SubscriptionSnapshot, error) {
	var snap domain.SubscriptionSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return domain.SubscriptionSnapshot{}, apierrors.NewStorageError("decoding snapshot", err)
	}
	return snap, nil
}
