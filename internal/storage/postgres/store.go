// Package postgres is the SnapshotStore backend for shared deployments.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/config"
	apierrors "github.com/Roshiii-8511/gainipo-subscription-scraper/internal/errors"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage/postgres/migrations"
	"github.com/Roshiii-8511/gainipo-subscription-scraper/pkg/contracts/domain"
)

// Store is a SnapshotStore on a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.SnapshotStore = (*Store)(nil)

// Connect creates the pool, verifies it and applies pending migrations.
func Connect(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
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
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
			return err
		})
		if err != nil {
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

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO offerings (offering_id, offering_name, exchange, board, status, latest_id, last_captured_at, updated_at)
			VALUES ($1, $2, $3, $4, 'active', $5, $6, now())
			ON CONFLICT (offering_id) DO UPDATE SET
				offering_name = EXCLUDED.offering_name,
				exchange = EXCLUDED.exchange,
				board = EXCLUDED.board,
				status = 'active',
				latest_id = CASE WHEN EXCLUDED.last_captured_at >= offerings.last_captured_at
					THEN EXCLUDED.latest_id ELSE offerings.latest_id END,
				last_captured_at = GREATEST(EXCLUDED.last_captured_at, offerings.last_captured_at),
				updated_at = now()
		`, snap.OfferingID, snap.OfferingName, string(snap.Exchange), string(snap.Board), id, snap.CapturedAt)
		if err != nil {
			return fmt.Errorf("saving offering: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO snapshots (id, offering_id, captured_at, payload)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				captured_at = EXCLUDED.captured_at,
				payload = EXCLUDED.payload
		`, id, snap.OfferingID, snap.CapturedAt, string(payload))
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", apierrors.NewStorageError("save snapshot", err)
	}
	return id, nil
}

// Latest implements storage.SnapshotStore.
func (s *Store) Latest(ctx context.Context, offeringID string) (domain.SubscriptionSnapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT s.payload FROM offerings o
		JOIN snapshots s ON s.id = o.latest_id
		WHERE o.offering_id = $1
	`, offeringID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SubscriptionSnapshot{}, fmt.Errorf("latest %s: %w", offeringID, storage.ErrNotFound)
	}
	if err != nil {
		return domain.SubscriptionSnapshot{}, apierrors.NewStorageError("loading latest snapshot", err)
	}
	return decode(payload)
}

// History implements storage.SnapshotStore.
func (s *Store) History(ctx context.Context, offeringID string, limit int) ([]domain.SubscriptionSnapshot, error) {
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT payload FROM (
			SELECT payload, captured_at FROM snapshots
			WHERE offering_id = $1
			ORDER BY captured_at DESC
			LIMIT $2
		) recent ORDER BY captured_at ASC
	`, offeringID, lim)
	if err != nil {
		return nil, apierrors.NewStorageError("loading history", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, apierrors.NewStorageError("scanning history", err)
	}

	out := make([]domain.SubscriptionSnapshot, 0, len(payloads))
	for _, p := range payloads {
		snap, err := decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// ActiveOfferings implements storage.SnapshotStore.
func (s *Store) ActiveOfferings(ctx context.Context) ([]domain.TrackedOffering, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT offering_id, offering_name, exchange, board, status, latest_id, last_captured_at
		FROM offerings WHERE status = 'active'
		ORDER BY offering_id
	`)
	if err != nil {
		return nil, apierrors.NewStorageError("listing offerings", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TrackedOffering, error) {
		var (
			o                       domain.TrackedOffering
			exchange, board, status string
		)
		err := row.Scan(&o.OfferingID, &o.OfferingName, &exchange, &board, &status, &o.LatestID, &o.LastCapturedAt)
		o.Exchange = domain.Exchange(exchange)
		o.Board = domain.Board(board)
		o.Status = domain.OfferingStatus(status)
		return o, err
	})
	if err != nil {
		return nil, apierrors.NewStorageError("scanning offerings", err)
	}
	return out, nil
}

// Archive implements storage.SnapshotStore.
func (s *Store) Archive(ctx context.Context, offeringID string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE offerings SET status = 'archived', updated_at = now() WHERE offering_id = $1", offeringID)
	if err != nil {
		return apierrors.NewStorageError("archiving offering", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("archive %s: %w", offeringID, storage.ErrNotFound)
	}
	return nil
}

func decode(payload []byte) (domain.SubscriptionSnapshot, error) {
	var snap domain.SubscriptionSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.SubscriptionSnapshot{}, apierrors.NewStorageError("decoding snapshot", err)
	}
	return snap, nil
}
