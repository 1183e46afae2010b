package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS tracks (
    doc_id TEXT PRIMARY KEY,
    artist TEXT NOT NULL,
    title  TEXT NOT NULL
)`

// Store keeps track metadata in the PostgreSQL tracks table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "metadata-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tracks table: %w", err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, docID string) (Track, error) {
	t := Track{ID: docID}
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT artist, title FROM tracks WHERE doc_id = $1`, docID,
	).Scan(&t.Artist, &t.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, fmt.Errorf("track %s: %w", docID, apperrors.ErrNotFound)
	}
	if err != nil {
		return Track{}, fmt.Errorf("querying track %s: %w", docID, err)
	}
	return t, nil
}

// Import replaces the table contents with tracks in one transaction, loading
// rows through COPY.
func (s *Store) Import(ctx context.Context, tracks []Track) error {
	start := time.Now()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE tracks`); err != nil {
			return fmt.Errorf("truncating tracks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("tracks", "doc_id", "artist", "title"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for _, t := range tracks {
			if _, err := stmt.ExecContext(ctx, t.ID, t.Artist, t.Title); err != nil {
				stmt.Close()
				return fmt.Errorf("copying track %s: %w", t.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return err
	}
	s.logger.Info("tracks imported",
		"count", len(tracks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}
