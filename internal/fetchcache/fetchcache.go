// Package fetchcache persists ETags for conditional provider fetches across
// process restarts. It lives in a local SQLite file so a scheduled CLI run
// can skip re-downloading reference data that has not changed.
package fetchcache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Store holds one ETag per URL in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ETag store at the given path and
// configures WAL mode.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "fetchcache: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "fetchcache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "fetchcache: exec %s", pragma)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS etags (
			url        TEXT PRIMARY KEY,
			etag       TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "fetchcache: migrate")
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored ETag for a URL, or "" if none is recorded.
func (s *Store) Get(ctx context.Context, url string) (string, error) {
	var etag string
	err := s.db.QueryRowContext(ctx,
		`SELECT etag FROM etags WHERE url = ?`, url,
	).Scan(&etag)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "fetchcache: get %s", url)
	}
	return etag, nil
}

// Set records the ETag for a URL, replacing any previous value.
func (s *Store) Set(ctx context.Context, url, etag string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etags (url, etag, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (url) DO UPDATE SET etag = excluded.etag, updated_at = excluded.updated_at`,
		url, etag, time.Now().UTC(),
	)
	return eris.Wrapf(err, "fetchcache: set %s", url)
}

// Delete drops the ETag for a URL, forcing the next fetch to download.
func (s *Store) Delete(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM etags WHERE url = ?`, url)
	return eris.Wrapf(err, "fetchcache: delete %s", url)
}
