package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schema string

// Store is the SQLite-backed catalog.
type Store struct {
	db *sql.DB
}

// NewStore initializes the catalog schema on the given database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Find resolves a free-text medicine name using a tiered strategy. The first
// tier with at least one result short-circuits:
//
//  1. case-insensitive exact match on canonical name (capped at 1)
//  2. case-insensitive substring match in either direction, since OCR may
//     add or drop suffixes like dosage strength (capped at 3)
//  3. whitespace-stripped substring match, for OCR inserting spurious
//     spaces inside a product name (capped at 3)
//
// No match in any tier returns an empty slice, not an error.
func (s *Store) Find(ctx context.Context, name string) ([]Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	entries, err := s.findExact(ctx, name)
	if err != nil || len(entries) > 0 {
		return entries, err
	}

	entries, err = s.findSubstring(ctx, name)
	if err != nil || len(entries) > 0 {
		return entries, err
	}

	return s.findSquashed(ctx, name)
}

func (s *Store) findExact(ctx context.Context, name string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_name, manufacturer FROM catalog_entries
		 WHERE lower(canonical_name) = lower(?) LIMIT ?`,
		name, maxExactMatches,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog exact lookup: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) findSubstring(ctx context.Context, name string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_name, manufacturer FROM catalog_entries
		 WHERE instr(lower(canonical_name), lower(?)) > 0
		    OR instr(lower(?), lower(canonical_name)) > 0
		 ORDER BY length(canonical_name) LIMIT ?`,
		name, name, maxFuzzyMatches,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog substring lookup: %w", err)
	}
	return scanEntries(rows)
}

func (s *Store) findSquashed(ctx context.Context, name string) ([]Entry, error) {
	squashed := strings.ReplaceAll(name, " ", "")
	if squashed == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_name, manufacturer FROM catalog_entries
		 WHERE instr(replace(lower(canonical_name), ' ', ''), lower(?)) > 0
		    OR instr(lower(?), replace(lower(canonical_name), ' ', '')) > 0
		 ORDER BY length(canonical_name) LIMIT ?`,
		squashed, squashed, maxFuzzyMatches,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog squashed lookup: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CanonicalName, &e.Manufacturer); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert inserts or replaces an entry by ID. Used by the seed loader.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_entries (id, canonical_name, manufacturer) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET canonical_name = excluded.canonical_name,
		                               manufacturer = excluded.manufacturer`,
		e.ID, e.CanonicalName, e.Manufacturer,
	)
	if err != nil {
		return fmt.Errorf("upsert catalog entry %s: %w", e.ID, err)
	}
	return nil
}

// Count returns the number of catalog entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count catalog entries: %w", err)
	}
	return n, nil
}

// Get returns an entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT id, canonical_name, manufacturer FROM catalog_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.CanonicalName, &e.Manufacturer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get catalog entry: %w", err)
	}
	return &e, nil
}
