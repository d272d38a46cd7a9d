package meds

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schema string

// Store is the SQLite-backed user medication list.
type Store struct {
	db *sql.DB
}

// NewStore initializes the medication schema on the given database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init medications schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Apply performs the get-or-create-or-update step for one (user, catalog)
// pair inside a single transaction:
//
//   - no row for the pair: insert one with the incoming values, created=true
//   - row exists: overwrite only the fields where the incoming value is
//     non-empty and differs from the stored value
//
// An incoming empty value never clears a stored one, so re-applying the same
// scan is a no-op after the first call.
func (s *Store) Apply(ctx context.Context, in Incoming) (created bool, changed []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("begin medication tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_medications
		     (id, user_id, catalog_id, dosage, frequency, pharmacy_name,
		      hospital_name, prescription_date, is_completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(user_id, catalog_id) DO NOTHING`,
		uuid.NewString(), in.UserID, in.CatalogID,
		in.Dosage, in.Frequency, in.PharmacyName, in.HospitalName, in.PrescriptionDate,
		now, now,
	)
	if err != nil {
		return false, nil, fmt.Errorf("insert medication: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, nil, fmt.Errorf("insert medication: %w", err)
	} else if n == 1 {
		return true, nil, tx.Commit()
	}

	var existing Record
	err = tx.QueryRowContext(ctx,
		`SELECT id, dosage, frequency, pharmacy_name, hospital_name, prescription_date
		 FROM user_medications WHERE user_id = ? AND catalog_id = ?`,
		in.UserID, in.CatalogID,
	).Scan(&existing.ID, &existing.Dosage, &existing.Frequency,
		&existing.PharmacyName, &existing.HospitalName, &existing.PrescriptionDate)
	if err != nil {
		return false, nil, fmt.Errorf("load existing medication: %w", err)
	}

	changed = diffFields(existing, in)
	if len(changed) == 0 {
		return false, nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE user_medications
		 SET dosage = ?, frequency = ?, pharmacy_name = ?, hospital_name = ?,
		     prescription_date = ?, updated_at = ?
		 WHERE id = ?`,
		pick(in.Dosage, existing.Dosage),
		pick(in.Frequency, existing.Frequency),
		pick(in.PharmacyName, existing.PharmacyName),
		pick(in.HospitalName, existing.HospitalName),
		pick(in.PrescriptionDate, existing.PrescriptionDate),
		now, existing.ID,
	)
	if err != nil {
		return false, nil, fmt.Errorf("update medication: %w", err)
	}
	return false, changed, tx.Commit()
}

// diffFields lists the fields an incoming scan would actually change:
// non-empty incoming value that differs from the stored one.
func diffFields(existing Record, in Incoming) []string {
	var changed []string
	for _, f := range []struct {
		name     string
		stored   string
		incoming string
	}{
		{FieldDosage, existing.Dosage, in.Dosage},
		{FieldFrequency, existing.Frequency, in.Frequency},
		{FieldPharmacyName, existing.PharmacyName, in.PharmacyName},
		{FieldHospitalName, existing.HospitalName, in.HospitalName},
		{FieldPrescriptionDate, existing.PrescriptionDate, in.PrescriptionDate},
	} {
		if f.incoming != "" && f.incoming != f.stored {
			changed = append(changed, f.name)
		}
	}
	return changed
}

func pick(incoming, stored string) string {
	if incoming != "" {
		return incoming
	}
	return stored
}

// ListActive returns a user's not-yet-completed medications, newest first.
func (s *Store) ListActive(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, catalog_id, dosage, frequency, pharmacy_name,
		        hospital_name, prescription_date, is_completed, created_at, updated_at
		 FROM user_medications
		 WHERE user_id = ? AND is_completed = 0
		 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return scanRecords(rows)
}

// Get returns a medication by ID, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, catalog_id, dosage, frequency, pharmacy_name,
		        hospital_name, prescription_date, is_completed, created_at, updated_at
		 FROM user_medications WHERE id = ?`, id,
	).Scan(&r.ID, &r.UserID, &r.CatalogID, &r.Dosage, &r.Frequency,
		&r.PharmacyName, &r.HospitalName, &r.PrescriptionDate,
		&r.IsCompleted, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return &r, nil
}

// Complete marks a medication as finished. Returns false when no row matched.
func (s *Store) Complete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_medications SET is_completed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete medication: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete medication: %w", err)
	}
	return n > 0, nil
}

// Delete removes a medication row. Returns false when no row matched.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_medications WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete medication: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete medication: %w", err)
	}
	return n > 0, nil
}

// CountForUser returns the number of rows stored for a user, completed or not.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_medications WHERE user_id = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count medications: %w", err)
	}
	return n, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.CatalogID, &r.Dosage, &r.Frequency,
			&r.PharmacyName, &r.HospitalName, &r.PrescriptionDate,
			&r.IsCompleted, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
