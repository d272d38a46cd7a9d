// Package meds persists a user's medication list and reconciles merged scan
// results into it without creating duplicates on repeated scans.
package meds

import "time"

// Record is one persisted user medication row. At most one row exists per
// (user_id, catalog_id) pair; the pipeline never deletes rows (deletion is a
// separate user-initiated action).
type Record struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	CatalogID        string    `json:"catalog_id"`
	Dosage           string    `json:"dosage"`
	Frequency        string    `json:"frequency"`
	PharmacyName     string    `json:"pharmacy_name"`
	HospitalName     string    `json:"hospital_name"`
	PrescriptionDate string    `json:"prescription_date"`
	IsCompleted      bool      `json:"is_completed"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Incoming carries the values a scan wants to persist for one
// (user, catalog) pair. Empty values never overwrite stored ones.
type Incoming struct {
	UserID           string
	CatalogID        string
	Dosage           string
	Frequency        string
	PharmacyName     string
	HospitalName     string
	PrescriptionDate string
}

// Field names reported in changed-field lists.
const (
	FieldDosage           = "dosage"
	FieldFrequency        = "frequency"
	FieldPharmacyName     = "pharmacy_name"
	FieldHospitalName     = "hospital_name"
	FieldPrescriptionDate = "prescription_date"
)
