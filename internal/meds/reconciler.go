package meds

import (
	"context"
	"log/slog"
	"strings"

	"github.com/carepill/pillscan/internal/catalog"
	"github.com/carepill/pillscan/internal/consensus"
)

// Outcome classifies what reconciliation did for one (entry, catalog match).
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeFailed    Outcome = "failed"
)

// Context carries the scan-level values applied to every reconciled entry.
// UserID is required; the rest may be empty.
type Context struct {
	UserID              string `json:"user_id"`
	PrescribingPharmacy string `json:"prescribing_pharmacy"`
	PrescribingHospital string `json:"prescribing_hospital"`
	PrescriptionDate    string `json:"prescription_date"`
}

// EntryResult is the outcome for one extracted medicine name against one
// catalog match. A name that resolves to several catalog entries produces
// one result per entry; an unresolved name produces a single not_found.
type EntryResult struct {
	MedicineName  string   `json:"medicine_name"`
	Outcome       Outcome  `json:"outcome"`
	CatalogID     string   `json:"catalog_id,omitempty"`
	CanonicalName string   `json:"canonical_name,omitempty"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	ChangedFields []string `json:"changed_fields,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Report summarizes a reconciliation pass over one merged scan result.
type Report struct {
	TotalEntries int           `json:"total_entries"`
	Created      int           `json:"created"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	NotFound     int           `json:"not_found"`
	Failed       int           `json:"failed"`
	Details      []EntryResult `json:"details"`
}

// Reconciler folds a merged scan result into the stored medication list.
type Reconciler struct {
	matcher catalog.Matcher
	store   *Store
	logger  *slog.Logger
}

// NewReconciler builds a reconciler over the given catalog matcher and
// medication store.
func NewReconciler(matcher catalog.Matcher, store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{matcher: matcher, store: store, logger: logger}
}

// Reconcile walks the merged medicine entries in order, resolves each name
// against the catalog, and applies a get-or-create-or-update per match. A
// failure on one entry is recorded in its result and does not stop the rest
// of the pass. Running the same merged result twice yields the same rows:
// the second pass reports every match as unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, merged consensus.MergedScanResult, rc Context) Report {
	report := Report{
		TotalEntries: len(merged.Medicines),
		Details:      []EntryResult{},
	}

	for _, med := range merged.Medicines {
		name := strings.TrimSpace(med.MedicineName)
		if name == "" {
			continue
		}

		matches, err := r.matcher.Find(ctx, name)
		if err != nil {
			r.logger.Warn("catalog lookup failed", "medicine", name, "error", err)
			report.Failed++
			report.Details = append(report.Details, EntryResult{
				MedicineName: name,
				Outcome:      OutcomeFailed,
				Error:        err.Error(),
			})
			continue
		}
		if len(matches) == 0 {
			report.NotFound++
			report.Details = append(report.Details, EntryResult{
				MedicineName: name,
				Outcome:      OutcomeNotFound,
			})
			continue
		}

		for _, m := range matches {
			result := EntryResult{
				MedicineName:  name,
				CatalogID:     m.ID,
				CanonicalName: m.CanonicalName,
				Manufacturer:  m.Manufacturer,
			}

			created, changed, err := r.store.Apply(ctx, Incoming{
				UserID:           rc.UserID,
				CatalogID:        m.ID,
				Dosage:           strings.TrimSpace(med.DosageInstructions),
				Frequency:        strings.TrimSpace(med.Frequency),
				PharmacyName:     rc.PrescribingPharmacy,
				HospitalName:     rc.PrescribingHospital,
				PrescriptionDate: rc.PrescriptionDate,
			})
			switch {
			case err != nil:
				r.logger.Warn("medication write failed",
					"medicine", name, "catalog_id", m.ID, "error", err)
				report.Failed++
				result.Outcome = OutcomeFailed
				result.Error = err.Error()
			case created:
				report.Created++
				result.Outcome = OutcomeCreated
			case len(changed) > 0:
				report.Updated++
				result.Outcome = OutcomeUpdated
				result.ChangedFields = changed
			default:
				report.Unchanged++
				result.Outcome = OutcomeUnchanged
			}
			report.Details = append(report.Details, result)
		}
	}

	return report
}
