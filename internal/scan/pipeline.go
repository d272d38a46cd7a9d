// Package scan runs the multi-shot envelope analysis pipeline: per-shot
// parsing, consensus merge, and reconciliation into the medication list.
package scan

import (
	"context"
	"log/slog"

	"github.com/carepill/pillscan/internal/consensus"
	"github.com/carepill/pillscan/internal/extract"
	"github.com/carepill/pillscan/internal/meds"
)

// MaxShots is the hard cap on shots per scan. Extra shots are dropped, not
// rejected; more than this adds latency without moving the vote.
const MaxShots = 9

// AnalysisType identifies this pipeline's output in stored and returned
// payloads.
const AnalysisType = "envelope"

// ShotResult pairs one shot's raw model text with its parsed form.
type ShotResult struct {
	Index   int                    `json:"index"`
	RawText string                 `json:"raw_text"`
	Parsed  extract.ShotExtraction `json:"parsed"`
	ParseOK bool                   `json:"parse_ok"`
}

// Outcome is the full result of one envelope scan. Reconciliation is nil
// when the scan carried no user or found no medicines to reconcile.
type Outcome struct {
	AnalysisType     string                     `json:"analysis_type"`
	Shots            []ShotResult               `json:"shots"`
	Merged           consensus.MergedScanResult `json:"merged"`
	Diagnostics      consensus.Diagnostics      `json:"diagnostics"`
	NoMedicinesFound bool                       `json:"no_medicines_found"`
	Reconciliation   *meds.Report               `json:"reconciliation"`
}

// Pipeline composes parsing, consensus, and reconciliation. The reconciler
// may be nil for analysis-only use.
type Pipeline struct {
	reconciler *meds.Reconciler
	logger     *slog.Logger
}

// NewPipeline builds a pipeline over the given reconciler.
func NewPipeline(reconciler *meds.Reconciler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{reconciler: reconciler, logger: logger}
}

// Process analyzes the raw model responses for one scan. Shots beyond
// MaxShots are dropped. Unparseable shots stay in the outcome as failed
// shots and weaken field confidence without aborting the batch. When userID
// is non-empty and the merge found medicines, the result is reconciled into
// that user's medication list.
func (p *Pipeline) Process(ctx context.Context, rawTexts []string, userID string) Outcome {
	if len(rawTexts) > MaxShots {
		p.logger.Warn("dropping extra shots", "got", len(rawTexts), "max", MaxShots)
		rawTexts = rawTexts[:MaxShots]
	}

	shots := make([]ShotResult, len(rawTexts))
	parsed := make([]extract.ShotExtraction, len(rawTexts))
	for i, raw := range rawTexts {
		ext := extract.Normalize(raw)
		shots[i] = ShotResult{Index: i, RawText: raw, Parsed: ext, ParseOK: ext.ParseOK}
		parsed[i] = ext
	}

	merged, diag := consensus.Merge(parsed)

	outcome := Outcome{
		AnalysisType:     AnalysisType,
		Shots:            shots,
		Merged:           merged,
		Diagnostics:      diag,
		NoMedicinesFound: len(merged.Medicines) == 0,
	}

	if p.reconciler == nil || userID == "" || outcome.NoMedicinesFound {
		return outcome
	}

	report := p.reconciler.Reconcile(ctx, merged, meds.Context{
		UserID:              userID,
		PrescribingPharmacy: merged.PharmacyName,
		PrescribingHospital: merged.HospitalName,
		PrescriptionDate:    NormalizeDate(merged.DispenseDate),
	})
	outcome.Reconciliation = &report

	p.logger.Info("scan reconciled",
		"user_id", userID,
		"shots", len(shots),
		"medicines", len(merged.Medicines),
		"created", report.Created,
		"updated", report.Updated,
		"not_found", report.NotFound,
		"failed", report.Failed,
	)
	return outcome
}
