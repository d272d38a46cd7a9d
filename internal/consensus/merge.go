// Package consensus merges N independent noisy shot extractions of the same
// envelope into one record with per-field confidence. Merging is a pure,
// single-pass aggregation: it holds no external resources and is safe to call
// from any goroutine.
package consensus

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/carepill/pillscan/internal/extract"
)

// Scalar field names used as diagnostics keys.
const (
	FieldPatientName        = "patient_name"
	FieldAge                = "age"
	FieldDispenseDate       = "dispense_date"
	FieldPharmacyName       = "pharmacy_name"
	FieldHospitalName       = "hospital_name"
	FieldPrescriptionNumber = "prescription_number"
	FieldDescription        = "med_features.description"
	FieldIndications        = "med_features.indications"
	FieldCautions           = "med_features.cautions"
)

// MergedScanResult is the consensus record produced from all shots.
type MergedScanResult struct {
	PatientName        string                  `json:"patient_name"`
	Age                string                  `json:"age"`
	DispenseDate       string                  `json:"dispense_date"`
	PharmacyName       string                  `json:"pharmacy_name"`
	HospitalName       string                  `json:"hospital_name"`
	PrescriptionNumber string                  `json:"prescription_number"`
	MedFeatures        extract.MedFeatures     `json:"med_features"`
	Medicines          []extract.MedicineEntry `json:"medicines"`
}

// Merge computes the consensus record and per-field diagnostics from the
// per-shot extractions. Shots that failed to parse contribute empty values
// to every field, lowering confidence without changing the winners.
func Merge(shots []extract.ShotExtraction) (MergedScanResult, Diagnostics) {
	diag := Diagnostics{Fields: make(map[string]FieldDiagnostic)}

	merged := MergedScanResult{Medicines: []extract.MedicineEntry{}}
	merged.PatientName = mergeField(&diag, FieldPatientName, collect(shots, func(s extract.ShotExtraction) string { return s.PatientName }))
	merged.Age = mergeDigitsField(&diag, FieldAge, collect(shots, func(s extract.ShotExtraction) string { return s.Age }))
	merged.DispenseDate = mergeField(&diag, FieldDispenseDate, collect(shots, func(s extract.ShotExtraction) string { return s.DispenseDate }))
	merged.PharmacyName = mergeField(&diag, FieldPharmacyName, collect(shots, func(s extract.ShotExtraction) string { return s.PharmacyName }))
	merged.HospitalName = mergeField(&diag, FieldHospitalName, collect(shots, func(s extract.ShotExtraction) string { return s.HospitalName }))
	merged.PrescriptionNumber = mergeDigitsField(&diag, FieldPrescriptionNumber, collect(shots, func(s extract.ShotExtraction) string { return s.PrescriptionNumber }))

	// med_features is flattened into three independent scalar sub-fields,
	// merged like any other scalar, then reassembled.
	merged.MedFeatures = extract.MedFeatures{
		Description: mergeField(&diag, FieldDescription, collect(shots, func(s extract.ShotExtraction) string { return s.MedFeatures.Description })),
		Indications: mergeField(&diag, FieldIndications, collect(shots, func(s extract.ShotExtraction) string { return s.MedFeatures.Indications })),
		Cautions:    mergeField(&diag, FieldCautions, collect(shots, func(s extract.ShotExtraction) string { return s.MedFeatures.Cautions })),
	}

	merged.Medicines = mergeMedicines(shots)
	diag.Medicines = MedicinesDiagnostic{
		Count: len(merged.Medicines),
		Names: medicineNames(merged.Medicines),
	}

	return merged, diag
}

func collect(shots []extract.ShotExtraction, get func(extract.ShotExtraction) string) []string {
	values := make([]string, len(shots))
	for i, s := range shots {
		values[i] = strings.TrimSpace(get(s))
	}
	return values
}

// mergeField runs a plain majority vote and records the diagnostic.
func mergeField(diag *Diagnostics, field string, values []string) string {
	winner, conf := MajorityVote(values)
	diag.Fields[field] = FieldDiagnostic{
		PerShot:    values,
		Selected:   winner,
		Confidence: conf,
	}
	return winner
}

// mergeDigitsField votes on digits-only normalized values first. When every
// shot's normalization comes up empty (no digits anywhere), it falls back to
// a vote over the raw values.
func mergeDigitsField(diag *Diagnostics, field string, values []string) string {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = DigitsOnly(v)
	}

	winner, conf := MajorityVote(normalized)
	if winner != "" {
		diag.Fields[field] = FieldDiagnostic{
			PerShot:    values,
			Normalized: normalized,
			Selected:   winner,
			Confidence: conf,
		}
		return winner
	}

	winner, conf = MajorityVote(values)
	diag.Fields[field] = FieldDiagnostic{
		PerShot:    values,
		Normalized: normalized,
		Selected:   winner,
		Confidence: conf,
	}
	return winner
}

// MajorityVote selects the most frequent non-empty value. Ties resolve to
// the candidate with the most characters (longer values carry more extracted
// information and are less likely to be truncation artifacts), then
// lexicographically so the result is independent of shot order. Confidence
// counts empty shots in the denominator; all-empty input yields ("", 0).
func MajorityVote(values []string) (string, float64) {
	counts := make(map[string]int)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		counts[v]++
	}
	if len(counts) == 0 {
		return "", 0
	}

	topFreq := 0
	for _, c := range counts {
		if c > topFreq {
			topFreq = c
		}
	}

	var candidates []string
	for v, c := range counts {
		if c == topFreq {
			candidates = append(candidates, v)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(candidates[i]), utf8.RuneCountInString(candidates[j])
		if li != lj {
			return li > lj
		}
		return candidates[i] < candidates[j]
	})

	winner := candidates[0]
	conf := float64(counts[winner]) / float64(max(1, len(values)))
	return winner, math.Round(conf*1000) / 1000
}

// DigitsOnly strips every non-digit character. Normalizing an already
// digits-only string returns it unchanged.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// mergeMedicines collects every named medicine across all shots in shot
// order and deduplicates by case-insensitive trimmed name. The first-seen
// entry's instructions and frequency win; later duplicates are dropped
// rather than cross-merged, since one envelope may legitimately carry
// several distinct medicines and per-entry fields are not put to a vote.
func mergeMedicines(shots []extract.ShotExtraction) []extract.MedicineEntry {
	seen := make(map[string]struct{})
	var out []extract.MedicineEntry

	for _, shot := range shots {
		for _, med := range shot.Medicines {
			name := strings.TrimSpace(med.MedicineName)
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, extract.MedicineEntry{
				MedicineName:       name,
				DosageInstructions: strings.TrimSpace(med.DosageInstructions),
				Frequency:          strings.TrimSpace(med.Frequency),
				MedFeatures:        med.MedFeatures,
			})
		}
	}

	if out == nil {
		out = []extract.MedicineEntry{}
	}
	return out
}

func medicineNames(meds []extract.MedicineEntry) []string {
	names := make([]string, len(meds))
	for i, m := range meds {
		names[i] = m.MedicineName
	}
	return names
}
