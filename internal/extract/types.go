package extract

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MedFeatures holds the free-text feature fields the vision model returns
// for a medicine.
type MedFeatures struct {
	Description string `json:"description"`
	Indications string `json:"indications"`
	Cautions    string `json:"cautions"`
}

// MedicineEntry is one medicine extracted from a single shot.
// An entry without a medicine name is void and dropped during merge.
type MedicineEntry struct {
	MedicineName       string      `json:"medicine_name"`
	DosageInstructions string      `json:"dosage_instructions"`
	Frequency          string      `json:"frequency"`
	MedFeatures        MedFeatures `json:"med_features"`
}

// ShotExtraction is the structured result of one shot's raw vision-model
// output. All scalar fields default to "" when the model omits them or the
// shot fails to parse.
type ShotExtraction struct {
	PatientName        string          `json:"patient_name"`
	Age                string          `json:"age"`
	DispenseDate       string          `json:"dispense_date"`
	PharmacyName       string          `json:"pharmacy_name"`
	HospitalName       string          `json:"hospital_name"`
	PrescriptionNumber string          `json:"prescription_number"`
	MedFeatures        MedFeatures     `json:"med_features"`
	Medicines          []MedicineEntry `json:"medicines"`
	ParseOK            bool            `json:"parse_ok"`
}

// Empty returns a zero extraction with ParseOK=false. Used for shots whose
// text could not be parsed; the empty fields count against confidence
// downstream instead of aborting the batch.
func Empty() ShotExtraction {
	return ShotExtraction{Medicines: []MedicineEntry{}}
}

// flexString decodes a JSON string, number, bool, or null into a string.
// Vision models are inconsistent about quoting numeric fields like age.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	// Numbers and bools are kept as their literal text.
	*f = flexString(string(data))
	return nil
}

func (f flexString) trimmed() string {
	return strings.TrimSpace(string(f))
}

// wireExtraction mirrors the vision model's envelope payload with tolerant
// field decoding. It is converted to a ShotExtraction after parsing.
type wireExtraction struct {
	PatientName        flexString        `json:"patient_name"`
	Age                flexString        `json:"age"`
	DispenseDate       flexString        `json:"dispense_date"`
	PharmacyName       flexString        `json:"pharmacy_name"`
	HospitalName       flexString        `json:"hospital_name"`
	PrescriptionNumber flexString        `json:"prescription_number"`
	Medicines          []wireMedicine    `json:"medicines"`
	MedFeatures        *wireMedFeatures  `json:"med_features"`
	MedicineName       flexString        `json:"medicine_name"`
	DosageInstructions flexString        `json:"dosage_instructions"`
	Frequency          flexString        `json:"frequency"`
}

type wireMedicine struct {
	MedicineName       flexString       `json:"medicine_name"`
	DosageInstructions flexString       `json:"dosage_instructions"`
	Frequency          flexString       `json:"frequency"`
	MedFeatures        *wireMedFeatures `json:"med_features"`
}

type wireMedFeatures struct {
	Description flexString `json:"description"`
	Indications flexString `json:"indications"`
	Cautions    flexString `json:"cautions"`
}

func (w *wireExtraction) toShotExtraction() ShotExtraction {
	out := ShotExtraction{
		PatientName:        w.PatientName.trimmed(),
		Age:                w.Age.trimmed(),
		DispenseDate:       w.DispenseDate.trimmed(),
		PharmacyName:       w.PharmacyName.trimmed(),
		HospitalName:       w.HospitalName.trimmed(),
		PrescriptionNumber: w.PrescriptionNumber.trimmed(),
		MedFeatures:        w.MedFeatures.toMedFeatures(),
		Medicines:          []MedicineEntry{},
		ParseOK:            true,
	}

	for _, m := range w.Medicines {
		out.Medicines = append(out.Medicines, MedicineEntry{
			MedicineName:       m.MedicineName.trimmed(),
			DosageInstructions: m.DosageInstructions.trimmed(),
			Frequency:          m.Frequency.trimmed(),
			MedFeatures:        m.MedFeatures.toMedFeatures(),
		})
	}

	// Older single-medicine payloads carry the medicine fields at the top
	// level instead of a medicines array.
	if len(out.Medicines) == 0 && w.MedicineName.trimmed() != "" {
		out.Medicines = append(out.Medicines, MedicineEntry{
			MedicineName:       w.MedicineName.trimmed(),
			DosageInstructions: w.DosageInstructions.trimmed(),
			Frequency:          w.Frequency.trimmed(),
			MedFeatures:        w.MedFeatures.toMedFeatures(),
		})
	}

	return out
}

func (w *wireMedFeatures) toMedFeatures() MedFeatures {
	if w == nil {
		return MedFeatures{}
	}
	return MedFeatures{
		Description: w.Description.trimmed(),
		Indications: w.Indications.trimmed(),
		Cautions:    w.Cautions.trimmed(),
	}
}
