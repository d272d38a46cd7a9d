package consensus

import "encoding/json"

// FieldDiagnostic records how one scalar field was merged: every shot's
// value in shot order, the normalized values when a field-specific
// normalizer applies, the selected winner, and its confidence in [0, 1].
type FieldDiagnostic struct {
	PerShot    []string `json:"per_shot"`
	Normalized []string `json:"normalized,omitempty"`
	Selected   string   `json:"selected"`
	Confidence float64  `json:"confidence"`
}

// MedicinesDiagnostic summarizes the medicines list merge. Per-entry fields
// are not put to a majority vote, so only the dedup outcome is recorded.
type MedicinesDiagnostic struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

// Diagnostics maps each merged scalar field to its FieldDiagnostic, plus the
// medicines summary. It serializes as a single flat object keyed by field
// name, with "medicines" alongside the scalar entries.
type Diagnostics struct {
	Fields    map[string]FieldDiagnostic
	Medicines MedicinesDiagnostic
}

// MarshalJSON flattens Fields and Medicines into one object.
func (d Diagnostics) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for name, fd := range d.Fields {
		out[name] = fd
	}
	out["medicines"] = d.Medicines
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (d *Diagnostics) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Fields = make(map[string]FieldDiagnostic, len(raw))
	for name, msg := range raw {
		if name == "medicines" {
			if err := json.Unmarshal(msg, &d.Medicines); err != nil {
				return err
			}
			continue
		}
		var fd FieldDiagnostic
		if err := json.Unmarshal(msg, &fd); err != nil {
			return err
		}
		d.Fields[name] = fd
	}
	return nil
}
