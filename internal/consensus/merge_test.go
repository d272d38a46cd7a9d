package consensus

import (
	"math"
	"math/rand"
	"testing"

	"github.com/carepill/pillscan/internal/extract"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMajorityVote(t *testing.T) {
	t.Run("clear majority wins", func(t *testing.T) {
		winner, conf := MajorityVote([]string{"타이레놀", "타이레놀", "타이레놀정"})
		if winner != "타이레놀" {
			t.Errorf("winner = %q, want 타이레놀", winner)
		}
		if !almostEqual(conf, 0.667) {
			t.Errorf("confidence = %v, want 0.667", conf)
		}
	})

	t.Run("tie resolves to longest string", func(t *testing.T) {
		winner, _ := MajorityVote([]string{"타이레놀", "타이레놀정"})
		if winner != "타이레놀정" {
			t.Errorf("winner = %q, want 타이레놀정 (longest)", winner)
		}
	})

	t.Run("tie length is measured in characters, not bytes", func(t *testing.T) {
		// "가나" is 2 characters but 6 bytes; "abcd" is 4 characters and 4
		// bytes. The longer name in characters must win.
		winner, _ := MajorityVote([]string{"abcd", "가나"})
		if winner != "abcd" {
			t.Errorf("winner = %q, want abcd (more characters)", winner)
		}

		winner, _ = MajorityVote([]string{"서울약국", "ABC"})
		if winner != "서울약국" {
			t.Errorf("winner = %q, want 서울약국 (more characters)", winner)
		}
	})

	t.Run("all empty yields zero confidence", func(t *testing.T) {
		winner, conf := MajorityVote([]string{"", "", ""})
		if winner != "" || conf != 0 {
			t.Errorf("got (%q, %v), want (\"\", 0)", winner, conf)
		}
	})

	t.Run("empty shots count against confidence", func(t *testing.T) {
		winner, conf := MajorityVote([]string{"A", "A", ""})
		if winner != "A" {
			t.Errorf("winner = %q, want A", winner)
		}
		if !almostEqual(conf, 0.667) {
			t.Errorf("confidence = %v, want 0.667", conf)
		}
	})

	t.Run("confidence stays within bounds", func(t *testing.T) {
		inputs := [][]string{
			{"x"},
			{"x", "x", "x"},
			{"x", "y", "z", ""},
			{""},
		}
		for _, in := range inputs {
			_, conf := MajorityVote(in)
			if conf < 0 || conf > 1 {
				t.Errorf("confidence %v out of [0,1] for %v", conf, in)
			}
		}
	})

	t.Run("winner is order-insensitive", func(t *testing.T) {
		values := []string{"가나다", "가나", "가나다", "마바", "가나", "가나다"}
		want, _ := MajorityVote(values)

		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 50; i++ {
			shuffled := append([]string(nil), values...)
			rng.Shuffle(len(shuffled), func(a, b int) {
				shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
			})
			got, _ := MajorityVote(shuffled)
			if got != want {
				t.Fatalf("winner changed under permutation: %q vs %q", got, want)
			}
		}
	})
}

func TestDigitsOnly(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"45세", "45"},
		{"45", "45"},
		{"제2025-117호", "2025117"},
		{"없음", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := DigitsOnly(c.in); got != c.want {
			t.Errorf("DigitsOnly(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	t.Run("idempotent on digits-only input", func(t *testing.T) {
		s := DigitsOnly("2025117")
		if DigitsOnly(s) != s {
			t.Errorf("DigitsOnly not idempotent: %q", s)
		}
	})
}

func shotWith(patient, age string, meds ...extract.MedicineEntry) extract.ShotExtraction {
	return extract.ShotExtraction{
		PatientName: patient,
		Age:         age,
		Medicines:   meds,
		ParseOK:     true,
	}
}

func TestMerge(t *testing.T) {
	t.Run("age merges on digits", func(t *testing.T) {
		shots := []extract.ShotExtraction{
			shotWith("홍길동", "45"),
			shotWith("홍길동", "45세"),
			shotWith("홍길동", ""),
		}
		merged, diag := Merge(shots)
		if merged.Age != "45" {
			t.Errorf("Age = %q, want 45", merged.Age)
		}
		fd := diag.Fields[FieldAge]
		if !almostEqual(fd.Confidence, 0.667) {
			t.Errorf("age confidence = %v, want 0.667", fd.Confidence)
		}
		if len(fd.Normalized) != 3 || fd.Normalized[1] != "45" {
			t.Errorf("normalized = %v, want digits-only values", fd.Normalized)
		}
	})

	t.Run("prescription number falls back to raw vote without digits", func(t *testing.T) {
		shots := []extract.ShotExtraction{
			{PrescriptionNumber: "미기재", ParseOK: true},
			{PrescriptionNumber: "미기재", ParseOK: true},
			{ParseOK: true},
		}
		merged, diag := Merge(shots)
		if merged.PrescriptionNumber != "미기재" {
			t.Errorf("PrescriptionNumber = %q, want raw fallback winner", merged.PrescriptionNumber)
		}
		if !almostEqual(diag.Fields[FieldPrescriptionNumber].Confidence, 0.667) {
			t.Errorf("confidence = %v, want 0.667", diag.Fields[FieldPrescriptionNumber].Confidence)
		}
	})

	t.Run("unparseable shot lowers confidence but not winners", func(t *testing.T) {
		shots := []extract.ShotExtraction{
			shotWith("홍길동", "45"),
			shotWith("홍길동", "45"),
			{}, // parse failure: everything empty
		}
		merged, diag := Merge(shots)
		if merged.PatientName != "홍길동" {
			t.Errorf("PatientName = %q, want 홍길동", merged.PatientName)
		}
		if !almostEqual(diag.Fields[FieldPatientName].Confidence, 0.667) {
			t.Errorf("confidence = %v, want 0.667", diag.Fields[FieldPatientName].Confidence)
		}
	})

	t.Run("med_features sub-fields merge independently", func(t *testing.T) {
		shots := []extract.ShotExtraction{
			{MedFeatures: extract.MedFeatures{Description: "해열진통제", Cautions: "간질환 주의"}, ParseOK: true},
			{MedFeatures: extract.MedFeatures{Description: "해열진통제", Indications: "두통"}, ParseOK: true},
		}
		merged, diag := Merge(shots)
		if merged.MedFeatures.Description != "해열진통제" {
			t.Errorf("Description = %q", merged.MedFeatures.Description)
		}
		if merged.MedFeatures.Indications != "두통" {
			t.Errorf("Indications = %q", merged.MedFeatures.Indications)
		}
		if merged.MedFeatures.Cautions != "간질환 주의" {
			t.Errorf("Cautions = %q", merged.MedFeatures.Cautions)
		}
		if !almostEqual(diag.Fields[FieldDescription].Confidence, 1.0) {
			t.Errorf("description confidence = %v, want 1.0", diag.Fields[FieldDescription].Confidence)
		}
		if !almostEqual(diag.Fields[FieldIndications].Confidence, 0.5) {
			t.Errorf("indications confidence = %v, want 0.5", diag.Fields[FieldIndications].Confidence)
		}
	})

	t.Run("medicines dedupe case-insensitively with first-seen wins", func(t *testing.T) {
		shots := []extract.ShotExtraction{
			shotWith("", "",
				extract.MedicineEntry{MedicineName: "Tylenol ER", DosageInstructions: "1회 1정"},
				extract.MedicineEntry{MedicineName: "아모잘탄정"},
			),
			shotWith("", "",
				extract.MedicineEntry{MedicineName: "tylenol er", DosageInstructions: "1회 2정"},
				extract.MedicineEntry{MedicineName: ""}, // void entry
				extract.MedicineEntry{MedicineName: "알마겔정"},
			),
		}
		merged, diag := Merge(shots)
		if len(merged.Medicines) != 3 {
			t.Fatalf("len(Medicines) = %d, want 3", len(merged.Medicines))
		}
		if merged.Medicines[0].DosageInstructions != "1회 1정" {
			t.Errorf("first-seen dosage should win, got %q", merged.Medicines[0].DosageInstructions)
		}
		if diag.Medicines.Count != 3 {
			t.Errorf("diagnostics count = %d, want 3", diag.Medicines.Count)
		}
		wantNames := []string{"Tylenol ER", "아모잘탄정", "알마겔정"}
		for i, name := range wantNames {
			if diag.Medicines.Names[i] != name {
				t.Errorf("Names[%d] = %q, want %q", i, diag.Medicines.Names[i], name)
			}
		}
	})

	t.Run("empty batch yields empty record", func(t *testing.T) {
		merged, diag := Merge(nil)
		if merged.PatientName != "" || len(merged.Medicines) != 0 {
			t.Errorf("expected empty merge, got %+v", merged)
		}
		for name, fd := range diag.Fields {
			if fd.Confidence != 0 {
				t.Errorf("field %s confidence = %v, want 0", name, fd.Confidence)
			}
		}
	})
}
