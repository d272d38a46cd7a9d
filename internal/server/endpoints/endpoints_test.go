package endpoints

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carepill/pillscan/internal/catalog"
	"github.com/carepill/pillscan/internal/meds"
	"github.com/carepill/pillscan/internal/scan"
	"github.com/carepill/pillscan/internal/svcctx"
	"github.com/carepill/pillscan/internal/vision"
)

const shotResponse = `{
	"patient_name": "홍길동",
	"age": "45",
	"dispense_date": "2026.08.30",
	"pharmacy_name": "온누리약국",
	"hospital_name": "서울내과의원",
	"prescription_number": "2026-1234",
	"medicines": [
		{"medicine_name": "타이레놀정500밀리그램", "dosage_instructions": "1정", "frequency": "1일 3회"}
	],
	"med_features": {"description": "해열진통제", "indications": "발열", "cautions": "과다복용 주의"}
}`

func testServices(t *testing.T, responses ...string) *svcctx.Services {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.NewStore(db)
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}
	if err := cat.Upsert(context.Background(), catalog.Entry{
		ID: "100", CanonicalName: "타이레놀정500밀리그램", Manufacturer: "한국존슨앤드존슨판매",
	}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	store, err := meds.NewStore(db)
	if err != nil {
		t.Fatalf("meds.NewStore() error = %v", err)
	}

	reg := vision.NewRegistry(vision.RegistryConfig{})
	reg.Register("mock", vision.NewMockExtractor(responses...))

	reconciler := meds.NewReconciler(cat, store, slog.Default())
	return &svcctx.Services{
		Catalog:  cat,
		Meds:     store,
		Vision:   reg,
		Pipeline: scan.NewPipeline(reconciler, slog.Default()),
		Logger:   slog.Default(),
	}
}

// serve runs one request through an endpoint with services attached.
func serve(t *testing.T, services *svcctx.Services, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req = req.WithContext(svcctx.WithServices(req.Context(), services))
	handler(rec, req)
	return rec
}

func scanBody(t *testing.T, userID string, shots int) *bytes.Reader {
	t.Helper()
	img := base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
	req := ScanRequest{UserID: userID}
	for i := 0; i < shots; i++ {
		req.Images = append(req.Images, img)
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(body)
}

func TestScanEndpoint(t *testing.T) {
	ep := &ScanEndpoint{}

	t.Run("scans and reconciles", func(t *testing.T) {
		services := testServices(t, shotResponse)
		req := httptest.NewRequest("POST", "/api/scan/envelope", scanBody(t, "user-1", 3))
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		var outcome scan.Outcome
		if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
			t.Fatalf("decode outcome: %v", err)
		}
		if outcome.AnalysisType != "envelope" || len(outcome.Shots) != 3 {
			t.Fatalf("unexpected outcome: type=%s shots=%d", outcome.AnalysisType, len(outcome.Shots))
		}
		if outcome.Reconciliation == nil || outcome.Reconciliation.Created != 1 {
			t.Fatalf("reconciliation = %+v", outcome.Reconciliation)
		}

		recs, err := services.Meds.ListActive(req.Context(), "user-1")
		if err != nil || len(recs) != 1 {
			t.Fatalf("medication rows = %v, %v", recs, err)
		}
		if recs[0].PrescriptionDate != "2026-08-30" {
			t.Errorf("date not normalized: %q", recs[0].PrescriptionDate)
		}
	})

	t.Run("rejects empty image list", func(t *testing.T) {
		services := testServices(t, shotResponse)
		req := httptest.NewRequest("POST", "/api/scan/envelope", scanBody(t, "user-1", 0))
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		services := testServices(t, shotResponse)
		body, _ := json.Marshal(ScanRequest{UserID: "u", Images: []string{"not-base64!!!"}})
		req := httptest.NewRequest("POST", "/api/scan/envelope", bytes.NewReader(body))
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("accepts data url images", func(t *testing.T) {
		services := testServices(t, shotResponse)
		img := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake"))
		body, _ := json.Marshal(ScanRequest{Images: []string{img}})
		req := httptest.NewRequest("POST", "/api/scan/envelope", bytes.NewReader(body))
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("errors when no provider is configured", func(t *testing.T) {
		services := testServices(t, shotResponse)
		services.Vision = vision.NewRegistry(vision.RegistryConfig{})
		req := httptest.NewRequest("POST", "/api/scan/envelope", scanBody(t, "user-1", 1))
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestMedicationEndpoints(t *testing.T) {
	services := testServices(t, shotResponse)
	ctx := context.Background()

	// Seed one medication through the reconciler path.
	scanReq := httptest.NewRequest("POST", "/api/scan/envelope", scanBody(t, "user-1", 1))
	scanEp := &ScanEndpoint{}
	if rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { scanEp.handler(w, r) }, scanReq); rec.Code != http.StatusOK {
		t.Fatalf("seed scan failed: %d %s", rec.Code, rec.Body.String())
	}

	recs, err := services.Meds.ListActive(ctx, "user-1")
	if err != nil || len(recs) != 1 {
		t.Fatalf("seed rows = %v, %v", recs, err)
	}
	medID := recs[0].ID

	t.Run("list requires user_id", func(t *testing.T) {
		ep := &ListMedicationsEndpoint{}
		req := httptest.NewRequest("GET", "/api/medications", nil)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("list returns active medications", func(t *testing.T) {
		ep := &ListMedicationsEndpoint{}
		req := httptest.NewRequest("GET", "/api/medications?user_id=user-1", nil)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp MedicationListResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 || len(resp.Medications) != 1 {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("complete marks and hides the medication", func(t *testing.T) {
		ep := &CompleteMedicationEndpoint{}
		req := httptest.NewRequest("POST", "/api/medications/"+medID+"/complete", nil)
		req.SetPathValue("id", medID)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		after, _ := services.Meds.ListActive(ctx, "user-1")
		if len(after) != 0 {
			t.Fatalf("completed medication still active: %+v", after)
		}
	})

	t.Run("complete unknown id returns 404", func(t *testing.T) {
		ep := &CompleteMedicationEndpoint{}
		req := httptest.NewRequest("POST", "/api/medications/nope/complete", nil)
		req.SetPathValue("id", "nope")
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		ep := &DeleteMedicationEndpoint{}
		req := httptest.NewRequest("DELETE", "/api/medications/"+medID, nil)
		req.SetPathValue("id", medID)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec2, _ := services.Meds.Get(ctx, medID); rec2 != nil {
			t.Fatalf("row survived delete: %+v", rec2)
		}
	})
}

func TestCatalogSearchEndpoint(t *testing.T) {
	services := testServices(t)
	ep := &CatalogSearchEndpoint{}

	t.Run("finds by partial name", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/catalog/search?q=타이레놀", nil)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp CatalogSearchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 1 || resp.Matches[0].ID != "100" {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("miss returns empty matches", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/catalog/search?q=없는약", nil)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		var resp CatalogSearchResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Count != 0 || len(resp.Matches) != 0 {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("requires q", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/catalog/search", nil)
		rec := serve(t, services, func(w http.ResponseWriter, r *http.Request) { ep.handler(w, r) }, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	ep := &HealthEndpoint{}
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	_, _, handler := ep.Route()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q", resp.Status)
	}
}
