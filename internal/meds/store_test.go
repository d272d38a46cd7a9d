package meds

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func testStoreDB(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store, db
}

func TestApply(t *testing.T) {
	store, _ := testStoreDB(t)
	ctx := context.Background()

	in := Incoming{
		UserID:           "user-1",
		CatalogID:        "cat-1",
		Dosage:           "1정",
		Frequency:        "1일 2회",
		PharmacyName:     "온누리약국",
		PrescriptionDate: "2026-08-30",
	}

	t.Run("first apply creates the row", func(t *testing.T) {
		created, changed, err := store.Apply(ctx, in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !created || len(changed) != 0 {
			t.Fatalf("got created=%v changed=%v, want created with no changes", created, changed)
		}
	})

	t.Run("identical apply is a no-op", func(t *testing.T) {
		created, changed, err := store.Apply(ctx, in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if created || len(changed) != 0 {
			t.Fatalf("got created=%v changed=%v, want unchanged", created, changed)
		}
		n, _ := store.CountForUser(ctx, "user-1")
		if n != 1 {
			t.Fatalf("row count = %d, want 1", n)
		}
	})

	t.Run("empty incoming values never clear stored ones", func(t *testing.T) {
		created, changed, err := store.Apply(ctx, Incoming{
			UserID: "user-1", CatalogID: "cat-1",
			Dosage: "", Frequency: "", PharmacyName: "", PrescriptionDate: "",
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if created || len(changed) != 0 {
			t.Fatalf("got created=%v changed=%v, want unchanged", created, changed)
		}

		recs, err := store.ListActive(ctx, "user-1")
		if err != nil {
			t.Fatalf("ListActive() error = %v", err)
		}
		if len(recs) != 1 || recs[0].Frequency != "1일 2회" {
			t.Fatalf("stored values clobbered: %+v", recs)
		}
	})

	t.Run("non-empty differing values update only those fields", func(t *testing.T) {
		created, changed, err := store.Apply(ctx, Incoming{
			UserID: "user-1", CatalogID: "cat-1",
			Dosage:    "2정",
			Frequency: "1일 2회", // same as stored
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if created {
			t.Fatal("unexpected create")
		}
		if len(changed) != 1 || changed[0] != FieldDosage {
			t.Fatalf("changed = %v, want [dosage]", changed)
		}

		recs, _ := store.ListActive(ctx, "user-1")
		if recs[0].Dosage != "2정" || recs[0].PharmacyName != "온누리약국" {
			t.Fatalf("unexpected row after update: %+v", recs[0])
		}
	})

	t.Run("different catalog id creates a second row", func(t *testing.T) {
		created, _, err := store.Apply(ctx, Incoming{UserID: "user-1", CatalogID: "cat-2"})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !created {
			t.Fatal("expected create for new catalog id")
		}
		n, _ := store.CountForUser(ctx, "user-1")
		if n != 2 {
			t.Fatalf("row count = %d, want 2", n)
		}
	})
}

func TestCompleteAndDelete(t *testing.T) {
	store, _ := testStoreDB(t)
	ctx := context.Background()

	if _, _, err := store.Apply(ctx, Incoming{UserID: "u", CatalogID: "c"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	recs, err := store.ListActive(ctx, "u")
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListActive() = %v, %v", recs, err)
	}
	id := recs[0].ID

	ok, err := store.Complete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Complete() = %v, %v", ok, err)
	}
	recs, _ = store.ListActive(ctx, "u")
	if len(recs) != 0 {
		t.Fatalf("completed row still listed: %+v", recs)
	}

	rec, err := store.Get(ctx, id)
	if err != nil || rec == nil || !rec.IsCompleted {
		t.Fatalf("Get() after complete = %+v, %v", rec, err)
	}

	ok, err = store.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	ok, err = store.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if ok {
		t.Fatal("second Delete() reported a match")
	}
	if rec, _ := store.Get(ctx, id); rec != nil {
		t.Fatalf("row survived delete: %+v", rec)
	}
}
