package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"
)

func openTestDB(t *testing.T) *DiagnosisRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history", "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return NewDiagnosisRepository(db)
}

func TestDiagnosisRepository_SaveAndList(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	healthy := true
	records := []*DiagnosisRecord{
		{DiagnosisID: "a", Outcome: "not_target_species", LeafType: "not_target_species", Result: datatypes.JSON(`{"leafType":"not_target_species"}`), CreatedAt: base},
		{DiagnosisID: "b", Outcome: "healthy", LeafType: "target_species", IsHealthy: &healthy, Result: datatypes.JSON(`{"isHealthy":true}`), CreatedAt: base.Add(time.Minute)},
		{DiagnosisID: "c", Outcome: "full_diagnosis", LeafType: "target_species", Disease: "Brown Blight", Accuracy: 91.5, Severity: "Mild", Method: "model-based", Result: datatypes.JSON(`{}`), CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.DiagnosisID, err)
		}
	}

	got, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].DiagnosisID != "c" || got[1].DiagnosisID != "b" {
		t.Fatalf("unexpected order: %s, %s", got[0].DiagnosisID, got[1].DiagnosisID)
	}
	if got[0].Accuracy != 91.5 || got[0].Disease != "Brown Blight" {
		t.Fatalf("unexpected record %+v", got[0])
	}
	if got[1].IsHealthy == nil || !*got[1].IsHealthy {
		t.Fatal("expected healthy flag to round-trip")
	}
}

func TestDiagnosisRepository_FindByID(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	if err := repo.Save(ctx, &DiagnosisRecord{DiagnosisID: "x", Outcome: "healthy", LeafType: "target_species", Result: datatypes.JSON(`{}`)}); err != nil {
		t.Fatalf("save: %v", err)
	}

	found, err := repo.FindByID(ctx, "x")
	if err != nil || found == nil {
		t.Fatalf("expected record, got %v, %v", found, err)
	}
	if found.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	missing, err := repo.FindByID(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing record, got %v, %v", missing, err)
	}
}

func TestDiagnosisRepository_CountByOutcome(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	for i, outcome := range []string{"healthy", "healthy", "full_diagnosis"} {
		rec := &DiagnosisRecord{DiagnosisID: string(rune('a' + i)), Outcome: outcome, LeafType: "target_species", Result: datatypes.JSON(`{}`)}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	counts, err := repo.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["healthy"] != 2 || counts["full_diagnosis"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		history, err := NewMigrationManager(db).GetMigrationHistory()
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("expected one applied migration, got %d", len(history))
		}
		Close(db)
	}
}
