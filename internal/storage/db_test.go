package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gstrecon/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDocumentLifecycle(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertDocument("Acme Traders", "2025-04", "invoice.pdf", "hash-1", "/tmp/hash-1_invoice.pdf", "received")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if row.ID == 0 {
		t.Fatalf("expected an assigned id")
	}

	got, err := db.GetDocumentByID(row.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got == nil || got.Hash != "hash-1" || got.ClientName != "Acme Traders" {
		t.Fatalf("got %+v", got)
	}

	// Re-upserting the same hash keeps the row, it does not duplicate it.
	again, err := db.UpsertDocument("Acme Traders", "2025-05", "invoice.pdf", "hash-1", "/tmp/hash-1_invoice.pdf", "received")
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if again.ID != row.ID {
		t.Fatalf("re-upsert created a new row: %d vs %d", again.ID, row.ID)
	}
	if again.Period != "2025-05" {
		t.Fatalf("period not updated: %q", again.Period)
	}

	pending, err := db.ListDocumentsByStatus("received", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending: %d", len(pending))
	}

	if err := db.UpdateDocumentStatus(row.ID, "extracted"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	pending, err = db.ListDocumentsByStatus("received", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("still pending after status change: %+v", pending)
	}
}

func TestDocumentLookupMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetDocumentByID(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for a missing document, got %+v", got)
	}
}

func TestInvoicesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveSessionState("sess-1", "Acme Traders", "2025-04", internal.StageExtracted, ""); err != nil {
		t.Fatalf("save session: %v", err)
	}

	records := []internal.InvoiceRecord{{
		SourceID:      "scan-1",
		SupplierGSTIN: "27AAAAA0000A1Z5",
		InvoiceNumber: "INV-001",
		InvoiceDate:   time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		TaxableValue:  decimal.RequireFromString("1000"),
		TotalAmount:   decimal.RequireFromString("1180"),
		Status:        internal.StatusOK,
	}}
	if err := db.SaveInvoices("sess-1", internal.OriginExtracted, records); err != nil {
		t.Fatalf("save invoices: %v", err)
	}

	loaded, err := db.LoadInvoices("sess-1", internal.OriginExtracted)
	if err != nil {
		t.Fatalf("load invoices: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded: %d", len(loaded))
	}
	if loaded[0].InvoiceNumber != "INV-001" || !loaded[0].TotalAmount.Equal(records[0].TotalAmount) {
		t.Fatalf("round trip mangled the record: %+v", loaded[0])
	}

	other, err := db.LoadInvoices("sess-1", internal.OriginGSTR2B)
	if err != nil {
		t.Fatalf("load gstr2b: %v", err)
	}
	if other != nil {
		t.Fatalf("expected nil for an origin never saved, got %+v", other)
	}
}

func TestReportRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveSessionState("sess-2", "Acme Traders", "2025-04", internal.StageReported, internal.GSTR2BManualUpload); err != nil {
		t.Fatalf("save session: %v", err)
	}

	card := internal.ReportCard{
		Summary: internal.Summary{
			TotalInvoicesExtracted: 2,
			TotalInvoicesGSTR2B:    2,
			SuccessfullyMatched:    2,
			ComplianceStatus:       internal.Compliant,
		},
	}
	if err := db.SaveReport("sess-2", card); err != nil {
		t.Fatalf("save report: %v", err)
	}

	loaded, err := db.LoadReport("sess-2")
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	if loaded == nil || loaded.Summary.ComplianceStatus != internal.Compliant || loaded.Summary.SuccessfullyMatched != 2 {
		t.Fatalf("round trip mangled the report: %+v", loaded)
	}

	missing, err := db.LoadReport("sess-none")
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for a session without a report")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetMetadata("cursor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before any set, got %q", *got)
	}

	if err := db.SetMetadata("cursor", "a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMetadata("cursor", "b"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err = db.GetMetadata("cursor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || *got != "b" {
		t.Fatalf("got %v", got)
	}
}
