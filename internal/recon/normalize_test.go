package recon

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gstrecon/internal"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// invoice builds a consistent record: taxable + cgst + sgst + igst = total.
func invoice(gstin, number string, date time.Time, taxable, cgst, sgst, igst, total string) internal.InvoiceRecord {
	return internal.InvoiceRecord{
		SourceID:      number,
		SupplierGSTIN: gstin,
		InvoiceNumber: number,
		InvoiceDate:   date,
		TaxableValue:  amt(taxable),
		CGST:          amt(cgst),
		SGST:          amt(sgst),
		IGST:          amt(igst),
		TotalAmount:   amt(total),
		Status:        internal.StatusOK,
	}
}

func TestNormalizeRecord(t *testing.T) {
	rec := internal.InvoiceRecord{
		SupplierGSTIN: " 27aaaaa0000a1z5 ",
		InvoiceNumber: "  inv-001 ",
		RawDate:       "15/04/2025",
		TaxableValue:  amt("1000.005"),
		TotalAmount:   amt("1180"),
	}
	got := NormalizeRecord(rec)

	if got.SupplierGSTIN != "27AAAAA0000A1Z5" {
		t.Fatalf("gstin: %q", got.SupplierGSTIN)
	}
	if got.InvoiceNumber != "inv-001" {
		t.Fatalf("display invoice number should only lose outer whitespace: %q", got.InvoiceNumber)
	}
	if !got.InvoiceDate.Equal(day(2025, 4, 15)) {
		t.Fatalf("date: %v", got.InvoiceDate)
	}
	if !got.TaxableValue.Equal(amt("1000.01")) {
		t.Fatalf("taxable should round to 2 digits: %s", got.TaxableValue)
	}
	if got.Status != internal.StatusOK {
		t.Fatalf("status: %q", got.Status)
	}
	if len(got.Flags) != 0 {
		t.Fatalf("unexpected flags: %v", got.Flags)
	}
}

func TestNormalizeRecordIdempotent(t *testing.T) {
	records := []internal.InvoiceRecord{
		invoice("27AAAAA0000A1Z5", "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
		{SupplierGSTIN: "bogus", InvoiceNumber: "x", RawDate: "garbage"},
		{SupplierGSTIN: "27aaaaa0000a1z5", TaxableValue: amt("-5")},
	}
	for i, rec := range records {
		once := NormalizeRecord(rec)
		twice := NormalizeRecord(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("record %d: normalize not idempotent:\nonce:  %+v\ntwice: %+v", i, once, twice)
		}
	}
}

func TestNormalizeFlagsInvalidGSTIN(t *testing.T) {
	got := NormalizeRecord(internal.InvoiceRecord{SupplierGSTIN: "NOT-A-GSTIN"})
	if !hasFlag(got.Flags, FlagInvalidGSTIN) {
		t.Fatalf("expected %s flag, got %v", FlagInvalidGSTIN, got.Flags)
	}
	if got.Status == internal.StatusError {
		t.Fatalf("invalid GSTIN must not error the record")
	}
}

func TestNormalizeBadDateErrorsRecord(t *testing.T) {
	got := NormalizeRecord(internal.InvoiceRecord{SupplierGSTIN: "27AAAAA0000A1Z5", RawDate: "32/13/20xx"})
	if got.Status != internal.StatusError {
		t.Fatalf("status: %q", got.Status)
	}
	if !hasFlag(got.Flags, FlagBadDate) {
		t.Fatalf("expected %s flag, got %v", FlagBadDate, got.Flags)
	}
}

func TestNormalizeCoercesNegativeAmounts(t *testing.T) {
	got := NormalizeRecord(internal.InvoiceRecord{TaxableValue: amt("-100"), TotalAmount: amt("50")})
	if !got.TaxableValue.IsZero() {
		t.Fatalf("negative amount should coerce to zero, got %s", got.TaxableValue)
	}
	if !hasFlag(got.Flags, FlagCoercedAmount) {
		t.Fatalf("expected %s flag, got %v", FlagCoercedAmount, got.Flags)
	}
}

func TestKeyOf(t *testing.T) {
	a := internal.InvoiceRecord{SupplierGSTIN: "27aaaaa0000a1z5", InvoiceNumber: "inv-001"}
	b := internal.InvoiceRecord{SupplierGSTIN: "27AAAAA0000A1Z5", InvoiceNumber: "INV001"}
	if KeyOf(a) != KeyOf(b) {
		t.Fatalf("keys differ: %+v vs %+v", KeyOf(a), KeyOf(b))
	}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
