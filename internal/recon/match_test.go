package recon

import (
	"reflect"
	"testing"

	"gstrecon/internal"
)

const (
	gstinA = "27AAAAA0000A1Z5"
	gstinB = "29ABCDE1234F1Z8"
)

func TestMatchExactKey(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice("27aaaaa0000a1z5", "inv001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, missing, extra := m.Match(NormalizeAll(extracted), NormalizeAll(gstr2b))

	if len(pairs) != 1 || len(missing) != 0 || len(extra) != 0 {
		t.Fatalf("pairs=%d missing=%d extra=%d", len(pairs), len(missing), len(extra))
	}
	if pairs[0].GSTR2B.InvoiceNumber != "inv001" {
		t.Fatalf("paired wrong record: %+v", pairs[0].GSTR2B)
	}
}

func TestMatchConsumesEachGSTR2BOnce(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
		invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, missing, extra := m.Match(extracted, gstr2b)

	if len(pairs) != 1 || len(missing) != 1 || len(extra) != 0 {
		t.Fatalf("pairs=%d missing=%d extra=%d", len(pairs), len(missing), len(extra))
	}
}

func TestMatchFuzzyWithinSupplier(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-0012", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinA, "INV/12", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, missing, _ := m.Match(extracted, gstr2b)

	if len(pairs) != 1 {
		t.Fatalf("expected fuzzy pair, missing=%v", missing)
	}
}

func TestMatchNoFuzzyAcrossSuppliers(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinB, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, missing, extra := m.Match(extracted, gstr2b)

	if len(pairs) != 0 || len(missing) != 1 || len(extra) != 1 {
		t.Fatalf("pairs=%d missing=%d extra=%d", len(pairs), len(missing), len(extra))
	}
	if missing[0].Origin != internal.MissingFromGSTR2B {
		t.Fatalf("missing origin: %s", missing[0].Origin)
	}
	if extra[0].Origin != internal.ExtraInGSTR2B {
		t.Fatalf("extra origin: %s", extra[0].Origin)
	}
}

func TestMatchErrorRecordsBecomeResidues(t *testing.T) {
	bad := invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180")
	bad.Status = internal.StatusError
	good := invoice(gstinA, "INV-001", day(2025, 4, 15), "1000", "90", "90", "0", "1180")

	m := NewMatcher(DefaultConfig())
	pairs, missing, extra := m.Match([]internal.InvoiceRecord{bad}, []internal.InvoiceRecord{good})

	if len(pairs) != 0 {
		t.Fatalf("error record must not match, got %d pairs", len(pairs))
	}
	if len(missing) != 1 || missing[0].Reason != reasonExtractionFailed {
		t.Fatalf("missing: %+v", missing)
	}
	if len(extra) != 1 {
		t.Fatalf("the unmatched GSTR2B record must surface as extra")
	}
}

func TestMatchFuzzyTieBreaksLexicographic(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-100", day(2025, 4, 15), "500", "0", "0", "0", "500"),
	}
	// Two candidates with equal similarity, amount and date; the smaller
	// normalized invoice number must win.
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinA, "INV-100B", day(2025, 4, 15), "500", "0", "0", "0", "500"),
		invoice(gstinA, "INV-100A", day(2025, 4, 15), "500", "0", "0", "0", "500"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, _, _ := m.Match(extracted, gstr2b)

	if len(pairs) != 1 {
		t.Fatalf("expected one pair, got %d", len(pairs))
	}
	if pairs[0].GSTR2B.InvoiceNumber != "INV-100A" {
		t.Fatalf("tie-break picked %s", pairs[0].GSTR2B.InvoiceNumber)
	}
}

func TestMatchConservationAndOneToOne(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-001", day(2025, 4, 1), "100", "9", "9", "0", "118"),
		invoice(gstinA, "INV-002", day(2025, 4, 2), "200", "18", "18", "0", "236"),
		invoice(gstinB, "INV-003", day(2025, 4, 3), "300", "0", "0", "54", "354"),
		invoice(gstinB, "INV-004", day(2025, 4, 4), "400", "36", "36", "0", "472"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinA, "INV-002", day(2025, 4, 2), "200", "18", "18", "0", "236"),
		invoice(gstinB, "INV-003", day(2025, 4, 3), "300", "0", "0", "54", "354"),
		invoice(gstinB, "INV-999", day(2025, 4, 9), "900", "81", "81", "0", "1062"),
	}

	m := NewMatcher(DefaultConfig())
	pairs, missing, extra := m.Match(extracted, gstr2b)

	if len(pairs)+len(missing) != len(extracted) {
		t.Fatalf("conservation broken on extracted side: %d+%d != %d", len(pairs), len(missing), len(extracted))
	}
	if len(pairs)+len(extra) != len(gstr2b) {
		t.Fatalf("conservation broken on gstr2b side: %d+%d != %d", len(pairs), len(extra), len(gstr2b))
	}

	seen := map[string]bool{}
	for _, p := range pairs {
		if seen[p.GSTR2B.SourceID] {
			t.Fatalf("GSTR2B record %s used twice", p.GSTR2B.SourceID)
		}
		seen[p.GSTR2B.SourceID] = true
	}
}

func TestMatchDeterministic(t *testing.T) {
	extracted := []internal.InvoiceRecord{
		invoice(gstinA, "INV-010", day(2025, 4, 1), "100", "9", "9", "0", "118"),
		invoice(gstinA, "INV-011", day(2025, 4, 2), "100", "9", "9", "0", "118"),
		invoice(gstinA, "INV-012", day(2025, 4, 3), "100", "9", "9", "0", "118"),
	}
	gstr2b := []internal.InvoiceRecord{
		invoice(gstinA, "INV-10", day(2025, 4, 1), "100", "9", "9", "0", "118"),
		invoice(gstinA, "INV-11", day(2025, 4, 2), "100", "9", "9", "0", "118"),
		invoice(gstinA, "INV-13", day(2025, 4, 4), "100", "9", "9", "0", "118"),
	}

	m := NewMatcher(DefaultConfig())
	firstPairs, firstMissing, firstExtra := m.Match(extracted, gstr2b)
	for i := 0; i < 10; i++ {
		pairs, missing, extra := m.Match(extracted, gstr2b)
		if !reflect.DeepEqual(pairs, firstPairs) || !reflect.DeepEqual(missing, firstMissing) || !reflect.DeepEqual(extra, firstExtra) {
			t.Fatalf("run %d diverged", i)
		}
	}
}
