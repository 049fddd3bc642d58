package recon

import (
	"github.com/shopspring/decimal"

	"gstrecon/internal"
	"gstrecon/internal/util"
)

// Validation flags recorded on a record during normalization. These never
// abort a batch: the record stays in the collection and surfaces as a
// residue or discrepancy instead.
const (
	FlagInvalidGSTIN  = "invalid_gstin_format"
	FlagCoercedAmount = "coerced_amount"
	FlagBadDate       = "unparseable_date"
)

// Key is the deterministic lookup key for exact matching.
type Key struct {
	GSTIN         string
	InvoiceNumber string
}

// KeyOf derives the comparison key without mutating the record.
func KeyOf(rec internal.InvoiceRecord) Key {
	return Key{
		GSTIN:         util.NormalizeGSTIN(rec.SupplierGSTIN),
		InvoiceNumber: util.NormalizeInvoiceNumber(rec.InvoiceNumber),
	}
}

// NormalizeRecord canonicalizes a record so two representations of the same
// invoice compare equal-ish. It is idempotent: normalizing an already
// normalized record changes nothing.
//
// GSTIN is uppercased and stripped of whitespace; a value off the statutory
// layout is flagged low-confidence rather than rejected, since upstream
// extraction may be imperfect. The invoice number keeps its display form
// (trimmed); key comparison goes through KeyOf. A raw date that fails every
// accepted layout marks the record status=error, which excludes it from
// key-based matching but keeps it reportable as a residue. Negative or
// previously unparseable amounts are coerced to zero and flagged.
func NormalizeRecord(rec internal.InvoiceRecord) internal.InvoiceRecord {
	out := rec

	out.SupplierGSTIN = util.NormalizeGSTIN(rec.SupplierGSTIN)
	if out.SupplierGSTIN != "" && !util.ValidGSTIN(out.SupplierGSTIN) {
		out.Flags = addFlag(out.Flags, FlagInvalidGSTIN)
	}

	out.InvoiceNumber = util.NormalizeSpaces(rec.InvoiceNumber)

	if out.InvoiceDate.IsZero() && out.RawDate != "" {
		if parsed, ok := util.ParseDate(out.RawDate); ok {
			out.InvoiceDate = parsed
		} else {
			out.Status = internal.StatusError
			out.Flags = addFlag(out.Flags, FlagBadDate)
		}
	}

	coerced := false
	out.TaxableValue, coerced = clampAmount(out.TaxableValue, coerced)
	out.CGST, coerced = clampAmount(out.CGST, coerced)
	out.SGST, coerced = clampAmount(out.SGST, coerced)
	out.IGST, coerced = clampAmount(out.IGST, coerced)
	out.TotalAmount, coerced = clampAmount(out.TotalAmount, coerced)
	if coerced {
		out.Flags = addFlag(out.Flags, FlagCoercedAmount)
	}

	if out.Status == "" {
		out.Status = internal.StatusOK
	}

	return out
}

// NormalizeAll normalizes every record, preserving insertion order.
func NormalizeAll(records []internal.InvoiceRecord) []internal.InvoiceRecord {
	out := make([]internal.InvoiceRecord, len(records))
	for i, rec := range records {
		out[i] = NormalizeRecord(rec)
	}
	return out
}

func clampAmount(d decimal.Decimal, already bool) (decimal.Decimal, bool) {
	if d.IsNegative() {
		// Rounded so the coerced zero re-normalizes to itself.
		return decimal.Zero.Round(2), true
	}
	return d.Round(2), already
}

func addFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}
