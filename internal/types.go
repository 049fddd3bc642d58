package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordStatus is set by the upstream extractor or by normalization.
type RecordStatus string

const (
	StatusOK      RecordStatus = "ok"
	StatusError   RecordStatus = "error"
	StatusPending RecordStatus = "pending"
)

type InvoiceOrigin string

const (
	OriginExtracted InvoiceOrigin = "extracted"
	OriginGSTR2B    InvoiceOrigin = "gstr2b"
)

// GSTR2BSource identifies how the GSTR2B collection reached the session.
type GSTR2BSource string

const (
	GSTR2BManualUpload GSTR2BSource = "manual"
	GSTR2BGovtAPI      GSTR2BSource = "govt_api"
)

// InvoiceRecord is one invoice from either side of the reconciliation.
// Money fields are fixed-point with two-digit precision after normalization.
type InvoiceRecord struct {
	SourceID        string          `json:"source_id"`
	SupplierGSTIN   string          `json:"supplier_gstin"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     time.Time       `json:"invoice_date"`
	RawDate         string          `json:"raw_date,omitempty"`
	TaxableValue    decimal.Decimal `json:"taxable_value"`
	CGST            decimal.Decimal `json:"cgst"`
	SGST            decimal.Decimal `json:"sgst"`
	IGST            decimal.Decimal `json:"igst"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ExpenseCategory string          `json:"expense_category,omitempty"`
	Status          RecordStatus    `json:"status"`
	// Flags carries non-fatal validation findings (bad GSTIN layout,
	// coerced amount, unparseable date). Never aborts a batch.
	Flags []string `json:"flags,omitempty"`
}

// HasDate reports whether the record carries a parseable invoice date.
func (r InvoiceRecord) HasDate() bool {
	return !r.InvoiceDate.IsZero()
}

type IssueSeverity string

const (
	SeverityMinor IssueSeverity = "minor"
	SeverityMajor IssueSeverity = "major"
)

// Issue is one field-level discrepancy on a matched pair.
type Issue struct {
	Field     string        `json:"field"`
	Extracted string        `json:"extracted"`
	Reported  string        `json:"reported"`
	Severity  IssueSeverity `json:"severity"`
	Message   string        `json:"message"`
}

// MatchPair relates exactly one extracted record to one GSTR2B record.
type MatchPair struct {
	Extracted  InvoiceRecord `json:"extracted"`
	GSTR2B     InvoiceRecord `json:"gstr2b"`
	MatchScore float64       `json:"match_score"`
	Issues     []Issue       `json:"issues"`
}

// Discrepant reports whether the pair carries at least one issue,
// regardless of score magnitude.
func (p MatchPair) Discrepant() bool {
	return len(p.Issues) > 0
}

type ResidueOrigin string

const (
	MissingFromGSTR2B ResidueOrigin = "missing_from_gstr2b"
	ExtraInGSTR2B     ResidueOrigin = "extra_in_gstr2b"
)

// Residue is a record from either side that could not be paired.
type Residue struct {
	Record InvoiceRecord `json:"record"`
	Origin ResidueOrigin `json:"origin"`
	Reason string        `json:"reason"`
}

type ComplianceStatus string

const (
	Compliant          ComplianceStatus = "COMPLIANT"
	MinorDiscrepancies ComplianceStatus = "MINOR_DISCREPANCIES"
	MajorDiscrepancies ComplianceStatus = "MAJOR_DISCREPANCIES"
	NonCompliant       ComplianceStatus = "NON_COMPLIANT"
)

// Summary holds the aggregate counts of one reconciliation run.
type Summary struct {
	TotalInvoicesExtracted int              `json:"total_invoices_extracted"`
	TotalInvoicesGSTR2B    int              `json:"total_invoices_gstr2b"`
	SuccessfullyMatched    int              `json:"successfully_matched"`
	DiscrepanciesFound     int              `json:"discrepancies_found"`
	MissingFromGSTR2B      int              `json:"missing_from_gstr2b"`
	ExtraInGSTR2B          int              `json:"extra_in_gstr2b"`
	ComplianceStatus       ComplianceStatus `json:"compliance_status"`
}

// MismatchDetail is one discrepant pair in report detail form.
type MismatchDetail struct {
	InvoiceNumber string   `json:"invoice_number"`
	MatchScore    float64  `json:"match_score"`
	Issues        []string `json:"issues"`
}

type ReportDetail struct {
	Mismatches []MismatchDetail `json:"mismatches"`
}

// ReportCard is the immutable outcome of a reconciliation run.
type ReportCard struct {
	Summary Summary      `json:"summary"`
	Detail  ReportDetail `json:"detail"`

	Pairs   []MatchPair `json:"pairs"`
	Missing []Residue   `json:"missing"`
	Extra   []Residue   `json:"extra"`
}

// SessionStage drives which operations are legal on a session.
// Transitions are strictly forward.
type SessionStage string

const (
	StageExtracted     SessionStage = "extracted"
	StageGSTR2BPending SessionStage = "gstr2b_pending"
	StageMismatchReady SessionStage = "mismatch_ready"
	StageReported      SessionStage = "reported"
)

// FetchedMailMessage is one raw message pulled from an invoice inbox.
type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// DocumentRow is an uploaded or mail-fetched source document awaiting extraction.
type DocumentRow struct {
	ID         int
	ClientName string
	Period     string
	Filename   string
	Hash       string
	Status     string
	RawRef     string
	ReceivedAt string
}
