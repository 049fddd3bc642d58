package recon

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"gstrecon/internal"
	"gstrecon/internal/util"
)

// Per-field weights of the match score. They sum to 1.0, so a pair with
// every field inside tolerance scores exactly 1.
var scoreWeights = map[string]float64{
	"supplier_gstin": 0.15,
	"invoice_number": 0.25,
	"invoice_date":   0.15,
	"taxable_value":  0.10,
	"cgst":           0.07,
	"sgst":           0.07,
	"igst":           0.07,
	"total_amount":   0.14,
}

type Evaluator struct {
	cfg Config
	log *logrus.Logger
}

func NewEvaluator(cfg Config, log *logrus.Logger) *Evaluator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Evaluator{cfg: cfg, log: log}
}

// Evaluate compares every field of a matched pair under the tolerance rules
// and returns the pair with its match score and issue list filled in. A
// difference exactly at the tolerance boundary raises no issue; one unit
// beyond does. Issues beyond twice the tolerance are marked major, which
// feeds the compliance classification.
func (e *Evaluator) Evaluate(pair internal.MatchPair) internal.MatchPair {
	ext, rep := pair.Extracted, pair.GSTR2B
	extKey, repKey := KeyOf(ext), KeyOf(rep)

	issues := make([]internal.Issue, 0, 4)
	score := 0.0

	// Supplier GSTIN should always agree after matching; a difference here
	// means a key-collision bug upstream. Log and report, never crash.
	if extKey.GSTIN == repKey.GSTIN {
		score += scoreWeights["supplier_gstin"]
	} else {
		e.log.WithFields(logrus.Fields{
			"extracted": ext.SupplierGSTIN,
			"reported":  rep.SupplierGSTIN,
			"invoice":   ext.InvoiceNumber,
		}).Error("matched pair with differing supplier GSTIN")
		issues = append(issues, internal.Issue{
			Field:     "supplier_gstin",
			Extracted: ext.SupplierGSTIN,
			Reported:  rep.SupplierGSTIN,
			Severity:  internal.SeverityMajor,
			Message:   fmt.Sprintf("supplier_gstin: %s vs %s", ext.SupplierGSTIN, rep.SupplierGSTIN),
		})
	}

	if extKey.InvoiceNumber == repKey.InvoiceNumber {
		score += scoreWeights["invoice_number"]
	} else {
		sim := util.StringSimilarity(extKey.InvoiceNumber, repKey.InvoiceNumber)
		score += scoreWeights["invoice_number"] * sim
		issues = append(issues, internal.Issue{
			Field:     "invoice_number",
			Extracted: ext.InvoiceNumber,
			Reported:  rep.InvoiceNumber,
			Severity:  internal.SeverityMinor,
			Message:   fmt.Sprintf("invoice_number: %s vs %s", ext.InvoiceNumber, rep.InvoiceNumber),
		})
	}

	dateCloseness, dateIssue := e.compareDates(ext, rep)
	score += scoreWeights["invoice_date"] * dateCloseness
	if dateIssue != nil {
		issues = append(issues, *dateIssue)
	}

	for _, field := range []struct {
		name     string
		ext, rep decimal.Decimal
	}{
		{"taxable_value", ext.TaxableValue, rep.TaxableValue},
		{"cgst", ext.CGST, rep.CGST},
		{"sgst", ext.SGST, rep.SGST},
		{"igst", ext.IGST, rep.IGST},
		{"total_amount", ext.TotalAmount, rep.TotalAmount},
	} {
		closeness, issue := e.compareAmounts(field.name, field.ext, field.rep)
		score += scoreWeights[field.name] * closeness
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	if issue := e.checkConsistency("extracted", ext); issue != nil {
		issues = append(issues, *issue)
	}
	if issue := e.checkConsistency("gstr2b", rep); issue != nil {
		issues = append(issues, *issue)
	}

	pair.MatchScore = clampScore(score)
	pair.Issues = issues
	return pair
}

// EvaluateAll evaluates pairs in place-order, preserving pairing order.
func (e *Evaluator) EvaluateAll(pairs []internal.MatchPair) []internal.MatchPair {
	out := make([]internal.MatchPair, len(pairs))
	for i, pair := range pairs {
		out[i] = e.Evaluate(pair)
	}
	return out
}

// amountTolerance is max(pct of the reported value, abs rupees).
func (e *Evaluator) amountTolerance(reference decimal.Decimal) decimal.Decimal {
	pct := reference.Abs().Mul(decimal.NewFromFloat(e.cfg.AmountTolerancePct)).Div(hundred)
	abs := decimal.NewFromFloat(e.cfg.AmountToleranceAbs)
	if pct.GreaterThan(abs) {
		return pct
	}
	return abs
}

func (e *Evaluator) compareAmounts(field string, ext, rep decimal.Decimal) (float64, *internal.Issue) {
	diff := ext.Sub(rep).Abs()
	tol := e.amountTolerance(rep)

	closeness := 1.0
	if diff.IsPositive() {
		if tol.IsZero() {
			closeness = 0
		} else {
			ratio, _ := diff.Div(tol).Float64()
			closeness = 1 - ratio
			if closeness < 0 {
				closeness = 0
			}
		}
	}

	if diff.LessThanOrEqual(tol) {
		return closeness, nil
	}

	severity := internal.SeverityMinor
	if diff.GreaterThan(tol.Mul(two)) {
		severity = internal.SeverityMajor
	}
	return closeness, &internal.Issue{
		Field:     field,
		Extracted: ext.StringFixed(2),
		Reported:  rep.StringFixed(2),
		Severity:  severity,
		Message: fmt.Sprintf("%s: %s vs %s (difference %s exceeds tolerance %s)",
			field, ext.StringFixed(2), rep.StringFixed(2), diff.StringFixed(2), tol.StringFixed(2)),
	}
}

func (e *Evaluator) compareDates(ext, rep internal.InvoiceRecord) (float64, *internal.Issue) {
	if !ext.HasDate() && !rep.HasDate() {
		// Nothing to compare on either side.
		return 1, nil
	}
	if !ext.HasDate() || !rep.HasDate() {
		return 0, &internal.Issue{
			Field:     "invoice_date",
			Extracted: displayDate(ext),
			Reported:  displayDate(rep),
			Severity:  internal.SeverityMinor,
			Message:   "invoice_date: missing or unparseable on one side",
		}
	}

	days := util.DaysBetween(ext.InvoiceDate, rep.InvoiceDate)
	tol := e.cfg.DateToleranceDays

	closeness := 1.0
	if days > 0 {
		denom := tol
		if denom < 1 {
			denom = 1
		}
		closeness = 1 - float64(days)/float64(denom)
		if closeness < 0 {
			closeness = 0
		}
	}

	if days <= tol {
		return closeness, nil
	}

	severity := internal.SeverityMinor
	if days > 2*tol {
		severity = internal.SeverityMajor
	}
	return closeness, &internal.Issue{
		Field:     "invoice_date",
		Extracted: displayDate(ext),
		Reported:  displayDate(rep),
		Severity:  severity,
		Message: fmt.Sprintf("invoice_date: %s vs %s (%d days apart, tolerance %d)",
			displayDate(ext), displayDate(rep), days, tol),
	}
}

// checkConsistency verifies total = taxable + cgst + sgst + igst within the
// amount tolerance of the total. A violation is a discrepancy to report,
// not a fatal error.
func (e *Evaluator) checkConsistency(side string, rec internal.InvoiceRecord) *internal.Issue {
	sum := rec.TaxableValue.Add(rec.CGST).Add(rec.SGST).Add(rec.IGST)
	if sum.IsZero() {
		// Absent amounts come through as zero. A record carrying only a
		// total has no components to cross-check.
		return nil
	}
	diff := rec.TotalAmount.Sub(sum).Abs()
	tol := e.amountTolerance(rec.TotalAmount)
	if diff.LessThanOrEqual(tol) {
		return nil
	}

	severity := internal.SeverityMinor
	if diff.GreaterThan(tol.Mul(two)) {
		severity = internal.SeverityMajor
	}
	return &internal.Issue{
		Field:     "total_amount_consistency",
		Extracted: rec.TotalAmount.StringFixed(2),
		Reported:  sum.StringFixed(2),
		Severity:  severity,
		Message: fmt.Sprintf("total_amount_consistency (%s): total %s differs from component sum %s",
			side, rec.TotalAmount.StringFixed(2), sum.StringFixed(2)),
	}
}

var two = decimal.NewFromInt(2)

func displayDate(rec internal.InvoiceRecord) string {
	if !rec.HasDate() {
		if rec.RawDate != "" {
			return rec.RawDate
		}
		return "unknown"
	}
	return rec.InvoiceDate.Format("2006-01-02")
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
