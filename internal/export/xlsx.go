// Package export renders a reconciliation report card as an xlsx workbook
// for accountants who live in spreadsheets.
package export

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gstrecon/internal"
)

// ReportToXLSX writes one workbook with a sheet per report section. The
// report card itself is timestamp-free; the generation time is stamped here
// so identical runs still produce identical cards.
func ReportToXLSX(card internal.ReportCard, outputPath string) error {
	f := excelize.NewFile()

	writeSummary(f, card.Summary)
	writeMatched(f, card.Pairs)
	writeMismatches(f, card.Detail.Mismatches)
	writeResidues(f, "Missing from GSTR2B", card.Missing)
	writeResidues(f, "Extra in GSTR2B", card.Extra)

	_ = f.DeleteSheet(f.GetSheetName(0))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeSummary(f *excelize.File, s internal.Summary) {
	sheet := "Summary"
	_, _ = f.NewSheet(sheet)

	rows := [][]any{
		{"Generated at", time.Now().Format(time.RFC3339)},
		{"Compliance status", string(s.ComplianceStatus)},
		{"Invoices extracted", s.TotalInvoicesExtracted},
		{"Invoices in GSTR2B", s.TotalInvoicesGSTR2B},
		{"Successfully matched", s.SuccessfullyMatched},
		{"Discrepancies found", s.DiscrepanciesFound},
		{"Missing from GSTR2B", s.MissingFromGSTR2B},
		{"Extra in GSTR2B", s.ExtraInGSTR2B},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
}

func writeMatched(f *excelize.File, pairs []internal.MatchPair) {
	sheet := "Matched"
	_, _ = f.NewSheet(sheet)

	headers := []string{
		"supplier_gstin", "invoice_number", "invoice_date",
		"taxable_value", "cgst", "sgst", "igst", "total_amount",
		"gstr2b_invoice_number", "gstr2b_total_amount",
		"match_score", "issue_count",
	}
	writeHeaderRow(f, sheet, headers)

	for i, pair := range pairs {
		r := i + 2
		set := cellSetter(f, sheet, r)
		set(1, pair.Extracted.SupplierGSTIN)
		set(2, pair.Extracted.InvoiceNumber)
		set(3, dateCell(pair.Extracted))
		set(4, pair.Extracted.TaxableValue.StringFixed(2))
		set(5, pair.Extracted.CGST.StringFixed(2))
		set(6, pair.Extracted.SGST.StringFixed(2))
		set(7, pair.Extracted.IGST.StringFixed(2))
		set(8, pair.Extracted.TotalAmount.StringFixed(2))
		set(9, pair.GSTR2B.InvoiceNumber)
		set(10, pair.GSTR2B.TotalAmount.StringFixed(2))
		set(11, pair.MatchScore)
		set(12, len(pair.Issues))
	}
}

func writeMismatches(f *excelize.File, mismatches []internal.MismatchDetail) {
	sheet := "Mismatches"
	_, _ = f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{"invoice_number", "match_score", "issues"})
	for i, m := range mismatches {
		set := cellSetter(f, sheet, i+2)
		set(1, m.InvoiceNumber)
		set(2, m.MatchScore)
		set(3, strings.Join(m.Issues, "; "))
	}
}

func writeResidues(f *excelize.File, sheet string, residues []internal.Residue) {
	_, _ = f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{
		"supplier_gstin", "invoice_number", "invoice_date", "total_amount", "reason",
	})
	for i, res := range residues {
		set := cellSetter(f, sheet, i+2)
		set(1, res.Record.SupplierGSTIN)
		set(2, res.Record.InvoiceNumber)
		set(3, dateCell(res.Record))
		set(4, res.Record.TotalAmount.StringFixed(2))
		set(5, res.Reason)
	}
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func cellSetter(f *excelize.File, sheet string, row int) func(col int, value any) {
	return func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, value)
	}
}

func dateCell(rec internal.InvoiceRecord) string {
	if !rec.HasDate() {
		return rec.RawDate
	}
	return rec.InvoiceDate.Format("2006-01-02")
}
