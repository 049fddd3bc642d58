// Package gstr2b ingests the government-side invoice statement, either from
// an uploaded GSTR2B workbook or straight from the GST portal API.
package gstr2b

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"gstrecon/internal"
	"gstrecon/internal/util"
)

var ErrNoInvoiceRows = errors.New("no invoice rows found in workbook")

// Column synonyms seen across GSTR2B exports and accountant-made sheets.
// Headers are matched by substring on the lowercased cell.
var (
	gstinProbes   = []string{"gstin of supplier", "supplier gstin", "gstin"}
	numberProbes  = []string{"invoice number", "invoice no", "inv no", "bill no", "document number", "note number"}
	dateProbes    = []string{"invoice date", "document date", "note date", "date"}
	taxableProbes = []string{"taxable value", "taxable amount", "taxable"}
	cgstProbes    = []string{"central tax", "cgst"}
	sgstProbes    = []string{"state/ut tax", "state tax", "sgst"}
	igstProbes    = []string{"integrated tax", "igst"}
	totalProbes   = []string{"invoice value", "total invoice value", "total amount", "total value", "total"}
)

type columnMap struct {
	gstin, number, date       int
	taxable, cgst, sgst, igst int
	total                     int
}

// ParseWorkbook reads every sheet of a GSTR2B workbook into invoice records.
// Rows that cannot be fully parsed still come back, flagged and with error
// status, so nothing silently disappears from the statement.
func ParseWorkbook(path string) ([]internal.InvoiceRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseReader(bytes.NewReader(content))
}

func ParseReader(r io.Reader) ([]internal.InvoiceRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.InvoiceRecord{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		out = append(out, parseSheet(sheet, rows)...)
	}

	if len(out) == 0 {
		return nil, ErrNoInvoiceRows
	}
	return out, nil
}

func parseSheet(sheet string, rows [][]string) []internal.InvoiceRecord {
	headerRow, cols := findHeader(rows)
	if headerRow < 0 {
		return nil
	}

	out := []internal.InvoiceRecord{}
	for i := headerRow + 1; i < len(rows); i++ {
		cells := normalizeCells(rows[i])
		if len(cells) == 0 || blankRow(cells) {
			continue
		}

		rec := internal.InvoiceRecord{
			SourceID:      fmt.Sprintf("%s!row%d", sheet, i+1),
			SupplierGSTIN: pickCell(cells, cols.gstin),
			InvoiceNumber: pickCell(cells, cols.number),
			RawDate:       pickCell(cells, cols.date),
			Status:        internal.StatusPending,
		}

		// Skip summary/total footer lines, which carry amounts but no GSTIN.
		if rec.SupplierGSTIN == "" && rec.InvoiceNumber == "" {
			continue
		}

		for _, field := range []struct {
			col int
			dst func(v string) bool
		}{
			{cols.taxable, func(v string) bool { d, ok := util.ParseAmount(v); rec.TaxableValue = d; return ok }},
			{cols.cgst, func(v string) bool { d, ok := util.ParseAmount(v); rec.CGST = d; return ok }},
			{cols.sgst, func(v string) bool { d, ok := util.ParseAmount(v); rec.SGST = d; return ok }},
			{cols.igst, func(v string) bool { d, ok := util.ParseAmount(v); rec.IGST = d; return ok }},
			{cols.total, func(v string) bool { d, ok := util.ParseAmount(v); rec.TotalAmount = d; return ok }},
		} {
			cell := pickCell(cells, field.col)
			if cell == "" {
				continue
			}
			if !field.dst(cell) {
				rec.Flags = append(rec.Flags, "unparseable_amount_cell")
			}
		}

		out = append(out, rec)
	}
	return out
}

// findHeader scans the top of the sheet for a row that maps at least the
// GSTIN and invoice number columns. GSTR2B exports put a title block above
// the real header, so the first row is rarely it.
func findHeader(rows [][]string) (int, columnMap) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		cells := normalizeCells(rows[i])
		cols := columnMap{
			gstin:   findHeaderIndex(cells, gstinProbes),
			number:  findHeaderIndex(cells, numberProbes),
			date:    findHeaderIndex(cells, dateProbes),
			taxable: findHeaderIndex(cells, taxableProbes),
			cgst:    findHeaderIndex(cells, cgstProbes),
			sgst:    findHeaderIndex(cells, sgstProbes),
			igst:    findHeaderIndex(cells, igstProbes),
			total:   findHeaderIndex(cells, totalProbes),
		}
		if cols.gstin >= 0 && cols.number >= 0 {
			return i, cols
		}
	}
	return -1, columnMap{}
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, probe := range probes {
			if strings.Contains(lower, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
