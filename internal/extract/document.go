// Package extract pulls invoice records out of source documents: scanned
// PDFs with a text layer, HTML invoices, plain-text OCR dumps and purchase
// register workbooks.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"

	"gstrecon/internal"
	"gstrecon/internal/util"
)

var (
	gstinRe  = regexp.MustCompile(`\b[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]\b`)
	numberRe = regexp.MustCompile(`(?i)\b(?:invoice|bill|inv)\s*(?:no|number|num|#)\s*[.:#-]?\s*([A-Za-z0-9][A-Za-z0-9/_-]*)`)
	dateRe   = regexp.MustCompile(`(?i)\bdate\s*[.:]?\s*([0-9]{1,2}[./-][0-9]{1,2}[./-][0-9]{2,4}|[0-9]{4}-[0-9]{2}-[0-9]{2})`)

	amountRes = map[string]*regexp.Regexp{
		"taxable": regexp.MustCompile(`(?i)\btaxable\s*(?:value|amount)?\s*[.:]?\s*(?:₹|Rs\.?|INR)?\s*([0-9][0-9,]*\.?[0-9]*)`),
		"cgst":    regexp.MustCompile(`(?i)\bcgst\s*(?:@[0-9.]+%)?\s*[.:]?\s*(?:₹|Rs\.?|INR)?\s*([0-9][0-9,]*\.?[0-9]*)`),
		"sgst":    regexp.MustCompile(`(?i)\bsgst\s*(?:@[0-9.]+%)?\s*[.:]?\s*(?:₹|Rs\.?|INR)?\s*([0-9][0-9,]*\.?[0-9]*)`),
		"igst":    regexp.MustCompile(`(?i)\bigst\s*(?:@[0-9.]+%)?\s*[.:]?\s*(?:₹|Rs\.?|INR)?\s*([0-9][0-9,]*\.?[0-9]*)`),
		"total":   regexp.MustCompile(`(?i)\b(?:grand\s+)?total\s*(?:amount|value)?\s*[.:]?\s*(?:₹|Rs\.?|INR)?\s*([0-9][0-9,]*\.?[0-9]*)`),
	}
)

// FromText parses one invoice out of a plain-text document, typically the
// text layer of a scan. A document that yields no GSTIN and no invoice
// number comes back with error status rather than an error: downstream
// reconciliation reports it as a residue instead of aborting the batch.
func FromText(sourceID, text string) internal.InvoiceRecord {
	rec := internal.InvoiceRecord{
		SourceID: sourceID,
		Status:   internal.StatusPending,
	}

	flat := util.NormalizeSpaces(strings.ReplaceAll(text, "\n", " "))
	upper := strings.ToUpper(flat)

	if m := gstinRe.FindString(upper); m != "" {
		rec.SupplierGSTIN = m
	}
	if m := numberRe.FindStringSubmatch(flat); m != nil {
		rec.InvoiceNumber = m[1]
	}
	if m := dateRe.FindStringSubmatch(flat); m != nil {
		rec.RawDate = m[1]
	}

	for field, re := range amountRes {
		m := re.FindStringSubmatch(flat)
		if m == nil {
			continue
		}
		value, ok := util.ParseAmount(m[1])
		if !ok {
			continue
		}
		switch field {
		case "taxable":
			rec.TaxableValue = value
		case "cgst":
			rec.CGST = value
		case "sgst":
			rec.SGST = value
		case "igst":
			rec.IGST = value
		case "total":
			rec.TotalAmount = value
		}
	}

	if rec.SupplierGSTIN == "" && rec.InvoiceNumber == "" {
		rec.Status = internal.StatusError
		rec.Flags = append(rec.Flags, "no_invoice_fields_found")
	}

	return rec
}

// FromHTML extracts invoice rows from HTML tables whose header names the
// usual GST columns. A document without such a table falls back to
// whole-text field scanning.
func FromHTML(sourceID, html string) ([]internal.InvoiceRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	out := []internal.InvoiceRecord{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(util.NormalizeSpaces(cell.Text())))
		})

		gstinIdx := findHeaderIndex(headers, []string{"gstin"})
		numberIdx := findHeaderIndex(headers, []string{"invoice no", "invoice number", "bill no"})
		if gstinIdx < 0 || numberIdx < 0 {
			return
		}
		dateIdx := findHeaderIndex(headers, []string{"date"})
		taxableIdx := findHeaderIndex(headers, []string{"taxable"})
		cgstIdx := findHeaderIndex(headers, []string{"cgst"})
		sgstIdx := findHeaderIndex(headers, []string{"sgst"})
		igstIdx := findHeaderIndex(headers, []string{"igst"})
		totalIdx := findHeaderIndex(headers, []string{"total", "invoice value"})

		rows.Slice(1, rows.Length()).Each(func(rowNo int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			rec := internal.InvoiceRecord{
				SourceID:      fmt.Sprintf("%s#row%d", sourceID, rowNo+1),
				SupplierGSTIN: pickCell(cells, gstinIdx),
				InvoiceNumber: pickCell(cells, numberIdx),
				RawDate:       pickCell(cells, dateIdx),
				Status:        internal.StatusPending,
			}
			if rec.SupplierGSTIN == "" && rec.InvoiceNumber == "" {
				return
			}
			if v, ok := util.ParseAmount(pickCell(cells, taxableIdx)); ok {
				rec.TaxableValue = v
			}
			if v, ok := util.ParseAmount(pickCell(cells, cgstIdx)); ok {
				rec.CGST = v
			}
			if v, ok := util.ParseAmount(pickCell(cells, sgstIdx)); ok {
				rec.SGST = v
			}
			if v, ok := util.ParseAmount(pickCell(cells, igstIdx)); ok {
				rec.IGST = v
			}
			if v, ok := util.ParseAmount(pickCell(cells, totalIdx)); ok {
				rec.TotalAmount = v
			}
			out = append(out, rec)
		})
	})

	if len(out) == 0 {
		text := doc.Text()
		return []internal.InvoiceRecord{FromText(sourceID, text)}, nil
	}
	return out, nil
}

// FromPDF reads the text layer page by page, one invoice per document.
// Image-only scans yield an error-status record with the OCR flag so the
// caller knows the file needs a real OCR pass first.
func FromPDF(sourceID string, content []byte) (internal.InvoiceRecord, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return internal.InvoiceRecord{}, err
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	if util.NormalizeSpaces(text.String()) == "" {
		return internal.InvoiceRecord{
			SourceID: sourceID,
			Status:   internal.StatusError,
			Flags:    []string{"no_text_layer"},
		}, nil
	}
	return FromText(sourceID, text.String()), nil
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		for _, probe := range probes {
			if strings.Contains(h, probe) {
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
