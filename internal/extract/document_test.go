package extract

import (
	"testing"

	"github.com/shopspring/decimal"

	"gstrecon/internal"
)

func TestFromText(t *testing.T) {
	text := `
TAX INVOICE
Acme Traders Pvt Ltd
GSTIN: 27AAAAA0000A1Z5
Invoice No: INV-001
Date: 15/04/2025

Taxable Value: 1,000.00
CGST @9%: 90.00
SGST @9%: 90.00
Total Amount: ₹1,180.00
`
	rec := FromText("scan-1.txt", text)

	if rec.SupplierGSTIN != "27AAAAA0000A1Z5" {
		t.Fatalf("gstin: %q", rec.SupplierGSTIN)
	}
	if rec.InvoiceNumber != "INV-001" {
		t.Fatalf("number: %q", rec.InvoiceNumber)
	}
	if rec.RawDate != "15/04/2025" {
		t.Fatalf("date: %q", rec.RawDate)
	}
	if !rec.TaxableValue.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("taxable: %s", rec.TaxableValue)
	}
	if !rec.CGST.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("cgst: %s", rec.CGST)
	}
	if !rec.TotalAmount.Equal(decimal.RequireFromString("1180")) {
		t.Fatalf("total: %s", rec.TotalAmount)
	}
	if rec.Status != internal.StatusPending {
		t.Fatalf("status: %q", rec.Status)
	}
}

func TestFromTextNothingUseful(t *testing.T) {
	rec := FromText("scan-2.txt", "lorem ipsum dolor sit amet")
	if rec.Status != internal.StatusError {
		t.Fatalf("status: %q", rec.Status)
	}
	if len(rec.Flags) == 0 {
		t.Fatalf("expected a flag explaining the failure")
	}
}

func TestFromHTMLTable(t *testing.T) {
	html := `
<html><body>
<h1>Purchase Register April 2025</h1>
<table>
  <tr><th>GSTIN</th><th>Invoice No</th><th>Date</th><th>Taxable</th><th>CGST</th><th>SGST</th><th>IGST</th><th>Total</th></tr>
  <tr><td>27AAAAA0000A1Z5</td><td>INV-001</td><td>15/04/2025</td><td>1000</td><td>90</td><td>90</td><td>0</td><td>1180</td></tr>
  <tr><td>29ABCDE1234F1Z8</td><td>INV-002</td><td>16/04/2025</td><td>500</td><td>0</td><td>0</td><td>90</td><td>590</td></tr>
</table>
</body></html>`

	records, err := FromHTML("register.html", html)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len=%d", len(records))
	}
	if records[0].SupplierGSTIN != "27AAAAA0000A1Z5" || records[0].InvoiceNumber != "INV-001" {
		t.Fatalf("first: %+v", records[0])
	}
	if !records[1].IGST.Equal(decimal.RequireFromString("90")) {
		t.Fatalf("igst: %s", records[1].IGST)
	}
}

func TestFromHTMLWithoutTableFallsBackToText(t *testing.T) {
	html := `<html><body><p>GSTIN: 27AAAAA0000A1Z5 Invoice No: INV-007 Total: 354</p></body></html>`

	records, err := FromHTML("mail.html", html)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("len=%d", len(records))
	}
	if records[0].SupplierGSTIN != "27AAAAA0000A1Z5" || records[0].InvoiceNumber != "INV-007" {
		t.Fatalf("record: %+v", records[0])
	}
}
