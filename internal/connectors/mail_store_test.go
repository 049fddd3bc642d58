package connectors

import "testing"

func TestIsInvoiceAttachment(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		want     bool
	}{
		{name: "pdf", filename: "invoice.pdf", want: true},
		{name: "uppercase extension", filename: "INVOICE.PDF", want: true},
		{name: "workbook", filename: "gstr2b.xlsx", want: true},
		{name: "html invoice", filename: "bill.html", want: true},
		{name: "signature image", filename: "logo.png", want: false},
		{name: "calendar invite", filename: "meeting.ics", want: false},
		{name: "no extension", filename: "README", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsInvoiceAttachment(tc.filename); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestSenderName(t *testing.T) {
	if got := senderName(`"Acme Traders" <billing@acme.example>`); got != "Acme Traders" {
		t.Fatalf("got %q", got)
	}
	if got := senderName("billing@acme.example"); got != "billing@acme.example" {
		t.Fatalf("got %q", got)
	}
}

func TestReceivedPeriod(t *testing.T) {
	if got := receivedPeriod("2025-04-18T09:30:00Z"); got != "2025-04" {
		t.Fatalf("got %q", got)
	}
}
