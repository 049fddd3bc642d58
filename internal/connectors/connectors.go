// Package connectors pulls invoice documents out of a mail inbox. Suppliers
// mail invoices as PDF or spreadsheet attachments; the connectors fetch the
// raw messages and the store unpacks the attachments into the upload dir.
package connectors

import "gstrecon/internal"

type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
