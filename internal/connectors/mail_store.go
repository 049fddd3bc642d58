package connectors

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"gstrecon/internal"
	"gstrecon/internal/storage"
)

// Attachment types worth keeping. Everything else in supplier mail is
// signatures and logos.
var invoiceExtensions = map[string]bool{
	".pdf":  true,
	".xlsx": true,
	".xls":  true,
	".html": true,
	".htm":  true,
}

// IsInvoiceAttachment reports whether a filename looks like an invoice
// document worth ingesting. Connectors use it to screen mail before
// downloading bodies.
func IsInvoiceAttachment(filename string) bool {
	return invoiceExtensions[strings.ToLower(filepath.Ext(filename))]
}

type MailStoreService struct {
	db        *storage.DB
	uploadDir string
}

func NewMailStoreService(db *storage.DB, uploadDir string) *MailStoreService {
	return &MailStoreService{db: db, uploadDir: uploadDir}
}

// Store unpacks the invoice attachments of one message into the upload dir
// and records each as a pending document. The sender becomes the client
// name and the received month the period; both can be corrected later when
// a session is built. Returns the stored document rows.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) ([]internal.DocumentRow, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, err
	}

	clientName := senderName(msg.From)
	period := receivedPeriod(msg.ReceivedAt)

	out := []internal.DocumentRow{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			continue
		}
		if !IsInvoiceAttachment(filename) {
			continue
		}

		hashBytes := sha256.Sum256(att.Content)
		hash := hex.EncodeToString(hashBytes[:])

		rawPath := filepath.Join(s.uploadDir, hash+"_"+filepath.Base(filename))
		if _, err := os.Stat(rawPath); os.IsNotExist(err) {
			if err := os.WriteFile(rawPath, att.Content, 0o644); err != nil {
				return nil, err
			}
		}

		row, err := s.db.UpsertDocument(clientName, period, filename, hash, rawPath, "received")
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, nil
}

// senderName extracts the display name from "Name <addr>"; falls back to
// the bare address.
func senderName(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		name := strings.TrimSpace(from[:idx])
		if name != "" {
			return strings.Trim(name, `"`)
		}
	}
	return strings.TrimSpace(from)
}

func receivedPeriod(receivedAt string) string {
	if t, err := time.Parse(time.RFC3339, receivedAt); err == nil {
		return fmt.Sprintf("%04d-%02d", t.Year(), t.Month())
	}
	now := time.Now().UTC()
	return fmt.Sprintf("%04d-%02d", now.Year(), now.Month())
}
