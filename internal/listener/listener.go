// Package listener polls an invoice inbox, stores mailed-in documents and
// runs extraction over them so a session can be built from the results
// later.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gstrecon/internal"
	"gstrecon/internal/config"
	"gstrecon/internal/connectors"
	gmailconnector "gstrecon/internal/connectors/gmail"
	imapconnector "gstrecon/internal/connectors/imap"
	"gstrecon/internal/extract"
	"gstrecon/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *logrus.Logger
}

func NewService(db *storage.DB, cfg config.Config, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{db: db, cfg: cfg, log: log}
}

// metaLastCycleAt records when the listener last completed a cycle, so an
// operator can tell how stale the inbox view is after a restart.
const metaLastCycleAt = "listener_last_cycle_at"

func (s *Service) Run(ctx context.Context) error {
	if last, err := s.db.GetMetadata(metaLastCycleAt); err == nil && last != nil {
		s.log.WithField("last_cycle_at", *last).Info("resuming inbox listener")
	}

	for {
		if err := s.runCycle(); err != nil {
			s.log.WithError(err).Error("listener cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.InboxIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle() error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.InboxProvider))
	mailConnector, err := s.makeConnector(provider)
	if err != nil {
		return err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.UploadDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(s.cfg.InboxLabel, s.cfg.InboxFetchMax)
	if err != nil {
		return err
	}

	extracted, err := s.extractReceived()
	if err != nil {
		return err
	}

	if err := s.db.SetMetadata(metaLastCycleAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.log.WithError(err).Warn("failed to record cycle timestamp")
	}

	s.log.WithFields(logrus.Fields{
		"provider":  provider,
		"fetched":   fetchResult.Fetched,
		"documents": fetchResult.Documents,
		"extracted": extracted,
	}).Info("listener cycle done")
	return nil
}

// extractReceived runs extraction over every pending document and persists
// the records under a fresh session id, one per document, so the CLI or the
// API can pick them up and reconcile later.
func (s *Service) extractReceived() (int, error) {
	documents, err := s.db.ListDocumentsByStatus("received", 50)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, doc := range documents {
		records, err := extract.FromFile(doc.RawRef)
		if err != nil {
			s.log.WithError(err).WithField("document", doc.Filename).Warn("extraction failed")
			_ = s.db.UpdateDocumentStatus(doc.ID, "failed")
			continue
		}

		sessionID := uuid.NewString()
		if err := s.db.SaveSessionState(sessionID, doc.ClientName, doc.Period, internal.StageExtracted, ""); err != nil {
			return processed, err
		}
		if err := s.db.SaveInvoices(sessionID, internal.OriginExtracted, records); err != nil {
			return processed, err
		}
		if err := s.db.UpdateDocumentStatus(doc.ID, "extracted"); err != nil {
			return processed, err
		}
		processed++
	}

	return processed, nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported inbox provider: %s", provider)
	}
}
