package connectors

import (
	"gstrecon/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched   int
	Documents int
}

func NewFetchService(db *storage.DB, uploadDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, uploadDir),
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	documents := 0
	for _, msg := range messages {
		rows, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		documents += len(rows)
	}

	return FetchResult{Fetched: len(messages), Documents: documents}, nil
}
