// Package session tracks a reconciliation from first extraction to final
// report. Every session walks a fixed stage ladder and only ever moves
// forward:
//
//	extracted -> gstr2b_pending -> mismatch_ready -> reported
//
// Operations that arrive out of order fail with ErrInvalidStageTransition
// instead of mutating state.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gstrecon/internal"
	"gstrecon/internal/recon"
)

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionBusy            = errors.New("session is busy with another operation")
	ErrInvalidStageTransition = errors.New("operation not allowed in current session stage")
	ErrEmptyCollection        = errors.New("invoice collection is empty")
	ErrNoReportAvailable      = errors.New("no reconciliation report available")
)

// Session is a point-in-time snapshot handed out by the service. Mutating a
// snapshot never touches service state.
type Session struct {
	ID           string                `json:"id"`
	ClientName   string                `json:"client_name"`
	Period       string                `json:"period"`
	Stage        internal.SessionStage `json:"stage"`
	GSTR2BSource internal.GSTR2BSource `json:"gstr2b_source,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`

	Extracted []internal.InvoiceRecord `json:"extracted"`
	GSTR2B    []internal.InvoiceRecord `json:"gstr2b,omitempty"`
	Report    *internal.ReportCard     `json:"report,omitempty"`
}

type state struct {
	mu      sync.Mutex
	session Session
}

// Service owns all live sessions. Safe for concurrent use: the registry has
// its own lock, and each session serializes its operations with a per-session
// mutex. An operation that finds the session mid-operation fails fast with
// ErrSessionBusy rather than queueing.
type Service struct {
	cfg recon.Config
	log *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*state

	now func() time.Time
}

func NewService(cfg recon.Config, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*state),
		now:      time.Now,
	}
}

// Create registers a new session seeded with the extracted invoices. The
// collection is normalized on the way in; rows that fail normalization stay
// in the session with error status and surface later as residues.
func (s *Service) Create(clientName, period string, extracted []internal.InvoiceRecord) (Session, error) {
	if len(extracted) == 0 {
		return Session{}, ErrEmptyCollection
	}

	now := s.now()
	sess := Session{
		ID:         uuid.NewString(),
		ClientName: clientName,
		Period:     period,
		Stage:      internal.StageExtracted,
		CreatedAt:  now,
		UpdatedAt:  now,
		Extracted:  recon.NormalizeAll(extracted),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &state{session: sess}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"session": sess.ID,
		"client":  clientName,
		"period":  period,
		"count":   len(sess.Extracted),
	}).Info("session created")

	return snapshot(sess), nil
}

// Get returns a snapshot of the session.
func (s *Service) Get(id string) (Session, error) {
	st, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if !st.mu.TryLock() {
		return Session{}, ErrSessionBusy
	}
	defer st.mu.Unlock()
	return snapshot(st.session), nil
}

// List returns snapshots of every live session, unordered.
func (s *Service) List() []Session {
	s.mu.RLock()
	states := make([]*state, 0, len(s.sessions))
	for _, st := range s.sessions {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]Session, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, snapshot(st.session))
		st.mu.Unlock()
	}
	return out
}

// EditExtracted replaces the extracted collection. Only legal before the
// extracted data has been accepted; a session that already produced a report
// is immutable.
func (s *Service) EditExtracted(id string, extracted []internal.InvoiceRecord) (Session, error) {
	if len(extracted) == 0 {
		return Session{}, ErrEmptyCollection
	}
	return s.update(id, func(sess *Session) error {
		if sess.Stage != internal.StageExtracted {
			return ErrInvalidStageTransition
		}
		sess.Extracted = recon.NormalizeAll(extracted)
		return nil
	})
}

// AcceptExtracted freezes the extracted collection and advances the session
// to await its GSTR2B counterpart.
func (s *Service) AcceptExtracted(id string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if sess.Stage != internal.StageExtracted {
			return ErrInvalidStageTransition
		}
		sess.Stage = internal.StageGSTR2BPending
		return nil
	})
}

// IngestGSTR2B attaches the government-side collection and readies the
// session for reconciliation. Accepting it straight from the extracted stage
// is allowed so a caller who skips the explicit accept step is not punished.
func (s *Service) IngestGSTR2B(id string, gstr2b []internal.InvoiceRecord, source internal.GSTR2BSource) (Session, error) {
	if len(gstr2b) == 0 {
		return Session{}, ErrEmptyCollection
	}
	return s.update(id, func(sess *Session) error {
		if sess.Stage != internal.StageExtracted && sess.Stage != internal.StageGSTR2BPending {
			return ErrInvalidStageTransition
		}
		sess.GSTR2B = recon.NormalizeAll(gstr2b)
		sess.GSTR2BSource = source
		sess.Stage = internal.StageMismatchReady
		return nil
	})
}

// RunReconciliation executes the engine over the session's two collections
// and stores the resulting report. Re-running on an already reported session
// is legal and recomputes the report over the same inputs.
func (s *Service) RunReconciliation(id string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if sess.Stage != internal.StageMismatchReady && sess.Stage != internal.StageReported {
			return ErrInvalidStageTransition
		}
		card := recon.Run(s.cfg, s.log, sess.Extracted, sess.GSTR2B)
		sess.Report = &card
		sess.Stage = internal.StageReported

		s.log.WithFields(logrus.Fields{
			"session":    sess.ID,
			"matched":    card.Summary.SuccessfullyMatched,
			"discrepant": card.Summary.DiscrepanciesFound,
			"missing":    card.Summary.MissingFromGSTR2B,
			"extra":      card.Summary.ExtraInGSTR2B,
			"compliance": card.Summary.ComplianceStatus,
		}).Info("reconciliation complete")
		return nil
	})
}

// GetReport returns the stored report card.
func (s *Service) GetReport(id string) (internal.ReportCard, error) {
	st, err := s.lookup(id)
	if err != nil {
		return internal.ReportCard{}, err
	}
	if !st.mu.TryLock() {
		return internal.ReportCard{}, ErrSessionBusy
	}
	defer st.mu.Unlock()

	if st.session.Report == nil {
		return internal.ReportCard{}, ErrNoReportAvailable
	}
	return copyReport(*st.session.Report), nil
}

// Delete removes the session. Deleting mid-operation fails with
// ErrSessionBusy.
func (s *Service) Delete(id string) error {
	st, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !st.mu.TryLock() {
		return ErrSessionBusy
	}
	defer st.mu.Unlock()

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	s.log.WithField("session", id).Info("session deleted")
	return nil
}

func (s *Service) lookup(id string) (*state, error) {
	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return st, nil
}

func (s *Service) update(id string, fn func(*Session) error) (Session, error) {
	st, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	if !st.mu.TryLock() {
		return Session{}, ErrSessionBusy
	}
	defer st.mu.Unlock()

	if err := fn(&st.session); err != nil {
		return Session{}, err
	}
	st.session.UpdatedAt = s.now()
	return snapshot(st.session), nil
}

// snapshot deep-copies the slices so callers cannot reach back into live
// session state.
func snapshot(sess Session) Session {
	out := sess
	out.Extracted = append([]internal.InvoiceRecord(nil), sess.Extracted...)
	out.GSTR2B = append([]internal.InvoiceRecord(nil), sess.GSTR2B...)
	if sess.Report != nil {
		card := copyReport(*sess.Report)
		out.Report = &card
	}
	return out
}

func copyReport(card internal.ReportCard) internal.ReportCard {
	out := card
	out.Pairs = append([]internal.MatchPair(nil), card.Pairs...)
	out.Missing = append([]internal.Residue(nil), card.Missing...)
	out.Extra = append([]internal.Residue(nil), card.Extra...)
	out.Detail.Mismatches = append([]internal.MismatchDetail(nil), card.Detail.Mismatches...)
	return out
}
