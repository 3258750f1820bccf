//go:generate go run go.uber.org/mock/mockgen -source=session_service.go -destination=../mocks/mock_session_service.go -package=mocks
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/efeurhobobullish/vcf-generator/contract"
	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/efeurhobobullish/vcf-generator/domain/vcard"
	"github.com/efeurhobobullish/vcf-generator/errors"
	"github.com/efeurhobobullish/vcf-generator/repositories"
	"github.com/efeurhobobullish/vcf-generator/validation"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type ISessionService interface {
	CreateSession(name string, durationMinutes int) (domain.Session, error)
	GetSession(id domain.SessionID) (domain.Session, error)
	AddContact(ctx context.Context, id domain.SessionID, fullName, phone string) error
	DeliverIfDue(ctx context.Context, session domain.Session) error
}

type SessionServiceConfig struct {
	Destination     string
	DeliveryTimeout time.Duration
	NotifyOnContact bool
}

type SessionService struct {
	log        *slog.Logger
	repository repositories.ISessionRepository
	notifier   contract.Notifier
	clock      clockwork.Clock
	config     SessionServiceConfig

	mu       sync.Mutex
	inflight map[domain.SessionID]struct{}
}

func NewSessionService(
	log *slog.Logger,
	repository repositories.ISessionRepository,
	notifier contract.Notifier,
	clk clockwork.Clock,
	config SessionServiceConfig,
) *SessionService {
	return &SessionService{
		log:        log,
		repository: repository,
		notifier:   notifier,
		clock:      clk,
		config:     config,
		inflight:   make(map[domain.SessionID]struct{}),
	}
}

func (s *SessionService) CreateSession(name string, durationMinutes int) (domain.Session, error) {
	name = strings.TrimSpace(name)
	valReq := validation.CreateSessionRequest{Name: name, DurationMinutes: durationMinutes}
	if err := validation.ValidateCreateSession(valReq); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	session := domain.NewSession(domain.SessionID(uuid.NewString()), name, durationMinutes, s.clock.Now())
	if err := s.repository.Create(session); err != nil {
		return domain.Session{}, err
	}

	s.log.Info("Session created",
		"session_id", session.ID,
		"name", session.Name,
		"expires_at", session.ExpiresAt)
	return session, nil
}

// GetSession distinguishes a session that never existed (ErrNotFound) from
// one whose window has closed (ErrExpired).
func (s *SessionService) GetSession(id domain.SessionID) (domain.Session, error) {
	session, err := s.repository.FindByID(id)
	if err != nil {
		return domain.Session{}, err
	}
	if domain.IsExpired(session, s.clock.Now()) {
		return domain.Session{}, errors.ErrExpired
	}
	return session, nil
}

// AddContact validates the input before touching the store. The expiry check
// itself is done by the store on fresh state inside the append transaction.
func (s *SessionService) AddContact(ctx context.Context, id domain.SessionID, fullName, phone string) error {
	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	valReq := validation.AddContactRequest{FullName: fullName, Phone: phone}
	if err := validation.ValidateAddContact(valReq); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	now := s.clock.Now()
	contact := domain.Contact{FullName: fullName, Phone: phone, AddedAt: now}
	if err := s.repository.AppendContact(id, contact, now); err != nil {
		return err
	}
	s.log.Info("Contact added", "session_id", id)

	if s.config.NotifyOnContact {
		s.notifyContactAdded(ctx, id, contact)
	}
	return nil
}

// notifyContactAdded is best effort: the submission already succeeded.
func (s *SessionService) notifyContactAdded(ctx context.Context, id domain.SessionID, contact domain.Contact) {
	session, err := s.repository.FindByID(id)
	if err != nil {
		s.log.Warn("Contact notice skipped", "session_id", id, "error", err)
		return
	}
	message := fmt.Sprintf("New contact added:\n\nName: %s\nPhone: %s\n\nFrom session: %s (Expires: %s)",
		contact.FullName, contact.Phone, session.Name, session.ExpiresAt.Format(time.RFC1123))

	sendCtx, cancel := context.WithTimeout(ctx, s.config.DeliveryTimeout)
	defer cancel()
	if err := s.notifier.SendText(sendCtx, s.config.Destination, message); err != nil {
		s.log.Warn("Contact notice failed", "session_id", id, "error", err)
	}
}

// DeliverIfDue encodes and sends the contacts of an expired session, then
// flips its notified flag. Calling it again, concurrently or later, never
// sends the same session twice once the flag is stored.
func (s *SessionService) DeliverIfDue(ctx context.Context, session domain.Session) error {
	if !domain.IsDue(session, s.clock.Now()) {
		return nil
	}
	if !s.acquire(session.ID) {
		s.log.Debug("Delivery already in progress", "session_id", session.ID)
		return nil
	}
	defer s.release(session.ID)

	fresh, err := s.repository.FindByID(session.ID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if !domain.IsDue(fresh, now) {
		return nil
	}

	document := contract.Document{
		FileName: vcard.FileName(fresh.ID),
		Content:  vcard.Encode(fresh.Contacts, now),
		Caption:  fmt.Sprintf("Contacts from session: %s (%s)", fresh.Name, fresh.ID),
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.config.DeliveryTimeout)
	defer cancel()
	if err := s.notifier.SendDocument(sendCtx, s.config.Destination, document); err != nil {
		return fmt.Errorf("%w: session %s: %v", errors.ErrDeliveryFailure, fresh.ID, err)
	}

	if err := s.repository.MarkNotified(fresh.ID, now); err != nil {
		if stderrors.Is(err, errors.ErrAlreadyNotified) {
			s.log.Warn("Session was notified concurrently", "session_id", fresh.ID)
			return nil
		}
		return fmt.Errorf("mark notified %s: %w", fresh.ID, err)
	}

	s.log.Info("Session delivered",
		"session_id", fresh.ID,
		"name", fresh.Name,
		"contacts", len(fresh.Contacts))
	return nil
}

func (s *SessionService) acquire(id domain.SessionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *SessionService) release(id domain.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}
