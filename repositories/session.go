//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/efeurhobobullish/vcf-generator/errors"
	"github.com/samber/lo"
)

const (
	sessionPrefix      = "session:"
	pendingIndexPrefix = "idx:pending:"
	maxConflictRetries = 5
)

type ISessionRepository interface {
	Create(session domain.Session) error
	FindByID(id domain.SessionID) (domain.Session, error)
	AppendContact(id domain.SessionID, contact domain.Contact, now time.Time) error
	FindDueUnnotified(now time.Time) ([]domain.Session, error)
	MarkNotified(id domain.SessionID, now time.Time) error
	List() ([]domain.Session, error)
}

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

// DiskSession is the stored representation of a session.
// Timestamps are kept as UnixNano like every other record in the store.
type DiskSession struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	DurationMinutes int           `json:"duration_minutes"`
	CreatedAt       int64         `json:"created_at"`
	ExpiresAt       int64         `json:"expires_at"`
	Contacts        []DiskContact `json:"contacts"`
	Notified        bool          `json:"notified"`
	NotifiedAt      int64         `json:"notified_at,omitempty"`
}

type DiskContact struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	AddedAt  int64  `json:"added_at"`
}

func sessionKey(id domain.SessionID) []byte {
	return []byte(sessionPrefix + id.String())
}

// pendingKey indexes sessions holding at least one contact that have not been
// notified yet. The zero padded expiry keeps the index sorted by deadline so
// a scan can stop at the first session still open.
func pendingKey(s domain.Session) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", pendingIndexPrefix, s.ExpiresAt.UnixNano(), s.ID))
}

func (r *SessionRepository) Create(session domain.Session) error {
	data, err := json.Marshal(fromSession(session))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		key := sessionKey(session.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrSessionExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (r *SessionRepository) FindByID(id domain.SessionID) (domain.Session, error) {
	var session domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		s, err := getSession(txn, id)
		session = s
		return err
	})
	return session, err
}

// AppendContact re-evaluates existence, expiry and the notified flag inside
// the write transaction, so a contact can never land on a stale snapshot.
func (r *SessionRepository) AppendContact(id domain.SessionID, contact domain.Contact, now time.Time) error {
	return r.updateWithRetry(func(txn *badger.Txn) error {
		session, err := getSession(txn, id)
		if err != nil {
			return err
		}
		if !session.CanAppend(now) {
			return errors.ErrExpired
		}
		first := len(session.Contacts) == 0
		session.AppendContact(contact)
		if err := putSession(txn, session); err != nil {
			return err
		}
		if first {
			return txn.Set(pendingKey(session), nil)
		}
		return nil
	})
}

// FindDueUnnotified walks the pending index in deadline order and stops at the
// first session that is not expired yet.
func (r *SessionRepository) FindDueUnnotified(now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(pendingIndexPrefix)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []domain.SessionID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			expiresAt, id, err := parsePendingKey(string(it.Item().Key()))
			if err != nil {
				r.log.Warn("Skipping malformed pending index key", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if !now.After(time.Unix(0, expiresAt)) {
				break
			}
			ids = append(ids, id)
		}

		for _, id := range ids {
			s, err := getSession(txn, id)
			if stderrors.Is(err, errors.ErrNotFound) {
				r.log.Warn("Pending index points to a missing session", "session_id", id)
				continue
			}
			if err != nil {
				return err
			}
			sessions = append(sessions, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Filter(sessions, func(s domain.Session, _ int) bool {
		return domain.IsDue(s, now)
	}), nil
}

// MarkNotified is a compare-and-set: it succeeds only if the session was not
// notified yet and returns ErrAlreadyNotified otherwise.
func (r *SessionRepository) MarkNotified(id domain.SessionID, now time.Time) error {
	return r.updateWithRetry(func(txn *badger.Txn) error {
		session, err := getSession(txn, id)
		if err != nil {
			return err
		}
		if session.Notified {
			return errors.ErrAlreadyNotified
		}
		session.Notified = true
		session.NotifiedAt = now
		if err := putSession(txn, session); err != nil {
			return err
		}
		if err := txn.Delete(pendingKey(session)); err != nil {
			return err
		}
		return nil
	})
}

func (r *SessionRepository) List() ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(sessionPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				s, err := decodeSession(v)
				if err != nil {
					return err
				}
				sessions = append(sessions, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return sessions, err
}

// updateWithRetry replays fn when Badger detects a write conflict with a
// concurrent transaction. The replay reads fresh state, so a losing
// MarkNotified observes the winner's write.
func (r *SessionRepository) updateWithRetry(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func getSession(txn *badger.Txn, id domain.SessionID) (domain.Session, error) {
	item, err := txn.Get(sessionKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Session{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	err = item.Value(func(v []byte) error {
		s, err := decodeSession(v)
		session = s
		return err
	})
	return session, err
}

func putSession(txn *badger.Txn, session domain.Session) error {
	data, err := json.Marshal(fromSession(session))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(sessionKey(session.ID), data)
}

func decodeSession(v []byte) (domain.Session, error) {
	var disk DiskSession
	if err := json.Unmarshal(v, &disk); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal failed: %w", err)
	}
	return toSession(disk), nil
}

func parsePendingKey(key string) (int64, domain.SessionID, error) {
	parts := strings.SplitN(strings.TrimPrefix(key, pendingIndexPrefix), ":", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("unexpected key format")
	}
	expiresAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", err
	}
	return expiresAt, domain.SessionID(parts[1]), nil
}

func fromSession(s domain.Session) DiskSession {
	disk := DiskSession{
		ID:              s.ID.String(),
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		CreatedAt:       s.CreatedAt.UnixNano(),
		ExpiresAt:       s.ExpiresAt.UnixNano(),
		Contacts: lo.Map(s.Contacts, func(c domain.Contact, _ int) DiskContact {
			return DiskContact{FullName: c.FullName, Phone: c.Phone, AddedAt: c.AddedAt.UnixNano()}
		}),
		Notified: s.Notified,
	}
	if s.Notified {
		disk.NotifiedAt = s.NotifiedAt.UnixNano()
	}
	return disk
}

func toSession(d DiskSession) domain.Session {
	s := domain.Session{
		ID:              domain.SessionID(d.ID),
		Name:            d.Name,
		DurationMinutes: d.DurationMinutes,
		CreatedAt:       time.Unix(0, d.CreatedAt).UTC(),
		ExpiresAt:       time.Unix(0, d.ExpiresAt).UTC(),
		Contacts: lo.Map(d.Contacts, func(c DiskContact, _ int) domain.Contact {
			return domain.Contact{FullName: c.FullName, Phone: c.Phone, AddedAt: time.Unix(0, c.AddedAt).UTC()}
		}),
		Notified: d.Notified,
	}
	if d.Notified {
		s.NotifiedAt = time.Unix(0, d.NotifiedAt).UTC()
	}
	return s
}
