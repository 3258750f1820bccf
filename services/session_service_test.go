package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/efeurhobobullish/vcf-generator/contract"
	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/efeurhobobullish/vcf-generator/domain/vcard"
	"github.com/efeurhobobullish/vcf-generator/errors"
	"github.com/efeurhobobullish/vcf-generator/mocks"
	"github.com/efeurhobobullish/vcf-generator/repositories"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

const destination = "-100123"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBadgerRepository(t *testing.T) *repositories.SessionRepository {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewSessionRepository(db, discardLogger())
}

func newService(repo repositories.ISessionRepository, notifier contract.Notifier, clk clockwork.Clock) *SessionService {
	return NewSessionService(discardLogger(), repo, notifier, clk, SessionServiceConfig{
		Destination:     destination,
		DeliveryTimeout: time.Second,
	})
}

func TestSessionService_CreateSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clk := clockwork.NewFakeClockAt(t0)
	svc := newService(newBadgerRepository(t), mocks.NewMockNotifier(ctrl), clk)

	t.Run("should derive expiry from the duration", func(t *testing.T) {
		req := require.New(t)
		for _, d := range []int{1, 15, 90} {
			session, err := svc.CreateSession("Launch", d)
			req.NoError(err)
			req.NotEmpty(session.ID)
			req.Equal(t0, session.CreatedAt)
			req.Equal(t0.Add(time.Duration(d)*time.Minute), session.ExpiresAt)
		}
	})

	t.Run("should generate distinct identifiers", func(t *testing.T) {
		req := require.New(t)
		seen := make(map[domain.SessionID]struct{})
		for i := 0; i < 50; i++ {
			session, err := svc.CreateSession(fmt.Sprintf("s-%d", i), 1)
			req.NoError(err)
			_, dup := seen[session.ID]
			req.False(dup)
			seen[session.ID] = struct{}{}
		}
	})

	t.Run("should reject invalid input", func(t *testing.T) {
		req := require.New(t)
		_, err := svc.CreateSession("", 1)
		req.ErrorIs(err, errors.ErrInvalidInput)
		_, err = svc.CreateSession("   ", 1)
		req.ErrorIs(err, errors.ErrInvalidInput)
		_, err = svc.CreateSession("Launch", 0)
		req.ErrorIs(err, errors.ErrInvalidInput)
		_, err = svc.CreateSession("Launch", -1)
		req.ErrorIs(err, errors.ErrInvalidInput)
	})

	t.Run("should reject a duration whose expiry cannot be represented", func(t *testing.T) {
		req := require.New(t)
		_, err := svc.CreateSession("Huge", 200_000_000)
		req.ErrorIs(err, errors.ErrInvalidInput)
		_, err = svc.CreateSession("Huge", domain.MaxDurationMinutes+1)
		req.ErrorIs(err, errors.ErrInvalidInput)
	})

	t.Run("should accept the longest duration with a future expiry", func(t *testing.T) {
		req := require.New(t)
		session, err := svc.CreateSession("Year", domain.MaxDurationMinutes)
		req.NoError(err)
		req.True(session.ExpiresAt.After(session.CreatedAt))
		req.Equal(t0.Add(time.Duration(domain.MaxDurationMinutes)*time.Minute), session.ExpiresAt)

		found, err := svc.GetSession(session.ID)
		req.NoError(err)
		req.Equal(session.ExpiresAt, found.ExpiresAt)
	})
}

func TestSessionService_CreateSession_InvalidInputNeverReachesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockISessionRepository(ctrl)
	mockRepo.EXPECT().Create(gomock.Any()).Times(0)
	svc := newService(mockRepo, mocks.NewMockNotifier(ctrl), clockwork.NewFakeClockAt(t0))

	_, err := svc.CreateSession("", 0)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSessionService_GetSession(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clk := clockwork.NewFakeClockAt(t0)
	svc := newService(newBadgerRepository(t), mocks.NewMockNotifier(ctrl), clk)

	created, err := svc.CreateSession("Launch", 1)
	req.NoError(err)

	// Open up to and including the expiry instant
	for _, step := range []time.Duration{0, 30 * time.Second, 30 * time.Second} {
		clk.Advance(step)
		found, err := svc.GetSession(created.ID)
		req.NoError(err)
		req.Equal(created.ID, found.ID)
	}

	req.Equal(created.ExpiresAt, clk.Now())
	clk.Advance(time.Millisecond)
	_, err = svc.GetSession(created.ID)
	req.ErrorIs(err, errors.ErrExpired)

	_, err = svc.GetSession("never-existed")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestSessionService_AddContact(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clk := clockwork.NewFakeClockAt(t0)
	repo := newBadgerRepository(t)
	svc := newService(repo, mocks.NewMockNotifier(ctrl), clk)

	t.Run("should append while open", func(t *testing.T) {
		req := require.New(t)
		session, err := svc.CreateSession("Launch", 1)
		req.NoError(err)

		req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))

		found, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.Len(found.Contacts, 1)
		req.Equal("Jane Doe", found.Contacts[0].FullName)
		req.Equal(t0, found.Contacts[0].AddedAt)
	})

	t.Run("should reject a phone without the country prefix", func(t *testing.T) {
		req := require.New(t)
		session, err := svc.CreateSession("Launch", 1)
		req.NoError(err)

		err = svc.AddContact(context.Background(), session.ID, "Jane Doe", "08012345678")

		req.ErrorIs(err, errors.ErrInvalidInput)
		found, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.Empty(found.Contacts)
	})

	t.Run("should fail after expiry without mutating contacts", func(t *testing.T) {
		req := require.New(t)
		session, err := svc.CreateSession("Launch", 1)
		req.NoError(err)
		req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))

		clk.Advance(61 * time.Second)
		err = svc.AddContact(context.Background(), session.ID, "Late Comer", "+2348099999999")

		req.ErrorIs(err, errors.ErrExpired)
		found, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.Len(found.Contacts, 1)
	})

	t.Run("should report unknown sessions", func(t *testing.T) {
		req := require.New(t)
		err := svc.AddContact(context.Background(), "unknown", "Jane Doe", "+2348012345678")
		req.ErrorIs(err, errors.ErrNotFound)
	})
}

func TestSessionService_AddContact_InvalidPhoneNeverReachesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockISessionRepository(ctrl)
	mockRepo.EXPECT().AppendContact(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	svc := newService(mockRepo, mocks.NewMockNotifier(ctrl), clockwork.NewFakeClockAt(t0))

	err := svc.AddContact(context.Background(), "any", "Jane Doe", "+234801")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSessionService_AddContact_SendsNotice(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)

	notifier := mocks.NewMockNotifier(ctrl)
	svc := NewSessionService(discardLogger(), newBadgerRepository(t), notifier, clockwork.NewFakeClockAt(t0), SessionServiceConfig{
		Destination:     destination,
		DeliveryTimeout: time.Second,
		NotifyOnContact: true,
	})
	session, err := svc.CreateSession("Launch", 1)
	req.NoError(err)

	var message string
	notifier.EXPECT().
		SendText(gomock.Any(), destination, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, m string) error {
			message = m
			return fmt.Errorf("telegram down")
		}).
		Times(1)

	// A failing notice must not fail the submission
	req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))
	req.Contains(message, "Name: Jane Doe")
	req.Contains(message, "Phone: +2348012345678")
	req.Contains(message, "From session: Launch")
}

func TestSessionService_DeliverIfDue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("should send one document and mark the session notified", func(t *testing.T) {
		req := require.New(t)
		clk := clockwork.NewFakeClockAt(t0)
		repo := newBadgerRepository(t)
		notifier := mocks.NewMockNotifier(ctrl)
		svc := newService(repo, notifier, clk)

		session, err := svc.CreateSession("Launch", 1)
		req.NoError(err)
		req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))
		clk.Advance(61 * time.Second)

		var sent contract.Document
		notifier.EXPECT().
			SendDocument(gomock.Any(), destination, gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ string, d contract.Document) error {
				_, hasDeadline := ctx.Deadline()
				req.True(hasDeadline)
				sent = d
				return nil
			}).
			Times(1)

		fresh, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.NoError(svc.DeliverIfDue(context.Background(), fresh))
		// Second call is a no-op
		req.NoError(svc.DeliverIfDue(context.Background(), fresh))

		req.Equal(vcard.FileName(session.ID), sent.FileName)
		req.Equal(fmt.Sprintf("Contacts from session: Launch (%s)", session.ID), sent.Caption)
		cards, err := vcard.Parse(sent.Content)
		req.NoError(err)
		req.Len(cards, 1)
		req.Equal("Jane Doe", cards[0].FullName)

		stored, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.True(stored.Notified)
	})

	t.Run("should leave the session pending when sending fails", func(t *testing.T) {
		req := require.New(t)
		clk := clockwork.NewFakeClockAt(t0)
		repo := newBadgerRepository(t)
		notifier := mocks.NewMockNotifier(ctrl)
		svc := newService(repo, notifier, clk)

		session, err := svc.CreateSession("Launch", 1)
		req.NoError(err)
		req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))
		clk.Advance(2 * time.Minute)
		fresh, err := repo.FindByID(session.ID)
		req.NoError(err)

		notifier.EXPECT().SendDocument(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(context.DeadlineExceeded).Times(1)
		err = svc.DeliverIfDue(context.Background(), fresh)
		req.ErrorIs(err, errors.ErrDeliveryFailure)

		stored, err := repo.FindByID(session.ID)
		req.NoError(err)
		req.False(stored.Notified)

		// Retried successfully later
		notifier.EXPECT().SendDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
		req.NoError(svc.DeliverIfDue(context.Background(), fresh))
		stored, err = repo.FindByID(session.ID)
		req.NoError(err)
		req.True(stored.Notified)
	})

	t.Run("should ignore sessions that are open or empty", func(t *testing.T) {
		req := require.New(t)
		clk := clockwork.NewFakeClockAt(t0)
		repo := newBadgerRepository(t)
		notifier := mocks.NewMockNotifier(ctrl)
		notifier.EXPECT().SendDocument(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		svc := newService(repo, notifier, clk)

		open, err := svc.CreateSession("Open", 10)
		req.NoError(err)
		req.NoError(svc.AddContact(context.Background(), open.ID, "Jane Doe", "+2348012345678"))
		empty, err := svc.CreateSession("Empty", 1)
		req.NoError(err)
		clk.Advance(2 * time.Minute)

		for _, id := range []domain.SessionID{open.ID, empty.ID} {
			s, err := repo.FindByID(id)
			req.NoError(err)
			req.NoError(svc.DeliverIfDue(context.Background(), s))
		}
	})

	t.Run("should treat a concurrent mark as success", func(t *testing.T) {
		req := require.New(t)
		mockRepo := mocks.NewMockISessionRepository(ctrl)
		notifier := mocks.NewMockNotifier(ctrl)
		clk := clockwork.NewFakeClockAt(t0.Add(time.Hour))
		svc := newService(mockRepo, notifier, clk)

		session := domain.NewSession("id-1", "Launch", 1, t0)
		session.AppendContact(domain.Contact{FullName: "Jane Doe", Phone: "+2348012345678", AddedAt: t0})

		mockRepo.EXPECT().FindByID(session.ID).Return(session, nil)
		notifier.EXPECT().SendDocument(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		mockRepo.EXPECT().MarkNotified(session.ID, gomock.Any()).Return(errors.ErrAlreadyNotified)

		req.NoError(svc.DeliverIfDue(context.Background(), session))
	})
}

func TestSessionService_DeliverIfDue_ConcurrentCallsSendOnce(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clk := clockwork.NewFakeClockAt(t0)
	repo := newBadgerRepository(t)
	notifier := mocks.NewMockNotifier(ctrl)
	svc := newService(repo, notifier, clk)

	session, err := svc.CreateSession("Launch", 1)
	req.NoError(err)
	req.NoError(svc.AddContact(context.Background(), session.ID, "Jane Doe", "+2348012345678"))
	clk.Advance(61 * time.Second)
	snapshot, err := repo.FindByID(session.ID)
	req.NoError(err)

	notifier.EXPECT().
		SendDocument(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, contract.Document) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}).
		Times(1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.DeliverIfDue(context.Background(), snapshot)
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(session.ID)
	req.NoError(err)
	req.True(stored.Notified)
}
