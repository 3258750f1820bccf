package grpc

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/efeurhobobullish/vcf-generator/errors"
	"github.com/efeurhobobullish/vcf-generator/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type SessionServer struct {
	service services.ISessionService
	log     *slog.Logger
}

func NewSessionServer(log *slog.Logger, service services.ISessionService) *SessionServer {
	return &SessionServer{service: service, log: log}
}

func (s *SessionServer) CreateSession(_ context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	session, err := s.service.CreateSession(req.Name, req.Duration)
	if err != nil {
		return nil, s.toStatus(err, "Failed to create session")
	}
	return &CreateSessionResponse{
		SessionID: session.ID.String(),
		Name:      session.Name,
		Duration:  session.DurationMinutes,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *SessionServer) GetSession(_ context.Context, req *GetSessionRequest) (*GetSessionResponse, error) {
	session, err := s.service.GetSession(domain.SessionID(req.SessionID))
	if err != nil {
		return nil, s.toStatus(err, "Failed to fetch session")
	}
	return &GetSessionResponse{
		Name:      session.Name,
		Duration:  session.DurationMinutes,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// AddContact runs on the request context: the best-effort contact notice is
// abandoned if the caller goes away, the submission is not.
func (s *SessionServer) AddContact(ctx context.Context, req *AddContactRequest) (*AddContactResponse, error) {
	err := s.service.AddContact(ctx, domain.SessionID(req.SessionID), req.FullName, req.Phone)
	if err != nil {
		return nil, s.toStatus(err, "Failed to add contact")
	}
	return &AddContactResponse{Success: true}, nil
}

func (s *SessionServer) toStatus(err error, internalMessage string) error {
	switch {
	case stderrors.Is(err, errors.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, errors.ErrNotFound):
		return status.Error(codes.NotFound, "Session not found")
	case stderrors.Is(err, errors.ErrExpired):
		return status.Error(codes.FailedPrecondition, "Session expired")
	default:
		s.log.Error(internalMessage, "error", err)
		return status.Error(codes.Internal, internalMessage)
	}
}
