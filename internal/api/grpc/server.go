// Package grpcapi serves the dictation session and the journal over gRPC.
package grpcapi

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"voice-journal/internal/app"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/session"
)

// Session is the session surface the service drives.
type Session interface {
	Start() error
	Stop() error
	Reset() error
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// EntrySaver saves the session transcript as a journal entry.
type EntrySaver interface {
	Save(ctx context.Context) (journal.Entry, error)
}

// Journal manages saved entries.
type Journal interface {
	Get(ctx context.Context, id string) (journal.Entry, error)
	List(ctx context.Context) ([]journal.Entry, error)
	Update(ctx context.Context, id, title, content string) (journal.Entry, error)
	Delete(ctx context.Context, id string) error
}

// Server implements SessionServiceServer.
type Server struct {
	session Session
	saver   EntrySaver
	journal Journal
	log     zerolog.Logger
}

// NewServer creates a SessionService server.
func NewServer(s Session, saver EntrySaver, j Journal) *Server {
	return &Server{
		session: s,
		saver:   saver,
		journal: j,
		log:     logging.WithComponent("grpc"),
	}
}

// Register registers the SessionService backed by the application.
func Register(g *grpc.Server, a *app.Application) {
	RegisterSessionServiceServer(g, NewServer(a.Session, a.Dictation, a.Journal))
}

func (s *Server) StartListening(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(s.session.Start)
}

func (s *Server) StopListening(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(s.session.Stop)
}

func (s *Server) ResetTranscript(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return s.command(s.session.Reset)
}

func (s *Server) GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return encode(s.session.State())
}

func (s *Server) command(run func() error) (*structpb.Struct, error) {
	if err := run(); err != nil {
		return nil, toStatus(err)
	}
	return encode(s.session.State())
}

// WatchState sends the current state, then every change until the client
// goes away. A slow client skips intermediate states.
func (s *Server) WatchState(_ *emptypb.Empty, stream SessionService_WatchStateServer) error {
	updates, cancel := s.session.Subscribe()
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			msg, err := encode(st)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				s.log.Debug().Err(err).Msg("WatchState send failed")
				return err
			}
		}
	}
}

func (s *Server) SaveEntry(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entry, err := s.saver.Save(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(entry)
}

func (s *Server) ListEntries(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	entries, err := s.journal.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return encode(entryList{Entries: entries})
}

func (s *Server) GetEntry(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := requireID(req.GetValue())
	if err != nil {
		return nil, err
	}
	entry, err := s.journal.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(entry)
}

// UpdateEntry expects {"id", "title", "content"}.
func (s *Server) UpdateEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id, err := requireID(fields["id"].GetStringValue())
	if err != nil {
		return nil, err
	}
	entry, err := s.journal.Update(ctx, id, fields["title"].GetStringValue(), fields["content"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(entry)
}

func (s *Server) DeleteEntry(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	id, err := requireID(req.GetValue())
	if err != nil {
		return nil, err
	}
	if err := s.journal.Delete(ctx, id); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

type entryList struct {
	Entries []journal.Entry `json:"entries"`
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "entry id is required")
	}
	return id, nil
}

func encode(v any) (*structpb.Struct, error) {
	msg, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return msg, nil
}

// toStatus maps service errors to gRPC status errors.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, journal.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, journal.ErrNothingToSave):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
