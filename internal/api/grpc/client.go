package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/session"
)

// Client is a typed SessionService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in any, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *Client) stateCall(ctx context.Context, method string, opts ...grpc.CallOption) (session.State, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, &emptypb.Empty{}, out, opts...); err != nil {
		return session.State{}, err
	}
	var st session.State
	err := fromStruct(out, &st)
	return st, err
}

func (c *Client) entryCall(ctx context.Context, method string, in any, opts ...grpc.CallOption) (journal.Entry, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, in, out, opts...); err != nil {
		return journal.Entry{}, err
	}
	var e journal.Entry
	err := fromStruct(out, &e)
	return e, err
}

func (c *Client) StartListening(ctx context.Context, opts ...grpc.CallOption) (session.State, error) {
	return c.stateCall(ctx, "StartListening", opts...)
}

func (c *Client) StopListening(ctx context.Context, opts ...grpc.CallOption) (session.State, error) {
	return c.stateCall(ctx, "StopListening", opts...)
}

func (c *Client) ResetTranscript(ctx context.Context, opts ...grpc.CallOption) (session.State, error) {
	return c.stateCall(ctx, "ResetTranscript", opts...)
}

func (c *Client) GetState(ctx context.Context, opts ...grpc.CallOption) (session.State, error) {
	return c.stateCall(ctx, "GetState", opts...)
}

func (c *Client) SaveEntry(ctx context.Context, opts ...grpc.CallOption) (journal.Entry, error) {
	return c.entryCall(ctx, "SaveEntry", &emptypb.Empty{}, opts...)
}

func (c *Client) GetEntry(ctx context.Context, id string, opts ...grpc.CallOption) (journal.Entry, error) {
	return c.entryCall(ctx, "GetEntry", wrapperspb.String(id), opts...)
}

func (c *Client) UpdateEntry(ctx context.Context, id, title, content string, opts ...grpc.CallOption) (journal.Entry, error) {
	in, err := structpb.NewStruct(map[string]any{"id": id, "title": title, "content": content})
	if err != nil {
		return journal.Entry{}, err
	}
	return c.entryCall(ctx, "UpdateEntry", in, opts...)
}

func (c *Client) DeleteEntry(ctx context.Context, id string, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "DeleteEntry", wrapperspb.String(id), new(emptypb.Empty), opts...)
}

func (c *Client) ListEntries(ctx context.Context, opts ...grpc.CallOption) ([]journal.Entry, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListEntries", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	var list entryList
	err := fromStruct(out, &list)
	return list.Entries, err
}

// StateStream receives state snapshots from WatchState.
type StateStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next state.
func (s *StateStream) Recv() (session.State, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return session.State{}, err
	}
	var st session.State
	err := fromStruct(out, &st)
	return st, err
}

// WatchState opens a state stream. Cancel ctx to close it.
func (c *Client) WatchState(ctx context.Context, opts ...grpc.CallOption) (*StateStream, error) {
	stream, err := c.cc.NewStream(ctx, &SessionService_ServiceDesc.Streams[0], fullMethod("WatchState"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StateStream{stream: stream}, nil
}
