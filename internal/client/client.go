package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/zpw/internal/api"
	"github.com/matheus3301/zpw/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to a session daemon.
type Client struct {
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (api.Status, error) {
	out, err := c.invoke(ctx, api.MethodGetStatus, nil)
	if err != nil {
		return api.Status{}, err
	}
	return api.DecodeStatus(out), nil
}

// ReloadCredentials asks the daemon to re-read credentials.toml.
func (c *Client) ReloadCredentials(ctx context.Context) (api.Status, error) {
	out, err := c.invoke(ctx, api.MethodReloadCredentials, nil)
	if err != nil {
		return api.Status{}, err
	}
	return api.DecodeStatus(out), nil
}

func (c *Client) TrackMessage(ctx context.Context, m *store.Message) (*store.Message, error) {
	in, err := api.EncodeMessage(m)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, api.FullMethod(api.MethodTrackMessage), in, out); err != nil {
		return nil, err
	}
	return api.DecodeMessage(out)
}

// ListMessages lists tracked messages; an empty threadID lists every thread.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]store.Message, error) {
	out, err := c.invoke(ctx, api.MethodListMessages, map[string]any{"thread_id": threadID, "limit": limit})
	if err != nil {
		return nil, err
	}
	return api.DecodeMessages(out)
}

func (c *Client) Undo(ctx context.Context, globalMsgID string) (api.UndoResult, error) {
	out, err := c.invoke(ctx, api.MethodUndo, map[string]any{"global_msg_id": globalMsgID})
	if err != nil {
		return api.UndoResult{}, err
	}
	return api.DecodeUndoResult(out), nil
}

// QueueUndo returns the request id of the queued undo.
func (c *Client) QueueUndo(ctx context.Context, globalMsgID string) (string, error) {
	out, err := c.invoke(ctx, api.MethodQueueUndo, map[string]any{"global_msg_id": globalMsgID})
	if err != nil {
		return "", err
	}
	return api.DecodeUndoResult(out).RequestID, nil
}

func (c *Client) GetUndo(ctx context.Context, requestID string) (*store.UndoRequest, error) {
	out, err := c.invoke(ctx, api.MethodGetUndo, map[string]any{"request_id": requestID})
	if err != nil {
		return nil, err
	}
	return api.DecodeUndoRequest(out), nil
}

var watchDesc = &grpc.StreamDesc{StreamName: api.MethodWatchEvents, ServerStreams: true}

// WatchEvents calls fn for each daemon event whose kind starts with prefix
// until ctx is done, the stream ends, or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(api.Event) error) error {
	stream, err := c.conn.NewStream(ctx, watchDesc, api.FullMethod(api.MethodWatchEvents))
	if err != nil {
		return err
	}
	in, err := structpb.NewStruct(map[string]any{"prefix": prefix})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(api.DecodeEvent(out)); err != nil {
			return err
		}
	}
}
