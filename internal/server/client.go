package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/docdeps/pkg/document"
)

// RemoteError is a failed call as reported by the server
type RemoteError struct {
	Code    codes.Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

// Is matches document.ErrNotFound for NotFound statuses
func (e *RemoteError) Is(target error) bool {
	return target == document.ErrNotFound && e.Code == codes.NotFound
}

// Client calls a remote docdepsd
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// Dial connects to addr without transport security; extra options are appended
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, own: true}, nil
}

// NewClient wraps an existing connection; Close leaves it open
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes a connection opened by Dial
func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

// Resolve asks the server for the dependency closure of req.DocID.
// Server failures come back as *RemoteError.
func (c *Client) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResponse, error) {
	in, err := req.toStruct()
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ResolveMethod, in, out); err != nil {
		if st, ok := status.FromError(err); ok {
			return nil, &RemoteError{Code: st.Code(), Message: st.Message()}
		}
		return nil, err
	}
	return responseFromStruct(out), nil
}
