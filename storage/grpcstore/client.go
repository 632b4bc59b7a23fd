package grpcstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dikanevn/bf/storage"
)

// Client implements storage.Store over the ledger Store service.
type Client struct {
	cc     *grpc.ClientConn
	client StoreClient

	// Timeout applies per RPC when non-zero and the caller's context has no deadline.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial creates a client for target. Connection happens lazily on first RPC.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewStoreClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func frame(addr storage.Address, rest []byte) *wrapperspb.BytesValue {
	b := make([]byte, 0, len(addr)+len(rest))
	b = append(b, addr[:]...)
	return wrapperspb.Bytes(append(b, rest...))
}

func (c *Client) Allocate(ctx context.Context, addr storage.Address, acct storage.Account) error {
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err = c.client.Allocate(ctx, frame(addr, b))
	return mapRPC(err)
}

func (c *Client) Read(ctx context.Context, addr storage.Address) (storage.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Read(ctx, frame(addr, nil))
	if err != nil {
		return storage.Account{}, mapRPC(err)
	}
	return storage.DecodeAccount(reply.GetValue())
}

func (c *Client) Write(ctx context.Context, addr storage.Address, data []byte) error {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err := c.client.Write(ctx, frame(addr, data))
	return mapRPC(err)
}

func (c *Client) Deallocate(ctx context.Context, addr storage.Address) (storage.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Deallocate(ctx, frame(addr, nil))
	if err != nil {
		return storage.Account{}, mapRPC(err)
	}
	return storage.DecodeAccount(reply.GetValue())
}

func (c *Client) Has(ctx context.Context, addr storage.Address) (bool, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Has(ctx, frame(addr, nil))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}
