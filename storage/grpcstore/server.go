package grpcstore

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dikanevn/bf/storage"
)

// Server exposes a storage.Store over the ledger Store service.
type Server struct {
	UnimplementedStoreServer
	Store  storage.Store
	Logger *zap.Logger
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Server) ready() error {
	if s == nil || s.Store == nil {
		return status.Error(codes.FailedPrecondition, "missing store")
	}
	return nil
}

func splitAddr(b []byte) (storage.Address, []byte, error) {
	var a storage.Address
	if len(b) < len(a) {
		return a, nil, status.Error(codes.InvalidArgument, storage.ErrInvalidAddress.Error())
	}
	copy(a[:], b)
	return a, b[len(a):], nil
}

func (s *Server) Allocate(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	addr, rest, err := splitAddr(in.GetValue())
	if err != nil {
		return nil, err
	}
	acct, err := storage.DecodeAccount(rest)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Store.Allocate(ctx, addr, acct); err != nil {
		s.logger().Debug("allocate rejected", zap.Stringer("address", addr), zap.Error(err))
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) Read(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	addr, rest, err := splitAddr(in.GetValue())
	if err != nil || len(rest) != 0 {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidAddress.Error())
	}
	acct, err := s.Store.Read(ctx, addr)
	if err != nil {
		return nil, mapErr(err)
	}
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Write(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	addr, data, err := splitAddr(in.GetValue())
	if err != nil {
		return nil, err
	}
	if err := s.Store.Write(ctx, addr, data); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) Deallocate(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	addr, rest, err := splitAddr(in.GetValue())
	if err != nil || len(rest) != 0 {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidAddress.Error())
	}
	acct, err := s.Store.Deallocate(ctx, addr)
	if err != nil {
		return nil, mapErr(err)
	}
	s.logger().Info("account deallocated", zap.Stringer("address", addr), zap.Uint64("deposit", acct.Deposit))
	b, err := storage.EncodeAccount(acct)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	addr, rest, err := splitAddr(in.GetValue())
	if err != nil || len(rest) != 0 {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidAddress.Error())
	}
	ok, err := s.Store.Has(ctx, addr)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}
