package grpcstore

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dikanevn/bf/storage"
)

var codeFor = []struct {
	err  error
	code codes.Code
}{
	{storage.ErrNotFound, codes.NotFound},
	{storage.ErrAlreadyAllocated, codes.AlreadyExists},
	{storage.ErrSizeMismatch, codes.FailedPrecondition},
	{storage.ErrInvalidAddress, codes.InvalidArgument},
	{storage.ErrCorrupt, codes.DataLoss},
}

// mapErr converts a storage error into a gRPC status on the server side.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range codeFor {
		if errors.Is(err, c.err) {
			return status.Error(c.code, c.err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// mapRPC converts a gRPC status back into the storage sentinel on the client side.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, c := range codeFor {
		if st.Code() == c.code {
			return c.err
		}
	}
	return err
}
