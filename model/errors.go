package model

import (
	"errors"
	"fmt"

	"github.com/dikanevn/bf/issuance"
)

type ErrorCode string

// Boundary codes that have no issuance counterpart. Issuance failures keep
// their own BF-* code.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Kind    string    `json:"kind,omitempty"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func mapErr(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	var ie *issuance.Error
	if errors.As(err, &ie) {
		return &CodedError{Code: ErrorCode(ie.Code), Kind: string(ie.Kind), Message: err.Error()}
	}
	return NewError(ErrInternal, err.Error())
}
