package storage

import "errors"

var (
	ErrNotFound         = errors.New("storage: not found")
	ErrAlreadyAllocated = errors.New("storage: already allocated")
	ErrSizeMismatch     = errors.New("storage: size mismatch")
	ErrInvalidAddress   = errors.New("storage: invalid address")
	ErrCorrupt          = errors.New("storage: corrupt account encoding")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyAllocated(err error) bool { return errors.Is(err, ErrAlreadyAllocated) }
