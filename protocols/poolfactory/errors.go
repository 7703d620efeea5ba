package poolfactory

import (
	"errors"
	"fmt"
)

var (
	ErrNoFunds         = errors.New("poolfactory: didn't send any funds")
	ErrPoolNotFound    = errors.New("poolfactory: pool not found")
	ErrPoolExists      = errors.New("poolfactory: pool already recorded")
	ErrUnknownReplyTag = errors.New("poolfactory: unknown reply id")
	ErrDecodeFailure   = errors.New("poolfactory: malformed reply")
	ErrMissingContext  = errors.New("poolfactory: no pending request for reply")
	ErrInvalidAddress  = errors.New("poolfactory: invalid address")
	ErrInvalidTitle    = errors.New("poolfactory: title must not be empty")
	ErrInvalidMessage  = errors.New("poolfactory: invalid message")
)

// PoolNotFoundError names the pool id that failed to resolve.
type PoolNotFoundError struct {
	PoolID uint64
}

func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("poolfactory: pool %d not found", e.PoolID)
}

func (e *PoolNotFoundError) Is(target error) bool {
	return target == ErrPoolNotFound
}

// UnknownReplyError is returned when a reply carries a tag this contract never emits.
type UnknownReplyError struct {
	ID uint64
}

func (e *UnknownReplyError) Error() string {
	return fmt.Sprintf("poolfactory: got a reply with unknown id: %d", e.ID)
}

func (e *UnknownReplyError) Is(target error) bool {
	return target == ErrUnknownReplyTag
}
