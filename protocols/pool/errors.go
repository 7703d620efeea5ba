package pool

import "errors"

var (
	ErrUnauthorized    = errors.New("pool: only admin can do this")
	ErrInvalidAddress  = errors.New("pool: invalid address")
	ErrEmptyBalance    = errors.New("pool: contract balance is empty")
	ErrInvalidMessage  = errors.New("pool: invalid message")
	ErrUnexpectedReply = errors.New("pool: unexpected reply")
)
