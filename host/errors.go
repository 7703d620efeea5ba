package host

import "errors"

var (
	ErrContractNotFound = errors.New("host: contract not found")
	ErrCodeNotFound     = errors.New("host: code not found")
	ErrAddressCollision = errors.New("host: contract address already in use")
	ErrInvalidMessage   = errors.New("host: invalid dispatch")
	ErrDepthExceeded    = errors.New("host: dispatch depth exceeded")
)
