package server

import (
	"errors"
	"strconv"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/defistate/poolfactory-go/protocols/poolfactory"
)

// Application error codes carried in JSON-RPC error objects. Clients map them back to
// the sentinel errors of the contract packages.
const (
	CodeInvalidRequest    = 4000
	CodeUnauthorized      = 4001
	CodeNoFunds           = 4002
	CodeInsufficientFunds = 4003
	CodePoolNotFound      = 4004
	CodeUnknownReplyTag   = 4005
	CodeDecodeFailure     = 4006
	CodeMissingContext    = 4007
	CodeEmptyBalance      = 4008
	CodeContractNotFound  = 4040
	CodeInternal          = -32000
)

// Error is a contract failure as it crosses the wire.
type Error struct {
	code int
	msg  string
	data any
}

func (e *Error) Error() string          { return e.msg }
func (e *Error) ErrorCode() int         { return e.code }
func (e *Error) ErrorData() interface{} { return e.data }

// ErrorCode classifies err. Unknown errors get CodeInternal.
func ErrorCode(err error) int {
	switch {
	case errors.Is(err, pool.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, poolfactory.ErrNoFunds):
		return CodeNoFunds
	case errors.Is(err, engine.ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, poolfactory.ErrPoolNotFound):
		return CodePoolNotFound
	case errors.Is(err, poolfactory.ErrUnknownReplyTag):
		return CodeUnknownReplyTag
	case errors.Is(err, poolfactory.ErrDecodeFailure):
		return CodeDecodeFailure
	case errors.Is(err, poolfactory.ErrMissingContext):
		return CodeMissingContext
	case errors.Is(err, pool.ErrEmptyBalance):
		return CodeEmptyBalance
	case errors.Is(err, host.ErrContractNotFound), errors.Is(err, host.ErrCodeNotFound):
		return CodeContractNotFound
	case errors.Is(err, poolfactory.ErrInvalidMessage),
		errors.Is(err, poolfactory.ErrInvalidAddress),
		errors.Is(err, poolfactory.ErrInvalidTitle),
		errors.Is(err, pool.ErrInvalidMessage),
		errors.Is(err, pool.ErrInvalidAddress),
		errors.Is(err, host.ErrInvalidMessage),
		errors.Is(err, engine.ErrInvalidDenom),
		errors.Is(err, engine.ErrDuplicateDenom),
		errors.Is(err, engine.ErrZeroAmount):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// toRPCError attaches a code to err. A missing pool carries its id as error data.
func toRPCError(err error) error {
	if err == nil {
		return nil
	}
	out := &Error{code: ErrorCode(err), msg: err.Error()}
	var notFound *poolfactory.PoolNotFoundError
	if errors.As(err, &notFound) {
		out.data = strconv.FormatUint(notFound.PoolID, 10)
	}
	return out
}
