package engine

import (
	"encoding/json"
	"time"

	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Querier gives contracts read access to host state they do not own.
type Querier interface {
	AllBalances(addr common.Address) Coins
}

// Deps is everything a contract entry point may touch. Storage is private to the
// contract instance and transactional.
type Deps struct {
	Storage store.KVStore
	Querier Querier
	Logger  Logger
}

type BlockInfo struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

type ContractInfo struct {
	Address common.Address `json:"address"`
}

// Env describes the environment a call executes in.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract ContractInfo `json:"contract"`
}

// MessageInfo carries the caller and the funds attached to the call.
type MessageInfo struct {
	Sender common.Address `json:"sender"`
	Funds  Coins          `json:"funds,omitempty"`
}

// Contract is the host-facing surface of a contract implementation. Entry points never
// observe each other's in-memory state: anything that must survive a dispatch goes
// through Deps.Storage.
type Contract interface {
	Instantiate(deps Deps, env Env, info MessageInfo, msg json.RawMessage) (*Response, error)
	Execute(deps Deps, env Env, info MessageInfo, msg json.RawMessage) (*Response, error)
	Query(deps Deps, env Env, msg json.RawMessage) (json.RawMessage, error)
	Reply(deps Deps, env Env, reply Reply) (*Response, error)
}
