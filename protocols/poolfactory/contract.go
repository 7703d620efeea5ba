// Package poolfactory spawns pools on demand and forwards funds to them by id.
//
// Both operations are split across a dispatch and a reply. The entry point validates,
// writes whatever context the reply will need into the Correlator and emits exactly
// one tagged dispatch; the host executes it and calls Reply before the transaction
// commits. No in-memory state survives between the two halves.
package poolfactory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultPoolsLimit = 10
	maxPoolsLimit     = 30
)

var _ engine.Contract = (*Contract)(nil)

type Contract struct{}

func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps engine.Deps, env engine.Env, info engine.MessageInfo, raw json.RawMessage) (*engine.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !common.IsHexAddress(msg.Admin) {
		return nil, fmt.Errorf("%w: admin %q", ErrInvalidAddress, msg.Admin)
	}

	cfg := Config{
		Admin:      common.HexToAddress(msg.Admin),
		PoolCodeID: msg.PoolCodeID,
	}
	if err := NewRegistry(deps.Storage).SaveConfig(cfg); err != nil {
		return nil, err
	}

	deps.Logger.Info("factory instantiated", "address", env.Contract.Address, "admin", cfg.Admin, "pool_code_id", cfg.PoolCodeID)
	return engine.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("admin", cfg.Admin.Hex()), nil
}

func (c *Contract) Execute(deps engine.Deps, env engine.Env, info engine.MessageInfo, raw json.RawMessage) (*engine.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case msg.CreatePool != nil && msg.RedirectFunds == nil:
		return executeCreatePool(deps, info, *msg.CreatePool)
	case msg.RedirectFunds != nil && msg.CreatePool == nil:
		return executeRedirectFunds(deps, info, msg.RedirectFunds.PoolID)
	default:
		return nil, fmt.Errorf("%w: exactly one execute variant must be set", ErrInvalidMessage)
	}
}

// executeCreatePool allocates the pool id up front and stashes it for the spawn
// reply, which is the only place the spawned address becomes known.
func executeCreatePool(deps engine.Deps, info engine.MessageInfo, msg CreatePoolMsg) (*engine.Response, error) {
	title := strings.TrimSpace(msg.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}

	registry := NewRegistry(deps.Storage)
	cfg, err := registry.Config()
	if err != nil {
		return nil, err
	}

	admin := cfg.Admin
	if msg.Admin != "" {
		if !common.IsHexAddress(msg.Admin) {
			return nil, fmt.Errorf("%w: admin %q", ErrInvalidAddress, msg.Admin)
		}
		admin = common.HexToAddress(msg.Admin)
	}

	id, err := registry.AllocateID()
	if err != nil {
		return nil, err
	}
	if err := NewCorrelator(deps.Storage).Stash(SpawnReplyID, spawnContext{PoolID: id, Title: title}); err != nil {
		return nil, err
	}

	sub, err := SpawnPool(cfg.PoolCodeID, info.Sender, admin, title)
	if err != nil {
		return nil, err
	}

	deps.Logger.Debug("dispatching pool spawn", "pool_id", id, "admin", admin, "title", title)
	return engine.NewResponse().
		AddSubMessage(sub).
		AddAttribute("action", "create_pool").
		AddAttribute("pool_id", strconv.FormatUint(id, 10)).
		AddAttribute("title", title), nil
}

func executeRedirectFunds(deps engine.Deps, info engine.MessageInfo, poolID uint64) (*engine.Response, error) {
	if info.Funds.IsZero() {
		return nil, ErrNoFunds
	}

	addr, ok, err := NewRegistry(deps.Storage).Lookup(poolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &PoolNotFoundError{PoolID: poolID}
	}

	if err := NewCorrelator(deps.Storage).Stash(TransferReplyID, transferContext{Requester: info.Sender}); err != nil {
		return nil, err
	}

	deps.Logger.Debug("dispatching transfer", "pool_id", poolID, "pool", addr, "amount", info.Funds.String())
	return engine.NewResponse().
		AddSubMessage(TransferToPool(addr, info.Funds)).
		AddAttribute("action", "redirect_funds").
		AddAttribute("pool_id", strconv.FormatUint(poolID, 10)).
		AddAttribute("amount", info.Funds.String()), nil
}

func (c *Contract) Query(deps engine.Deps, env engine.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	registry := NewRegistry(deps.Storage)
	switch {
	case msg.Config != nil:
		cfg, err := registry.Config()
		if err != nil {
			return nil, err
		}
		return json.Marshal(ConfigResponse{Admin: cfg.Admin.Hex(), PoolCodeID: cfg.PoolCodeID})

	case msg.PoolAddress != nil:
		res := PoolResponse{PoolID: msg.PoolAddress.PoolID}
		addr, ok, err := registry.Lookup(msg.PoolAddress.PoolID)
		if err != nil {
			return nil, err
		}
		if ok {
			res.PoolAddr = addr.Hex()
		}
		return json.Marshal(res)

	case msg.Pools != nil:
		limit := defaultPoolsLimit
		if msg.Pools.Limit != nil {
			limit = min(int(*msg.Pools.Limit), maxPoolsLimit)
		}
		var startAfter uint64
		if msg.Pools.StartAfter != nil {
			startAfter = *msg.Pools.StartAfter
		}
		list, err := registry.Pools(startAfter, limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(PoolsResponse{Pools: list})

	default:
		return nil, fmt.Errorf("%w: no query variant set", ErrInvalidMessage)
	}
}
