// Package pool implements a custody unit: it holds whatever funds are sent to it and
// releases them only on its admin's request.
package pool

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
)

// Config is owned by each pool instance.
type Config struct {
	Admin common.Address `json:"admin"`
	Title string         `json:"title"`
}

var configItem = store.NewItem[Config]("config")

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

	cfg := Config{Admin: common.HexToAddress(msg.Admin), Title: msg.Title}
	if err := configItem.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}

	deps.Logger.Debug("pool instantiated", "address", env.Contract.Address, "admin", cfg.Admin, "title", cfg.Title)
	return engine.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("admin", cfg.Admin.Hex()).
		AddAttribute("title", cfg.Title), nil
}

func (c *Contract) Execute(deps engine.Deps, env engine.Env, info engine.MessageInfo, raw json.RawMessage) (*engine.Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case msg.WithdrawFunds != nil:
		return executeWithdrawFunds(deps, env, info, msg.WithdrawFunds.Recipient)
	default:
		return nil, fmt.Errorf("%w: no execute variant set", ErrInvalidMessage)
	}
}

func executeWithdrawFunds(deps engine.Deps, env engine.Env, info engine.MessageInfo, recipient string) (*engine.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.Admin {
		return nil, ErrUnauthorized
	}
	if !common.IsHexAddress(recipient) {
		return nil, fmt.Errorf("%w: recipient %q", ErrInvalidAddress, recipient)
	}
	to := common.HexToAddress(recipient)

	balance := deps.Querier.AllBalances(env.Contract.Address)
	if balance.IsZero() {
		return nil, ErrEmptyBalance
	}

	deps.Logger.Info("withdrawing pool balance", "pool", env.Contract.Address, "recipient", to, "amount", balance.String())
	return engine.NewResponse().
		AddMessage(engine.CosmosMsg{Bank: &engine.BankSend{ToAddress: to, Amount: balance}}).
		AddAttribute("action", "withdraw_funds").
		AddAttribute("recipient", to.Hex()).
		AddAttribute("amount", balance.String()), nil
}

func (c *Contract) Query(deps engine.Deps, env engine.Env, raw json.RawMessage) (json.RawMessage, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch {
	case msg.Config != nil:
		cfg, err := configItem.Load(deps.Storage)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ConfigResponse{Admin: cfg.Admin.Hex(), Title: cfg.Title})
	default:
		return nil, fmt.Errorf("%w: no query variant set", ErrInvalidMessage)
	}
}

// Reply is never expected: the pool only emits dispatches that do not reply.
func (c *Contract) Reply(deps engine.Deps, env engine.Env, reply engine.Reply) (*engine.Response, error) {
	return nil, fmt.Errorf("%w: id %d", ErrUnexpectedReply, reply.ID)
}
