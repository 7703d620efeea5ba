package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// txn is the state of one top-level transaction. Every level of dispatch works on its
// own cache over its parent's, so a failed dispatch can be rolled back on its own when
// the emitter asked to hear about errors.
type txn struct {
	h      *Host
	ctx    context.Context
	root   *store.CacheStore
	height uint64
	depth  int
	events []engine.Event
}

type txFunc func(tx *txn) (common.Address, []byte, error)

func (h *Host) runTx(ctx context.Context, entry string, fn txFunc) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		h.metrics.txDuration.WithLabelValues(entry).Observe(time.Since(start).Seconds())
	}()

	h.mu.Lock()
	h.height++
	tx := &txn{
		h:      h,
		ctx:    ctx,
		root:   store.NewCacheStore(h.durable, h.storeM),
		height: h.height,
	}

	addr, data, err := tx.call(fn)
	if err != nil {
		tx.root.Discard()
		h.mu.Unlock()
		h.metrics.txTotal.WithLabelValues(entry, "error").Inc()
		h.logger.Warn("transaction rolled back", "entry", entry, "height", tx.height, "error", err)
		return nil, err
	}

	tx.root.Write()
	h.updateCachedView()
	h.mu.Unlock()

	result := &TxResult{
		Height:   tx.height,
		Entry:    entry,
		Contract: addr,
		Events:   tx.events,
		Data:     data,
	}
	h.metrics.txTotal.WithLabelValues(entry, "ok").Inc()
	h.logger.Debug("transaction committed", "entry", entry, "height", tx.height, "contract", addr, "events", len(tx.events))
	h.results.Send(result)
	return result, nil
}

// call turns a contract panic into an ordinary failure so the transaction rolls back.
func (tx *txn) call(fn txFunc) (addr common.Address, data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host: contract panicked: %v", r)
		}
	}()
	return fn(tx)
}

func (tx *txn) execute(s *store.CacheStore, sender, contract common.Address, msg json.RawMessage, funds engine.Coins, events *[]engine.Event) ([]byte, error) {
	info, err := loadInstance(s, contract)
	if err != nil {
		return nil, err
	}
	impl, err := tx.h.code(info.CodeID)
	if err != nil {
		return nil, err
	}
	if len(funds) > 0 {
		if err := newBank(s).send(sender, contract, funds); err != nil {
			return nil, err
		}
	}

	res, err := impl.Execute(tx.h.deps(s, contract), tx.h.env(contract, tx.height), engine.MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", contract.Hex(), err)
	}
	*events = append(*events, engine.Event{
		Type: "execute",
		Attributes: []engine.Attribute{
			{Key: "_contract_address", Value: contract.Hex()},
		},
	})
	return tx.handleResponse(s, contract, res, events)
}

func (tx *txn) instantiate(s *store.CacheStore, creator common.Address, codeID uint64, msg json.RawMessage, funds engine.Coins, label string, admin *common.Address, events *[]engine.Event) (common.Address, []byte, error) {
	impl, err := tx.h.code(codeID)
	if err != nil {
		return common.Address{}, nil, err
	}

	addr := crypto.CreateAddress(creator, nextNonce(s))
	if _, err := loadInstance(s, addr); err == nil {
		return common.Address{}, nil, fmt.Errorf("%w: %s", ErrAddressCollision, addr.Hex())
	}
	info := ContractInfo{Address: addr, CodeID: codeID, Creator: creator, Admin: admin, Label: label}
	if err := saveInstance(s, info); err != nil {
		return common.Address{}, nil, err
	}
	if len(funds) > 0 {
		if err := newBank(s).send(creator, addr, funds); err != nil {
			return common.Address{}, nil, err
		}
	}

	res, err := impl.Instantiate(tx.h.deps(s, addr), tx.h.env(addr, tx.height), engine.MessageInfo{Sender: creator, Funds: funds}, msg)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("instantiate code %d: %w", codeID, err)
	}
	*events = append(*events, engine.Event{
		Type: "instantiate",
		Attributes: []engine.Attribute{
			{Key: "_contract_address", Value: addr.Hex()},
			{Key: "code_id", Value: strconv.FormatUint(codeID, 10)},
		},
	})
	data, err := tx.handleResponse(s, addr, res, events)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, data, nil
}

// handleResponse records the contract's observations, then runs its dispatches in
// emission order. A reply that sets data overrides the contract's own data.
func (tx *txn) handleResponse(s *store.CacheStore, contract common.Address, res *engine.Response, events *[]engine.Event) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	*events = append(*events, contractEvents(contract, res)...)

	data := res.Data
	for _, sub := range res.Messages {
		replyData, err := tx.dispatch(s, contract, sub, events)
		if err != nil {
			return nil, err
		}
		if replyData != nil {
			data = replyData
		}
	}
	return data, nil
}

func (tx *txn) dispatch(parent *store.CacheStore, contract common.Address, sub engine.SubMsg, events *[]engine.Event) ([]byte, error) {
	if err := tx.ctx.Err(); err != nil {
		return nil, err
	}
	if tx.depth >= tx.h.maxDepth {
		return nil, fmt.Errorf("%w: %d", ErrDepthExceeded, tx.h.maxDepth)
	}
	tx.depth++
	defer func() { tx.depth-- }()

	kind := sub.Msg.Kind()
	child := parent.Cache()
	var subEvents []engine.Event
	data, err := tx.runMsg(child, contract, sub.Msg, &subEvents)

	if err != nil {
		child.Discard()
		tx.h.metrics.dispatchTotal.WithLabelValues(kind, "failed").Inc()
		tx.h.logger.Debug("dispatch failed", "contract", contract, "id", sub.ID, "kind", kind, "error", err)
		if !sub.ReplyOn.WantsReply(true) {
			return nil, fmt.Errorf("dispatch %d (%s) from %s: %w", sub.ID, kind, contract.Hex(), err)
		}
		return tx.reply(parent, contract, engine.Reply{ID: sub.ID, Result: engine.SubMsgResult{Err: err.Error()}}, events)
	}

	child.Write()
	*events = append(*events, subEvents...)
	tx.h.metrics.dispatchTotal.WithLabelValues(kind, "ok").Inc()
	if !sub.ReplyOn.WantsReply(false) {
		return nil, nil
	}
	return tx.reply(parent, contract, engine.Reply{
		ID:     sub.ID,
		Result: engine.SubMsgResult{Ok: &engine.SubMsgResponse{Events: subEvents, Data: data}},
	}, events)
}

func (tx *txn) runMsg(s *store.CacheStore, sender common.Address, msg engine.CosmosMsg, events *[]engine.Event) ([]byte, error) {
	switch {
	case msg.Instantiate != nil:
		m := msg.Instantiate
		addr, data, err := tx.instantiate(s, sender, m.CodeID, m.Msg, m.Funds, m.Label, m.Admin, events)
		if err != nil {
			return nil, err
		}
		return engine.EncodeInstantiateResponse(engine.InstantiateResponse{ContractAddress: addr, Data: data}), nil

	case msg.Bank != nil:
		m := msg.Bank
		if err := newBank(s).send(sender, m.ToAddress, m.Amount); err != nil {
			return nil, err
		}
		*events = append(*events, engine.Event{
			Type: "transfer",
			Attributes: []engine.Attribute{
				{Key: "recipient", Value: m.ToAddress.Hex()},
				{Key: "sender", Value: sender.Hex()},
				{Key: "amount", Value: m.Amount.String()},
			},
		})
		return nil, nil

	case msg.Execute != nil:
		m := msg.Execute
		return tx.execute(s, sender, m.Contract, m.Msg, m.Funds, events)

	default:
		return nil, fmt.Errorf("%w: no intent set", ErrInvalidMessage)
	}
}

func (tx *txn) reply(s *store.CacheStore, contract common.Address, reply engine.Reply, events *[]engine.Event) ([]byte, error) {
	info, err := loadInstance(s, contract)
	if err != nil {
		return nil, err
	}
	impl, err := tx.h.code(info.CodeID)
	if err != nil {
		return nil, err
	}

	res, err := impl.Reply(tx.h.deps(s, contract), tx.h.env(contract, tx.height), reply)
	tx.h.metrics.replyTotal.WithLabelValues(statusLabel(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("reply %d on %s: %w", reply.ID, contract.Hex(), err)
	}
	*events = append(*events, engine.Event{
		Type: "reply",
		Attributes: []engine.Attribute{
			{Key: "_contract_address", Value: contract.Hex()},
			{Key: "id", Value: strconv.FormatUint(reply.ID, 10)},
		},
	})
	return tx.handleResponse(s, contract, res, events)
}

func contractEvents(contract common.Address, res *engine.Response) []engine.Event {
	var out []engine.Event
	addrAttr := engine.Attribute{Key: "_contract_address", Value: contract.Hex()}
	if len(res.Attributes) > 0 {
		out = append(out, engine.Event{
			Type:       "wasm",
			Attributes: append([]engine.Attribute{addrAttr}, res.Attributes...),
		})
	}
	for _, ev := range res.Events {
		out = append(out, engine.Event{
			Type:       "wasm-" + ev.Type,
			Attributes: append([]engine.Attribute{addrAttr}, ev.Attributes...),
		})
	}
	return out
}
