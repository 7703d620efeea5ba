package poolfactory

import (
	"fmt"
	"strconv"

	"github.com/defistate/poolfactory-go/engine"
)

// Reply routes a completed dispatch by its tag. Anything it cannot resolve is fatal
// and aborts the whole transaction.
func (c *Contract) Reply(deps engine.Deps, env engine.Env, reply engine.Reply) (*engine.Response, error) {
	switch reply.ID {
	case SpawnReplyID:
		return handleSpawnReply(deps, reply)
	case TransferReplyID:
		return handleTransferReply(deps, reply)
	default:
		deps.Logger.Error("reply with unknown tag", "id", reply.ID)
		return nil, &UnknownReplyError{ID: reply.ID}
	}
}

func handleSpawnReply(deps engine.Deps, reply engine.Reply) (*engine.Response, error) {
	if !reply.Result.IsOk() {
		return nil, fmt.Errorf("%w: spawn reply carries no result: %s", ErrDecodeFailure, reply.Result.Err)
	}
	res, err := engine.ParseInstantiateResponse(reply.Result.Ok.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	var pending spawnContext
	if err := NewCorrelator(deps.Storage).Take(SpawnReplyID, &pending); err != nil {
		return nil, err
	}
	if err := NewRegistry(deps.Storage).Record(pending.PoolID, res.ContractAddress); err != nil {
		return nil, err
	}

	deps.Logger.Info("pool recorded", "pool_id", pending.PoolID, "address", res.ContractAddress)
	poolID := strconv.FormatUint(pending.PoolID, 10)
	return engine.NewResponse().
		AddAttribute("action", "pool_instantiated").
		AddAttribute("pool_id", poolID).
		AddAttribute("pool_addr", res.ContractAddress.Hex()).
		AddEvent(engine.Event{
			Type: "pool_created",
			Attributes: []engine.Attribute{
				{Key: "pool_id", Value: poolID},
				{Key: "pool_addr", Value: res.ContractAddress.Hex()},
				{Key: "title", Value: pending.Title},
			},
		}), nil
}

func handleTransferReply(deps engine.Deps, reply engine.Reply) (*engine.Response, error) {
	if !reply.Result.IsOk() {
		return nil, fmt.Errorf("%w: transfer reply carries no result: %s", ErrDecodeFailure, reply.Result.Err)
	}

	var pending transferContext
	if err := NewCorrelator(deps.Storage).Take(TransferReplyID, &pending); err != nil {
		return nil, err
	}

	deps.Logger.Info("funds redirected", "sender", pending.Requester)
	return engine.NewResponse().
		AddAttribute("action", "redirect_funds").
		AddAttribute("sender", pending.Requester.Hex()), nil
}
