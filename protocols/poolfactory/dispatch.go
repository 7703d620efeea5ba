package poolfactory

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/ethereum/go-ethereum/common"
)

// Reply tags. The host echoes them back unchanged on the reply.
const (
	SpawnReplyID    uint64 = 0
	TransferReplyID uint64 = 1
)

// SpawnPool builds the dispatch instantiating a pool from codeID. owner becomes the
// instance's host-level admin, admin the pool's own withdrawal admin. A failed spawn
// aborts the transaction.
func SpawnPool(codeID uint64, owner, admin common.Address, title string) (engine.SubMsg, error) {
	initMsg, err := json.Marshal(pool.InstantiateMsg{
		Admin: admin.Hex(),
		Title: title,
	})
	if err != nil {
		return engine.SubMsg{}, fmt.Errorf("poolfactory: encode pool init msg: %w", err)
	}

	return engine.SubMsg{
		ID: SpawnReplyID,
		Msg: engine.CosmosMsg{
			Instantiate: &engine.InstantiateMsg{
				CodeID: codeID,
				Admin:  &owner,
				Msg:    initMsg,
				Label:  title,
			},
		},
		ReplyOn: engine.ReplySuccess,
	}, nil
}

// TransferToPool builds the dispatch moving funds to a resolved pool address.
func TransferToPool(addr common.Address, funds engine.Coins) engine.SubMsg {
	return engine.SubMsg{
		ID: TransferReplyID,
		Msg: engine.CosmosMsg{
			Bank: &engine.BankSend{
				ToAddress: addr,
				Amount:    funds,
			},
		},
		ReplyOn: engine.ReplySuccess,
	}
}
