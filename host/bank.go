package host

import (
	"fmt"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var bankPrefix = []byte("bank/")

// bank keeps balances as 32-byte big-endian amounts under addr||denom, inside the
// same transactional store as contract state.
type bank struct {
	s store.KVStore
}

func newBank(s store.KVStore) bank {
	return bank{s: store.NewPrefixStore(s, bankPrefix)}
}

func balanceKey(addr common.Address, denom string) []byte {
	return append(addr.Bytes(), denom...)
}

func (b bank) balance(addr common.Address, denom string) *uint256.Int {
	raw := b.s.Get(balanceKey(addr, denom))
	if raw == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).SetBytes(raw)
}

func (b bank) setBalance(addr common.Address, denom string, amount *uint256.Int) {
	key := balanceKey(addr, denom)
	if amount.IsZero() {
		b.s.Delete(key)
		return
	}
	v := amount.Bytes32()
	b.s.Set(key, v[:])
}

func (b bank) AllBalances(addr common.Address) engine.Coins {
	var coins engine.Coins
	b.s.Iterate(addr.Bytes(), func(key, value []byte) bool {
		coins = append(coins, engine.Coin{
			Denom:  string(key[common.AddressLength:]),
			Amount: new(uint256.Int).SetBytes(value),
		})
		return true
	})
	return engine.NewCoins(coins...)
}

func (b bank) mint(addr common.Address, amount engine.Coins) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	for _, c := range amount {
		b.setBalance(addr, c.Denom, new(uint256.Int).Add(b.balance(addr, c.Denom), c.Amount))
	}
	return nil
}

func (b bank) send(from, to common.Address, amount engine.Coins) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	rest, err := b.AllBalances(from).Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: sender %s", err, from.Hex())
	}
	for _, c := range amount {
		b.setBalance(from, c.Denom, rest.AmountOf(c.Denom))
		b.setBalance(to, c.Denom, new(uint256.Int).Add(b.balance(to, c.Denom), c.Amount))
	}
	return nil
}
