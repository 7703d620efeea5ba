package host

import (
	"testing"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankSend(t *testing.T) {
	b := newBank(store.NewMemStore())
	require.NoError(t, b.mint(alice, engine.NewCoins(engine.NewCoin(10, "atom"), engine.NewCoin(5, "token"))))

	require.NoError(t, b.send(alice, bob, engine.NewCoins(engine.NewCoin(3, "atom"), engine.NewCoin(5, "token"))))
	assert.Equal(t, "7atom", b.AllBalances(alice).String(), "a denom sent in full is removed")
	assert.Equal(t, "3atom,5token", b.AllBalances(bob).String())

	err := b.send(alice, bob, engine.NewCoins(engine.NewCoin(8, "atom")))
	assert.ErrorIs(t, err, engine.ErrInsufficientFunds)
	err = b.send(alice, bob, engine.NewCoins(engine.NewCoin(1, "token")))
	assert.ErrorIs(t, err, engine.ErrInsufficientFunds)
	assert.Equal(t, "7atom", b.AllBalances(alice).String(), "a failed send moves nothing")
	assert.Equal(t, "3atom,5token", b.AllBalances(bob).String())

	assert.ErrorIs(t, b.send(alice, bob, engine.Coins{engine.NewCoin(0, "atom")}), engine.ErrZeroAmount)
}
