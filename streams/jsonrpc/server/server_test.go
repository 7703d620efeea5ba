package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/defistate/poolfactory-go/protocols/poolfactory"
	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	alice    = common.HexToAddress("0x000000000000000000000000000000000000000a")
)

// --- Test Setup ---

func setupServer(t *testing.T) (*rpc.Client, *API, common.Address) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	h, err := host.New(host.Config{Store: store.NewMemStore(), Logger: logger, Registry: reg})
	require.NoError(t, err)

	poolCode := h.StoreCode(pool.New())
	factoryCode := h.StoreCode(poolfactory.New())
	msg, err := json.Marshal(poolfactory.InstantiateMsg{Admin: deployer.Hex(), PoolCodeID: poolCode})
	require.NoError(t, err)
	res, err := h.Instantiate(context.Background(), deployer, factoryCode, msg, nil, "factory", nil)
	require.NoError(t, err)

	api, err := NewAPI(Config{Backend: h, Logger: logger, Registry: reg})
	require.NoError(t, err)
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName(Namespace, api))
	t.Cleanup(srv.Stop)

	c := rpc.DialInProc(srv)
	t.Cleanup(c.Close)
	return c, api, res.Contract
}

func executeArgs(t *testing.T, sender, contract common.Address, msg any, funds engine.Coins) ExecuteArgs {
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return ExecuteArgs{Sender: sender, Contract: contract, Msg: raw, Funds: funds}
}

// --- Tests ---

func TestConfigValidation(t *testing.T) {
	_, err := NewAPI(Config{})
	assert.Error(t, err)
	_, err = NewServer(Config{Logger: slog.Default(), Registry: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("execute: %w", pool.ErrUnauthorized), CodeUnauthorized},
		{poolfactory.ErrNoFunds, CodeNoFunds},
		{&poolfactory.PoolNotFoundError{PoolID: 7}, CodePoolNotFound},
		{&poolfactory.UnknownReplyError{ID: 9}, CodeUnknownReplyTag},
		{poolfactory.ErrDecodeFailure, CodeDecodeFailure},
		{poolfactory.ErrMissingContext, CodeMissingContext},
		{pool.ErrEmptyBalance, CodeEmptyBalance},
		{engine.ErrInsufficientFunds, CodeInsufficientFunds},
		{host.ErrContractNotFound, CodeContractNotFound},
		{poolfactory.ErrInvalidTitle, CodeInvalidRequest},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.code, ErrorCode(tc.err), tc.err.Error())
	}
}

func TestExecuteAndQuery(t *testing.T) {
	c, _, factory := setupServer(t)
	ctx := context.Background()

	var res host.TxResult
	err := c.CallContext(ctx, &res, "factory_execute", executeArgs(t, alice, factory,
		poolfactory.ExecuteMsg{CreatePool: &poolfactory.CreatePoolMsg{Title: "T"}}, nil))
	require.NoError(t, err)
	assert.Equal(t, "execute", res.Entry)
	assert.Equal(t, factory, res.Contract)

	var cfg poolfactory.ConfigResponse
	require.NoError(t, c.CallContext(ctx, &cfg, "factory_query", factory, json.RawMessage(`{"config":{}}`)))
	assert.Equal(t, deployer.Hex(), cfg.Admin)

	var balance engine.Coins
	require.NoError(t, c.CallContext(ctx, &balance, "factory_balance", alice))
	assert.Empty(t, balance)
}

func TestErrorsCarryCodes(t *testing.T) {
	c, _, factory := setupServer(t)

	var res host.TxResult
	err := c.CallContext(context.Background(), &res, "factory_execute", executeArgs(t, alice, factory,
		poolfactory.ExecuteMsg{RedirectFunds: &poolfactory.RedirectFundsMsg{PoolID: 7}}, nil))
	require.Error(t, err)

	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeNoFunds, rpcErr.ErrorCode())

	var raw json.RawMessage
	err = c.CallContext(context.Background(), &raw, "factory_query", factory, json.RawMessage(`{"poolAddress":{"poolId":1}}`))
	require.NoError(t, err, "an unresolved id is reported, not failed")
}

func TestSubscribeEvents(t *testing.T) {
	c, api, factory := setupServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan *host.TxResult, 4)
	sub, err := c.Subscribe(ctx, Namespace, events, EventsSubscriptionMethod)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(api.subscriptions) == 1
	}, time.Second, 10*time.Millisecond)

	var res host.TxResult
	require.NoError(t, c.CallContext(ctx, &res, "factory_execute", executeArgs(t, alice, factory,
		poolfactory.ExecuteMsg{CreatePool: &poolfactory.CreatePoolMsg{Title: "T"}}, nil)))

	select {
	case got := <-events:
		assert.Equal(t, res.Height, got.Height)
		assert.Equal(t, len(res.Events), len(got.Events))
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	sub.Unsubscribe()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(api.subscriptions) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRelayDropsOverflow(t *testing.T) {
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
	r := newRelay(2, dropped)

	assert.True(t, r.offer(&host.TxResult{Height: 1}))
	assert.True(t, r.offer(&host.TxResult{Height: 2}))
	assert.False(t, r.offer(&host.TxResult{Height: 3}), "a full queue must not block the feed")
	assert.Equal(t, float64(1), testutil.ToFloat64(dropped))

	r.close()
	var heights []uint64
	for res := range r.out() {
		heights = append(heights, res.Height)
	}
	assert.Equal(t, []uint64{1, 2}, heights)
}

func TestStalledSubscriberDoesNotBlockCommits(t *testing.T) {
	c, api, factory := setupServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Nobody reads this channel.
	stalled := make(chan *host.TxResult)
	sub, err := c.Subscribe(ctx, Namespace, stalled, EventsSubscriptionMethod)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(api.subscriptions) == 1
	}, time.Second, 10*time.Millisecond)

	for i := 0; i < resultBufferSize+8; i++ {
		var res host.TxResult
		require.NoError(t, c.CallContext(ctx, &res, "factory_execute", executeArgs(t, alice, factory,
			poolfactory.ExecuteMsg{CreatePool: &poolfactory.CreatePoolMsg{Title: "T"}}, nil)))
	}
}
