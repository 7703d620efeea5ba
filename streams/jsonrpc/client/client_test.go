package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/defistate/poolfactory-go/protocols/poolfactory"
	"github.com/defistate/poolfactory-go/store"
	"github.com/defistate/poolfactory-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deployer  = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	alice     = common.HexToAddress("0x000000000000000000000000000000000000000a")
	recipient = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

// --- Test Setup: In-process node ---

type node struct {
	host    *host.Host
	reg     *prometheus.Registry
	srv     *rpc.Server
	factory common.Address
}

func newNode(t *testing.T) *node {
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

	srv, err := server.NewServer(server.Config{Backend: h, Logger: logger, Registry: reg})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return &node{host: h, reg: reg, srv: srv, factory: res.Contract}
}

func (n *node) subscriptions(t *testing.T) float64 {
	families, err := n.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "poolfactory_rpc_event_subscriptions" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return 0
}

func (n *node) connect(ctx context.Context, t *testing.T, sender common.Address) *Client {
	t.Helper()
	c, err := NewClient(ctx, Config{
		Dial:       func(context.Context) (*rpc.Client, error) { return rpc.DialInProc(n.srv), nil },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		BufferSize: 16,
		Sender:     sender,
		Factory:    n.factory,
	})
	require.NoError(t, err)
	require.NoError(t, c.WaitReady(ctx))
	require.Eventually(t, func() bool { return n.subscriptions(t) == 1 }, 2*time.Second, 10*time.Millisecond)
	return c
}

// --- Tests ---

func TestConfigValidation(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := common.HexToAddress("0x01")

	_, err := NewClient(ctx, Config{Logger: logger, BufferSize: 1, Factory: factory})
	assert.Error(t, err, "URL or Dial is required")
	_, err = NewClient(ctx, Config{URL: "ws://localhost:1", Logger: logger, Factory: factory})
	assert.Error(t, err, "BufferSize is required")
	_, err = NewClient(ctx, Config{URL: "ws://localhost:1", BufferSize: 1, Factory: factory})
	assert.Error(t, err, "Logger is required")
	_, err = NewClient(ctx, Config{URL: "ws://localhost:1", Logger: logger, BufferSize: 1})
	assert.Error(t, err, "Factory is required")
}

func TestClient_PoolLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := newNode(t)
	require.NoError(t, n.host.Mint(ctx, alice, engine.NewCoins(engine.NewCoin(100, "token"))))
	c := n.connect(ctx, t, alice)

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, deployer.Hex(), cfg.Admin)

	id, poolAddr, err := c.CreatePool(ctx, alice.Hex(), "T")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	addr, ok, err := c.Pool(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, poolAddr, addr)

	_, ok, err = c.Pool(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	pools, err := c.Pools(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, poolAddr.Hex(), pools[0].PoolAddr)

	_, err = c.RedirectFunds(ctx, id, engine.NewCoins(engine.NewCoin(100, "token")))
	require.NoError(t, err)
	balance, err := c.Balance(ctx, poolAddr)
	require.NoError(t, err)
	assert.Equal(t, "100token", balance.String())

	_, err = c.WithdrawFunds(ctx, poolAddr, recipient)
	require.NoError(t, err)
	balance, err = c.Balance(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, "100token", balance.String())

	var entries []string
	for len(entries) < 3 {
		select {
		case ev := <-c.Events():
			entries = append(entries, ev.Entry)
		case <-ctx.Done():
			t.Fatalf("timed out waiting for events, got %v", entries)
		}
	}
	assert.Equal(t, []string{"execute", "execute", "execute"}, entries)
}

func TestClient_ErrorsSurviveTheWire(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n := newNode(t)
	require.NoError(t, n.host.Mint(ctx, alice, engine.NewCoins(engine.NewCoin(5, "token"))))
	c := n.connect(ctx, t, alice)

	_, err := c.RedirectFunds(ctx, 3, nil)
	assert.ErrorIs(t, err, poolfactory.ErrNoFunds)

	_, err = c.RedirectFunds(ctx, 3, engine.NewCoins(engine.NewCoin(5, "token")))
	require.ErrorIs(t, err, poolfactory.ErrPoolNotFound)
	var notFound *poolfactory.PoolNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, uint64(3), notFound.PoolID)

	_, err = c.RedirectFunds(ctx, 3, engine.NewCoins(engine.NewCoin(500, "token")))
	assert.ErrorIs(t, err, engine.ErrInsufficientFunds)

	_, _, err = c.CreatePool(ctx, "", "   ")
	assert.ErrorIs(t, err, poolfactory.ErrInvalidMessage)

	_, poolAddr, err := c.CreatePool(ctx, "", "T")
	require.NoError(t, err)
	_, err = c.WithdrawFunds(ctx, poolAddr, alice)
	assert.ErrorIs(t, err, pool.ErrUnauthorized)
}

func TestClient_NotConnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewClient(ctx, Config{
		Dial:       func(context.Context) (*rpc.Client, error) { return nil, errors.New("refused") },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		BufferSize: 1,
		Factory:    common.HexToAddress("0x01"),
	})
	require.NoError(t, err)

	_, err = c.Config(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)

	cancel()
	select {
	case _, open := <-c.Err():
		assert.False(t, open)
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
}
