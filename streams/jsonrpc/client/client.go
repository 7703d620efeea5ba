// Package client talks to a factory node over JSON-RPC. It keeps a connection open
// with exponential backoff, streams committed transaction results, and wraps the
// factory's execute and query messages in typed calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/defistate/poolfactory-go/protocols/poolfactory"
	"github.com/defistate/poolfactory-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Constants for reconnection logic
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second
)

// ErrNotConnected is returned by calls made while no connection is up.
var ErrNotConnected = errors.New("client: not connected")

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DialFunc opens a connection. The default dials Config.URL.
type DialFunc func(ctx context.Context) (*rpc.Client, error)

// Config holds the configuration for the client.
type Config struct {
	URL        string
	Dial       DialFunc
	Logger     Logger
	BufferSize uint
	// Sender is the account calls are made from.
	Sender common.Address
	// Factory is the factory contract the typed calls address.
	Factory common.Address
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" && c.Dial == nil {
		return errors.New("config: URL or Dial is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Factory == (common.Address{}) {
		return errors.New("config: Factory is required")
	}
	return nil
}

// Client manages the connection and exposes the factory's operations.
type Client struct {
	cfg    Config
	dial   DialFunc
	logger Logger

	mu    sync.RWMutex
	conn  *rpc.Client
	ready chan struct{}

	eventsCh chan *host.TxResult
	errCh    chan error
}

// NewClient validates cfg and starts the connection loop. The loop stops when ctx is
// canceled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	dial := cfg.Dial
	if dial == nil {
		url := cfg.URL
		dial = func(ctx context.Context) (*rpc.Client, error) {
			return rpc.DialContext(ctx, url)
		}
	}

	c := &Client{
		cfg:      cfg,
		dial:     dial,
		logger:   cfg.Logger,
		ready:    make(chan struct{}),
		eventsCh: make(chan *host.TxResult, cfg.BufferSize),
		errCh:    make(chan error, 1),
	}
	go c.run(ctx)
	return c, nil
}

// Events returns a read-only channel of committed transaction results.
func (c *Client) Events() <-chan *host.TxResult {
	return c.eventsCh
}

// Err returns a read-only channel that is closed when the client stops.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// WaitReady blocks until the first connection is up.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run handles the networking lifecycle.
func (c *Client) run(ctx context.Context) {
	defer close(c.errCh)
	reconnectDelay := initialReconnectDelay
	var readyOnce sync.Once

	for {
		if ctx.Err() != nil {
			c.logger.Info("Client context canceled, shutting down.")
			return
		}

		c.logger.Info("Attempting to connect to RPC server", "url", c.cfg.URL)
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Error("Failed to connect to RPC server, will retry...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Successfully connected to RPC server.")
		reconnectDelay = initialReconnectDelay
		c.setConn(conn)
		readyOnce.Do(func() { close(c.ready) })

		err = c.subscribeAndForward(ctx, conn)
		c.setConn(nil)
		conn.Close()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
			c.logger.Error("Subscription failed, will reconnect...", "error", err, "delay", reconnectDelay)
			if !sleep(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, maxReconnectDelay)
		}
	}
}

func (c *Client) subscribeAndForward(ctx context.Context, conn *rpc.Client) error {
	resultsCh := make(chan *host.TxResult)
	sub, err := conn.Subscribe(ctx, server.Namespace, resultsCh, server.EventsSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Successfully subscribed. Waiting for events...")
	for {
		select {
		case res := <-resultsCh:
			c.logger.Debug("Event received", "height", res.Height, "entry", res.Entry, "events", len(res.Events))
			select {
			case c.eventsCh <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-sub.Err():
			if err == nil {
				return errors.New("subscription closed by server")
			}
			return err
		case <-ctx.Done():
			c.logger.Info("Context cancelled, stopping subscription.")
			return ctx.Err()
		}
	}
}

func (c *Client) setConn(conn *rpc.Client) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.CallContext(ctx, result, server.Namespace+"_"+method, args...); err != nil {
		return fromRPCError(err)
	}
	return nil
}

// Execute sends msg to contract with funds attached.
func (c *Client) Execute(ctx context.Context, contract common.Address, msg any, funds engine.Coins) (*host.TxResult, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var res host.TxResult
	err = c.call(ctx, &res, "execute", server.ExecuteArgs{Sender: c.cfg.Sender, Contract: contract, Msg: raw, Funds: funds})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Query runs msg against contract and decodes the answer into out.
func (c *Client) Query(ctx context.Context, contract common.Address, msg any, out any) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var res json.RawMessage
	if err := c.call(ctx, &res, "query", contract, json.RawMessage(raw)); err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}

// Balance returns the committed balance of addr.
func (c *Client) Balance(ctx context.Context, addr common.Address) (engine.Coins, error) {
	var coins engine.Coins
	if err := c.call(ctx, &coins, "balance", addr); err != nil {
		return nil, err
	}
	return coins, nil
}

// CreatePool asks the factory to spawn a pool and returns the id and address it was
// recorded under. An empty admin defaults to the factory admin.
func (c *Client) CreatePool(ctx context.Context, admin, title string) (uint64, common.Address, error) {
	res, err := c.Execute(ctx, c.cfg.Factory, poolfactory.ExecuteMsg{
		CreatePool: &poolfactory.CreatePoolMsg{Admin: admin, Title: title},
	}, nil)
	if err != nil {
		return 0, common.Address{}, err
	}
	for _, ev := range res.Events {
		if ev.Type != "wasm" {
			continue
		}
		addr, ok := ev.Attr("pool_addr")
		if !ok {
			continue
		}
		idStr, _ := ev.Attr("pool_id")
		id, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			return 0, common.Address{}, fmt.Errorf("client: bad pool_id %q: %w", idStr, err)
		}
		return id, common.HexToAddress(addr), nil
	}
	return 0, common.Address{}, errors.New("client: pool creation result carries no pool address")
}

// RedirectFunds forwards funds to the pool with the given id through the factory.
func (c *Client) RedirectFunds(ctx context.Context, poolID uint64, funds engine.Coins) (*host.TxResult, error) {
	return c.Execute(ctx, c.cfg.Factory, poolfactory.ExecuteMsg{
		RedirectFunds: &poolfactory.RedirectFundsMsg{PoolID: poolID},
	}, funds)
}

// WithdrawFunds asks a pool to release its whole balance to recipient.
func (c *Client) WithdrawFunds(ctx context.Context, poolAddr, recipient common.Address) (*host.TxResult, error) {
	return c.Execute(ctx, poolAddr, pool.ExecuteMsg{
		WithdrawFunds: &pool.WithdrawFundsMsg{Recipient: recipient.Hex()},
	}, nil)
}

// Config reads the factory configuration.
func (c *Client) Config(ctx context.Context) (poolfactory.ConfigResponse, error) {
	var out poolfactory.ConfigResponse
	err := c.Query(ctx, c.cfg.Factory, poolfactory.QueryMsg{Config: &poolfactory.ConfigQuery{}}, &out)
	return out, err
}

// Pool resolves a pool id. ok is false for ids that never resolved.
func (c *Client) Pool(ctx context.Context, id uint64) (addr common.Address, ok bool, err error) {
	var out poolfactory.PoolResponse
	err = c.Query(ctx, c.cfg.Factory, poolfactory.QueryMsg{PoolAddress: &poolfactory.PoolAddressQuery{PoolID: id}}, &out)
	if err != nil || out.PoolAddr == "" {
		return common.Address{}, false, err
	}
	return common.HexToAddress(out.PoolAddr), true, nil
}

// Pools pages through resolved pools in id order.
func (c *Client) Pools(ctx context.Context, startAfter *uint64, limit *uint32) ([]poolfactory.PoolResponse, error) {
	var out poolfactory.PoolsResponse
	err := c.Query(ctx, c.cfg.Factory, poolfactory.QueryMsg{Pools: &poolfactory.PoolsQuery{StartAfter: startAfter, Limit: limit}}, &out)
	return out.Pools, err
}

// fromRPCError restores the contract sentinel behind a coded JSON-RPC error so callers
// can use errors.Is across the wire.
func fromRPCError(err error) error {
	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	var sentinel error
	switch rpcErr.ErrorCode() {
	case server.CodeUnauthorized:
		sentinel = pool.ErrUnauthorized
	case server.CodeNoFunds:
		sentinel = poolfactory.ErrNoFunds
	case server.CodeInsufficientFunds:
		sentinel = engine.ErrInsufficientFunds
	case server.CodePoolNotFound:
		var id uint64
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			if s, ok := dataErr.ErrorData().(string); ok {
				id, _ = strconv.ParseUint(s, 10, 64)
			}
		}
		return &poolfactory.PoolNotFoundError{PoolID: id}
	case server.CodeUnknownReplyTag:
		sentinel = poolfactory.ErrUnknownReplyTag
	case server.CodeDecodeFailure:
		sentinel = poolfactory.ErrDecodeFailure
	case server.CodeMissingContext:
		sentinel = poolfactory.ErrMissingContext
	case server.CodeEmptyBalance:
		sentinel = pool.ErrEmptyBalance
	case server.CodeContractNotFound:
		sentinel = host.ErrContractNotFound
	case server.CodeInvalidRequest:
		sentinel = poolfactory.ErrInvalidMessage
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, rpcErr.Error())
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
