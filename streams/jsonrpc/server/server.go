// Package server exposes a host over go-ethereum JSON-RPC under the "factory"
// namespace, including a subscription that streams committed transaction results.
package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace is the namespace under which the API is registered.
	Namespace = "factory"
	// EventsSubscriptionMethod is the subscription name clients pass to Subscribe.
	EventsSubscriptionMethod = "subscribeEvents"

	resultBufferSize = 64
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Backend is the part of the host the API serves.
type Backend interface {
	Instantiate(ctx context.Context, sender common.Address, codeID uint64, msg json.RawMessage, funds engine.Coins, label string, admin *common.Address) (*host.TxResult, error)
	Execute(ctx context.Context, sender, contract common.Address, msg json.RawMessage, funds engine.Coins) (*host.TxResult, error)
	Query(ctx context.Context, contract common.Address, msg json.RawMessage) (json.RawMessage, error)
	Balance(addr common.Address) engine.Coins
	SubscribeResults(ch chan<- *host.TxResult) event.Subscription
}

// Config holds the configuration for the API.
type Config struct {
	Backend  Backend
	Logger   Logger
	Registry prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Backend == nil {
		return errors.New("config: Backend is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	return nil
}

// ExecuteArgs are the parameters of factory_execute.
type ExecuteArgs struct {
	Sender   common.Address  `json:"sender"`
	Contract common.Address  `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    engine.Coins    `json:"funds,omitempty"`
}

// InstantiateArgs are the parameters of factory_instantiate.
type InstantiateArgs struct {
	Sender common.Address  `json:"sender"`
	CodeID uint64          `json:"codeId"`
	Msg    json.RawMessage `json:"msg"`
	Funds  engine.Coins    `json:"funds,omitempty"`
	Label  string          `json:"label"`
	Admin  *common.Address `json:"admin,omitempty"`
}

// API is the receiver registered with the rpc server.
type API struct {
	backend       Backend
	logger        Logger
	subscriptions prometheus.Gauge
	dropped       prometheus.Counter
}

// NewAPI validates cfg and builds the API.
func NewAPI(cfg Config) (*API, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	subs := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "poolfactory",
		Subsystem: "rpc",
		Name:      "event_subscriptions",
		Help:      "Open event subscriptions.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "poolfactory",
		Subsystem: "rpc",
		Name:      "events_dropped_total",
		Help:      "Results not delivered because a subscriber fell too far behind.",
	})
	cfg.Registry.MustRegister(subs, dropped)
	return &API{backend: cfg.Backend, logger: cfg.Logger, subscriptions: subs, dropped: dropped}, nil
}

// NewServer returns an rpc server with the API registered under Namespace.
func NewServer(cfg Config) (*rpc.Server, error) {
	api, err := NewAPI(cfg)
	if err != nil {
		return nil, err
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName(Namespace, api); err != nil {
		return nil, err
	}
	return srv, nil
}

// Execute runs a contract's execute entry point.
func (api *API) Execute(ctx context.Context, args ExecuteArgs) (*host.TxResult, error) {
	res, err := api.backend.Execute(ctx, args.Sender, args.Contract, args.Msg, args.Funds)
	if err != nil {
		api.logger.Debug("execute failed", "sender", args.Sender, "contract", args.Contract, "error", err)
		return nil, toRPCError(err)
	}
	return res, nil
}

// Instantiate spawns a contract from stored code.
func (api *API) Instantiate(ctx context.Context, args InstantiateArgs) (*host.TxResult, error) {
	res, err := api.backend.Instantiate(ctx, args.Sender, args.CodeID, args.Msg, args.Funds, args.Label, args.Admin)
	if err != nil {
		api.logger.Debug("instantiate failed", "sender", args.Sender, "code_id", args.CodeID, "error", err)
		return nil, toRPCError(err)
	}
	return res, nil
}

// Query runs a contract's read path.
func (api *API) Query(ctx context.Context, contract common.Address, msg json.RawMessage) (json.RawMessage, error) {
	res, err := api.backend.Query(ctx, contract, msg)
	if err != nil {
		return nil, toRPCError(err)
	}
	return res, nil
}

// Balance returns the committed balance of addr.
func (api *API) Balance(addr common.Address) engine.Coins {
	return api.backend.Balance(addr)
}

// SubscribeEvents streams every committed transaction result to the caller. Results
// are queued per subscriber; a subscriber that falls resultBufferSize results behind
// loses the overflow instead of stalling commits.
func (api *API) SubscribeEvents(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	rpcSub := notifier.CreateSubscription()
	results := make(chan *host.TxResult)
	sub := api.backend.SubscribeResults(results)
	queue := newRelay(resultBufferSize, api.dropped)
	api.subscriptions.Inc()
	api.logger.Info("event subscription opened", "id", rpcSub.ID)

	// Notify may block on a slow connection, so it runs apart from the feed reader.
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		for res := range queue.out() {
			if err := notifier.Notify(rpcSub.ID, res); err != nil {
				api.logger.Warn("failed to notify subscriber", "id", rpcSub.ID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer func() {
			sub.Unsubscribe()
			queue.close()
			api.subscriptions.Dec()
			api.logger.Info("event subscription closed", "id", rpcSub.ID)
		}()
		for {
			select {
			case res := <-results:
				if !queue.offer(res) {
					api.logger.Warn("subscriber too slow, dropping result", "id", rpcSub.ID, "height", res.Height)
				}
			case <-notifyDone:
				return
			case <-rpcSub.Err():
				return
			case err := <-sub.Err():
				if err != nil {
					api.logger.Error("result feed failed", "error", err)
				}
				return
			}
		}
	}()
	return rpcSub, nil
}

// relay is a bounded, non-blocking queue between the host's result feed and one
// subscriber's connection.
type relay struct {
	queue   chan *host.TxResult
	dropped prometheus.Counter
}

func newRelay(size int, dropped prometheus.Counter) *relay {
	return &relay{queue: make(chan *host.TxResult, size), dropped: dropped}
}

// offer enqueues res and reports false when the queue is full.
func (r *relay) offer(res *host.TxResult) bool {
	select {
	case r.queue <- res:
		return true
	default:
		r.dropped.Inc()
		return false
	}
}

func (r *relay) out() <-chan *host.TxResult { return r.queue }

// close MUST only be called by the goroutine calling offer.
func (r *relay) close() { close(r.queue) }
