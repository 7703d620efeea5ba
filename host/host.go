// Package host executes contracts. It runs every top-level call as one atomic
// transaction: dispatches emitted by a contract are executed depth-first in emission
// order, replies are delivered before the call returns, and any unhandled failure
// discards every write made since the call began.
package host

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultMaxDepth bounds dispatch nesting.
	DefaultMaxDepth = 10
)

var (
	instancesPrefix = []byte("instances/")
	contractPrefix  = []byte("contract/")
	nonceKey        = []byte("host/nonce")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the host.
type Config struct {
	Store    store.KVStore
	Logger   Logger
	Registry prometheus.Registerer
	MaxDepth int
	Now      func() time.Time
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("config: Store is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.MaxDepth < 0 {
		return errors.New("config: MaxDepth must not be negative")
	}
	return nil
}

// ContractInfo is the host's record of a contract instance.
type ContractInfo struct {
	Address common.Address  `json:"address"`
	CodeID  uint64          `json:"codeId"`
	Creator common.Address  `json:"creator"`
	Admin   *common.Address `json:"admin,omitempty"`
	Label   string          `json:"label"`
}

// TxResult is the observable outcome of a committed transaction.
type TxResult struct {
	Height   uint64         `json:"height"`
	Entry    string         `json:"entry"`
	Contract common.Address `json:"contract"`
	Events   []engine.Event `json:"events"`
	Data     []byte         `json:"data,omitempty"`
}

// Host owns the durable store, the code registry and the transaction loop.
type Host struct {
	mu       sync.RWMutex // write lock per transaction, read lock per query
	durable  store.KVStore
	logger   Logger
	metrics  *Metrics
	storeM   *store.Metrics
	maxDepth int
	now      func() time.Time
	height   uint64

	codesMu sync.RWMutex
	codes   map[uint64]engine.Contract

	cachedView atomic.Pointer[[]ContractInfo]
	results    event.Feed
}

// New creates a host over cfg.Store.
func New(cfg Config) (*Host, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	h := &Host{
		durable:  cfg.Store,
		logger:   cfg.Logger,
		metrics:  NewMetrics(cfg.Registry),
		storeM:   store.NewMetrics(cfg.Registry),
		maxDepth: cfg.MaxDepth,
		now:      cfg.Now,
		codes:    make(map[uint64]engine.Contract),
	}
	if h.maxDepth == 0 {
		h.maxDepth = DefaultMaxDepth
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.updateCachedView()
	return h, nil
}

// StoreCode registers a contract implementation and returns its code id. Ids start at 1.
func (h *Host) StoreCode(impl engine.Contract) uint64 {
	h.codesMu.Lock()
	defer h.codesMu.Unlock()
	id := uint64(len(h.codes) + 1)
	h.codes[id] = impl
	h.logger.Info("code stored", "code_id", id)
	return id
}

func (h *Host) code(id uint64) (engine.Contract, error) {
	h.codesMu.RLock()
	defer h.codesMu.RUnlock()
	impl, ok := h.codes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrCodeNotFound, id)
	}
	return impl, nil
}

// Instantiate spawns a contract from stored code as a top-level transaction.
func (h *Host) Instantiate(ctx context.Context, sender common.Address, codeID uint64, msg json.RawMessage, funds engine.Coins, label string, admin *common.Address) (*TxResult, error) {
	return h.runTx(ctx, "instantiate", func(tx *txn) (common.Address, []byte, error) {
		addr, data, err := tx.instantiate(tx.root, sender, codeID, msg, funds, label, admin, &tx.events)
		return addr, data, err
	})
}

// Execute calls a contract's execute entry point as a top-level transaction.
func (h *Host) Execute(ctx context.Context, sender, contract common.Address, msg json.RawMessage, funds engine.Coins) (*TxResult, error) {
	return h.runTx(ctx, "execute", func(tx *txn) (common.Address, []byte, error) {
		data, err := tx.execute(tx.root, sender, contract, msg, funds, &tx.events)
		return contract, data, err
	})
}

// Mint credits funds to addr out of thin air. Used for genesis balances.
func (h *Host) Mint(ctx context.Context, addr common.Address, funds engine.Coins) error {
	_, err := h.runTx(ctx, "mint", func(tx *txn) (common.Address, []byte, error) {
		return addr, nil, newBank(tx.root).mint(addr, funds)
	})
	return err
}

// Query runs a contract's read path against committed state. Writes a query makes
// are discarded.
func (h *Host) Query(ctx context.Context, contract common.Address, msg json.RawMessage) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	scratch := store.NewCacheStore(h.durable, nil)
	defer scratch.Discard()

	info, err := loadInstance(scratch, contract)
	if err != nil {
		return nil, err
	}
	impl, err := h.code(info.CodeID)
	if err != nil {
		return nil, err
	}
	return impl.Query(h.deps(scratch, contract), h.env(contract, h.height), msg)
}

// Balance returns the committed balance of addr.
func (h *Host) Balance(addr common.Address) engine.Coins {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return newBank(h.durable).AllBalances(addr)
}

// Contract returns the committed record for addr.
func (h *Host) Contract(addr common.Address) (ContractInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return loadInstance(h.durable, addr)
}

// Contracts returns a copy of the cached list of committed instances.
func (h *Host) Contracts() []ContractInfo {
	cached := h.cachedView.Load()
	if cached == nil {
		return nil
	}
	out := make([]ContractInfo, len(*cached))
	copy(out, *cached)
	return out
}

// SubscribeResults delivers every committed TxResult to ch. The subscriber must keep
// up: commits block until ch accepts the result.
func (h *Host) SubscribeResults(ch chan<- *TxResult) event.Subscription {
	return h.results.Subscribe(ch)
}

// updateCachedView MUST be called with h.mu held.
func (h *Host) updateCachedView() {
	var list []ContractInfo
	store.NewPrefixStore(h.durable, instancesPrefix).Iterate(nil, func(_, value []byte) bool {
		var info ContractInfo
		if err := json.Unmarshal(value, &info); err != nil {
			h.logger.Error("corrupt contract record", "error", err)
			return true
		}
		list = append(list, info)
		return true
	})
	h.cachedView.Store(&list)
}

func (h *Host) deps(s store.KVStore, contract common.Address) engine.Deps {
	return engine.Deps{
		Storage: contractStore(s, contract),
		Querier: newBank(s),
		Logger:  h.logger,
	}
}

func (h *Host) env(contract common.Address, height uint64) engine.Env {
	return engine.Env{
		Block:    engine.BlockInfo{Height: height, Time: h.now()},
		Contract: engine.ContractInfo{Address: contract},
	}
}

func contractStore(s store.KVStore, contract common.Address) store.KVStore {
	prefix := append(append([]byte{}, contractPrefix...), contract.Bytes()...)
	return store.NewPrefixStore(s, prefix)
}

func loadInstance(s store.KVStore, addr common.Address) (ContractInfo, error) {
	raw := store.NewPrefixStore(s, instancesPrefix).Get(addr.Bytes())
	if raw == nil {
		return ContractInfo{}, fmt.Errorf("%w: %s", ErrContractNotFound, addr.Hex())
	}
	var info ContractInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return ContractInfo{}, fmt.Errorf("host: decode contract record %s: %w", addr.Hex(), err)
	}
	return info, nil
}

func saveInstance(s store.KVStore, info ContractInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	store.NewPrefixStore(s, instancesPrefix).Set(info.Address.Bytes(), raw)
	return nil
}

func nextNonce(s store.KVStore) uint64 {
	var n uint64
	if raw := s.Get(nonceKey); len(raw) == 8 {
		n = binary.BigEndian.Uint64(raw)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n+1)
	s.Set(nonceKey, buf[:])
	return n
}
