package poolfactory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/defistate/poolfactory-go/store"
	"github.com/ethereum/go-ethereum/common"
)

// Config is set once at instantiation and never updated.
type Config struct {
	Admin      common.Address `json:"admin"`
	PoolCodeID uint64         `json:"poolCodeId"`
}

var (
	configItem = store.NewItem[Config]("config")
	poolCount  = store.NewItem[uint64]("pool_count")
	pools      = store.NewMap[common.Address]("pools")
	correlator = store.NewMap[json.RawMessage]("correlator")
)

// Registry is the factory's durable state: configuration, the id counter and the
// id to address table.
type Registry struct {
	storage store.KVStore
}

func NewRegistry(storage store.KVStore) *Registry {
	return &Registry{storage: storage}
}

func (r *Registry) Config() (Config, error) {
	return configItem.Load(r.storage)
}

func (r *Registry) SaveConfig(cfg Config) error {
	return configItem.Save(r.storage, cfg)
}

// Count returns the last allocated id, zero before the first allocation.
func (r *Registry) Count() (uint64, error) {
	n, _, err := poolCount.MayLoad(r.storage)
	return n, err
}

// AllocateID increments the counter and returns the new value. Ids start at 1.
func (r *Registry) AllocateID() (uint64, error) {
	n, err := r.Count()
	if err != nil {
		return 0, err
	}
	n++
	if err := poolCount.Save(r.storage, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Record binds id to addr. An id is bound at most once.
func (r *Registry) Record(id uint64, addr common.Address) error {
	if pools.Has(r.storage, id) {
		return fmt.Errorf("%w: %d", ErrPoolExists, id)
	}
	return pools.Save(r.storage, id, addr)
}

// Lookup reports whether id resolved, independently of the stored address value.
func (r *Registry) Lookup(id uint64) (common.Address, bool, error) {
	return pools.MayLoad(r.storage, id)
}

// Pools returns up to limit resolved pools with ids greater than startAfter.
func (r *Registry) Pools(startAfter uint64, limit int) ([]PoolResponse, error) {
	if limit <= 0 || startAfter == ^uint64(0) {
		return []PoolResponse{}, nil
	}
	out := make([]PoolResponse, 0, limit)
	err := pools.Range(r.storage, startAfter+1, func(id uint64, addr common.Address) bool {
		out = append(out, PoolResponse{PoolID: id, PoolAddr: addr.Hex()})
		return len(out) < limit
	})
	return out, err
}

// Correlator carries the context of an operation across its dispatch/reply round
// trip. It holds one slot per reply tag; a slot is written right before the tagged
// dispatch is emitted and consumed by the reply for that tag.
type Correlator struct {
	storage store.KVStore
}

func NewCorrelator(storage store.KVStore) *Correlator {
	return &Correlator{storage: storage}
}

// Stash overwrites the slot for tag.
func (c *Correlator) Stash(tag uint64, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("poolfactory: encode context for reply %d: %w", tag, err)
	}
	return correlator.Save(c.storage, tag, raw)
}

// Take decodes the slot for tag into out and clears it. An empty slot fails with
// ErrMissingContext.
func (c *Correlator) Take(tag uint64, out any) error {
	raw, err := correlator.Load(c.storage, tag)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: reply %d", ErrMissingContext, tag)
	}
	if err != nil {
		return err
	}
	correlator.Remove(c.storage, tag)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("poolfactory: decode context for reply %d: %w", tag, err)
	}
	return nil
}

// Pending reports whether the slot for tag is occupied.
func (c *Correlator) Pending(tag uint64) bool {
	return correlator.Has(c.storage, tag)
}

// spawnContext is stashed by create and taken by the spawn reply.
type spawnContext struct {
	PoolID uint64 `json:"poolId"`
	Title  string `json:"title"`
}

// transferContext is stashed by redirect and taken by the transfer reply.
type transferContext struct {
	Requester common.Address `json:"requester"`
}
