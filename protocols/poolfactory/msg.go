package poolfactory

// InstantiateMsg configures a new factory.
type InstantiateMsg struct {
	Admin      string `json:"admin"`
	PoolCodeID uint64 `json:"poolCodeId"`
}

// ExecuteMsg is the factory's execute surface. Exactly one field is set.
type ExecuteMsg struct {
	CreatePool    *CreatePoolMsg    `json:"createPool,omitempty"`
	RedirectFunds *RedirectFundsMsg `json:"redirectFunds,omitempty"`
}

// CreatePoolMsg spawns a new pool. An empty Admin falls back to the factory admin.
type CreatePoolMsg struct {
	Admin string `json:"admin,omitempty"`
	Title string `json:"title"`
}

// RedirectFundsMsg forwards the attached funds to the pool with the given id.
type RedirectFundsMsg struct {
	PoolID uint64 `json:"poolId"`
}

// QueryMsg is the factory's read surface. Exactly one field is set.
type QueryMsg struct {
	Config      *ConfigQuery      `json:"config,omitempty"`
	PoolAddress *PoolAddressQuery `json:"poolAddress,omitempty"`
	Pools       *PoolsQuery       `json:"pools,omitempty"`
}

type ConfigQuery struct{}

type PoolAddressQuery struct {
	PoolID uint64 `json:"poolId"`
}

// PoolsQuery pages through resolved pools in id order.
type PoolsQuery struct {
	StartAfter *uint64 `json:"startAfter,omitempty"`
	Limit      *uint32 `json:"limit,omitempty"`
}

type ConfigResponse struct {
	Admin      string `json:"admin"`
	PoolCodeID uint64 `json:"poolCodeId"`
}

// PoolResponse reports an empty PoolAddr for ids that never resolved.
type PoolResponse struct {
	PoolID   uint64 `json:"poolId"`
	PoolAddr string `json:"poolAddr"`
}

type PoolsResponse struct {
	Pools []PoolResponse `json:"pools"`
}
