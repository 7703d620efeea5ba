package pool

// InstantiateMsg configures a new pool.
type InstantiateMsg struct {
	Admin string `json:"admin"`
	Title string `json:"title"`
}

type ExecuteMsg struct {
	WithdrawFunds *WithdrawFundsMsg `json:"withdrawFunds,omitempty"`
}

// WithdrawFundsMsg sends the pool's entire balance to Recipient.
type WithdrawFundsMsg struct {
	Recipient string `json:"recipient"`
}

type QueryMsg struct {
	Config *ConfigQuery `json:"config,omitempty"`
}

type ConfigQuery struct{}

type ConfigResponse struct {
	Admin string `json:"admin"`
	Title string `json:"title"`
}
