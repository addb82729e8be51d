package model

// ActionEvent is published when a submitted action reaches a terminal state.
// Subscribers use it as a signal to refresh reserves and balances.
type ActionEvent struct {
	ActionID  uint64 `json:"action_id"`
	Intent    string `json:"intent"`
	State     string `json:"state"`
	Pool      string `json:"pool"`
	Account   string `json:"account,omitempty"`
	TxHash    string `json:"tx_hash,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
