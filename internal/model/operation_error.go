package model

// OperationError records a rejected request.
type OperationError struct {
	Seq    uint64 `json:"seq"`
	Op     string `json:"op"`
	PoolID string `json:"pool_id,omitempty"`
	Sender string `json:"sender,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}
