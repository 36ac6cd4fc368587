package model

import (
	"encoding/json"
	"fmt"
)

// OperationRecord is the journal entry for an executed operation.
type OperationRecord struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	PoolID     string          `json:"pool_id,omitempty"`
	Kind       string          `json:"kind"`
	Sender     string          `json:"sender,omitempty"`
	Timestamp  uint64          `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
	Reserves   []Asset         `json:"reserves,omitempty"`
	TotalShare string          `json:"total_share,omitempty"`
	FeeRate    string          `json:"fee_rate,omitempty"`
}

// EncodeData stores payload as the record's Data.
func (r *OperationRecord) EncodeData(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", r.Kind, err)
	}
	r.Data = data
	return nil
}

// DecodeData unmarshals the record's Data into target.
func (r OperationRecord) DecodeData(target interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%s record has no data", r.Kind)
	}
	if err := json.Unmarshal(r.Data, target); err != nil {
		return fmt.Errorf("decode %s data: %w", r.Kind, err)
	}
	return nil
}
