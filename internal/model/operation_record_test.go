package model

import (
	"encoding/json"
	"testing"
)

func TestSwapDataJSONStringFields(t *testing.T) {
	record := OperationRecord{Kind: OpSwap}
	payload := SwapData{
		Offer:          Asset{Info: TokenAsset("mir"), Amount: "1000000"},
		AskInfo:        NativeAsset("uusd"),
		Receiver:       "bob",
		ReturnAmount:   "6000000",
		SpreadAmount:   "86956",
		FeeAmount:      "18000",
		TaxAmount:      "5976",
		ReceivedAmount: "5976023",
	}
	if err := record.EncodeData(payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(record.Data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"return_amount", "spread_amount", "fee_amount", "tax_amount", "received_amount"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}

	var back SwapData
	if err := record.DecodeData(&back); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back.FeeAmount != "18000" || !back.AskInfo.Equal(NativeAsset("uusd")) {
		t.Fatalf("fee mismatch: %+v", back)
	}
}

func TestOperationRecordDecodeEmpty(t *testing.T) {
	record := OperationRecord{Kind: OpSwap}
	var data SwapData
	if err := record.DecodeData(&data); err == nil {
		t.Fatalf("expected error for empty data")
	}
}
