package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairScope/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	dir := t.TempDir()
	journal := NewJsonlJournal(filepath.Join(dir, "out", "records.jsonl"), filepath.Join(dir, "out", "errors.jsonl"))

	first := model.OperationRecord{ID: "a", Seq: 1, PoolID: "pair1", Kind: model.OpSwap}
	require.NoError(t, first.EncodeData(model.SwapData{FeeAmount: "18000"}))
	require.NoError(t, journal.PutRecords([]model.OperationRecord{first}))
	require.NoError(t, journal.PutRecords([]model.OperationRecord{{ID: "b", Seq: 2, Kind: model.OpFund, Data: []byte(`{}`)}}))
	require.NoError(t, journal.PutErrors([]model.OperationError{{Seq: 3, Op: model.OpSwap, Error: "boom"}}))

	var got []model.OperationRecord
	err := ReadRecordsFile(filepath.Join(dir, "out", "records.jsonl"), func(r model.OperationRecord) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, uint64(2), got[1].Seq)

	var swap model.SwapData
	require.NoError(t, got[0].DecodeData(&swap))
	assert.Equal(t, "18000", swap.FeeAmount)

	data, err := os.ReadFile(filepath.Join(dir, "out", "errors.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error":"boom"`)
}

func TestScanRecordsReportsLine(t *testing.T) {
	input := "{\"id\":\"a\",\"seq\":1,\"kind\":\"swap\",\"timestamp\":0,\"data\":{}}\n\nnot json\n"
	err := ScanRecords(strings.NewReader(input), func(model.OperationRecord) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestFileSnapshotStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := NewFileSnapshotStore(path, true)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	snapshot := model.Snapshot{
		LastSeq: 42,
		Pools: []model.PoolState{{
			ID:         "pair1",
			AssetInfos: [2]model.AssetInfo{model.TokenAsset("terra1mine"), model.NativeAsset("uusd")},
			Reserves:   [2]string{"70000000", "414018001"},
			TotalShare: "170235131",
			Shares:     map[string]string{"alice": "170235131"},
			State:      model.PoolStateActive,
		}},
		Balances: []model.Balance{{Holder: "bob", Info: model.NativeAsset("uusd"), Amount: "5976023"}},
	}
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), loaded.LastSeq)
	assert.Equal(t, snapshot.Pools, loaded.Pools)
	assert.Equal(t, snapshot.Balances, loaded.Balances)
	assert.NotEmpty(t, loaded.UpdatedAt)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileSnapshotStoreDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := NewFileSnapshotStore(path, false)
	require.NoError(t, store.Save(context.Background(), model.Snapshot{LastSeq: 1}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
