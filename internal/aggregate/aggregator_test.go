package aggregate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairScope/internal/model"
	"pairScope/internal/storage"
)

var (
	mine = model.TokenAsset("terra1mine")
	uusd = model.NativeAsset("uusd")
)

type memorySink struct {
	pools   []model.Pool
	metrics []model.PoolWindowMetrics
}

func (s *memorySink) UpsertPools(_ context.Context, pools []model.Pool) error {
	s.pools = append(s.pools, pools...)
	return nil
}

func (s *memorySink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func record(t *testing.T, seq, ts uint64, kind string, reserves [2]string, payload interface{}) model.OperationRecord {
	t.Helper()
	rec := model.OperationRecord{
		ID:        "rec",
		Seq:       seq,
		PoolID:    "pair1",
		Kind:      kind,
		Timestamp: ts,
		Reserves: []model.Asset{
			{Info: mine, Amount: reserves[0]},
			{Info: uusd, Amount: reserves[1]},
		},
		FeeRate: "0.003",
	}
	require.NoError(t, rec.EncodeData(payload))
	return rec
}

func writeJournal(t *testing.T, dir string) string {
	t.Helper()
	fund := model.OperationRecord{ID: "fund", Seq: 2, Kind: model.OpFund, Timestamp: 1050}
	require.NoError(t, fund.EncodeData(model.FundData{Holder: "alice"}))

	records := []model.OperationRecord{
		record(t, 1, 1000, model.OpInstantiate, [2]string{"0", "0"}, model.InstantiateData{
			AssetInfos:     [2]model.AssetInfo{mine, uusd},
			FeeRate:        "0.003",
			LiquidityToken: "lp",
		}),
		fund,
		record(t, 3, 1100, model.OpProvideLiquidity, [2]string{"69000000", "420000000"}, model.ProvideLiquidityData{Shares: "170235131"}),
		record(t, 4, 1200, model.OpSwap, [2]string{"70000000", "414018001"}, model.SwapData{
			Offer:        model.Asset{Info: mine, Amount: "1000000"},
			AskInfo:      uusd,
			ReturnAmount: "6000000",
			FeeAmount:    "18000",
			TaxAmount:    "5976",
		}),
		record(t, 5, 4000, model.OpSwap, [2]string{"69900000", "415018001"}, model.SwapData{
			Offer:        model.Asset{Info: uusd, Amount: "1000000"},
			AskInfo:      mine,
			ReturnAmount: "100000",
			FeeAmount:    "300",
			TaxAmount:    "0",
		}),
	}
	recordsPath := filepath.Join(dir, "records.jsonl")
	journal := storage.NewJsonlJournal(recordsPath, filepath.Join(dir, "errors.jsonl"))
	require.NoError(t, journal.PutRecords(records))
	return recordsPath
}

func TestAggregatorWindows(t *testing.T) {
	dir := t.TempDir()
	recordsPath := writeJournal(t, dir)
	state := &FileStateStore{Path: filepath.Join(dir, "state.json"), WindowSeconds: 3600}
	sink := &memorySink{}

	agg := NewAggregator(Config{WindowSeconds: 3600, StateStore: state, NativeDecimals: 6, TokenDecimals: 6}, sink, nil, nil)
	require.NoError(t, agg.Run(context.Background(), recordsPath))

	require.Len(t, sink.pools, 1)
	assert.Equal(t, model.Pool{
		ID:             "pair1",
		Asset0:         "token:terra1mine",
		Asset1:         "native:uusd",
		LiquidityToken: "lp",
		FeeRate:        "0.003",
		FirstSeenSeq:   1,
	}, sink.pools[0])

	require.Len(t, sink.metrics, 2)
	first := sink.metrics[0]
	assert.Equal(t, int64(0), first.WindowStart.Unix())
	assert.Equal(t, int64(3600), first.WindowEnd.Unix())
	assert.Equal(t, uint64(1), first.SwapCount)
	assert.Equal(t, uint64(1), first.ProvideCount)
	assert.Equal(t, "1.000000", first.Volume0)
	assert.Equal(t, "6.000000", first.Volume1)
	assert.Equal(t, "0.000000", first.Fee0)
	assert.Equal(t, "0.018000", first.Fee1)
	assert.Equal(t, "0.005976", first.Tax1)
	require.NotNil(t, first.TVL0)
	require.NotNil(t, first.TVL1)
	assert.Equal(t, "70.000000", *first.TVL0)
	assert.Equal(t, "414.018001", *first.TVL1)
	assert.Nil(t, first.FeeRate0)
	require.NotNil(t, first.FeeRate1)
	assert.Equal(t, "0.000043476370487572", *first.FeeRate1)
	require.NotNil(t, first.APR)
	assert.Equal(t, "0.190426502735565360", *first.APR)
	assert.Equal(t, tvlMethodReserves, first.TVLMethod)

	second := sink.metrics[1]
	assert.Equal(t, int64(3600), second.WindowStart.Unix())
	assert.Equal(t, "0.100000", second.Volume0)
	assert.Equal(t, "1.000000", second.Volume1)
	assert.Equal(t, "0.000300", second.Fee0)
	require.NotNil(t, second.FeeRate0)
	assert.Equal(t, "0.000004291845493562", *second.FeeRate0)

	ts, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(4000), ts)

	// a second pass over the same journal has nothing new
	again := NewAggregator(Config{WindowSeconds: 3600, StateStore: state, NativeDecimals: 6, TokenDecimals: 6}, sink, nil, nil)
	require.NoError(t, again.Run(context.Background(), recordsPath))
	assert.Len(t, sink.metrics, 2)
}

func TestAggregatorRecomputeFrom(t *testing.T) {
	dir := t.TempDir()
	recordsPath := writeJournal(t, dir)
	sink := &memorySink{}

	agg := NewAggregator(Config{WindowSeconds: 3600, RecomputeFrom: 3600}, sink, nil, nil)
	require.NoError(t, agg.Run(context.Background(), recordsPath))

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "100000", sink.metrics[0].Volume0)
	// instantiate is registered even when its window is skipped
	require.Len(t, sink.pools, 1)
	assert.Equal(t, "lp", sink.pools[0].LiquidityToken)
}

func TestFileStateStoreIgnoresOtherWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	hourly := &FileStateStore{Path: path, WindowSeconds: 3600}
	require.NoError(t, hourly.Save(context.Background(), 42))

	daily := &FileStateStore{Path: path, WindowSeconds: 86400}
	_, ok, err := daily.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ts, ok, err := hourly.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), ts)
}

func TestAccumulatorRejectsForeignOffer(t *testing.T) {
	rec := record(t, 1, 10, model.OpSwap, [2]string{"1", "1"}, model.SwapData{
		Offer: model.Asset{Info: model.NativeAsset("uluna"), Amount: "5"},
	})
	acc := NewAccumulator(rec, 0, 60)
	assert.Error(t, acc.AddRecord(rec))
	assert.Equal(t, uint64(0), acc.SwapCount)
}

func TestComputeAPR(t *testing.T) {
	rate := "0.001"
	apr := computeAPR(&rate, nil, 86400)
	require.NotNil(t, apr)
	assert.Equal(t, "0.182500000000000000", *apr)

	both := computeAPR(&rate, &rate, 86400)
	require.NotNil(t, both)
	assert.Equal(t, "0.365000000000000000", *both)

	assert.Nil(t, computeAPR(nil, nil, 86400))
	assert.Nil(t, computeAPR(&rate, nil, 0))
}
