package amm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairScope/internal/model"
)

func TestTaxPolicyRoundTrip(t *testing.T) {
	policy := TaxPolicy{Rate: dec(t, "0.001")}

	received, err := policy.DeductTax(u(5_982_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_976_023), received.Uint64())

	debit, err := policy.AddTax(received)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_981_999), debit.Uint64())
}

func TestTaxPolicyCap(t *testing.T) {
	policy := TaxPolicy{Rate: dec(t, "0.001"), Cap: u(1_000)}

	received, err := policy.DeductTax(u(5_982_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_981_000), received.Uint64())

	debit, err := policy.AddTax(received)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_982_000), debit.Uint64())
}

func TestTaxPolicyZeroRate(t *testing.T) {
	policy := TaxPolicy{Rate: dec(t, "0")}
	received, err := policy.DeductTax(u(123))
	require.NoError(t, err)
	assert.Equal(t, uint64(123), received.Uint64())
	debit, err := policy.AddTax(u(123))
	require.NoError(t, err)
	assert.Equal(t, uint64(123), debit.Uint64())
}

type fixedOracle struct {
	policy TaxPolicy
	err    error
	calls  int
}

func (o *fixedOracle) TaxPolicy(context.Context, string) (TaxPolicy, error) {
	o.calls++
	return o.policy, o.err
}

func TestComputePayout(t *testing.T) {
	oracle := &fixedOracle{policy: TaxPolicy{Rate: dec(t, "0.001")}}

	payout, err := computePayout(context.Background(), oracle, model.NativeAsset("uusd"), u(5_982_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_976_023), payout.Received.Uint64())
	assert.Equal(t, uint64(5_981_999), payout.Debit.Uint64())
	assert.Equal(t, uint64(5_976), payout.Tax().Uint64())

	payout, err = computePayout(context.Background(), oracle, model.TokenAsset("terra1token"), u(5_982_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_982_000), payout.Received.Uint64())
	assert.Equal(t, uint64(5_982_000), payout.Debit.Uint64())
	assert.Equal(t, 1, oracle.calls, "token payouts must not consult the oracle")
}

func TestComputePayoutOracleFailure(t *testing.T) {
	boom := errors.New("oracle down")
	_, err := computePayout(context.Background(), &fixedOracle{err: boom}, model.NativeAsset("uusd"), u(10))
	assert.ErrorIs(t, err, boom)
}
