// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// swapBatch swaps 600 of A into B at venueX and returns B
func swapBatch(minOut uint64, referralID uint64) *Batch {
	x := venueX
	return &Batch{
		Instructions: []Instruction{{
			Action: JexSwap,
			Inputs: []InputArg{{Currency: tokenA, Mode: Fixed(u(600))}},
			Venue:  &x,
		}},
		TokenOut:   tokenB,
		MinOut:     u(minOut),
		ReferralID: referralID,
	}
}

func swapVenues() *mockVenues {
	venues := newMockVenues()
	venues.outOf[venueX] = tokenB
	venues.outOf[venueY] = tokenC
	return venues
}

func deposits() []Payment {
	return []Payment{NewPayment(tokenA, u(1000)), NewPayment(tokenC, u(5))}
}

func TestExecuteBatch(t *testing.T) {
	require := require.New(t)

	agg := newTestAggregator(swapVenues(), &mockPools{})
	batch := swapBatch(1_000, 0)

	receipt, err := agg.Execute(context.Background(), batch, deposits(), 0)
	require.NoError(err)
	require.Equal(batch.Fingerprint(), receipt.Fingerprint)
	require.Equal(NewPayment(tokenB, u(1200)), receipt.Output)
	require.True(receipt.ReferralFee.IsZero())
	require.True(receipt.ProtocolFee.IsZero())
	require.Equal([]Payment{NewPayment(tokenA, u(400)), NewPayment(tokenC, u(5))}, receipt.Dust)

	gas := agg.Config().Gas
	require.Equal(gas.Base+gas.Instruction+gas.VenueCall+gas.FeeAccrual+2*gas.DustSweep, receipt.GasUsed)

	protocol, err := agg.ProtocolBalances()
	require.NoError(err)
	require.Equal([]Payment{NewPayment(tokenA, u(400)), NewPayment(tokenC, u(5))}, protocol)
}

func TestExecuteFeesBeforeSlippageCheck(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	agg := newTestAggregator(swapVenues(), &mockPools{})
	id, err := agg.AddReferral(owner, alice, 100)
	require.NoError(err)

	// 1200 - 12 - 12 = 1176
	_, err = agg.Execute(ctx, swapBatch(1_177, id), deposits(), 0)
	require.ErrorIs(err, ErrInsufficientOutput)

	referrer, err := agg.ReferrerBalances(id)
	require.NoError(err)
	require.Empty(referrer, "failed batch must not accrue")
	protocol, err := agg.ProtocolBalances()
	require.NoError(err)
	require.Empty(protocol)

	receipt, err := agg.Execute(ctx, swapBatch(1_176, id), deposits(), 0)
	require.NoError(err)
	require.Equal(u(1_176), receipt.Output.Amount)
	require.Equal(u(12), receipt.ReferralFee)
	require.Equal(u(12), receipt.ProtocolFee)

	referrer, err = agg.ReferrerBalances(id)
	require.NoError(err)
	require.Equal([]Payment{NewPayment(tokenB, u(12))}, referrer)
}

func TestExecuteRollsBackDust(t *testing.T) {
	require := require.New(t)

	pool := testPool()
	venues := swapVenues()
	venues.pool = pool
	venues.result[XExchangeAddLiquidity] = []Payment{NewPayment(tokenC, u(50)), NewPayment(tokenA, u(3))}
	venues.fail[JexSwap] = errVenueRejected
	agg := newTestAggregator(venues, &mockPools{info: pool})

	x := venueX
	batch := &Batch{
		Instructions: []Instruction{
			{
				Action: XExchangeAddLiquidity,
				Inputs: []InputArg{
					{Currency: tokenA, Mode: All()},
					{Currency: tokenB, Mode: All()},
				},
			},
			{
				Action: JexSwap,
				Inputs: []InputArg{{Currency: tokenC, Mode: All()}},
				Venue:  &x,
			},
		},
		TokenOut: tokenC,
		MinOut:   u(1),
	}
	_, err := agg.Execute(context.Background(), batch,
		[]Payment{NewPayment(tokenA, u(500)), NewPayment(tokenB, u(10))}, 0)
	require.ErrorIs(err, errVenueRejected)
	require.Contains(err.Error(), "instruction 1 (JexSwap)")

	protocol, err := agg.ProtocolBalances()
	require.NoError(err)
	require.Empty(protocol)
}

func TestExecuteRejectsNonFungibleDeposit(t *testing.T) {
	agg := newTestAggregator(swapVenues(), &mockPools{})
	_, err := agg.Execute(context.Background(), swapBatch(0, 0),
		[]Payment{{Currency: tokenA, Nonce: 1, Amount: u(1000)}}, 0)
	require.ErrorIs(t, err, ErrNonFungibleDeposit)
}

func TestExecuteOutOfGas(t *testing.T) {
	require := require.New(t)

	venues := swapVenues()
	agg := newTestAggregator(venues, &mockPools{})

	_, err := agg.Execute(context.Background(), swapBatch(0, 0), deposits(), GasBatchBase+GasInstruction)
	require.ErrorIs(err, ErrOutOfGas)
	require.Empty(venues.calls)
}

// reentrantVenues calls back into the aggregator from inside a swap
type reentrantVenues struct {
	*mockVenues
	agg *Aggregator
}

func (r *reentrantVenues) Swap(ctx context.Context, call *VenueCall) ([]Payment, error) {
	if _, err := r.agg.Execute(ctx, swapBatch(0, 0), deposits(), 0); err != nil {
		return nil, err
	}
	return r.mockVenues.Swap(ctx, call)
}

func TestExecuteRejectsReentry(t *testing.T) {
	venues := &reentrantVenues{mockVenues: swapVenues()}
	agg := newTestAggregator(venues, &mockPools{})
	venues.agg = agg

	_, err := agg.Execute(context.Background(), swapBatch(0, 0), deposits(), 0)
	require.ErrorIs(t, err, ErrReentrant)
}

func TestExecuteCompact(t *testing.T) {
	require := require.New(t)

	agg := newTestAggregator(swapVenues(), &mockPools{})
	cb := &CompactBatch{
		MinOut:   u(1),
		TokenOut: 1,
		Registries: Registries{
			Assets: []Currency{tokenA, tokenB},
			Venues: []common.Address{venueX},
		},
		Instructions: []CompactInstruction{
			{Action: uint8(JexSwap), B1: 0, B2: compactModeAll, B3: IdxNone, Index: 0},
		},
	}
	receipt, err := agg.ExecuteCompact(context.Background(), cb, []Payment{NewPayment(tokenA, u(21))}, 0)
	require.NoError(err)
	require.Equal(NewPayment(tokenB, u(42)), receipt.Output)
	require.Empty(receipt.Dust)
}

func TestAdminAuthorization(t *testing.T) {
	require := require.New(t)

	agg := newTestAggregator(swapVenues(), &mockPools{})

	_, err := agg.AddReferral(alice, alice, 10)
	require.ErrorIs(err, ErrUnauthorized)
	require.ErrorIs(agg.SetStaticFee(alice, 10), ErrUnauthorized)
	require.ErrorIs(agg.SetReferralFee(alice, 1, 10), ErrUnauthorized)
	require.ErrorIs(agg.SetReferralActive(alice, 1, false), ErrUnauthorized)
	require.ErrorIs(agg.SetReferralOwner(alice, 1, alice), ErrUnauthorized)
	_, err = agg.ClaimProtocolFees(alice)
	require.ErrorIs(err, ErrUnauthorized)

	_, err = agg.AddReferral(owner, alice, 5_001)
	require.ErrorIs(err, ErrFeeExceedsCeiling)
	require.ErrorIs(agg.SetStaticFee(owner, 10_001), ErrFeeExceedsCeiling)
	require.ErrorIs(agg.SetReferralFee(owner, 42, 10), ErrReferralNotFound)

	id, err := agg.AddReferral(owner, alice, 10)
	require.NoError(err)
	require.NoError(agg.SetReferralFee(owner, id, 20))
	require.NoError(agg.SetReferralOwner(owner, id, owner))

	ref, err := agg.Referral(id)
	require.NoError(err)
	require.Equal(owner, ref.Owner)
	require.Equal(uint32(20), ref.Fee)
	require.True(ref.Active)

	require.NoError(agg.SetStaticFee(owner, 25))
	fee, err := agg.StaticFee()
	require.NoError(err)
	require.Equal(uint32(25), fee)
}

func TestClaimReferralFees(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	agg := newTestAggregator(swapVenues(), &mockPools{})
	id, err := agg.AddReferral(owner, alice, 100)
	require.NoError(err)
	_, err = agg.Execute(ctx, swapBatch(0, id), deposits(), 0)
	require.NoError(err)

	_, err = agg.ClaimReferralFees(owner, id)
	require.ErrorIs(err, ErrNotReferralOwner)

	claimed, err := agg.ClaimReferralFees(alice, id)
	require.NoError(err)
	require.Equal([]Payment{NewPayment(tokenB, u(12))}, claimed)

	claimed, err = agg.ClaimReferralFees(alice, id)
	require.NoError(err)
	require.Empty(claimed)
}

func TestClaimProtocolFeesBounded(t *testing.T) {
	require := require.New(t)

	config := DefaultConfig(owner)
	config.MaxClaimAssets = 1
	agg, err := New(config, memdb.New(), swapVenues(), &mockPools{})
	require.NoError(err)

	_, err = agg.Execute(context.Background(), swapBatch(0, 0), deposits(), 0)
	require.NoError(err)

	claimed, err := agg.ClaimProtocolFees(owner)
	require.NoError(err)
	require.Equal([]Payment{NewPayment(tokenA, u(400))}, claimed)

	claimed, err = agg.ClaimProtocolFees(owner)
	require.NoError(err)
	require.Equal([]Payment{NewPayment(tokenC, u(5))}, claimed)

	claimed, err = agg.ClaimProtocolFees(owner)
	require.NoError(err)
	require.Empty(claimed)
}

func TestNewRequiresOwner(t *testing.T) {
	_, err := New(&Config{}, memdb.New(), swapVenues(), &mockPools{})
	require.Error(t, err)
}

func TestMetrics(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	agg := newTestAggregator(swapVenues(), &mockPools{})
	agg.SetMetrics(NewMetrics(reg))

	_, err := agg.Execute(ctx, swapBatch(0, 0), deposits(), 0)
	require.NoError(err)
	_, err = agg.Execute(ctx, swapBatch(1_000_000, 0), deposits(), 0)
	require.ErrorIs(err, ErrInsufficientOutput)

	families, err := reg.Gather()
	require.NoError(err)
	counts := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch f.GetName() {
			case "aggregator_batches_total", "aggregator_instructions_total":
				counts[f.GetName()+"/"+m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
			case "aggregator_batch_gas_used":
				counts[f.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	require.Equal(map[string]float64{
		"aggregator_batches_total/ok":           1,
		"aggregator_batches_total/failed":       1,
		"aggregator_instructions_total/JexSwap": 1,
		"aggregator_batch_gas_used":             1,
	}, counts)
}
