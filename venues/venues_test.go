// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/aggregator/aggregator"
)

func TestStablePool(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	addr := common.HexToAddress("0x0000000000000000000000000000000000005700")
	s, err := NewStablePool(addr, []aggregator.Currency{tokenA, tokenB, tokenC}, []*uint256.Int{u(1000), u(1000), u(1000)}, 4)
	require.NoError(err)
	require.Equal(u(3000), s.LPSupply)

	swap := &aggregator.VenueCall{
		Action:   aggregator.JexStableSwap,
		Venue:    addr,
		Inputs:   []aggregator.Payment{pay(tokenA, 100)},
		TokenOut: tokenB,
		MinOut:   u(100),
	}
	_, err = s.Swap(ctx, swap)
	require.ErrorIs(err, ErrSlippage)

	swap.MinOut = u(2)
	out, err := s.Swap(ctx, swap)
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenB, 99)}, out)
	require.Equal(u(1100), s.Balances[0])
	require.Equal(u(901), s.Balances[1])

	// three assets need an explicit output
	swap.TokenOut = aggregator.Currency{}
	_, err = s.Swap(ctx, swap)
	require.ErrorIs(err, ErrAssetNotInPool)

	out, err = s.AddLiquidity(ctx, &aggregator.VenueCall{
		Action: aggregator.AshSwapPoolAddLiquidity,
		Venue:  addr,
		Inputs: []aggregator.Payment{pay(tokenA, 10), pay(tokenC, 20)},
	})
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(s.LPToken(), 30)}, out)
	require.Equal(u(3030), s.LPSupply)

	_, err = s.AddLiquidity(ctx, &aggregator.VenueCall{
		Venue:  addr,
		Inputs: []aggregator.Payment{pay(tokenA, 10), pay(wrapped, 20)},
	})
	require.ErrorIs(err, ErrAssetNotInPool)
	require.Equal(u(1110), s.Balances[0], "rejected deposit must not credit")

	// held A+B = 1110+901 = 2011
	out, err = s.RemoveLiquidity(ctx, &aggregator.VenueCall{
		Action:      aggregator.AshSwapPoolRemoveLiquidity,
		Venue:       addr,
		Inputs:      []aggregator.Payment{pay(s.LPToken(), 300)},
		OutputCount: 2,
	})
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenA, 165), pay(tokenB, 134)}, out)
	require.Equal(u(2730), s.LPSupply)

	out, err = s.RemoveLiquidity(ctx, &aggregator.VenueCall{
		Venue:  addr,
		Inputs: []aggregator.Payment{pay(s.LPToken(), 273)},
	})
	require.NoError(err)
	require.Len(out, 3)

	_, err = s.RemoveLiquidity(ctx, &aggregator.VenueCall{
		Venue:       addr,
		Inputs:      []aggregator.Payment{pay(s.LPToken(), 1)},
		OutputCount: 4,
	})
	require.ErrorIs(err, ErrInvalidInputs)

	_, err = NewStablePool(addr, []aggregator.Currency{tokenA}, []*uint256.Int{u(1)}, 4)
	require.ErrorIs(err, ErrInvalidInputs)
}

func TestTwoAssetStableSwapDefaultsOutput(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000005701")
	s, err := NewStablePool(addr, []aggregator.Currency{tokenA, tokenB}, []*uint256.Int{u(1000), u(1000)}, 0)
	require.NoError(t, err)

	out, err := s.Swap(context.Background(), &aggregator.VenueCall{
		Action: aggregator.AshSwapV2Swap,
		Venue:  addr,
		Inputs: []aggregator.Payment{pay(tokenB, 10)},
	})
	require.NoError(t, err)
	require.Equal(t, []aggregator.Payment{pay(tokenA, 10)}, out)
}

func TestWrapper(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	w := NewWrapper(wrapped)
	out, err := w.Wrap(ctx, &aggregator.VenueCall{Inputs: []aggregator.Payment{pay(aggregator.NativeCurrency, 5)}})
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(wrapped, 5)}, out)
	require.Equal(u(5), w.Locked())

	_, err = w.Wrap(ctx, &aggregator.VenueCall{Inputs: out})
	require.ErrorIs(err, ErrInvalidInputs)

	_, err = w.Unwrap(ctx, &aggregator.VenueCall{Inputs: []aggregator.Payment{pay(wrapped, 6)}})
	require.ErrorIs(err, ErrInsufficientLiquidity)

	out, err = w.Unwrap(ctx, &aggregator.VenueCall{Inputs: out})
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(aggregator.NativeCurrency, 5)}, out)
	require.True(w.Locked().IsZero())

	_, err = w.Swap(ctx, &aggregator.VenueCall{})
	require.ErrorIs(err, ErrUnsupported)
}

func TestLiquidStaking(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	s := NewLiquidStaking(aggregator.NativeCurrency, tokenC)
	stake := func(v uint64) ([]aggregator.Payment, error) {
		return s.Stake(ctx, &aggregator.VenueCall{
			Action: aggregator.XoxnoLiquidStaking,
			Inputs: []aggregator.Payment{pay(aggregator.NativeCurrency, v)},
			MinOut: u(1),
		})
	}

	out, err := stake(100)
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenC, 100)}, out)

	s.AddRewards(u(100))
	out, err = stake(50)
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenC, 25)}, out)

	pooled, shares := s.Rate()
	require.Equal(u(250), pooled)
	require.Equal(u(125), shares)

	// 1 * 125 / 250 rounds to nothing
	_, err = stake(1)
	require.ErrorIs(err, ErrSlippage)

	_, err = s.Stake(ctx, &aggregator.VenueCall{Inputs: []aggregator.Payment{pay(tokenA, 1)}})
	require.ErrorIs(err, ErrInvalidInputs)
	_, err = s.Redeem(ctx, &aggregator.VenueCall{})
	require.ErrorIs(err, ErrUnsupported)
}

func TestMoneyMarket(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	m := NewMoneyMarket(tokenA, tokenC)
	supply := func(v uint64) ([]aggregator.Payment, error) {
		return m.Supply(ctx, &aggregator.VenueCall{
			Action:   aggregator.HatomSupply,
			Inputs:   []aggregator.Payment{pay(tokenA, v)},
			TokenOut: tokenC,
			MinOut:   u(1),
		})
	}

	out, err := supply(1000)
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenC, 1000)}, out)

	m.AccrueInterest(u(100))
	require.Equal(new(uint256.Int).Mul(u(11), new(uint256.Int).Div(RAY, u(10))), m.ExchangeRate())

	out, err = supply(110)
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenC, 100)}, out)

	out, err = m.Redeem(ctx, &aggregator.VenueCall{
		Action: aggregator.HatomRedeem,
		Inputs: []aggregator.Payment{pay(tokenC, 550)},
	})
	require.NoError(err)
	require.Equal([]aggregator.Payment{pay(tokenA, 605)}, out)

	_, err = m.Redeem(ctx, &aggregator.VenueCall{Inputs: []aggregator.Payment{pay(tokenC, 551)}})
	require.ErrorIs(err, ErrInvalidAmount)

	_, err = m.Supply(ctx, &aggregator.VenueCall{
		Inputs:   []aggregator.Payment{pay(tokenA, 1)},
		TokenOut: tokenB,
	})
	require.ErrorIs(err, ErrInvalidInputs)
}
