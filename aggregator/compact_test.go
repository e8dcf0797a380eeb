// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func testRegistries() *Registries {
	return &Registries{
		Assets:  []Currency{tokenA, tokenB, tokenC},
		Venues:  []common.Address{venueX, venueY},
		Amounts: []*uint256.Int{u(1000), u(500_000), u(2_000_000)},
	}
}

func TestDecodeOutputToken(t *testing.T) {
	require := require.New(t)

	// XExchangeSwap: [out, in, mode, -]
	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(XExchangeSwap),
		B1:     1,
		B2:     0,
		B3:     compactFixedBase,
		B4:     0,
		Index:  1,
	}, testRegistries())
	require.NoError(err)
	require.Equal(XExchangeSwap, instr.Action)
	require.Equal(tokenB, instr.TokenOut)
	require.Equal([]InputArg{{Currency: tokenA, Mode: Fixed(u(1000))}}, instr.Inputs)
	require.Nil(instr.Venue, "pair swaps resolve their venue")
}

func TestDecodeChainedInput(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(JexStableSwap),
		B1:     2,
		B2:     IdxNone,
		B3:     compactModePrev,
		Index:  0,
	}, testRegistries())
	require.NoError(err)
	require.Nil(instr.Inputs)
	require.Equal(tokenC, instr.TokenOut)
	require.Equal(&venueX, instr.Venue)
}

func TestDecodeDual(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(JexAddLiquidity),
		B1:     0,
		B2:     compactFixedBase,
		B3:     1,
		B4:     compactPpmBase + 1,
		Index:  1,
	}, testRegistries())
	require.NoError(err)
	require.Equal([]InputArg{
		{Currency: tokenA, Mode: Fixed(u(1000))},
		{Currency: tokenB, Mode: Ppm(500_000)},
	}, instr.Inputs)
	require.Equal(&venueY, instr.Venue)

	// Second slot absent
	instr, err = DecodeInstruction(CompactInstruction{
		Action: uint8(JexSwap),
		B1:     IdxNative,
		B2:     compactModeAll,
		B3:     IdxNone,
	}, testRegistries())
	require.NoError(err)
	require.Equal([]InputArg{{Currency: NativeCurrency, Mode: All()}}, instr.Inputs)
	require.Equal(&venueX, instr.Venue)
}

func TestDecodeMultiInput(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(AshSwapPoolAddLiquidity),
		B1:     0,
		B2:     1,
		B3:     IdxNone,
		B4:     compactModeAll,
		Index:  1,
	}, testRegistries())
	require.NoError(err)
	require.Equal([]InputArg{
		{Currency: tokenA, Mode: All()},
		{Currency: tokenB, Mode: All()},
	}, instr.Inputs)
	require.Equal(&venueY, instr.Venue)
}

func TestDecodeOutputCount(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(AshSwapV2RemoveLiquidity),
		B1:     2,
		B2:     2,
		B3:     compactModeAll,
		Index:  0,
	}, testRegistries())
	require.NoError(err)
	require.Equal(uint8(2), instr.OutputCount)
	require.Equal([]InputArg{{Currency: tokenC, Mode: All()}}, instr.Inputs)
	require.Equal(&venueX, instr.Venue)
}

func TestDecodePairID(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(OneDexAddLiquidity),
		B1:     0,
		B2:     1,
		B3:     compactModeAll,
		Index:  700,
	}, testRegistries())
	require.NoError(err)
	require.Equal(uint16(700), instr.PairID)
	require.Len(instr.Inputs, 2)
	require.Nil(instr.Venue)
}

func TestDecodeAutoIndex(t *testing.T) {
	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(JexSwap),
		B1:     0,
		B2:     compactModeAll,
		B3:     IdxNone,
		Index:  uint16(IdxAuto),
	}, testRegistries())
	require.NoError(t, err)
	require.Nil(t, instr.Venue)
}

func TestDecodePpmCheckedOnUse(t *testing.T) {
	require := require.New(t)

	instr, err := DecodeInstruction(CompactInstruction{
		Action: uint8(JexSwap),
		B1:     0,
		B2:     compactPpmBase + 2,
		B3:     IdxNone,
	}, testRegistries())
	require.NoError(err)
	require.Equal(ModePpm, instr.Inputs[0].Mode.Kind)
	require.Equal(u(2_000_000), instr.Inputs[0].Mode.Value)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		ci   CompactInstruction
		err  error
	}{
		{
			name: "unknown action",
			ci:   CompactInstruction{Action: uint8(numActions)},
			err:  ErrInvalidAction,
		},
		{
			name: "asset out of range",
			ci:   CompactInstruction{Action: uint8(JexSwap), B1: 3, B3: IdxNone},
			err:  ErrIndexOutOfRange,
		},
		{
			name: "output asset out of range",
			ci:   CompactInstruction{Action: uint8(XExchangeSwap), B1: 9, B2: 0},
			err:  ErrIndexOutOfRange,
		},
		{
			name: "amount out of range",
			ci:   CompactInstruction{Action: uint8(JexSwap), B1: 0, B2: compactFixedBase + 3, B3: IdxNone},
			err:  ErrIndexOutOfRange,
		},
		{
			name: "venue out of range",
			ci:   CompactInstruction{Action: uint8(JexSwap), B1: 0, B3: IdxNone, Index: 2},
			err:  ErrIndexOutOfRange,
		},
		{
			name: "first shared asset absent",
			ci:   CompactInstruction{Action: uint8(AshSwapPoolAddLiquidity), B1: IdxNone, B2: 0},
			err:  ErrIndexOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInstruction(tt.ci, testRegistries())
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestRegistriesAmountIsCopied(t *testing.T) {
	regs := testRegistries()
	v, err := regs.Amount(0)
	require.NoError(t, err)
	v.SetUint64(1)
	require.Equal(t, u(1000), regs.Amounts[0])
}
