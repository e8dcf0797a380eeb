// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func testCompactBatch() *CompactBatch {
	return &CompactBatch{
		MinOut:     u(1_500),
		TokenOut:   1,
		ReferralID: 7,
		Registries: *testRegistries(),
		Instructions: []CompactInstruction{
			{Action: uint8(XExchangeSwap), B1: 1, B2: 0, B3: compactModeAll, Index: uint16(IdxAuto)},
			{Action: uint8(JexSwap), B1: 1, B2: compactPpmBase + 1, B3: IdxNone, Index: 1},
		},
	}
}

func TestCompactBatchRoundTrip(t *testing.T) {
	require := require.New(t)

	cb := testCompactBatch()
	data := cb.Bytes()
	require.Len(data, 32+9+1+20*3+2+20*2+1+32*3+2+CompactInstructionSize*2)

	decoded, err := DecodeCompactBatch(data)
	require.NoError(err)
	require.Equal(cb, decoded)
}

func TestDecodeCompactBatchRejectsMalformed(t *testing.T) {
	require := require.New(t)

	data := testCompactBatch().Bytes()

	_, err := DecodeCompactBatch(append(data, 0))
	require.ErrorIs(err, ErrInvalidInput)

	for _, n := range []int{0, 31, 40, len(data) - 1} {
		_, err = DecodeCompactBatch(data[:n])
		require.ErrorIs(err, ErrInvalidInput, "truncated at %d", n)
	}
}

func TestCompactBatchExpand(t *testing.T) {
	require := require.New(t)

	batch, err := testCompactBatch().Expand()
	require.NoError(err)
	require.Equal(tokenB, batch.TokenOut)
	require.Equal(u(1_500), batch.MinOut)
	require.Equal(uint64(7), batch.ReferralID)
	require.Len(batch.Instructions, 2)
	require.Equal(XExchangeSwap, batch.Instructions[0].Action)
	require.Equal(&venueY, batch.Instructions[1].Venue)
}

func TestCompactBatchExpandErrors(t *testing.T) {
	require := require.New(t)

	cb := testCompactBatch()
	cb.TokenOut = 9
	_, err := cb.Expand()
	require.ErrorIs(err, ErrIndexOutOfRange)

	cb = testCompactBatch()
	cb.Instructions[1].Action = 200
	_, err = cb.Expand()
	require.ErrorIs(err, ErrInvalidAction)
	require.Contains(err.Error(), "instruction 1")
}

func TestBatchFingerprint(t *testing.T) {
	require := require.New(t)

	a, err := testCompactBatch().Expand()
	require.NoError(err)
	b, err := testCompactBatch().Expand()
	require.NoError(err)
	require.Equal(a.Fingerprint(), b.Fingerprint())

	b.MinOut = uint256.NewInt(1_501)
	require.NotEqual(a.Fingerprint(), b.Fingerprint())

	b, _ = testCompactBatch().Expand()
	b.Instructions[0].Inputs[0].Mode = Fixed(u(3))
	require.NotEqual(a.Fingerprint(), b.Fingerprint())
}

func TestBatchFingerprintTagsOptionalFields(t *testing.T) {
	require := require.New(t)

	base := &Batch{
		TokenOut: NewCurrency(common.HexToAddress("0xb0")),
		Instructions: []Instruction{
			{Action: XExchangeSwap, OutputCount: 1, TokenOut: NewCurrency(common.HexToAddress("0xb0"))},
		},
	}

	zeroVenue := *base
	zeroVenue.Instructions = []Instruction{base.Instructions[0]}
	zeroVenue.Instructions[0].Venue = &common.Address{}
	require.NotEqual(base.Fingerprint(), zeroVenue.Fingerprint())

	// venue bytes moved into an input must not hash like a venue
	v := common.HexToAddress("0xcafe")
	withVenue := *base
	withVenue.Instructions = []Instruction{base.Instructions[0]}
	withVenue.Instructions[0].Venue = &v
	withInput := *base
	withInput.Instructions = []Instruction{base.Instructions[0]}
	withInput.Instructions[0].Inputs = []InputArg{{Currency: NewCurrency(v), Mode: All()}}
	require.NotEqual(withVenue.Fingerprint(), withInput.Fingerprint())

	zeroMin := *base
	zeroMin.MinOut = new(uint256.Int)
	require.NotEqual(base.Fingerprint(), zeroMin.Fingerprint())
}
