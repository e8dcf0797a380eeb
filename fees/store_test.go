// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fees

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	tokenA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0x1000000000000000000000000000000000000002")
	tokenC = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

func TestReferralLifecycle(t *testing.T) {
	s := NewStore(memdb.New())

	id, err := s.AddReferral(alice, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	id2, err := s.AddReferral(bob, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id2)

	ref, err := s.Referral(id)
	require.NoError(t, err)
	require.Equal(t, &Referral{ID: 1, Owner: alice, Fee: 100, Active: true}, ref)

	require.NoError(t, s.SetReferralFee(id, 250))
	require.NoError(t, s.SetReferralActive(id, false))
	require.NoError(t, s.SetReferralOwner(id, bob))

	ref, err = s.Referral(id)
	require.NoError(t, err)
	require.Equal(t, &Referral{ID: 1, Owner: bob, Fee: 250, Active: false}, ref)
}

func TestReferralFeeCeiling(t *testing.T) {
	s := NewStore(memdb.New())

	_, err := s.AddReferral(alice, MaxReferralFee+1)
	require.ErrorIs(t, err, ErrFeeExceedsCeiling)

	id, err := s.AddReferral(alice, MaxReferralFee)
	require.NoError(t, err)
	require.ErrorIs(t, s.SetReferralFee(id, MaxReferralFee+1), ErrFeeExceedsCeiling)
}

func TestReferralNotFound(t *testing.T) {
	s := NewStore(memdb.New())

	_, err := s.Referral(7)
	require.ErrorIs(t, err, ErrReferralNotFound)
	require.ErrorIs(t, s.SetReferralFee(7, 10), ErrReferralNotFound)
	require.ErrorIs(t, s.SetReferralActive(7, true), ErrReferralNotFound)
	require.ErrorIs(t, s.SetReferralOwner(7, alice), ErrReferralNotFound)
}

func TestStaticFee(t *testing.T) {
	s := NewStore(memdb.New())

	fee, err := s.StaticFee()
	require.NoError(t, err)
	require.Zero(t, fee)

	require.NoError(t, s.SetStaticFee(TotalFee))
	require.ErrorIs(t, s.SetStaticFee(TotalFee+1), ErrFeeExceedsCeiling)

	fee, err = s.StaticFee()
	require.NoError(t, err)
	require.Equal(t, TotalFee, fee)
}

func TestAccrueAndList(t *testing.T) {
	s := NewStore(memdb.New())
	id, err := s.AddReferral(alice, 100)
	require.NoError(t, err)

	require.NoError(t, s.AccrueReferrer(id, tokenB, uint256.NewInt(5)))
	require.NoError(t, s.AccrueReferrer(id, tokenA, uint256.NewInt(7)))
	require.NoError(t, s.AccrueReferrer(id, tokenB, uint256.NewInt(3)))
	require.NoError(t, s.AccrueReferrer(id, tokenC, new(uint256.Int)))
	require.NoError(t, s.AccrueProtocol(tokenA, uint256.NewInt(11)))

	got, err := s.ReferrerBalances(id)
	require.NoError(t, err)
	require.Equal(t, []Balance{
		{Asset: tokenA, Amount: uint256.NewInt(7)},
		{Asset: tokenB, Amount: uint256.NewInt(8)},
	}, got)

	got, err = s.ProtocolBalances()
	require.NoError(t, err)
	require.Equal(t, []Balance{{Asset: tokenA, Amount: uint256.NewInt(11)}}, got)

	// pools of other referrals are separate
	got, err = s.ReferrerBalances(id + 1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClaimBounded(t *testing.T) {
	s := NewStore(memdb.New())
	for _, asset := range []common.Address{tokenA, tokenB, tokenC} {
		require.NoError(t, s.AccrueProtocol(asset, uint256.NewInt(1)))
	}

	claimed, err := s.ClaimProtocol(2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Equal(t, tokenA, claimed[0].Asset)
	require.Equal(t, tokenB, claimed[1].Asset)

	claimed, err = s.ClaimProtocol(2)
	require.NoError(t, err)
	require.Equal(t, []Balance{{Asset: tokenC, Amount: uint256.NewInt(1)}}, claimed)

	left, err := s.ProtocolBalances()
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestClaimReferrerOwnerOnly(t *testing.T) {
	s := NewStore(memdb.New())
	id, err := s.AddReferral(alice, 100)
	require.NoError(t, err)
	require.NoError(t, s.AccrueReferrer(id, tokenA, uint256.NewInt(9)))

	_, err = s.ClaimReferrer(id, bob, 10)
	require.ErrorIs(t, err, ErrNotReferralOwner)

	claimed, err := s.ClaimReferrer(id, alice, 10)
	require.NoError(t, err)
	require.Equal(t, []Balance{{Asset: tokenA, Amount: uint256.NewInt(9)}}, claimed)

	_, err = s.ClaimReferrer(id+1, alice, 10)
	require.ErrorIs(t, err, ErrReferralNotFound)
}

func TestTxnCommitAndAbort(t *testing.T) {
	base := NewStore(memdb.New())

	txn := base.Begin()
	require.NoError(t, txn.AccrueProtocol(tokenA, uint256.NewInt(4)))
	txn.Abort()

	got, err := base.ProtocolBalances()
	require.NoError(t, err)
	require.Empty(t, got)

	txn = base.Begin()
	require.NoError(t, txn.AccrueProtocol(tokenA, uint256.NewInt(4)))
	id, err := txn.AddReferral(alice, 10)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	got, err = base.ProtocolBalances()
	require.NoError(t, err)
	require.Equal(t, []Balance{{Asset: tokenA, Amount: uint256.NewInt(4)}}, got)

	ref, err := base.Referral(id)
	require.NoError(t, err)
	require.Equal(t, alice, ref.Owner)
}
