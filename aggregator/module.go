// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Method selectors, the first four bytes of keccak256(signature)
var (
	SelectorAggregate           = selector("aggregate(bytes)")
	SelectorAddReferral         = selector("addReferral(address,uint32)")
	SelectorSetReferralFee      = selector("setReferralFee(uint64,uint32)")
	SelectorSetReferralActive   = selector("setReferralActive(uint64,bool)")
	SelectorSetReferralOwner    = selector("setReferralOwner(uint64,address)")
	SelectorSetStaticFee        = selector("setStaticFee(uint32)")
	SelectorClaimReferralFees   = selector("claimReferralFees(uint64)")
	SelectorClaimProtocolFees   = selector("claimProtocolFees()")
	SelectorGetReferrerBalances = selector("getReferrerBalances(uint64)")
	SelectorGetProtocolFees     = selector("getProtocolFees()")
	SelectorGetReferral         = selector("getReferral(uint64)")
	SelectorGetStaticFee        = selector("getStaticFee()")
)

func selector(sig string) uint32 {
	return binary.BigEndian.Uint32(crypto.Keccak256([]byte(sig))[:4])
}

// Run executes a call against the aggregator.
// payments are the assets transferred with the call; only aggregate accepts them.
func (a *Aggregator) Run(
	ctx context.Context,
	caller common.Address,
	input []byte,
	payments []Payment,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("%w: input too short", ErrInvalidInput)
	}

	sel := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	if sel != SelectorAggregate && len(payments) > 0 {
		return nil, suppliedGas, fmt.Errorf("%w: method %08x does not accept payments", ErrInvalidInput, sel)
	}

	switch sel {
	case SelectorAggregate:
		return a.runAggregate(ctx, data, payments, suppliedGas, readOnly)
	case SelectorAddReferral:
		return a.runAddReferral(caller, data, suppliedGas, readOnly)
	case SelectorSetReferralFee:
		return a.runSetReferralFee(caller, data, suppliedGas, readOnly)
	case SelectorSetReferralActive:
		return a.runSetReferralActive(caller, data, suppliedGas, readOnly)
	case SelectorSetReferralOwner:
		return a.runSetReferralOwner(caller, data, suppliedGas, readOnly)
	case SelectorSetStaticFee:
		return a.runSetStaticFee(caller, data, suppliedGas, readOnly)
	case SelectorClaimReferralFees:
		return a.runClaimReferralFees(caller, data, suppliedGas, readOnly)
	case SelectorClaimProtocolFees:
		return a.runClaimProtocolFees(caller, suppliedGas, readOnly)
	case SelectorGetReferrerBalances:
		return a.runGetReferrerBalances(data, suppliedGas)
	case SelectorGetProtocolFees:
		return a.runGetProtocolFees(suppliedGas)
	case SelectorGetReferral:
		return a.runGetReferral(data, suppliedGas)
	case SelectorGetStaticFee:
		return a.runGetStaticFee(suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("%w: %08x", ErrUnknownSelector, sel)
	}
}

// RequiredGas returns the minimum gas for the call in input
func (a *Aggregator) RequiredGas(input []byte) uint64 {
	gas := a.config.Gas
	if len(input) < 4 {
		return gas.Base
	}
	switch binary.BigEndian.Uint32(input[:4]) {
	case SelectorAggregate:
		return gas.Base
	case SelectorClaimReferralFees, SelectorClaimProtocolFees:
		return gas.Admin + gas.Claim*uint64(a.config.MaxClaimAssets)
	case SelectorGetReferrerBalances, SelectorGetProtocolFees, SelectorGetReferral, SelectorGetStaticFee:
		return gas.View
	default:
		return gas.Admin
	}
}

func charge(suppliedGas, cost uint64, what string) (uint64, error) {
	if suppliedGas < cost {
		return 0, fmt.Errorf("%w: %s needs %d, have %d", ErrOutOfGas, what, cost, suppliedGas)
	}
	return suppliedGas - cost, nil
}

func (a *Aggregator) runAggregate(ctx context.Context, data []byte, payments []Payment, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	// The meter treats a zero limit as unmetered, so Run never passes one
	if suppliedGas == 0 || suppliedGas < a.config.Gas.Base {
		return nil, 0, fmt.Errorf("%w: aggregate needs %d, have %d", ErrOutOfGas, a.config.Gas.Base, suppliedGas)
	}
	cb, err := DecodeCompactBatch(data)
	if err != nil {
		return nil, suppliedGas, err
	}
	receipt, err := a.ExecuteCompact(ctx, cb, payments, suppliedGas)
	if err != nil {
		return nil, 0, err
	}
	if receipt.GasUsed > suppliedGas {
		return nil, 0, fmt.Errorf("%w: used %d of %d", ErrOutOfGas, receipt.GasUsed, suppliedGas)
	}
	return EncodeReceipt(receipt), suppliedGas - receipt.GasUsed, nil
}

func (a *Aggregator) runAddReferral(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.config.Gas.Admin, "addReferral")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 24 {
		return nil, remaining, fmt.Errorf("%w: addReferral expects 24 bytes", ErrInvalidInput)
	}
	owner := common.BytesToAddress(data[:20])
	fee := binary.BigEndian.Uint32(data[20:24])

	id, err := a.AddReferral(caller, owner, fee)
	if err != nil {
		return nil, remaining, err
	}
	return binary.BigEndian.AppendUint64(nil, id), remaining, nil
}

func (a *Aggregator) runSetReferralFee(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.config.Gas.Admin, "setReferralFee")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 12 {
		return nil, remaining, fmt.Errorf("%w: setReferralFee expects 12 bytes", ErrInvalidInput)
	}
	id := binary.BigEndian.Uint64(data[:8])
	fee := binary.BigEndian.Uint32(data[8:12])
	return nil, remaining, a.SetReferralFee(caller, id, fee)
}

func (a *Aggregator) runSetReferralActive(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.config.Gas.Admin, "setReferralActive")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 9 || data[8] > 1 {
		return nil, remaining, fmt.Errorf("%w: setReferralActive expects id and a 0/1 flag", ErrInvalidInput)
	}
	id := binary.BigEndian.Uint64(data[:8])
	return nil, remaining, a.SetReferralActive(caller, id, data[8] == 1)
}

func (a *Aggregator) runSetReferralOwner(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.config.Gas.Admin, "setReferralOwner")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 28 {
		return nil, remaining, fmt.Errorf("%w: setReferralOwner expects 28 bytes", ErrInvalidInput)
	}
	id := binary.BigEndian.Uint64(data[:8])
	owner := common.BytesToAddress(data[8:28])
	return nil, remaining, a.SetReferralOwner(caller, id, owner)
}

func (a *Aggregator) runSetStaticFee(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.config.Gas.Admin, "setStaticFee")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 4 {
		return nil, remaining, fmt.Errorf("%w: setStaticFee expects 4 bytes", ErrInvalidInput)
	}
	return nil, remaining, a.SetStaticFee(caller, binary.BigEndian.Uint32(data))
}

func (a *Aggregator) claimCost() uint64 {
	return a.config.Gas.Admin + a.config.Gas.Claim*uint64(a.config.MaxClaimAssets)
}

// claimRefund returns gas reserved for assets that were not claimed
func (a *Aggregator) claimRefund(claimed int) uint64 {
	return a.config.Gas.Claim * uint64(a.config.MaxClaimAssets-claimed)
}

func (a *Aggregator) runClaimReferralFees(caller common.Address, data []byte, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.claimCost(), "claimReferralFees")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 8 {
		return nil, remaining, fmt.Errorf("%w: claimReferralFees expects 8 bytes", ErrInvalidInput)
	}
	claimed, err := a.ClaimReferralFees(caller, binary.BigEndian.Uint64(data))
	if err != nil {
		return nil, remaining, err
	}
	return EncodePayments(claimed), remaining + a.claimRefund(len(claimed)), nil
}

func (a *Aggregator) runClaimProtocolFees(caller common.Address, suppliedGas uint64, readOnly bool) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrReadOnly
	}
	remaining, err := charge(suppliedGas, a.claimCost(), "claimProtocolFees")
	if err != nil {
		return nil, 0, err
	}
	claimed, err := a.ClaimProtocolFees(caller)
	if err != nil {
		return nil, remaining, err
	}
	return EncodePayments(claimed), remaining + a.claimRefund(len(claimed)), nil
}

func (a *Aggregator) runGetReferrerBalances(data []byte, suppliedGas uint64) ([]byte, uint64, error) {
	remaining, err := charge(suppliedGas, a.config.Gas.View, "getReferrerBalances")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 8 {
		return nil, remaining, fmt.Errorf("%w: getReferrerBalances expects 8 bytes", ErrInvalidInput)
	}
	balances, err := a.ReferrerBalances(binary.BigEndian.Uint64(data))
	if err != nil {
		return nil, remaining, err
	}
	return EncodePayments(balances), remaining, nil
}

func (a *Aggregator) runGetProtocolFees(suppliedGas uint64) ([]byte, uint64, error) {
	remaining, err := charge(suppliedGas, a.config.Gas.View, "getProtocolFees")
	if err != nil {
		return nil, 0, err
	}
	balances, err := a.ProtocolBalances()
	if err != nil {
		return nil, remaining, err
	}
	return EncodePayments(balances), remaining, nil
}

func (a *Aggregator) runGetReferral(data []byte, suppliedGas uint64) ([]byte, uint64, error) {
	remaining, err := charge(suppliedGas, a.config.Gas.View, "getReferral")
	if err != nil {
		return nil, 0, err
	}
	if len(data) != 8 {
		return nil, remaining, fmt.Errorf("%w: getReferral expects 8 bytes", ErrInvalidInput)
	}
	ref, err := a.Referral(binary.BigEndian.Uint64(data))
	if err != nil {
		return nil, remaining, err
	}
	// owner (20) + fee (4) + active (1)
	result := make([]byte, 25)
	copy(result[:20], ref.Owner.Bytes())
	binary.BigEndian.PutUint32(result[20:24], ref.Fee)
	if ref.Active {
		result[24] = 1
	}
	return result, remaining, nil
}

func (a *Aggregator) runGetStaticFee(suppliedGas uint64) ([]byte, uint64, error) {
	remaining, err := charge(suppliedGas, a.config.Gas.View, "getStaticFee")
	if err != nil {
		return nil, 0, err
	}
	fee, err := a.StaticFee()
	if err != nil {
		return nil, remaining, err
	}
	return binary.BigEndian.AppendUint32(nil, fee), remaining, nil
}

// =========================================================================
// Result encoding
// =========================================================================

const paymentSize = common.AddressLength + 32

// EncodePayments encodes count (2 bytes) then asset (20) + amount (32) per payment
func EncodePayments(payments []Payment) []byte {
	out := make([]byte, 2, 2+paymentSize*len(payments))
	binary.BigEndian.PutUint16(out, uint16(len(payments)))
	for _, p := range payments {
		out = appendPayment(out, p)
	}
	return out
}

// DecodePayments parses the output of EncodePayments
func DecodePayments(data []byte) ([]Payment, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: empty payment list", ErrInvalidInput)
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) != 2+n*paymentSize {
		return nil, fmt.Errorf("%w: payment list of %d needs %d bytes, got %d",
			ErrInvalidInput, n, 2+n*paymentSize, len(data))
	}
	out := make([]Payment, n)
	for i := range out {
		off := 2 + i*paymentSize
		out[i] = NewPayment(
			NewCurrency(common.BytesToAddress(data[off:off+common.AddressLength])),
			new(uint256.Int).SetBytes(data[off+common.AddressLength:off+paymentSize]),
		)
	}
	return out, nil
}

// EncodeReceipt encodes a receipt:
// fingerprint (32) | output (52) | referralFee (32) | protocolFee (32) | gasUsed (8) | dust payments
func EncodeReceipt(r *Receipt) []byte {
	out := make([]byte, 0, 32+paymentSize+32+32+8+2+paymentSize*len(r.Dust))
	out = append(out, r.Fingerprint.Bytes()...)
	out = appendPayment(out, r.Output)
	out = appendWord(out, r.ReferralFee)
	out = appendWord(out, r.ProtocolFee)
	out = binary.BigEndian.AppendUint64(out, r.GasUsed)
	return append(out, EncodePayments(r.Dust)...)
}

// DecodeReceipt parses the output of EncodeReceipt
func DecodeReceipt(data []byte) (*Receipt, error) {
	const head = 32 + paymentSize + 32 + 32 + 8
	if len(data) < head+2 {
		return nil, fmt.Errorf("%w: receipt too short", ErrInvalidInput)
	}
	output, err := DecodePayments(append([]byte{0, 1}, data[32:32+paymentSize]...))
	if err != nil {
		return nil, err
	}
	dust, err := DecodePayments(data[head:])
	if err != nil {
		return nil, err
	}
	off := 32 + paymentSize
	return &Receipt{
		Fingerprint: common.BytesToHash(data[:32]),
		Output:      output[0],
		ReferralFee: new(uint256.Int).SetBytes(data[off : off+32]),
		ProtocolFee: new(uint256.Int).SetBytes(data[off+32 : off+64]),
		GasUsed:     binary.BigEndian.Uint64(data[off+64 : off+72]),
		Dust:        dust,
	}, nil
}

func appendPayment(out []byte, p Payment) []byte {
	out = append(out, p.Currency.Address.Bytes()...)
	return appendWord(out, p.Amount)
}

func appendWord(out []byte, v *uint256.Int) []byte {
	if v == nil {
		v = new(uint256.Int)
	}
	word := v.Bytes32()
	return append(out, word[:]...)
}
