// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/luxfi/aggregator/fees"
)

var totalFee = uint256.NewInt(uint64(fees.TotalFee))

// FeeLedger is the keyed fee store a batch accrues into
type FeeLedger interface {
	FeeBook
	Referral(id uint64) (*fees.Referral, error)
	StaticFee() (uint32, error)
}

// ApplyFees takes the referral or static fee from the output balance.
// An active referral with a non-zero fee earns fee bps of the output and
// the protocol takes a matching amount; otherwise the static fee goes to
// the protocol pool.
func ApplyFees(vault *Vault, book FeeLedger, tokenOut Currency, referralID uint64) (*uint256.Int, *uint256.Int, error) {
	output := vault.BalanceOf(tokenOut)
	refFee, protoFee := new(uint256.Int), new(uint256.Int)

	if referralID != 0 {
		ref, err := book.Referral(referralID)
		switch {
		case errors.Is(err, fees.ErrReferralNotFound):
		case err != nil:
			return nil, nil, err
		case ref.Active && ref.Fee > 0:
			refFee = bps(output, ref.Fee)
			protoFee.Set(refFee)

			total := new(uint256.Int).Add(refFee, protoFee)
			if _, err := vault.Withdraw(tokenOut, total); err != nil {
				return nil, nil, err
			}
			if err := book.AccrueReferrer(referralID, tokenOut.Address, refFee); err != nil {
				return nil, nil, err
			}
			if err := book.AccrueProtocol(tokenOut.Address, protoFee); err != nil {
				return nil, nil, err
			}
			return refFee, protoFee, nil
		}
	}

	static, err := book.StaticFee()
	if err != nil {
		return nil, nil, err
	}
	if static > fees.TotalFee {
		return nil, nil, fmt.Errorf("%w: static fee %d", ErrFeeExceedsCeiling, static)
	}
	if static == 0 {
		return refFee, protoFee, nil
	}
	protoFee = bps(output, static)
	if _, err := vault.Withdraw(tokenOut, protoFee); err != nil {
		return nil, nil, err
	}
	if err := book.AccrueProtocol(tokenOut.Address, protoFee); err != nil {
		return nil, nil, err
	}
	return refFee, protoFee, nil
}

// bps returns floor(amount * fee / 10_000)
func bps(amount *uint256.Int, fee uint32) *uint256.Int {
	z, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(fee)), totalFee)
	return z
}
