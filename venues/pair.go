// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/aggregator/zap"
)

// PairKind selects the fee model family of a constant-product pair
type PairKind uint8

const (
	// KindXExchange charges on input and diverts a special fee out of the pool
	KindXExchange PairKind = iota
	// KindOneDex is a router-indexed pair with the same fee shape
	KindOneDex
	// KindJex charges on output and keeps the LP share in the pool
	KindJex
)

func (k PairKind) String() string {
	switch k {
	case KindXExchange:
		return "xexchange"
	case KindOneDex:
		return "onedex"
	case KindJex:
		return "jex"
	default:
		return fmt.Sprintf("PairKind(%d)", uint8(k))
	}
}

// Default fee schedules
var (
	XExchangeFee = zap.FeeModel{Mode: zap.FeeOnInput, FeeNum: 300, SpecialFeeNum: 50, FeeDenom: 100_000}
	OneDexFee    = zap.FeeModel{Mode: zap.FeeOnInput, FeeNum: 60, SpecialFeeNum: 30, FeeDenom: 10_000}
	JexFee       = zap.FeeModel{Mode: zap.FeeOnOutput, FeeNum: 30, LPFeeNum: 20, FeeDenom: 10_000}
)

// DefaultFee returns the fee schedule of a pair kind
func DefaultFee(k PairKind) zap.FeeModel {
	switch k {
	case KindOneDex:
		return OneDexFee
	case KindJex:
		return JexFee
	default:
		return XExchangeFee
	}
}

// Pair is a constant-product pool. The pair address doubles as its LP
// token.
type Pair struct {
	Address common.Address
	Kind    PairKind
	PairID  uint16

	First         aggregator.Currency
	Second        aggregator.Currency
	ReserveFirst  *uint256.Int
	ReserveSecond *uint256.Int
	Supply        *uint256.Int
	Fee           zap.FeeModel

	// Collected holds special fees diverted out of the reserves
	Collected map[aggregator.Currency]*uint256.Int
}

func newPair(addr common.Address, kind PairKind, first, second aggregator.Currency, resFirst, resSecond *uint256.Int) *Pair {
	p := &Pair{
		Address:       addr,
		Kind:          kind,
		First:         first,
		Second:        second,
		ReserveFirst:  new(uint256.Int).Set(resFirst),
		ReserveSecond: new(uint256.Int).Set(resSecond),
		Supply:        new(uint256.Int).Sqrt(new(uint256.Int).Mul(resFirst, resSecond)),
		Fee:           DefaultFee(kind),
		Collected:     make(map[aggregator.Currency]*uint256.Int),
	}
	return p
}

// LPToken returns the liquidity token of the pair
func (p *Pair) LPToken() aggregator.Currency {
	return aggregator.NewCurrency(p.Address)
}

// Info returns the pool view the pre-swap solver prices against
func (p *Pair) Info() *aggregator.PoolInfo {
	return &aggregator.PoolInfo{
		First:         p.First,
		Second:        p.Second,
		ReserveFirst:  new(uint256.Int).Set(p.ReserveFirst),
		ReserveSecond: new(uint256.Int).Set(p.ReserveSecond),
		TotalFee:      p.Fee.FeeNum,
		SpecialFee:    p.Fee.SpecialFeeNum,
		LPFee:         p.Fee.LPFeeNum,
		FeeDenom:      p.Fee.FeeDenom,
	}
}

// reserves returns pointers to the reserves of in and its counter asset
func (p *Pair) reserves(in aggregator.Currency) (resIn, resOut *uint256.Int, out aggregator.Currency, err error) {
	switch in {
	case p.First:
		return p.ReserveFirst, p.ReserveSecond, p.Second, nil
	case p.Second:
		return p.ReserveSecond, p.ReserveFirst, p.First, nil
	default:
		return nil, nil, aggregator.Currency{}, fmt.Errorf("%w: %s not in pair %s", ErrAssetNotInPool, in, p.Address.Hex())
	}
}

// swap trades amount of in for the other asset
func (p *Pair) swap(in aggregator.Currency, amount, minOut *uint256.Int) (aggregator.Payment, error) {
	resIn, resOut, out, err := p.reserves(in)
	if err != nil {
		return aggregator.Payment{}, err
	}
	if amount == nil || amount.IsZero() {
		return aggregator.Payment{}, ErrInvalidAmount
	}

	sim := zap.SimulateSwap(amount.ToBig(), resIn.ToBig(), resOut.ToBig(), p.Fee)
	output, overflow := uint256.FromBig(sim.Output)
	if overflow || output.IsZero() {
		return aggregator.Payment{}, fmt.Errorf("%w: %s in yields nothing", ErrInsufficientLiquidity, amount)
	}
	if minOut != nil && output.Lt(minOut) {
		return aggregator.Payment{}, fmt.Errorf("%w: got %s, want %s", ErrSlippage, output, minOut)
	}
	leaving, _ := uint256.FromBig(sim.OutLeaving)
	toReserve, _ := uint256.FromBig(sim.InToReserve)
	if !leaving.Lt(resOut) {
		return aggregator.Payment{}, fmt.Errorf("%w: output drains reserve", ErrInsufficientLiquidity)
	}

	special := new(uint256.Int).Sub(amount, toReserve)
	if !special.IsZero() {
		p.collect(in, special)
	}
	resIn.Add(resIn, toReserve)
	resOut.Sub(resOut, leaving)
	return aggregator.NewPayment(out, output), nil
}

func (p *Pair) collect(c aggregator.Currency, amount *uint256.Int) {
	if cur, ok := p.Collected[c]; ok {
		cur.Add(cur, amount)
		return
	}
	p.Collected[c] = new(uint256.Int).Set(amount)
}

// addLiquidity deposits the largest ratio-matching amounts and returns the
// minted LP tokens followed by any unused input.
func (p *Pair) addLiquidity(first, second, minOut *uint256.Int) ([]aggregator.Payment, error) {
	if first.IsZero() || second.IsZero() {
		return nil, ErrInvalidAmount
	}

	usedFirst, usedSecond := new(uint256.Int).Set(first), new(uint256.Int).Set(second)
	if quote, _ := new(uint256.Int).MulDivOverflow(first, p.ReserveSecond, p.ReserveFirst); !second.Lt(quote) {
		usedSecond = quote
	} else {
		usedFirst, _ = new(uint256.Int).MulDivOverflow(second, p.ReserveFirst, p.ReserveSecond)
	}

	lpFirst, _ := new(uint256.Int).MulDivOverflow(usedFirst, p.Supply, p.ReserveFirst)
	lpSecond, _ := new(uint256.Int).MulDivOverflow(usedSecond, p.Supply, p.ReserveSecond)
	minted := lpFirst
	if lpSecond.Lt(lpFirst) {
		minted = lpSecond
	}
	if minted.IsZero() || (minOut != nil && minted.Lt(minOut)) {
		return nil, fmt.Errorf("%w: minted %s LP", ErrSlippage, minted)
	}

	p.ReserveFirst.Add(p.ReserveFirst, usedFirst)
	p.ReserveSecond.Add(p.ReserveSecond, usedSecond)
	p.Supply.Add(p.Supply, minted)

	out := []aggregator.Payment{aggregator.NewPayment(p.LPToken(), minted)}
	if rest := new(uint256.Int).Sub(first, usedFirst); !rest.IsZero() {
		out = append(out, aggregator.NewPayment(p.First, rest))
	}
	if rest := new(uint256.Int).Sub(second, usedSecond); !rest.IsZero() {
		out = append(out, aggregator.NewPayment(p.Second, rest))
	}
	return out, nil
}

// removeLiquidity burns LP tokens for a pro-rata share of both reserves
func (p *Pair) removeLiquidity(lp, minOut *uint256.Int) ([]aggregator.Payment, error) {
	if lp.IsZero() || p.Supply.Lt(lp) || lp.Eq(p.Supply) {
		return nil, fmt.Errorf("%w: burn %s of %s", ErrInvalidAmount, lp, p.Supply)
	}
	first, _ := new(uint256.Int).MulDivOverflow(lp, p.ReserveFirst, p.Supply)
	second, _ := new(uint256.Int).MulDivOverflow(lp, p.ReserveSecond, p.Supply)
	if minOut != nil && (first.Lt(minOut) || second.Lt(minOut)) {
		return nil, fmt.Errorf("%w: withdraw %s/%s", ErrSlippage, first, second)
	}
	p.ReserveFirst.Sub(p.ReserveFirst, first)
	p.ReserveSecond.Sub(p.ReserveSecond, second)
	p.Supply.Sub(p.Supply, lp)
	return []aggregator.Payment{
		aggregator.NewPayment(p.First, first),
		aggregator.NewPayment(p.Second, second),
	}, nil
}
