// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zap computes the swap that pre-balances two assets before
// two-sided liquidity provision on a constant-product pool.
//
// Venues accept a deposit pair by quoting one side against the other with
// truncating integer division and returning the unused remainder. The
// solver searches for the swap amount that leaves the smallest remainder
// once the swap itself has moved the pool reserves.
package zap

import (
	"math/big"
)

// MaxSearchIterations bounds the binary search
const MaxSearchIterations = 128

// FeeMode selects where a venue charges its swap fee
type FeeMode uint8

const (
	// FeeOnInput deducts the fee from the input before pricing.
	// A special fee portion of the input leaves the pool.
	FeeOnInput FeeMode = iota
	// FeeOnOutput prices the full input and deducts the fee from the output.
	// The LP portion of the fee stays in the pool.
	FeeOnOutput
)

func (m FeeMode) String() string {
	if m == FeeOnOutput {
		return "on-output"
	}
	return "on-input"
}

// FeeModel describes a venue's swap fee
type FeeModel struct {
	Mode FeeMode
	// FeeNum is the total fee numerator
	FeeNum uint64
	// SpecialFeeNum is the input share that leaves the pool (FeeOnInput)
	SpecialFeeNum uint64
	// LPFeeNum is the output share that stays in the pool (FeeOnOutput)
	LPFeeNum uint64
	FeeDenom uint64
}

// Valid returns true if the fee numerators fit under the denominator
func (f FeeModel) Valid() bool {
	return f.FeeDenom != 0 && f.FeeNum <= f.FeeDenom &&
		f.SpecialFeeNum <= f.FeeDenom && f.LPFeeNum <= f.FeeDenom
}

// Simulation is the effect of a swap on the trader and the pool
type Simulation struct {
	// Output is what the trader receives
	Output *big.Int
	// OutLeaving is what leaves the output reserve
	OutLeaving *big.Int
	// InToReserve is what enters the input reserve
	InToReserve *big.Int
}

func zeroSimulation() Simulation {
	return Simulation{Output: new(big.Int), OutLeaving: new(big.Int), InToReserve: new(big.Int)}
}

// SimulateSwap prices amountIn against the reserves without executing it
func SimulateSwap(amountIn, reserveIn, reserveOut *big.Int, fee FeeModel) Simulation {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return zeroSimulation()
	}
	if !fee.Valid() {
		return zeroSimulation()
	}

	denom := new(big.Int).SetUint64(fee.FeeDenom)
	factor := new(big.Int).SetUint64(fee.FeeDenom - fee.FeeNum)

	switch fee.Mode {
	case FeeOnOutput:
		// raw = in * resOut / (resIn + in)
		num := new(big.Int).Mul(amountIn, reserveOut)
		den := new(big.Int).Add(reserveIn, amountIn)
		raw := num.Quo(num, den)

		out := new(big.Int).Mul(raw, factor)
		out.Quo(out, denom)

		lpFactor := new(big.Int).SetUint64(fee.FeeDenom - fee.LPFeeNum)
		leaving := new(big.Int).Mul(raw, lpFactor)
		leaving.Quo(leaving, denom)

		return Simulation{Output: out, OutLeaving: leaving, InToReserve: new(big.Int).Set(amountIn)}

	default:
		// out = in * factor * resOut / (resIn * denom + in * factor)
		inWithFee := new(big.Int).Mul(amountIn, factor)
		num := new(big.Int).Mul(inWithFee, reserveOut)
		den := new(big.Int).Mul(reserveIn, denom)
		den.Add(den, inWithFee)
		out := num.Quo(num, den)

		special := new(big.Int).Mul(amountIn, new(big.Int).SetUint64(fee.SpecialFeeNum))
		special.Quo(special, denom)
		toReserve := new(big.Int).Sub(amountIn, special)

		return Simulation{Output: out, OutLeaving: new(big.Int).Set(out), InToReserve: toReserve}
	}
}

// Quote returns floor(a * resB / resA), the amount of B a venue pairs with a of A
func Quote(a, resA, resB *big.Int) *big.Int {
	if resA.Sign() == 0 {
		return new(big.Int)
	}
	q := new(big.Int).Mul(a, resB)
	return q.Quo(q, resA)
}

// Dust returns the remainder a venue hands back for the deposit pair
// (a, b) against reserves (resA, resB).
func Dust(a, b, resA, resB *big.Int) *big.Int {
	if resA.Sign() == 0 || resB.Sign() == 0 {
		return new(big.Int).Add(a, b)
	}
	if qb := Quote(a, resA, resB); qb.Cmp(b) <= 0 {
		return qb.Sub(b, qb)
	}
	qa := Quote(b, resB, resA)
	return qa.Sub(a, qa)
}

// ComputePreSwap returns which side to swap and how much of it so that the
// balances pair with the least dust after the swap. A zero amount means no
// swap is needed or possible.
func ComputePreSwap(balFirst, balSecond, resFirst, resSecond *big.Int, fee FeeModel) (bool, *big.Int) {
	if resFirst.Sign() <= 0 || resSecond.Sign() <= 0 {
		return true, new(big.Int)
	}
	if balFirst.Sign() <= 0 && balSecond.Sign() <= 0 {
		return true, new(big.Int)
	}
	if !fee.Valid() {
		return true, new(big.Int)
	}

	// balFirst/resFirst vs balSecond/resSecond
	pFirst := new(big.Int).Mul(balFirst, resSecond)
	pSecond := new(big.Int).Mul(balSecond, resFirst)

	switch pFirst.Cmp(pSecond) {
	case 1:
		return true, search(balFirst, balSecond, resFirst, resSecond, fee)
	case -1:
		return false, search(balSecond, balFirst, resSecond, resFirst, fee)
	default:
		return true, new(big.Int)
	}
}

// search bisects the amount of the excess asset to swap. Every midpoint is
// scored by the dust the venue would return; the lowest score wins.
func search(swapBal, otherBal, resIn, resOut *big.Int, fee FeeModel) *big.Int {
	low := new(big.Int)
	high := new(big.Int).Set(swapBal)
	best := new(big.Int)
	bestDust := new(big.Int).Set(swapBal)

	one := big.NewInt(1)
	for i := 0; i < MaxSearchIterations; i++ {
		if high.Cmp(new(big.Int).Add(low, one)) <= 0 {
			break
		}
		mid := new(big.Int).Sub(high, low)
		mid.Rsh(mid, 1)
		mid.Add(mid, low)

		sim := SimulateSwap(mid, resIn, resOut, fee)
		if sim.Output.Sign() == 0 {
			low = mid
			continue
		}

		finalSwap := new(big.Int).Sub(swapBal, mid)
		finalOther := new(big.Int).Add(otherBal, sim.Output)
		newResIn := new(big.Int).Add(resIn, sim.InToReserve)
		newResOut := new(big.Int).Sub(resOut, sim.OutLeaving)
		if newResOut.Sign() <= 0 {
			high = mid
			continue
		}

		dust := Dust(finalSwap, finalOther, newResIn, newResOut)
		if dust.Cmp(bestDust) < 0 {
			bestDust = dust
			best = mid
		}

		pSwap := new(big.Int).Mul(finalSwap, newResOut)
		pOther := new(big.Int).Mul(finalOther, newResIn)
		switch pSwap.Cmp(pOther) {
		case 1:
			low = mid
		case -1:
			high = mid
		default:
			return mid
		}
	}
	return best
}
