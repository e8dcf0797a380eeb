// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/aggregator/zap"
)

var (
	owner  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	tokenA = NewCurrency(common.HexToAddress("0x000000000000000000000000000000000000000a"))
	tokenB = NewCurrency(common.HexToAddress("0x000000000000000000000000000000000000000b"))
	tokenC = NewCurrency(common.HexToAddress("0x000000000000000000000000000000000000000c"))
	venueX = common.HexToAddress("0x0000000000000000000000000000000000007001")
	venueY = common.HexToAddress("0x0000000000000000000000000000000000007002")
	pairAB = common.HexToAddress("0x00000000000000000000000000000000000070ab")
	market = common.HexToAddress("0x0000000000000000000000000000000000007100")
)

var errVenueRejected = errors.New("venue rejected call")

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// mockVenues doubles every swap and records each call.
// Swaps without a requested output pay out the asset mapped to the venue.
type mockVenues struct {
	calls  []*VenueCall
	outOf  map[common.Address]Currency
	fail   map[Action]error
	result map[Action][]Payment

	// pool backs pre-swap pricing when set
	pool *PoolInfo
}

func newMockVenues() *mockVenues {
	return &mockVenues{
		outOf:  make(map[common.Address]Currency),
		fail:   make(map[Action]error),
		result: make(map[Action][]Payment),
	}
}

func (m *mockVenues) handle(call *VenueCall) ([]Payment, error) {
	m.calls = append(m.calls, call)
	if err := m.fail[call.Action]; err != nil {
		return nil, err
	}
	if out, ok := m.result[call.Action]; ok {
		return out, nil
	}
	total := new(uint256.Int)
	for _, in := range call.Inputs {
		total.Add(total, in.Amount)
	}
	out := call.TokenOut
	if mapped, ok := m.outOf[call.Venue]; ok && out == (Currency{}) {
		out = mapped
	}
	return []Payment{NewPayment(out, total.Mul(total, u(2)))}, nil
}

func (m *mockVenues) Swap(_ context.Context, call *VenueCall) ([]Payment, error) {
	if m.pool != nil && m.fail[call.Action] == nil {
		m.calls = append(m.calls, call)
		in := call.Inputs[0]
		resIn, resOut := m.pool.ReserveFirst, m.pool.ReserveSecond
		if in.Currency == m.pool.Second {
			resIn, resOut = resOut, resIn
		}
		sim := zap.SimulateSwap(in.Amount.ToBig(), resIn.ToBig(), resOut.ToBig(), zap.FeeModel{Mode: zap.FeeOnInput, FeeDenom: 1000})
		out, _ := uint256.FromBig(sim.Output)
		return []Payment{NewPayment(call.TokenOut, out)}, nil
	}
	return m.handle(call)
}

func (m *mockVenues) AddLiquidity(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) RemoveLiquidity(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) Wrap(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) Unwrap(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) Stake(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) Supply(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) Redeem(_ context.Context, call *VenueCall) ([]Payment, error) {
	return m.handle(call)
}

func (m *mockVenues) last() *VenueCall {
	return m.calls[len(m.calls)-1]
}

// mockPools resolves every pair to pairAB and every receipt to market
type mockPools struct {
	info *PoolInfo
}

func (p *mockPools) PairAddress(_ context.Context, a, b Currency) (common.Address, error) {
	return pairAB, nil
}

func (p *mockPools) PoolInfo(_ context.Context, _ Action, _ common.Address, _ uint16) (*PoolInfo, error) {
	if p.info == nil {
		return nil, errors.New("no pool")
	}
	return p.info, nil
}

func (p *mockPools) LendingMarket(_ context.Context, _ Currency) (common.Address, error) {
	return market, nil
}

// memBook is an in-memory FeeBook
type memBook struct {
	referrer map[uint64]map[common.Address]*uint256.Int
	protocol map[common.Address]*uint256.Int
}

func newMemBook() *memBook {
	return &memBook{
		referrer: make(map[uint64]map[common.Address]*uint256.Int),
		protocol: make(map[common.Address]*uint256.Int),
	}
}

func (b *memBook) AccrueReferrer(id uint64, asset common.Address, amount *uint256.Int) error {
	if b.referrer[id] == nil {
		b.referrer[id] = make(map[common.Address]*uint256.Int)
	}
	add(b.referrer[id], asset, amount)
	return nil
}

func (b *memBook) AccrueProtocol(asset common.Address, amount *uint256.Int) error {
	add(b.protocol, asset, amount)
	return nil
}

func add(m map[common.Address]*uint256.Int, asset common.Address, amount *uint256.Int) {
	if cur, ok := m[asset]; ok {
		cur.Add(cur, amount)
		return
	}
	m[asset] = new(uint256.Int).Set(amount)
}

func newTestEngine(venues Venues, pools PoolReader) (*Engine, *memBook) {
	config := DefaultConfig(owner)
	book := newMemBook()
	return NewEngine(config, venues, pools, book), book
}

func newTestAggregator(venues Venues, pools PoolReader) *Aggregator {
	agg, err := New(DefaultConfig(owner), memdb.New(), venues, pools)
	if err != nil {
		panic(err)
	}
	return agg
}

func big64(v int64) *big.Int {
	return big.NewInt(v)
}
