// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/modules"
)

// PairRange holds every pair address an Exchange mints
var PairRange = modules.AddressRange{
	Start: common.HexToAddress("0x0000000000000000000000000000000000010000"),
	End:   common.HexToAddress("0x000000000000000000000000000000000001ffff"),
}

var pairKeyPrefix = []byte("pair")

// Exchange hosts constant-product pairs of every kind and the router that
// trades router-indexed pairs by id and path.
type Exchange struct {
	unsupported

	mu sync.RWMutex

	router common.Address
	pairs  map[common.Address]*Pair
	byKey  map[common.Hash]*Pair
	byID   map[uint16]*Pair
	nextID uint16
	count  uint64

	log log.Logger
}

var _ aggregator.Venues = (*Exchange)(nil)

// NewExchange returns an empty exchange whose router sits at router
func NewExchange(router common.Address) *Exchange {
	return &Exchange{
		router: router,
		pairs:  make(map[common.Address]*Pair),
		byKey:  make(map[common.Hash]*Pair),
		byID:   make(map[uint16]*Pair),
		nextID: 1,
		log:    log.New("module", "venues", "venue", "exchange"),
	}
}

// Router returns the router address
func (x *Exchange) Router() common.Address {
	return x.router
}

// pairKey identifies the pair of kind trading a against b in either order
func pairKey(kind PairKind, a, b aggregator.Currency) common.Hash {
	if bytes.Compare(a.Address[:], b.Address[:]) > 0 {
		a, b = b, a
	}
	h := blake3.New()
	h.Write(pairKeyPrefix)
	h.Write([]byte{byte(kind)})
	h.Write(a.Address[:])
	h.Write(b.Address[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// =========================================================================
// Pair management
// =========================================================================

// CreatePair mints a pair seeded with the given reserves
func (x *Exchange) CreatePair(kind PairKind, first, second aggregator.Currency, resFirst, resSecond *uint256.Int) (*Pair, error) {
	if first == second {
		return nil, fmt.Errorf("%w: identical assets %s", ErrInvalidInputs, first)
	}
	if resFirst == nil || resSecond == nil || resFirst.IsZero() || resSecond.IsZero() {
		return nil, fmt.Errorf("%w: pairs need non-zero reserves", ErrInvalidAmount)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	key := pairKey(kind, first, second)
	if _, ok := x.byKey[key]; ok {
		return nil, fmt.Errorf("%w: %s %s/%s", ErrPairExists, kind, first, second)
	}

	addr := common.BigToAddress(new(big.Int).Add(PairRange.Start.Big(), new(big.Int).SetUint64(x.count)))
	if !PairRange.Contains(addr) {
		return nil, ErrRangeExhausted
	}
	x.count++

	p := newPair(addr, kind, first, second, resFirst, resSecond)
	if kind == KindOneDex {
		p.PairID = x.nextID
		x.byID[p.PairID] = p
		x.nextID++
	}
	x.pairs[addr] = p
	x.byKey[key] = p

	x.log.Debug("Pair created", "kind", kind, "pair", addr, "id", p.PairID, "first", first, "second", second)
	return p, nil
}

// Pair returns the pair at addr
func (x *Exchange) Pair(addr common.Address) (*Pair, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.pairs[addr]
	return p, ok
}

// PairFor returns the pair of kind trading a against b
func (x *Exchange) PairFor(kind PairKind, a, b aggregator.Currency) (*Pair, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.byKey[pairKey(kind, a, b)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s/%s", ErrPairNotFound, kind, a, b)
	}
	return p, nil
}

// PairByID returns the router pair with id
func (x *Exchange) PairByID(id uint16) (*Pair, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, ok := x.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: router pair id %d", ErrPairNotFound, id)
	}
	return p, nil
}

// target returns the pair a call addresses. The caller holds the lock.
func (x *Exchange) target(call *aggregator.VenueCall) (*Pair, error) {
	if call.Venue == x.router {
		p, ok := x.byID[call.PairID]
		if !ok {
			return nil, fmt.Errorf("%w: router pair id %d", ErrPairNotFound, call.PairID)
		}
		return p, nil
	}
	p, ok := x.pairs[call.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, call.Venue.Hex())
	}
	return p, nil
}

// =========================================================================
// Venue operations
// =========================================================================

// Swap trades on a pair, or hop by hop along Path when sent to the router
func (x *Exchange) Swap(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if call.Venue == x.router {
		return x.routerSwap(in, call)
	}
	p, ok := x.pairs[call.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, call.Venue.Hex())
	}
	if call.TokenOut != (aggregator.Currency{}) {
		if _, _, out, err := p.reserves(in.Currency); err != nil {
			return nil, err
		} else if out != call.TokenOut {
			return nil, fmt.Errorf("%w: pair %s does not pay %s", ErrAssetNotInPool, p.Address.Hex(), call.TokenOut)
		}
	}
	out, err := p.swap(in.Currency, in.Amount, call.MinOut)
	if err != nil {
		return nil, err
	}
	x.log.Trace("Swap", "pair", p.Address, "in", in, "out", out)
	return []aggregator.Payment{out}, nil
}

// routerSwap walks Path across router pairs. Only the final hop is held to
// the floor.
func (x *Exchange) routerSwap(in aggregator.Payment, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	path := call.Path
	if len(path) < 2 || path[0] != in.Currency {
		return nil, fmt.Errorf("%w: %d hops from %s", ErrInvalidPath, len(path), in.Currency)
	}

	// resolve every hop before touching reserves
	hops := make([]*Pair, len(path)-1)
	for i := range hops {
		p, ok := x.byKey[pairKey(KindOneDex, path[i], path[i+1])]
		if !ok {
			return nil, fmt.Errorf("%w: hop %d %s/%s", ErrPairNotFound, i, path[i], path[i+1])
		}
		hops[i] = p
	}

	current := in
	for i, p := range hops {
		var floor *uint256.Int
		if i == len(hops)-1 {
			floor = call.MinOut
		}
		out, err := p.swap(current.Currency, current.Amount, floor)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		current = out
	}
	x.log.Trace("Router swap", "hops", len(hops), "in", in, "out", current)
	return []aggregator.Payment{current}, nil
}

// AddLiquidity deposits a two-sided pair of inputs in either order
func (x *Exchange) AddLiquidity(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	if len(call.Inputs) != 2 {
		return nil, fmt.Errorf("%w: want 2 inputs, got %d", ErrInvalidInputs, len(call.Inputs))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	p, err := x.target(call)
	if err != nil {
		return nil, err
	}
	a, b := call.Inputs[0], call.Inputs[1]
	switch {
	case a.Currency == p.First && b.Currency == p.Second:
	case a.Currency == p.Second && b.Currency == p.First:
		a, b = b, a
	default:
		return nil, fmt.Errorf("%w: %s/%s into pair %s", ErrAssetNotInPool, a.Currency, b.Currency, p.Address.Hex())
	}
	out, err := p.addLiquidity(a.Amount, b.Amount, call.MinOut)
	if err != nil {
		return nil, err
	}
	x.log.Trace("Liquidity added", "pair", p.Address, "first", a.Amount, "second", b.Amount, "minted", out[0].Amount)
	return out, nil
}

// RemoveLiquidity burns the pair's LP token. Router calls locate the pair
// by LP token.
func (x *Exchange) RemoveLiquidity(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	var p *Pair
	if call.Venue == x.router {
		p = x.pairs[in.Currency.Address]
	} else {
		p = x.pairs[call.Venue]
	}
	if p == nil || p.LPToken() != in.Currency {
		return nil, fmt.Errorf("%w: LP token %s at %s", ErrPairNotFound, in.Currency, call.Venue.Hex())
	}
	return p.removeLiquidity(in.Amount, call.MinOut)
}

// =========================================================================
// Pool lookups
// =========================================================================

// PoolInfo returns the state of the pair a zappable deposit targets
func (x *Exchange) PoolInfo(pool common.Address, pairID uint16) (*aggregator.PoolInfo, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	p, err := x.target(&aggregator.VenueCall{Venue: pool, PairID: pairID})
	if err != nil {
		return nil, err
	}
	return p.Info(), nil
}
