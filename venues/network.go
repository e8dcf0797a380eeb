// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"

	"github.com/luxfi/aggregator/aggregator"
	"github.com/luxfi/aggregator/modules"
	"github.com/luxfi/aggregator/registry"
)

// Network wires simulated venues into a module registry and answers the
// pool lookups batches need.
type Network struct {
	Registry *modules.Registry
	Exchange *Exchange
	Wrapper  *Wrapper

	mu      sync.RWMutex
	markets map[aggregator.Currency]common.Address
	stable  map[common.Address]*StablePool
	staking map[common.Address]*LiquidStaking
	lending map[common.Address]*MoneyMarket

	log log.Logger
}

var _ aggregator.PoolReader = (*Network)(nil)

// NewNetwork registers the exchange router, the pair range and a wrapper
// minting wrapped at their well-known addresses.
func NewNetwork(wrapped aggregator.Currency) (*Network, error) {
	n := &Network{
		Registry: modules.NewRegistry(),
		Exchange: NewExchange(registry.GetVenueAddress(registry.NameOneDexRouter)),
		Wrapper:  NewWrapper(wrapped),
		markets:  make(map[aggregator.Currency]common.Address),
		stable:   make(map[common.Address]*StablePool),
		staking:  make(map[common.Address]*LiquidStaking),
		lending:  make(map[common.Address]*MoneyMarket),
		log:      log.New("module", "venues"),
	}

	for _, m := range []modules.Module{
		{Name: registry.NameOneDexRouter, Range: modules.SingleAddress(n.Exchange.Router()), Adapter: n.Exchange},
		{Name: "pairs", Range: PairRange, Adapter: n.Exchange},
		{Name: registry.NameWrapper, Range: modules.SingleAddress(registry.GetVenueAddress(registry.NameWrapper)), Adapter: n.Wrapper},
	} {
		if err := n.Registry.RegisterModule(m); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// CreatePair mints a constant-product pair
func (n *Network) CreatePair(kind PairKind, first, second aggregator.Currency, resFirst, resSecond *uint256.Int) (*Pair, error) {
	return n.Exchange.CreatePair(kind, first, second, resFirst, resSecond)
}

// AddStablePool registers a stable pool at addr
func (n *Network) AddStablePool(name string, addr common.Address, assets []aggregator.Currency, balances []*uint256.Int, fee uint64) (*StablePool, error) {
	pool, err := NewStablePool(addr, assets, balances, fee)
	if err != nil {
		return nil, err
	}
	if err := n.Registry.RegisterModule(modules.Module{Name: name, Range: modules.SingleAddress(addr), Adapter: pool}); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.stable[addr] = pool
	n.mu.Unlock()

	n.log.Debug("Stable pool added", "name", name, "pool", addr, "assets", len(assets))
	return pool, nil
}

// AddLiquidStaking registers a staking pool at the address of a
// well-known staking venue.
func (n *Network) AddLiquidStaking(name string, underlying, liquid aggregator.Currency) (*LiquidStaking, error) {
	addr := registry.GetVenueAddress(name)
	info, ok := registry.GetVenueByAddress(addr)
	if !ok || info.Kind != registry.KindStaking {
		return nil, fmt.Errorf("%w: %q is not a staking venue", modules.ErrInvalidModule, name)
	}
	pool := NewLiquidStaking(underlying, liquid)
	if err := n.Registry.RegisterModule(modules.Module{Name: name, Range: modules.SingleAddress(addr), Adapter: pool}); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.staking[addr] = pool
	n.mu.Unlock()
	return pool, nil
}

// AddMoneyMarket registers a market at addr and indexes it by receipt token
func (n *Network) AddMoneyMarket(name string, addr common.Address, underlying, receipt aggregator.Currency) (*MoneyMarket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.markets[receipt]; ok {
		return nil, fmt.Errorf("%w: market for %s", modules.ErrDuplicateModule, receipt)
	}
	market := NewMoneyMarket(underlying, receipt)
	if err := n.Registry.RegisterModule(modules.Module{Name: name, Range: modules.SingleAddress(addr), Adapter: market}); err != nil {
		return nil, err
	}
	n.markets[receipt] = addr
	n.lending[addr] = market
	return market, nil
}

// StablePool returns the stable pool at addr
func (n *Network) StablePool(addr common.Address) (*StablePool, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.stable[addr]
	return p, ok
}

// LiquidStaking returns the staking pool at addr
func (n *Network) LiquidStaking(addr common.Address) (*LiquidStaking, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.staking[addr]
	return p, ok
}

// MoneyMarket returns the market at addr
func (n *Network) MoneyMarket(addr common.Address) (*MoneyMarket, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	m, ok := n.lending[addr]
	return m, ok
}

// PairAddress implements aggregator.PoolReader over xExchange pairs
func (n *Network) PairAddress(_ context.Context, a, b aggregator.Currency) (common.Address, error) {
	p, err := n.Exchange.PairFor(KindXExchange, a, b)
	if err != nil {
		return common.Address{}, err
	}
	return p.Address, nil
}

// PoolInfo implements aggregator.PoolReader
func (n *Network) PoolInfo(_ context.Context, action aggregator.Action, pool common.Address, pairID uint16) (*aggregator.PoolInfo, error) {
	if !action.Zappable() {
		return nil, fmt.Errorf("%w: pool info for %s", ErrUnsupported, action)
	}
	return n.Exchange.PoolInfo(pool, pairID)
}

// LendingMarket implements aggregator.PoolReader
func (n *Network) LendingMarket(_ context.Context, receipt aggregator.Currency) (common.Address, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	addr, ok := n.markets[receipt]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: receipt %s", ErrMarketNotFound, receipt)
	}
	return addr, nil
}
