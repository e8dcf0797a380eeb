// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules routes venue calls to the adapter registered for the
// target address.
package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/aggregator"
)

var (
	ErrUnknownVenue     = errors.New("no adapter registered for venue")
	ErrDuplicateModule  = errors.New("module already registered")
	ErrInvalidModule    = errors.New("invalid module")
	ErrOverlappingRange = errors.New("address range overlaps a registered module")
)

var _ aggregator.Venues = (*Registry)(nil)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

func (a *AddressRange) overlaps(b *AddressRange) bool {
	return bytes.Compare(a.Start[:], b.End[:]) <= 0 && bytes.Compare(b.Start[:], a.End[:]) <= 0
}

// SingleAddress returns the range holding only addr
func SingleAddress(addr common.Address) AddressRange {
	return AddressRange{Start: addr, End: addr}
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Module binds a venue adapter to the addresses it serves.
// A factory whose pairs are minted inside a known range registers the
// whole range once.
type Module struct {
	Name    string
	Range   AddressRange
	Adapter aggregator.Venues
}

// Registry is a set of modules kept sorted by range start
type Registry struct {
	lock    sync.RWMutex
	modules []Module
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{modules: make([]Module, 0)}
}

// RegisterModule adds a module
func (r *Registry) RegisterModule(m Module) error {
	if m.Name == "" || m.Adapter == nil {
		return fmt.Errorf("%w: name and adapter required", ErrInvalidModule)
	}
	if bytes.Compare(m.Range.Start[:], m.Range.End[:]) > 0 {
		return fmt.Errorf("%w: range start %s after end %s", ErrInvalidModule, m.Range.Start, m.Range.End)
	}
	if m.Range.Contains(common.Address{}) || m.Range.Contains(BlackholeAddr) {
		return fmt.Errorf("%w: range of %s covers a reserved address", ErrInvalidModule, m.Name)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	for _, registered := range r.modules {
		if registered.Name == m.Name {
			return fmt.Errorf("%w: name %s", ErrDuplicateModule, m.Name)
		}
		if registered.Range.overlaps(&m.Range) {
			return fmt.Errorf("%w: %s and %s", ErrOverlappingRange, m.Name, registered.Name)
		}
	}
	// sort by address to ensure deterministic iteration
	r.modules = insertSortedByAddress(r.modules, m)
	return nil
}

// ModuleByAddress returns the module serving address
func (r *Registry) ModuleByAddress(address common.Address) (Module, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	// Ranges are disjoint and sorted, so the candidate is the last module
	// starting at or before address.
	i := sort.Search(len(r.modules), func(i int) bool {
		return bytes.Compare(r.modules[i].Range.Start[:], address[:]) > 0
	})
	if i == 0 {
		return Module{}, false
	}
	if m := r.modules[i-1]; m.Range.Contains(address) {
		return m, true
	}
	return Module{}, false
}

// Module returns the module registered under name
func (r *Registry) Module(name string) (Module, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, m := range r.modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns the modules in address order
func (r *Registry) RegisteredModules() []Module {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

func (r *Registry) adapter(call *aggregator.VenueCall) (aggregator.Venues, error) {
	m, ok := r.ModuleByAddress(call.Venue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, call.Venue.Hex())
	}
	return m.Adapter, nil
}

// Swap implements aggregator.Venues
func (r *Registry) Swap(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Swap(ctx, call)
}

// AddLiquidity implements aggregator.Venues
func (r *Registry) AddLiquidity(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.AddLiquidity(ctx, call)
}

// RemoveLiquidity implements aggregator.Venues
func (r *Registry) RemoveLiquidity(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.RemoveLiquidity(ctx, call)
}

// Wrap implements aggregator.Venues
func (r *Registry) Wrap(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Wrap(ctx, call)
}

// Unwrap implements aggregator.Venues
func (r *Registry) Unwrap(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Unwrap(ctx, call)
}

// Stake implements aggregator.Venues
func (r *Registry) Stake(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Stake(ctx, call)
}

// Supply implements aggregator.Venues
func (r *Registry) Supply(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Supply(ctx, call)
}

// Redeem implements aggregator.Venues
func (r *Registry) Redeem(ctx context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	a, err := r.adapter(call)
	if err != nil {
		return nil, err
	}
	return a.Redeem(ctx, call)
}

type moduleArray []Module

func (m moduleArray) Len() int { return len(m) }

func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Range.Start[:], m[j].Range.Start[:]) < 0
}

func (m moduleArray) Swap(i, j int) { m[i], m[j] = m[j], m[i] }

func insertSortedByAddress(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Sort(moduleArray(data))
	return data
}
