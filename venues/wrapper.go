// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venues

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/luxfi/aggregator/aggregator"
)

// Wrapper converts the native coin to its wrapped token and back at par
type Wrapper struct {
	unsupported

	mu      sync.Mutex
	wrapped aggregator.Currency
	locked  *uint256.Int
}

var _ aggregator.Venues = (*Wrapper)(nil)

// NewWrapper returns a wrapper minting wrapped
func NewWrapper(wrapped aggregator.Currency) *Wrapper {
	return &Wrapper{wrapped: wrapped, locked: new(uint256.Int)}
}

// Wrapped returns the wrapped token
func (w *Wrapper) Wrapped() aggregator.Currency {
	return w.wrapped
}

// Locked returns the native coin held against wrapped supply
func (w *Wrapper) Locked() *uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(uint256.Int).Set(w.locked)
}

// Wrap locks native coin and mints the wrapped token
func (w *Wrapper) Wrap(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if !in.Currency.IsNative() {
		return nil, fmt.Errorf("%w: wrap takes native, got %s", ErrInvalidInputs, in.Currency)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.locked.Add(w.locked, in.Amount)
	return []aggregator.Payment{aggregator.NewPayment(w.wrapped, new(uint256.Int).Set(in.Amount))}, nil
}

// Unwrap burns the wrapped token and releases native coin
func (w *Wrapper) Unwrap(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if in.Currency != w.wrapped {
		return nil, fmt.Errorf("%w: unwrap takes %s, got %s", ErrInvalidInputs, w.wrapped, in.Currency)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.locked.Lt(in.Amount) {
		return nil, fmt.Errorf("%w: %s locked", ErrInsufficientLiquidity, w.locked)
	}
	w.locked.Sub(w.locked, in.Amount)
	return []aggregator.Payment{aggregator.NewPayment(aggregator.NativeCurrency, new(uint256.Int).Set(in.Amount))}, nil
}
