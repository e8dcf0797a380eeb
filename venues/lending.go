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

// RAY is the fixed-point scale of market exchange rates
var RAY = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))

// MoneyMarket issues receipt tokens for supplied underlying. The exchange
// rate is underlying per receipt token scaled by RAY.
type MoneyMarket struct {
	unsupported

	mu sync.Mutex

	Underlying aggregator.Currency
	Receipt    aggregator.Currency

	exchangeRate *uint256.Int
	cash         *uint256.Int
	supply       *uint256.Int
}

var _ aggregator.Venues = (*MoneyMarket)(nil)

// NewMoneyMarket returns a market starting at a 1:1 rate
func NewMoneyMarket(underlying, receipt aggregator.Currency) *MoneyMarket {
	return &MoneyMarket{
		Underlying:   underlying,
		Receipt:      receipt,
		exchangeRate: new(uint256.Int).Set(RAY),
		cash:         new(uint256.Int),
		supply:       new(uint256.Int),
	}
}

// AccrueInterest adds interest to cash and reprices receipts against it.
// A market with no receipts outstanding keeps its rate.
func (m *MoneyMarket) AccrueInterest(interest *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cash.Add(m.cash, interest)
	if m.supply.IsZero() {
		return
	}
	// exchangeRate = cash * RAY / supply
	m.exchangeRate, _ = new(uint256.Int).MulDivOverflow(m.cash, RAY, m.supply)
}

// ExchangeRate returns the current rate
func (m *MoneyMarket) ExchangeRate() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(m.exchangeRate)
}

// Supply deposits underlying for receipt = amount * RAY / exchangeRate
func (m *MoneyMarket) Supply(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if in.Currency != m.Underlying {
		return nil, fmt.Errorf("%w: supply takes %s, got %s", ErrInvalidInputs, m.Underlying, in.Currency)
	}
	if call.TokenOut != (aggregator.Currency{}) && call.TokenOut != m.Receipt {
		return nil, fmt.Errorf("%w: market pays %s, want %s", ErrInvalidInputs, m.Receipt, call.TokenOut)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	minted, _ := new(uint256.Int).MulDivOverflow(in.Amount, RAY, m.exchangeRate)
	if err := checkMin(minted, call.MinOut); err != nil {
		return nil, err
	}
	m.cash.Add(m.cash, in.Amount)
	m.supply.Add(m.supply, minted)
	return []aggregator.Payment{aggregator.NewPayment(m.Receipt, minted)}, nil
}

// Redeem burns receipt tokens for underlying = receipt * exchangeRate / RAY
func (m *MoneyMarket) Redeem(_ context.Context, call *aggregator.VenueCall) ([]aggregator.Payment, error) {
	in, err := singleInput(call)
	if err != nil {
		return nil, err
	}
	if in.Currency != m.Receipt {
		return nil, fmt.Errorf("%w: redeem takes %s, got %s", ErrInvalidInputs, m.Receipt, in.Currency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.supply.Lt(in.Amount) {
		return nil, fmt.Errorf("%w: redeem %s of %s", ErrInvalidAmount, in.Amount, m.supply)
	}
	underlying, _ := new(uint256.Int).MulDivOverflow(in.Amount, m.exchangeRate, RAY)
	if m.cash.Lt(underlying) {
		return nil, fmt.Errorf("%w: %s cash", ErrInsufficientLiquidity, m.cash)
	}
	if err := checkMin(underlying, call.MinOut); err != nil {
		return nil, err
	}
	m.cash.Sub(m.cash, underlying)
	m.supply.Sub(m.supply, in.Amount)
	return []aggregator.Payment{aggregator.NewPayment(m.Underlying, underlying)}, nil
}
