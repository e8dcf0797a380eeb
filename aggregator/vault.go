// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
)

var ppmDenominator = uint256.NewInt(PpmDenominator)

// Vault is the per-batch balance ledger.
// The asset list mirrors the balance map in insertion order and never holds
// a zero balance.
type Vault struct {
	balances map[Currency]*uint256.Int
	assets   []Currency

	// prev is the sole output of the most recent dispatched instruction
	prev *Payment
}

// NewVault creates an empty ledger
func NewVault() *Vault {
	return &Vault{
		balances: make(map[Currency]*uint256.Int),
		assets:   make([]Currency, 0),
	}
}

// NewVaultFromPayments seeds a ledger with the batch deposits.
// Non-fungible deposits are rejected.
func NewVaultFromPayments(payments []Payment) (*Vault, error) {
	v := NewVault()
	for _, p := range payments {
		if p.Nonce != 0 {
			return nil, fmt.Errorf("%w: asset=%s, nonce=%d", ErrNonFungibleDeposit, p.Currency, p.Nonce)
		}
		if p.Amount == nil {
			continue
		}
		v.Deposit(p.Currency, p.Amount)
	}
	return v, nil
}

// Deposit credits amount to the asset. Zero amounts are ignored.
func (v *Vault) Deposit(c Currency, amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	if bal, ok := v.balances[c]; ok {
		bal.Add(bal, amount)
		return
	}
	v.balances[c] = new(uint256.Int).Set(amount)
	v.assets = append(v.assets, c)
}

// Withdraw debits amount from the asset and returns it
func (v *Vault) Withdraw(c Currency, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int), nil
	}
	bal, ok := v.balances[c]
	if !ok || bal.Lt(amount) {
		have := new(uint256.Int)
		if ok {
			have.Set(bal)
		}
		return nil, fmt.Errorf("%w: asset=%s, have=%s, need=%s", ErrInsufficientBalance, c, have, amount)
	}
	bal.Sub(bal, amount)
	if bal.IsZero() {
		v.remove(c)
	}
	return new(uint256.Int).Set(amount), nil
}

// WithdrawAll removes and returns the full balance, zero if absent
func (v *Vault) WithdrawAll(c Currency) *uint256.Int {
	bal, ok := v.balances[c]
	if !ok {
		return new(uint256.Int)
	}
	v.remove(c)
	return bal
}

// WithdrawPpm withdraws floor(balance * ppm / 1_000_000)
func (v *Vault) WithdrawPpm(c Currency, ppm *uint256.Int) (*uint256.Int, error) {
	if ppm.Gt(ppmDenominator) {
		return nil, fmt.Errorf("%w: asset=%s, ppm=%s", ErrInvalidPpm, c, ppm)
	}
	bal, ok := v.balances[c]
	if !ok {
		return new(uint256.Int), nil
	}
	// ppm <= denominator so the quotient never exceeds the balance
	amount, _ := new(uint256.Int).MulDivOverflow(bal, ppm, ppmDenominator)
	return v.Withdraw(c, amount)
}

// BalanceOf returns the balance of the asset, zero if absent
func (v *Vault) BalanceOf(c Currency) *uint256.Int {
	if bal, ok := v.balances[c]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// StrictBalanceOf returns the balance of the asset, failing if absent
func (v *Vault) StrictBalanceOf(c Currency) (*uint256.Int, error) {
	bal, ok := v.balances[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, c)
	}
	return new(uint256.Int).Set(bal), nil
}

// HasMinimum returns true if the asset balance is at least min
func (v *Vault) HasMinimum(c Currency, min *uint256.Int) bool {
	return !v.BalanceOf(c).Lt(min)
}

// SetPrevResult records the single output of the last dispatched instruction
func (v *Vault) SetPrevResult(p Payment) {
	prev := Payment{Currency: p.Currency, Nonce: p.Nonce, Amount: new(uint256.Int).Set(p.Amount)}
	v.prev = &prev
}

// PrevResult returns the recorded previous result
func (v *Vault) PrevResult() (Payment, bool) {
	if v.prev == nil {
		return Payment{}, false
	}
	return Payment{Currency: v.prev.Currency, Nonce: v.prev.Nonce, Amount: new(uint256.Int).Set(v.prev.Amount)}, true
}

// Balances returns every held balance in insertion order
func (v *Vault) Balances() []Payment {
	out := make([]Payment, 0, len(v.assets))
	for _, c := range v.assets {
		out = append(out, NewPayment(c, new(uint256.Int).Set(v.balances[c])))
	}
	return out
}

// Len returns the number of distinct assets held
func (v *Vault) Len() int {
	return len(v.assets)
}

func (v *Vault) remove(c Currency) {
	delete(v.balances, c)
	for i, a := range v.assets {
		if a == c {
			v.assets = append(v.assets[:i], v.assets[i+1:]...)
			return
		}
	}
}
