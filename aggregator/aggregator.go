// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/log"

	"github.com/luxfi/aggregator/fees"
)

type batchKey struct{}

// Aggregator runs batches one at a time against a shared fee store
type Aggregator struct {
	// mu serializes batches and admin calls
	mu sync.Mutex
	// executing is set while a batch holds mu. Entries made while it is set
	// come from venue callbacks and would block on mu.
	executing atomic.Bool

	config *Config
	store  *fees.Store
	venues Venues
	pools  PoolReader
	log    log.Logger

	metrics *Metrics
}

// New creates an aggregator persisting fees in db
func New(config *Config, db database.Database, venues Venues, pools PoolReader) (*Aggregator, error) {
	if err := config.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Aggregator{
		config: config,
		store:  fees.NewStore(db),
		venues: venues,
		pools:  pools,
		log:    log.New("module", "aggregator"),
	}, nil
}

// SetLogger replaces the logger
func (a *Aggregator) SetLogger(l log.Logger) {
	a.log = l
}

// SetMetrics installs batch metrics
func (a *Aggregator) SetMetrics(m *Metrics) {
	a.metrics = m
}

// Config returns the active configuration
func (a *Aggregator) Config() *Config {
	return a.config
}

// Store returns the committed fee store
func (a *Aggregator) Store() *fees.Store {
	return a.store
}

// ExecuteCompact decodes a compact batch and executes it
func (a *Aggregator) ExecuteCompact(ctx context.Context, cb *CompactBatch, deposits []Payment, gasLimit uint64) (*Receipt, error) {
	batch, err := cb.Expand()
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, batch, deposits, gasLimit)
}

// Execute runs a batch. Either every effect is committed or none is: the
// ledger is discarded and fee writes are rolled back on any failure.
// Venue-side effects of a failed batch are reverted by the host.
func (a *Aggregator) Execute(ctx context.Context, batch *Batch, deposits []Payment, gasLimit uint64) (*Receipt, error) {
	if ctx.Value(batchKey{}) != nil {
		return nil, ErrReentrant
	}
	ctx = context.WithValue(ctx, batchKey{}, struct{}{})

	if err := a.lock(); err != nil {
		return nil, err
	}
	defer a.mu.Unlock()
	a.executing.Store(true)
	defer a.executing.Store(false)

	fingerprint := batch.Fingerprint()
	txn := a.store.Begin()
	receipt, err := a.execute(ctx, txn, batch, deposits, gasLimit)
	if err != nil {
		txn.Abort()
		a.metrics.batchFailed()
		a.log.Warn("Batch aborted", "fingerprint", fingerprint, "err", err)
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		a.metrics.batchFailed()
		return nil, fmt.Errorf("commit fees: %w", err)
	}
	receipt.Fingerprint = fingerprint
	a.metrics.batchCommitted(batch, receipt)
	a.log.Debug("Batch executed", "fingerprint", fingerprint, "output", receipt.Output,
		"referralFee", receipt.ReferralFee, "protocolFee", receipt.ProtocolFee,
		"dust", len(receipt.Dust), "gas", receipt.GasUsed)
	return receipt, nil
}

func (a *Aggregator) execute(ctx context.Context, txn *fees.Txn, batch *Batch, deposits []Payment, gasLimit uint64) (*Receipt, error) {
	meter := NewGasMeter(gasLimit)
	if err := meter.Consume(a.config.Gas.Base, "batch"); err != nil {
		return nil, err
	}

	vault, err := NewVaultFromPayments(deposits)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(a.config, a.venues, a.pools, txn).WithMeter(meter).WithLogger(a.log)
	for i := range batch.Instructions {
		instr := &batch.Instructions[i]
		if err := engine.ExecuteInstruction(ctx, vault, instr, batch.TokenOut); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, instr.Action, err)
		}
	}

	if err := meter.Consume(a.config.Gas.FeeAccrual, "fees"); err != nil {
		return nil, err
	}
	refFee, protoFee, err := ApplyFees(vault, txn, batch.TokenOut, batch.ReferralID)
	if err != nil {
		return nil, fmt.Errorf("apply fees: %w", err)
	}

	minOut := batch.MinOut
	if minOut == nil {
		minOut = new(uint256.Int)
	}
	if !vault.HasMinimum(batch.TokenOut, minOut) {
		return nil, fmt.Errorf("%w: asset=%s, have=%s, need=%s",
			ErrInsufficientOutput, batch.TokenOut, vault.BalanceOf(batch.TokenOut), minOut)
	}

	receipt := &Receipt{
		Output:      NewPayment(batch.TokenOut, vault.WithdrawAll(batch.TokenOut)),
		ReferralFee: refFee,
		ProtocolFee: protoFee,
	}
	for _, p := range vault.Balances() {
		if err := meter.Consume(a.config.Gas.DustSweep, "dust"); err != nil {
			return nil, err
		}
		if err := txn.AccrueProtocol(p.Currency.Address, p.Amount); err != nil {
			return nil, fmt.Errorf("sweep dust: %w", err)
		}
		vault.WithdrawAll(p.Currency)
		receipt.Dust = append(receipt.Dust, p)
	}
	receipt.GasUsed = meter.Used()
	return receipt, nil
}

// lock acquires mu unless a batch is in flight
func (a *Aggregator) lock() error {
	if a.executing.Load() {
		return fmt.Errorf("%w: batch in progress", ErrReentrant)
	}
	a.mu.Lock()
	return nil
}

// =========================================================================
// Admin surface
// =========================================================================

func (a *Aggregator) onlyOwner(caller common.Address) error {
	if caller != a.config.Owner {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// update runs fn inside a committed fee transaction
func (a *Aggregator) update(fn func(*fees.Txn) error) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.mu.Unlock()

	txn := a.store.Begin()
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}

// AddReferral registers a referral and returns its id
func (a *Aggregator) AddReferral(caller, owner common.Address, fee uint32) (uint64, error) {
	if err := a.onlyOwner(caller); err != nil {
		return 0, err
	}
	var id uint64
	err := a.update(func(txn *fees.Txn) error {
		var err error
		id, err = txn.AddReferral(owner, fee)
		return err
	})
	if err == nil {
		a.log.Info("Referral added", "id", id, "owner", owner, "fee", fee)
	}
	return id, err
}

// SetReferralFee changes a referral's fee
func (a *Aggregator) SetReferralFee(caller common.Address, id uint64, fee uint32) error {
	if err := a.onlyOwner(caller); err != nil {
		return err
	}
	return a.update(func(txn *fees.Txn) error { return txn.SetReferralFee(id, fee) })
}

// SetReferralActive enables or disables a referral
func (a *Aggregator) SetReferralActive(caller common.Address, id uint64, active bool) error {
	if err := a.onlyOwner(caller); err != nil {
		return err
	}
	return a.update(func(txn *fees.Txn) error { return txn.SetReferralActive(id, active) })
}

// SetReferralOwner transfers a referral
func (a *Aggregator) SetReferralOwner(caller common.Address, id uint64, owner common.Address) error {
	if err := a.onlyOwner(caller); err != nil {
		return err
	}
	return a.update(func(txn *fees.Txn) error { return txn.SetReferralOwner(id, owner) })
}

// SetStaticFee sets the fee charged without a referral
func (a *Aggregator) SetStaticFee(caller common.Address, fee uint32) error {
	if err := a.onlyOwner(caller); err != nil {
		return err
	}
	return a.update(func(txn *fees.Txn) error { return txn.SetStaticFee(fee) })
}

// ClaimReferralFees drains up to MaxClaimAssets of a referral's pool to its owner
func (a *Aggregator) ClaimReferralFees(caller common.Address, id uint64) ([]Payment, error) {
	var claimed []fees.Balance
	err := a.update(func(txn *fees.Txn) error {
		var err error
		claimed, err = txn.ClaimReferrer(id, caller, a.config.MaxClaimAssets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balancesToPayments(claimed), nil
}

// ClaimProtocolFees drains up to MaxClaimAssets of the protocol pool
func (a *Aggregator) ClaimProtocolFees(caller common.Address) ([]Payment, error) {
	if err := a.onlyOwner(caller); err != nil {
		return nil, err
	}
	var claimed []fees.Balance
	err := a.update(func(txn *fees.Txn) error {
		var err error
		claimed, err = txn.ClaimProtocol(a.config.MaxClaimAssets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return balancesToPayments(claimed), nil
}

func balancesToPayments(balances []fees.Balance) []Payment {
	out := make([]Payment, 0, len(balances))
	for _, b := range balances {
		out = append(out, NewPayment(NewCurrency(b.Asset), b.Amount))
	}
	return out
}

// =========================================================================
// Views
// =========================================================================

// Referral returns a committed referral record
func (a *Aggregator) Referral(id uint64) (*fees.Referral, error) {
	return a.store.Referral(id)
}

// StaticFee returns the fee charged without a referral
func (a *Aggregator) StaticFee() (uint32, error) {
	return a.store.StaticFee()
}

// ReferrerBalances lists a referral's unclaimed fees
func (a *Aggregator) ReferrerBalances(id uint64) ([]Payment, error) {
	balances, err := a.store.ReferrerBalances(id)
	if err != nil {
		return nil, err
	}
	return balancesToPayments(balances), nil
}

// ProtocolBalances lists the protocol's unclaimed fees and dust
func (a *Aggregator) ProtocolBalances() ([]Payment, error) {
	balances, err := a.store.ProtocolBalances()
	if err != nil {
		return nil, err
	}
	return balancesToPayments(balances), nil
}
