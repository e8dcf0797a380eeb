// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fees persists referral records and accrued fee pools.
package fees

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/geth/common"
)

// Fee ceilings in basis points
const (
	// TotalFee is 100%
	TotalFee uint32 = 10_000
	// MaxReferralFee is half the ceiling since a matching protocol fee is
	// taken alongside every referral fee.
	MaxReferralFee = TotalFee / 2
)

var (
	ErrFeeExceedsCeiling = errors.New("fee exceeds ceiling")
	ErrReferralNotFound  = errors.New("referral not found")
	ErrNotReferralOwner  = errors.New("not referral owner")
	ErrCorruptRecord     = errors.New("corrupt fee record")
)

// Storage namespaces
var (
	metaPrefix         = []byte("meta")
	referralPrefix     = []byte("refr")
	referrerPoolPrefix = []byte("rbal")
	protocolPoolPrefix = []byte("pbal")

	counterKey   = []byte("referralCounter")
	staticFeeKey = []byte("staticFee")
)

const referralRecordSize = common.AddressLength + 4 + 1

// Referral is a fee-sharing record
type Referral struct {
	ID     uint64
	Owner  common.Address
	Fee    uint32
	Active bool
}

// Balance is an accrued amount of one asset
type Balance struct {
	Asset  common.Address
	Amount *uint256.Int
}

// Store holds referral records and fee pools
type Store struct {
	db            database.Database
	meta          database.Database
	referrals     database.Database
	referrerPools database.Database
	protocolPool  database.Database
}

// NewStore wraps a database
func NewStore(db database.Database) *Store {
	return &Store{
		db:            db,
		meta:          prefixdb.New(metaPrefix, db),
		referrals:     prefixdb.New(referralPrefix, db),
		referrerPools: prefixdb.New(referrerPoolPrefix, db),
		protocolPool:  prefixdb.New(protocolPoolPrefix, db),
	}
}

// Txn is a store view whose writes are buffered until Commit
type Txn struct {
	*Store
	vdb *versiondb.Database
}

// Begin starts a buffered view over the store
func (s *Store) Begin() *Txn {
	vdb := versiondb.New(s.db)
	return &Txn{Store: NewStore(vdb), vdb: vdb}
}

// Commit flushes buffered writes to the underlying store
func (t *Txn) Commit() error {
	return t.vdb.Commit()
}

// Abort discards buffered writes
func (t *Txn) Abort() {
	t.vdb.Abort()
}

// =========================================================================
// Referral records
// =========================================================================

// AddReferral creates an active referral and returns its id
func (s *Store) AddReferral(owner common.Address, fee uint32) (uint64, error) {
	if fee > MaxReferralFee {
		return 0, fmt.Errorf("%w: referral fee %d > %d", ErrFeeExceedsCeiling, fee, MaxReferralFee)
	}
	id, err := getUint64(s.meta, counterKey)
	if err != nil {
		return 0, err
	}
	id++
	if err := putUint64(s.meta, counterKey, id); err != nil {
		return 0, err
	}
	ref := &Referral{ID: id, Owner: owner, Fee: fee, Active: true}
	if err := s.putReferral(ref); err != nil {
		return 0, err
	}
	return id, nil
}

// Referral loads a referral record
func (s *Store) Referral(id uint64) (*Referral, error) {
	raw, err := s.referrals.Get(idKey(id))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrReferralNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if len(raw) != referralRecordSize {
		return nil, fmt.Errorf("%w: referral %d has %d bytes", ErrCorruptRecord, id, len(raw))
	}
	return &Referral{
		ID:     id,
		Owner:  common.BytesToAddress(raw[:common.AddressLength]),
		Fee:    binary.BigEndian.Uint32(raw[common.AddressLength:]),
		Active: raw[referralRecordSize-1] == 1,
	}, nil
}

// SetReferralFee updates the fee of a referral
func (s *Store) SetReferralFee(id uint64, fee uint32) error {
	if fee > MaxReferralFee {
		return fmt.Errorf("%w: referral fee %d > %d", ErrFeeExceedsCeiling, fee, MaxReferralFee)
	}
	return s.updateReferral(id, func(r *Referral) { r.Fee = fee })
}

// SetReferralActive enables or disables a referral
func (s *Store) SetReferralActive(id uint64, active bool) error {
	return s.updateReferral(id, func(r *Referral) { r.Active = active })
}

// SetReferralOwner transfers a referral
func (s *Store) SetReferralOwner(id uint64, owner common.Address) error {
	return s.updateReferral(id, func(r *Referral) { r.Owner = owner })
}

// StaticFee returns the fee charged when no referral applies
func (s *Store) StaticFee() (uint32, error) {
	v, err := getUint64(s.meta, staticFeeKey)
	return uint32(v), err
}

// SetStaticFee sets the fee charged when no referral applies
func (s *Store) SetStaticFee(fee uint32) error {
	if fee > TotalFee {
		return fmt.Errorf("%w: static fee %d > %d", ErrFeeExceedsCeiling, fee, TotalFee)
	}
	return putUint64(s.meta, staticFeeKey, uint64(fee))
}

func (s *Store) updateReferral(id uint64, update func(*Referral)) error {
	ref, err := s.Referral(id)
	if err != nil {
		return err
	}
	update(ref)
	return s.putReferral(ref)
}

func (s *Store) putReferral(r *Referral) error {
	raw := make([]byte, referralRecordSize)
	copy(raw, r.Owner.Bytes())
	binary.BigEndian.PutUint32(raw[common.AddressLength:], r.Fee)
	if r.Active {
		raw[referralRecordSize-1] = 1
	}
	return s.referrals.Put(idKey(r.ID), raw)
}

// =========================================================================
// Fee pools
// =========================================================================

// AccrueReferrer credits a referrer's pool
func (s *Store) AccrueReferrer(id uint64, asset common.Address, amount *uint256.Int) error {
	return accrue(s.referrerPool(id), asset, amount)
}

// AccrueProtocol credits the protocol pool
func (s *Store) AccrueProtocol(asset common.Address, amount *uint256.Int) error {
	return accrue(s.protocolPool, asset, amount)
}

// ReferrerBalances lists a referrer's accrued balances in asset order
func (s *Store) ReferrerBalances(id uint64) ([]Balance, error) {
	return balances(s.referrerPool(id), 0)
}

// ProtocolBalances lists the protocol pool in asset order
func (s *Store) ProtocolBalances() ([]Balance, error) {
	return balances(s.protocolPool, 0)
}

// ClaimReferrer drains up to max assets of a referral's pool.
// Only the referral owner may claim.
func (s *Store) ClaimReferrer(id uint64, caller common.Address, max int) ([]Balance, error) {
	ref, err := s.Referral(id)
	if err != nil {
		return nil, err
	}
	if ref.Owner != caller {
		return nil, fmt.Errorf("%w: referral=%d, caller=%s", ErrNotReferralOwner, id, caller.Hex())
	}
	return drain(s.referrerPool(id), max)
}

// ClaimProtocol drains up to max assets of the protocol pool
func (s *Store) ClaimProtocol(max int) ([]Balance, error) {
	return drain(s.protocolPool, max)
}

func (s *Store) referrerPool(id uint64) database.Database {
	return prefixdb.New(idKey(id), s.referrerPools)
}

func accrue(db database.Database, asset common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	cur, err := getAmount(db, asset.Bytes())
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return fmt.Errorf("%w: pool overflow for %s", ErrCorruptRecord, asset.Hex())
	}
	return db.Put(asset.Bytes(), sum.Bytes())
}

// balances iterates a pool; max <= 0 means unbounded
func balances(db database.Database, max int) ([]Balance, error) {
	it := db.NewIterator()
	defer it.Release()

	var out []Balance
	for it.Next() {
		if max > 0 && len(out) == max {
			break
		}
		amount := new(uint256.Int).SetBytes(it.Value())
		if amount.IsZero() {
			continue
		}
		out = append(out, Balance{
			Asset:  common.BytesToAddress(it.Key()),
			Amount: amount,
		})
	}
	return out, it.Error()
}

func drain(db database.Database, max int) ([]Balance, error) {
	claimed, err := balances(db, max)
	if err != nil {
		return nil, err
	}
	for _, b := range claimed {
		if err := db.Delete(b.Asset.Bytes()); err != nil {
			return nil, err
		}
	}
	return claimed, nil
}

// =========================================================================
// Encoding helpers
// =========================================================================

func idKey(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

func getAmount(db database.Database, key []byte) (*uint256.Int, error) {
	raw, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("%w: amount has %d bytes", ErrCorruptRecord, len(raw))
	}
	return new(uint256.Int).SetBytes(raw), nil
}

func getUint64(db database.Database, key []byte) (uint64, error) {
	raw, err := db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("%w: %q has %d bytes", ErrCorruptRecord, key, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func putUint64(db database.Database, key []byte, v uint64) error {
	return db.Put(key, idKey(v))
}
