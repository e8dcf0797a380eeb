// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"errors"
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/aggregator/registry"
)

// Gas costs charged against the caller's work ceiling
const (
	GasBatchBase   uint64 = 21_000  // Batch setup and settlement
	GasInstruction uint64 = 2_000   // Decode and ledger bookkeeping per step
	GasVenueCall   uint64 = 50_000  // Blocking venue round-trip
	GasSolver      uint64 = 30_000  // Pre-swap binary search
	GasFeeAccrual  uint64 = 5_000   // Fee pool writes
	GasDustSweep   uint64 = 5_000   // Per swept asset
	GasAdmin       uint64 = 20_000  // Referral and fee configuration
	GasClaim       uint64 = 10_000  // Per claimed asset
	GasView        uint64 = 2_000   // Read-only queries
	GasMaxBatch    uint64 = 8_000_000
)

// DefaultMaxClaimAssets bounds the assets drained by one claim
const DefaultMaxClaimAssets = 32

// DefaultMinInternalOutput is the per-call output floor sent to venues
const DefaultMinInternalOutput = 1

// WellKnownVenues are venues resolved without an explicit address
type WellKnownVenues struct {
	OneDexRouter  common.Address `json:"oneDexRouter"`
	Wrapper       common.Address `json:"wrapper"`
	XoxnoStaking  common.Address `json:"xoxnoStaking"`
	LXoxnoStaking common.Address `json:"lxoxnoStaking"`
	HatomStaking  common.Address `json:"hatomStaking"`
}

// GasSchedule prices batch work
type GasSchedule struct {
	Base        uint64 `json:"base"`
	Instruction uint64 `json:"instruction"`
	VenueCall   uint64 `json:"venueCall"`
	Solver      uint64 `json:"solver"`
	FeeAccrual  uint64 `json:"feeAccrual"`
	DustSweep   uint64 `json:"dustSweep"`
	Admin       uint64 `json:"admin"`
	Claim       uint64 `json:"claim"`
	View        uint64 `json:"view"`
}

// Config configures an Aggregator
type Config struct {
	// Owner may change fees and claim protocol revenue
	Owner             common.Address  `json:"owner"`
	MaxClaimAssets    int             `json:"maxClaimAssets,omitempty"`
	MinInternalOutput uint64          `json:"minInternalOutput,omitempty"`
	Venues            WellKnownVenues `json:"venues"`
	Gas               GasSchedule     `json:"gas"`
}

// DefaultGasSchedule returns the standard gas prices
func DefaultGasSchedule() GasSchedule {
	return GasSchedule{
		Base:        GasBatchBase,
		Instruction: GasInstruction,
		VenueCall:   GasVenueCall,
		Solver:      GasSolver,
		FeeAccrual:  GasFeeAccrual,
		DustSweep:   GasDustSweep,
		Admin:       GasAdmin,
		Claim:       GasClaim,
		View:        GasView,
	}
}

// DefaultConfig returns a configuration using the registry's venue addresses
func DefaultConfig(owner common.Address) *Config {
	return &Config{
		Owner:             owner,
		MaxClaimAssets:    DefaultMaxClaimAssets,
		MinInternalOutput: DefaultMinInternalOutput,
		Venues: WellKnownVenues{
			OneDexRouter:  registry.GetVenueAddress(registry.NameOneDexRouter),
			Wrapper:       registry.GetVenueAddress(registry.NameWrapper),
			XoxnoStaking:  registry.GetVenueAddress(registry.NameXoxnoStaking),
			LXoxnoStaking: registry.GetVenueAddress(registry.NameLXoxnoStaking),
			HatomStaking:  registry.GetVenueAddress(registry.NameHatomStaking),
		},
		Gas: DefaultGasSchedule(),
	}
}

// Verify checks the configuration and fills unset limits with defaults
func (c *Config) Verify() error {
	if c.Owner == (common.Address{}) {
		return errors.New("owner address required")
	}
	if c.MaxClaimAssets < 0 {
		return fmt.Errorf("invalid maxClaimAssets %d", c.MaxClaimAssets)
	}
	if c.MaxClaimAssets == 0 {
		c.MaxClaimAssets = DefaultMaxClaimAssets
	}
	if c.MinInternalOutput == 0 {
		c.MinInternalOutput = DefaultMinInternalOutput
	}
	if c.Gas == (GasSchedule{}) {
		c.Gas = DefaultGasSchedule()
	}
	return nil
}

// venueFor returns the fixed address of a well-known venue action
func (v *WellKnownVenues) venueFor(a Action) (common.Address, bool) {
	switch a {
	case OneDexSwap, OneDexAddLiquidity, OneDexRemoveLiquidity:
		return v.OneDexRouter, true
	case Wrapping, UnWrapping:
		return v.Wrapper, true
	case XoxnoLiquidStaking:
		return v.XoxnoStaking, true
	case LXoxnoLiquidStaking:
		return v.LXoxnoStaking, true
	case HatomLiquidStaking:
		return v.HatomStaking, true
	default:
		return common.Address{}, false
	}
}
