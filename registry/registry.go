// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// ============================================================================
// VENUE ADDRESS SCHEME
// ============================================================================
//
// Well-known venues and the aggregator itself use trailing-significant
// 20-byte addresses in the DEX/Markets page:
//   Format: 0x0000000000000000000000000000000000009KII
//
//   0x 0000...0000 9 K II
//                  │ │ └┴─ Item within the kind (8 bits)
//                  │ └──── Venue kind          (4 bits)
//                  └────── DEX/Markets page    (always 9)
//
// K nibble = Venue kind:
//   K=0 → Aggregator core
//   K=1 → Routers (pair factories, multi-pair routers)
//   K=2 → Wrappers
//   K=3 → Liquid staking
//   K=4 → Lending controllers

// Venue kinds
const (
	KindCore    uint8 = 0x0
	KindRouter  uint8 = 0x1
	KindWrapper uint8 = 0x2
	KindStaking uint8 = 0x3
	KindLending uint8 = 0x4
)

// dexPage is the P nibble of the DEX/Markets family
const dexPage uint8 = 9

// Venue names
const (
	NameAggregator      = "AGGREGATOR"
	NameXExchangeRouter = "XEXCHANGE_ROUTER"
	NameOneDexRouter    = "ONEDEX_ROUTER"
	NameWrapper         = "WRAPPER"
	NameXoxnoStaking    = "XOXNO_STAKING"
	NameLXoxnoStaking   = "LXOXNO_STAKING"
	NameHatomStaking    = "HATOM_STAKING"
	NameHatomController = "HATOM_CONTROLLER"
)

const (
	Aggregator      = "0x0000000000000000000000000000000000009015" // Route executor
	XExchangeRouter = "0x0000000000000000000000000000000000009100" // Pair factory, pair lookup
	OneDexRouter    = "0x0000000000000000000000000000000000009101" // Multi-pair router
	Wrapper         = "0x0000000000000000000000000000000000009200" // Native coin wrapper
	XoxnoStaking    = "0x0000000000000000000000000000000000009300" // Native liquid staking
	LXoxnoStaking   = "0x0000000000000000000000000000000000009301" // Governance token liquid staking
	HatomStaking    = "0x0000000000000000000000000000000000009302" // Lending protocol liquid staking
	HatomController = "0x0000000000000000000000000000000000009400" // Money market controller
)

// VenueInfo describes a well-known venue
type VenueInfo struct {
	Address     string
	Name        string
	Description string
	Kind        uint8
}

// AllVenues lists every well-known venue
var AllVenues = []VenueInfo{
	{Aggregator, NameAggregator, "DEX aggregator route executor", KindCore},
	{XExchangeRouter, NameXExchangeRouter, "Constant-product pair factory", KindRouter},
	{OneDexRouter, NameOneDexRouter, "Constant-product multi-pair router", KindRouter},
	{Wrapper, NameWrapper, "Native coin wrapper", KindWrapper},
	{XoxnoStaking, NameXoxnoStaking, "Native coin liquid staking", KindStaking},
	{LXoxnoStaking, NameLXoxnoStaking, "Governance token liquid staking", KindStaking},
	{HatomStaking, NameHatomStaking, "Lending protocol liquid staking", KindStaking},
	{HatomController, NameHatomController, "Money market controller", KindLending},
}

// VenueAddress calculates a venue address from its kind and item.
// Returns trailing-significant format: 0x0000000000000000000000000000000000009KII
func VenueAddress(kind, item uint8) common.Address {
	if kind > 15 {
		return common.Address{}
	}
	selector := fmt.Sprintf("%x%x%02x", dexPage, kind, item)
	return common.HexToAddress("0x0000000000000000000000000000000000" + selector)
}

// KindName returns a readable name for a venue kind
func KindName(kind uint8) string {
	switch kind {
	case KindCore:
		return "core"
	case KindRouter:
		return "router"
	case KindWrapper:
		return "wrapper"
	case KindStaking:
		return "staking"
	case KindLending:
		return "lending"
	default:
		return "unknown"
	}
}

// GetVenueAddress returns the address of a well-known venue by name
func GetVenueAddress(name string) common.Address {
	for _, v := range AllVenues {
		if v.Name == name {
			return common.HexToAddress(v.Address)
		}
	}
	return common.Address{}
}

// GetVenueByAddress returns the well-known venue at addr
func GetVenueByAddress(addr common.Address) (VenueInfo, bool) {
	for _, v := range AllVenues {
		if common.HexToAddress(v.Address) == addr {
			return v, true
		}
	}
	return VenueInfo{}, false
}

// GetVenuesByKind returns all well-known venues of a kind
func GetVenuesByKind(kind uint8) []VenueInfo {
	var result []VenueInfo
	for _, v := range AllVenues {
		if v.Kind == kind {
			result = append(result, v)
		}
	}
	return result
}
