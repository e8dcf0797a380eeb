// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package aggregator executes multi-venue swap and liquidity routes.
// A route is an ordered list of instructions run against a per-batch
// balance ledger; outputs of one step feed the next and the final output
// asset is returned to the caller net of referral and protocol fees.
package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Currency identifies a fungible asset.
// The zero address is the chain's native coin.
type Currency struct {
	Address common.Address
}

// NativeCurrency represents the native coin
var NativeCurrency = Currency{Address: common.Address{}}

// NewCurrency returns the currency for a token address
func NewCurrency(addr common.Address) Currency {
	return Currency{Address: addr}
}

// IsNative returns true if the currency is the native coin
func (c Currency) IsNative() bool {
	return c.Address == (common.Address{})
}

func (c Currency) String() string {
	if c.IsNative() {
		return "native"
	}
	return c.Address.Hex()
}

// Payment is a quantity of a currency moving in or out of the ledger.
// Nonce is non-zero for non-fungible and semi-fungible assets.
type Payment struct {
	Currency Currency
	Nonce    uint64
	Amount   *uint256.Int
}

// NewPayment returns a fungible payment
func NewPayment(c Currency, amount *uint256.Int) Payment {
	return Payment{Currency: c, Amount: amount}
}

func (p Payment) String() string {
	return fmt.Sprintf("%s:%s", p.Currency, p.Amount)
}

// =========================================================================
// Actions
// =========================================================================

// Action is a venue operation an instruction performs.
// The numeric values are the action bytes of the compact encoding.
type Action uint8

const (
	XExchangeSwap Action = iota
	XExchangeAddLiquidity
	XExchangeRemoveLiquidity
	AshSwapPoolSwap
	AshSwapPoolAddLiquidity
	AshSwapPoolRemoveLiquidity
	AshSwapV2Swap
	AshSwapV2AddLiquidity
	AshSwapV2RemoveLiquidity
	OneDexSwap
	OneDexAddLiquidity
	OneDexRemoveLiquidity
	JexSwap
	JexAddLiquidity
	JexRemoveLiquidity
	JexStableSwap
	JexStableAddLiquidity
	JexStableRemoveLiquidity
	Wrapping
	UnWrapping
	XoxnoLiquidStaking
	LXoxnoLiquidStaking
	HatomLiquidStaking
	HatomRedeem
	HatomSupply

	numActions
)

var actionNames = [numActions]string{
	"XExchangeSwap",
	"XExchangeAddLiquidity",
	"XExchangeRemoveLiquidity",
	"AshSwapPoolSwap",
	"AshSwapPoolAddLiquidity",
	"AshSwapPoolRemoveLiquidity",
	"AshSwapV2Swap",
	"AshSwapV2AddLiquidity",
	"AshSwapV2RemoveLiquidity",
	"OneDexSwap",
	"OneDexAddLiquidity",
	"OneDexRemoveLiquidity",
	"JexSwap",
	"JexAddLiquidity",
	"JexRemoveLiquidity",
	"JexStableSwap",
	"JexStableAddLiquidity",
	"JexStableRemoveLiquidity",
	"Wrapping",
	"UnWrapping",
	"XoxnoLiquidStaking",
	"LXoxnoLiquidStaking",
	"HatomLiquidStaking",
	"HatomRedeem",
	"HatomSupply",
}

// ParseAction converts an action byte, failing for unknown values
func ParseAction(b uint8) (Action, error) {
	if b >= uint8(numActions) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAction, b)
	}
	return Action(b), nil
}

// Valid returns true for known actions
func (a Action) Valid() bool {
	return a < numActions
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
	return actionNames[a]
}

// Category selects the compact byte layout of an action
type Category uint8

const (
	// CategoryDual is [tok1, mode1, tok2, mode2]
	CategoryDual Category = iota
	// CategoryOutputToken is [out, in, mode, -]
	CategoryOutputToken
	// CategoryMultiInput is [tok1, tok2, tok3, sharedMode]
	CategoryMultiInput
	// CategoryOutputCount is [count, in, mode, -]
	CategoryOutputCount
	// CategoryPairID is [tok1, tok2, sharedMode, -] with the pair id in the index field
	CategoryPairID
)

func (c Category) String() string {
	switch c {
	case CategoryDual:
		return "dual"
	case CategoryOutputToken:
		return "output-token"
	case CategoryMultiInput:
		return "multi-input"
	case CategoryOutputCount:
		return "output-count"
	case CategoryPairID:
		return "pair-id"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Category returns the compact layout used by the action
func (a Action) Category() Category {
	switch a {
	case XExchangeSwap, AshSwapPoolSwap, OneDexSwap, JexStableSwap, HatomSupply:
		return CategoryOutputToken
	case AshSwapPoolAddLiquidity, AshSwapV2AddLiquidity, JexStableAddLiquidity:
		return CategoryMultiInput
	case AshSwapPoolRemoveLiquidity, AshSwapV2RemoveLiquidity, JexStableRemoveLiquidity:
		return CategoryOutputCount
	case OneDexAddLiquidity:
		return CategoryPairID
	default:
		return CategoryDual
	}
}

// OpKind is the venue operation family an action dispatches to
type OpKind uint8

const (
	OpSwap OpKind = iota
	OpAddLiquidity
	OpRemoveLiquidity
	OpWrap
	OpUnwrap
	OpStake
	OpSupply
	OpRedeem
)

func (k OpKind) String() string {
	switch k {
	case OpSwap:
		return "swap"
	case OpAddLiquidity:
		return "addLiquidity"
	case OpRemoveLiquidity:
		return "removeLiquidity"
	case OpWrap:
		return "wrap"
	case OpUnwrap:
		return "unwrap"
	case OpStake:
		return "stake"
	case OpSupply:
		return "supply"
	case OpRedeem:
		return "redeem"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Op returns the venue operation the action performs
func (a Action) Op() OpKind {
	switch a {
	case XExchangeSwap, AshSwapPoolSwap, AshSwapV2Swap, OneDexSwap, JexSwap, JexStableSwap:
		return OpSwap
	case XExchangeAddLiquidity, AshSwapPoolAddLiquidity, AshSwapV2AddLiquidity,
		OneDexAddLiquidity, JexAddLiquidity, JexStableAddLiquidity:
		return OpAddLiquidity
	case XExchangeRemoveLiquidity, AshSwapPoolRemoveLiquidity, AshSwapV2RemoveLiquidity,
		OneDexRemoveLiquidity, JexRemoveLiquidity, JexStableRemoveLiquidity:
		return OpRemoveLiquidity
	case Wrapping:
		return OpWrap
	case UnWrapping:
		return OpUnwrap
	case XoxnoLiquidStaking, LXoxnoLiquidStaking, HatomLiquidStaking:
		return OpStake
	case HatomSupply:
		return OpSupply
	default:
		return OpRedeem
	}
}

// Zappable returns true for two-sided constant-product liquidity provision
// that is pre-balanced before the venue call.
func (a Action) Zappable() bool {
	return a == XExchangeAddLiquidity || a == OneDexAddLiquidity || a == JexAddLiquidity
}

// AutoVenue returns true if the venue is derived from the assets or is a
// fixed well-known address, so an explicit address is never consulted.
func (a Action) AutoVenue() bool {
	switch a {
	case XExchangeSwap, XExchangeAddLiquidity,
		OneDexSwap, OneDexAddLiquidity, OneDexRemoveLiquidity,
		Wrapping, UnWrapping,
		XoxnoLiquidStaking, LXoxnoLiquidStaking, HatomLiquidStaking,
		HatomRedeem, HatomSupply:
		return true
	default:
		return false
	}
}

// stable returns true for stable-swap venues that reject a 1-unit floor
func (a Action) stable() bool {
	return a == JexStableSwap || a == JexStableAddLiquidity
}

// =========================================================================
// Amount modes and instructions
// =========================================================================

// ModeKind tags an AmountMode
type ModeKind uint8

const (
	// ModeAll withdraws the entire balance of the asset
	ModeAll ModeKind = iota
	// ModePrev withdraws the previous instruction's single output
	ModePrev
	// ModeFixed withdraws an exact quantity
	ModeFixed
	// ModePpm withdraws a parts-per-million fraction of the balance
	ModePpm
)

func (k ModeKind) String() string {
	switch k {
	case ModeAll:
		return "all"
	case ModePrev:
		return "prev"
	case ModeFixed:
		return "fixed"
	case ModePpm:
		return "ppm"
	default:
		return fmt.Sprintf("ModeKind(%d)", uint8(k))
	}
}

// PpmDenominator is 100% in parts per million
const PpmDenominator = 1_000_000

// AmountMode selects how much of an asset an input withdraws.
// Value holds the quantity for ModeFixed and the factor for ModePpm.
type AmountMode struct {
	Kind  ModeKind
	Value *uint256.Int
}

// Fixed returns an exact-amount mode
func Fixed(amount *uint256.Int) AmountMode {
	return AmountMode{Kind: ModeFixed, Value: amount}
}

// Ppm returns a fractional mode
func Ppm(ppm uint64) AmountMode {
	return AmountMode{Kind: ModePpm, Value: uint256.NewInt(ppm)}
}

// All returns the whole-balance mode
func All() AmountMode {
	return AmountMode{Kind: ModeAll}
}

// Prev returns the chained-amount mode
func Prev() AmountMode {
	return AmountMode{Kind: ModePrev}
}

func (m AmountMode) String() string {
	switch m.Kind {
	case ModeFixed, ModePpm:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Value)
	default:
		return m.Kind.String()
	}
}

// InputArg is one withdrawal an instruction makes from the ledger
type InputArg struct {
	Currency Currency
	Mode     AmountMode
}

// Instruction is one step of a route.
// Inputs is empty when the step consumes the previous result verbatim.
// Venue is nil when the venue is resolved automatically.
type Instruction struct {
	Action Action
	Inputs []InputArg
	Venue  *common.Address

	// TokenOut is the requested output asset of output-token actions
	TokenOut Currency
	// OutputCount is the number of assets a stable pool returns on removal
	OutputCount uint8
	// PairID selects a pair on router-style venues
	PairID uint16
}

// Batch is a structured route submission
type Batch struct {
	Instructions []Instruction
	TokenOut     Currency
	MinOut       *uint256.Int
	ReferralID   uint64
}

// Receipt reports the outcome of an executed batch
type Receipt struct {
	// Fingerprint is the BLAKE3 digest of the submitted route
	Fingerprint common.Hash
	// Output is the payment returned to the caller
	Output Payment
	// ReferralFee and ProtocolFee are the fees taken from the output
	ReferralFee *uint256.Int
	ProtocolFee *uint256.Int
	// Dust lists leftover assets swept into the protocol pool
	Dust []Payment
	// GasUsed is the work charged for the batch
	GasUsed uint64
}
