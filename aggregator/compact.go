// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Registry sentinels of the compact encoding
const (
	// IdxNone marks an absent asset slot
	IdxNone uint8 = 255
	// IdxNative selects the native coin
	IdxNative uint8 = 254
	// IdxAuto in the low byte of the index field requests venue auto-resolution
	IdxAuto uint8 = 255
)

// Mode byte ranges of the compact encoding
const (
	compactModeAll   uint8 = 0
	compactModePrev  uint8 = 1
	compactFixedBase uint8 = 2
	compactPpmBase   uint8 = 128
)

// CompactInstructionSize is the wire size of one compact instruction
const CompactInstructionSize = 7

// CompactInstruction is the fixed-width wire form of an instruction.
// The meaning of B1..B4 depends on the action category; Index is a venue
// registry index or, for pair-id actions, the pair id.
type CompactInstruction struct {
	Action uint8
	B1     uint8
	B2     uint8
	B3     uint8
	B4     uint8
	Index  uint16
}

// Registries are the lookup tables compact instructions index into
type Registries struct {
	Assets  []Currency
	Venues  []common.Address
	Amounts []*uint256.Int
}

// Asset resolves an asset index
func (r *Registries) Asset(idx uint8) (Currency, error) {
	if idx == IdxNative {
		return NativeCurrency, nil
	}
	if int(idx) >= len(r.Assets) {
		return Currency{}, fmt.Errorf("%w: asset %d of %d", ErrIndexOutOfRange, idx, len(r.Assets))
	}
	return r.Assets[idx], nil
}

// Venue resolves a venue index
func (r *Registries) Venue(idx uint16) (common.Address, error) {
	if int(idx) >= len(r.Venues) {
		return common.Address{}, fmt.Errorf("%w: venue %d of %d", ErrIndexOutOfRange, idx, len(r.Venues))
	}
	return r.Venues[idx], nil
}

// Amount resolves a numeric value index
func (r *Registries) Amount(idx uint8) (*uint256.Int, error) {
	if int(idx) >= len(r.Amounts) {
		return nil, fmt.Errorf("%w: amount %d of %d", ErrIndexOutOfRange, idx, len(r.Amounts))
	}
	return new(uint256.Int).Set(r.Amounts[idx]), nil
}

// Mode decodes a compact mode byte
func (r *Registries) Mode(b uint8) (AmountMode, error) {
	switch {
	case b == compactModeAll:
		return All(), nil
	case b == compactModePrev:
		return Prev(), nil
	case b < compactPpmBase:
		v, err := r.Amount(b - compactFixedBase)
		if err != nil {
			return AmountMode{}, err
		}
		return Fixed(v), nil
	default:
		// Ppm bounds are checked when the mode is consumed
		v, err := r.Amount(b - compactPpmBase)
		if err != nil {
			return AmountMode{}, err
		}
		return AmountMode{Kind: ModePpm, Value: v}, nil
	}
}

// DecodeInstruction expands a compact instruction against the registries
func DecodeInstruction(ci CompactInstruction, regs *Registries) (*Instruction, error) {
	action, err := ParseAction(ci.Action)
	if err != nil {
		return nil, err
	}

	instr, err := decodeAction(action, ci, regs)
	if err != nil {
		return nil, err
	}
	if instr.Inputs, err = decodeInputs(action, ci, regs); err != nil {
		return nil, err
	}

	if action.Category() == CategoryPairID || action.AutoVenue() || uint8(ci.Index) == IdxAuto {
		return instr, nil
	}
	venue, err := regs.Venue(ci.Index)
	if err != nil {
		return nil, err
	}
	instr.Venue = &venue
	return instr, nil
}

// decodeAction resolves the action parameter carried by B1 or the index field
func decodeAction(action Action, ci CompactInstruction, regs *Registries) (*Instruction, error) {
	instr := &Instruction{Action: action}
	switch action.Category() {
	case CategoryOutputToken:
		out, err := regs.Asset(ci.B1)
		if err != nil {
			return nil, fmt.Errorf("output asset: %w", err)
		}
		instr.TokenOut = out
	case CategoryOutputCount:
		instr.OutputCount = ci.B1
	case CategoryPairID:
		instr.PairID = ci.Index
	}
	return instr, nil
}

// decodeInputs applies the byte layout of the action's category
func decodeInputs(action Action, ci CompactInstruction, regs *Registries) ([]InputArg, error) {
	switch action.Category() {
	case CategoryOutputToken, CategoryOutputCount:
		return decodeSingleInput(ci.B2, ci.B3, regs)
	case CategoryMultiInput:
		return decodeSharedMode(regs, ci.B4, ci.B1, ci.B2, ci.B3)
	case CategoryPairID:
		return decodeSharedMode(regs, ci.B3, ci.B1, ci.B2)
	default:
		return decodeDual(ci, regs)
	}
}

// decodeSingleInput reads one (asset, mode) pair. Prev mode with no asset
// chains the previous result and yields no input list.
func decodeSingleInput(assetIdx, modeByte uint8, regs *Registries) ([]InputArg, error) {
	if modeByte == compactModePrev && assetIdx == IdxNone {
		return nil, nil
	}
	in, err := decodeInput(assetIdx, modeByte, regs)
	if err != nil {
		return nil, err
	}
	return []InputArg{in}, nil
}

// decodeSharedMode reads up to three assets sharing one mode. The first
// asset is required; later slots may be IdxNone.
func decodeSharedMode(regs *Registries, modeByte uint8, assets ...uint8) ([]InputArg, error) {
	mode, err := regs.Mode(modeByte)
	if err != nil {
		return nil, err
	}
	inputs := make([]InputArg, 0, len(assets))
	for i, idx := range assets {
		if idx == IdxNone && i > 0 {
			continue
		}
		c, err := regs.Asset(idx)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs = append(inputs, InputArg{Currency: c, Mode: mode})
	}
	return inputs, nil
}

func decodeDual(ci CompactInstruction, regs *Registries) ([]InputArg, error) {
	inputs, err := decodeSingleInput(ci.B1, ci.B2, regs)
	if err != nil || inputs == nil {
		return inputs, err
	}
	if ci.B3 == IdxNone {
		return inputs, nil
	}
	second, err := decodeInput(ci.B3, ci.B4, regs)
	if err != nil {
		return nil, err
	}
	return append(inputs, second), nil
}

func decodeInput(assetIdx, modeByte uint8, regs *Registries) (InputArg, error) {
	c, err := regs.Asset(assetIdx)
	if err != nil {
		return InputArg{}, fmt.Errorf("input asset: %w", err)
	}
	mode, err := regs.Mode(modeByte)
	if err != nil {
		return InputArg{}, err
	}
	return InputArg{Currency: c, Mode: mode}, nil
}
