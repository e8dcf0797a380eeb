// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aggregator

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// CompactBatch is the compact route submission.
//
// Wire layout (big-endian):
//
//	minOut      32 bytes
//	tokenOut     1 byte   asset index or IdxNative
//	referralID   8 bytes  0 = none
//	nAssets      1 byte,  then 20 bytes per asset
//	nVenues      2 bytes, then 20 bytes per venue
//	nAmounts     1 byte,  then 32 bytes per amount
//	nInstr       2 bytes, then 7 bytes per instruction
type CompactBatch struct {
	MinOut       *uint256.Int
	TokenOut     uint8
	ReferralID   uint64
	Registries   Registries
	Instructions []CompactInstruction
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) next(n int, what string) ([]byte, error) {
	if len(r.data)-r.off < n {
		return nil, fmt.Errorf("%w: %s truncated at offset %d", ErrInvalidInput, what, r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// DecodeCompactBatch parses the compact wire form
func DecodeCompactBatch(data []byte) (*CompactBatch, error) {
	r := &reader{data: data}
	b := &CompactBatch{}

	buf, err := r.next(32, "minOut")
	if err != nil {
		return nil, err
	}
	b.MinOut = new(uint256.Int).SetBytes(buf)

	if buf, err = r.next(9, "header"); err != nil {
		return nil, err
	}
	b.TokenOut = buf[0]
	b.ReferralID = binary.BigEndian.Uint64(buf[1:9])

	if buf, err = r.next(1, "asset count"); err != nil {
		return nil, err
	}
	b.Registries.Assets = make([]Currency, int(buf[0]))
	for i := range b.Registries.Assets {
		if buf, err = r.next(common.AddressLength, "asset"); err != nil {
			return nil, err
		}
		b.Registries.Assets[i] = NewCurrency(common.BytesToAddress(buf))
	}

	if buf, err = r.next(2, "venue count"); err != nil {
		return nil, err
	}
	b.Registries.Venues = make([]common.Address, int(binary.BigEndian.Uint16(buf)))
	for i := range b.Registries.Venues {
		if buf, err = r.next(common.AddressLength, "venue"); err != nil {
			return nil, err
		}
		b.Registries.Venues[i] = common.BytesToAddress(buf)
	}

	if buf, err = r.next(1, "amount count"); err != nil {
		return nil, err
	}
	b.Registries.Amounts = make([]*uint256.Int, int(buf[0]))
	for i := range b.Registries.Amounts {
		if buf, err = r.next(32, "amount"); err != nil {
			return nil, err
		}
		b.Registries.Amounts[i] = new(uint256.Int).SetBytes(buf)
	}

	if buf, err = r.next(2, "instruction count"); err != nil {
		return nil, err
	}
	b.Instructions = make([]CompactInstruction, int(binary.BigEndian.Uint16(buf)))
	for i := range b.Instructions {
		if buf, err = r.next(CompactInstructionSize, "instruction"); err != nil {
			return nil, err
		}
		b.Instructions[i] = CompactInstruction{
			Action: buf[0],
			B1:     buf[1],
			B2:     buf[2],
			B3:     buf[3],
			B4:     buf[4],
			Index:  binary.BigEndian.Uint16(buf[5:7]),
		}
	}

	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidInput, len(data)-r.off)
	}
	return b, nil
}

// Bytes encodes the batch in its wire form
func (b *CompactBatch) Bytes() []byte {
	size := 32 + 9 +
		1 + common.AddressLength*len(b.Registries.Assets) +
		2 + common.AddressLength*len(b.Registries.Venues) +
		1 + 32*len(b.Registries.Amounts) +
		2 + CompactInstructionSize*len(b.Instructions)
	out := make([]byte, 0, size)

	minOut := new(uint256.Int)
	if b.MinOut != nil {
		minOut = b.MinOut
	}
	word := minOut.Bytes32()
	out = append(out, word[:]...)
	out = append(out, b.TokenOut)
	out = binary.BigEndian.AppendUint64(out, b.ReferralID)

	out = append(out, uint8(len(b.Registries.Assets)))
	for _, c := range b.Registries.Assets {
		out = append(out, c.Address.Bytes()...)
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.Registries.Venues)))
	for _, v := range b.Registries.Venues {
		out = append(out, v.Bytes()...)
	}
	out = append(out, uint8(len(b.Registries.Amounts)))
	for _, a := range b.Registries.Amounts {
		word := a.Bytes32()
		out = append(out, word[:]...)
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.Instructions)))
	for _, ci := range b.Instructions {
		out = append(out, ci.Action, ci.B1, ci.B2, ci.B3, ci.B4)
		out = binary.BigEndian.AppendUint16(out, ci.Index)
	}
	return out
}

// Expand decodes every instruction into a structured batch
func (b *CompactBatch) Expand() (*Batch, error) {
	tokenOut, err := b.Registries.Asset(b.TokenOut)
	if err != nil {
		return nil, fmt.Errorf("output asset: %w", err)
	}
	batch := &Batch{
		Instructions: make([]Instruction, 0, len(b.Instructions)),
		TokenOut:     tokenOut,
		MinOut:       b.MinOut,
		ReferralID:   b.ReferralID,
	}
	for i, ci := range b.Instructions {
		instr, err := DecodeInstruction(ci, &b.Registries)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		batch.Instructions = append(batch.Instructions, *instr)
	}
	return batch, nil
}

// Fingerprint returns the BLAKE3 digest identifying a route in logs and receipts
func (b *Batch) Fingerprint() common.Hash {
	h := blake3.New()
	var scratch [8]byte

	// optional fields are preceded by a 0/1 presence byte
	h.Write(b.TokenOut.Address.Bytes())
	writeOptionalWord(h, b.MinOut)
	binary.BigEndian.PutUint64(scratch[:], b.ReferralID)
	h.Write(scratch[:])

	for _, instr := range b.Instructions {
		h.Write([]byte{uint8(instr.Action), instr.OutputCount})
		binary.BigEndian.PutUint16(scratch[:2], instr.PairID)
		h.Write(scratch[:2])
		h.Write(instr.TokenOut.Address.Bytes())
		if instr.Venue != nil {
			h.Write([]byte{1})
			h.Write(instr.Venue.Bytes())
		} else {
			h.Write([]byte{0})
		}
		binary.BigEndian.PutUint16(scratch[:2], uint16(len(instr.Inputs)))
		h.Write(scratch[:2])
		for _, in := range instr.Inputs {
			h.Write(in.Currency.Address.Bytes())
			h.Write([]byte{uint8(in.Mode.Kind)})
			writeOptionalWord(h, in.Mode.Value)
		}
	}

	var digest common.Hash
	h.Digest().Read(digest[:])
	return digest
}

func writeOptionalWord(h *blake3.Hasher, v *uint256.Int) {
	if v == nil {
		h.Write([]byte{0})
		return
	}
	word := v.Bytes32()
	h.Write([]byte{1})
	h.Write(word[:])
}
