// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package evmcore is the execution substrate the raffle runs on. It is not an
// EVM: contracts are Go values, and a message is a Go closure run by the
// Machine. What it does provide are the guarantees a contract relies on:
//
//   - every message runs alone (one at a time) in its own block
//   - block numbers and block times are strictly increasing
//   - a message either commits all of its effects (balances, contract state,
//     logs) or none of them
//   - value moves through a go-ethereum StateDB, and a transfer to an account
//     with a registered Receiver runs that receiver's code
//
// Usage:
//
//	m := evmcore.NewMachine(evmcore.MachineConfig{Genesis: balances})
//	receipt, err := m.Execute(evmcore.Message{From: a, To: c, Value: v}, contract.Method)
package evmcore

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-opera-raffle/inter"
)

// EvmHeader is the header of a substrate block. The Machine produces one block
// per executed message.
type EvmHeader struct {
	Number     idx.Block
	Hash       common.Hash
	ParentHash common.Hash
	// Root is the state root. Only the genesis block carries it, the Machine
	// never flushes the state afterwards.
	Root common.Hash
	Time inter.Timestamp
}

// EvmBlock is a header plus the messages that were executed in it.
type EvmBlock struct {
	EvmHeader
	TxHashes []common.Hash
}

// NewEvmBlock builds a block from a header and seals its hash.
func NewEvmBlock(h *EvmHeader, txs []common.Hash) *EvmBlock {
	b := &EvmBlock{
		EvmHeader: *h,
		TxHashes:  txs,
	}
	b.EvmHeader.Hash = b.EvmHeader.sealHash()
	return b
}

// nextHeader returns the header of the child block of h with the given time.
// The time is bumped to keep block times strictly increasing.
func (h *EvmHeader) nextHeader(now inter.Timestamp) *EvmHeader {
	next := &EvmHeader{
		Number:     h.Number + 1,
		ParentHash: h.Hash,
		Time:       inter.MaxTimestamp(now, h.Time+1),
	}
	next.Hash = next.sealHash()
	return next
}

func (h *EvmHeader) sealHash() common.Hash {
	return common.Hash(hash.Of(
		h.ParentHash.Bytes(),
		bigendian.Uint64ToBytes(uint64(h.Number)),
		h.Root.Bytes(),
		h.Time.Bytes(),
	))
}

// Receipt is the outcome of one executed message.
type Receipt struct {
	TxHash common.Hash
	Block  EvmHeader
	// Status is types.ReceiptStatusSuccessful or types.ReceiptStatusFailed.
	Status uint64
	// Logs are the committed logs. A failed message has none.
	Logs []*types.Log
	// Err is the reason of a failed message.
	Err error
}

// Failed reports whether the message was reverted.
func (r *Receipt) Failed() bool {
	return r.Status == types.ReceiptStatusFailed
}

// txHash identifies a message by its sender, nonce and the block it ran in.
func txHash(msg Message, nonce uint64, block idx.Block) common.Hash {
	value := []byte{}
	if msg.Value != nil {
		value = msg.Value.Bytes()
	}
	return common.Hash(hash.Of(
		msg.From.Bytes(),
		msg.To.Bytes(),
		bigendian.Uint64ToBytes(nonce),
		value,
		bigendian.Uint64ToBytes(uint64(block)),
	))
}

// Message is a call from an account to a contract, optionally carrying value.
type Message struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

func (m Message) value() *big.Int {
	if m.Value == nil {
		return new(big.Int)
	}
	return m.Value
}
