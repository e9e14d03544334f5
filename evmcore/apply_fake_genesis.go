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

package evmcore

import (
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/rony4d/go-opera-raffle/inter"
)

// FakeGenesisTime is the default time of the genesis block of a fake network
// (December 22, 2020).
var FakeGenesisTime = inter.Timestamp(1608600000 * time.Second)

// ApplyFakeGenesis pre-funds accounts in statedb, commits the state and returns
// the genesis block (number 0) carrying the resulting state root.
//
// Parameters:
//   - statedb: the state the balances are written into
//   - time: the genesis block time, usually FakeGenesisTime
//   - balances: initial balances in wei
//
// Example:
//
//	block, err := ApplyFakeGenesis(statedb, FakeGenesisTime, map[common.Address]*big.Int{
//	    FakeAddress(1): FakeBalance(100),
//	})
func ApplyFakeGenesis(statedb *state.StateDB, time inter.Timestamp, balances map[common.Address]*big.Int) (*EvmBlock, error) {
	for acc, balance := range balances {
		statedb.SetBalance(acc, balance)
	}

	root, err := flush(statedb, true)
	if err != nil {
		return nil, err
	}

	return genesisBlock(time, root), nil
}

// flush commits the pending state changes into the trie and the trie into the
// backing database.
func flush(statedb *state.StateDB, clean bool) (root common.Hash, err error) {
	root, err = statedb.Commit(clean)
	if err != nil {
		return
	}
	err = statedb.Database().TrieDB().Commit(root, false, nil)
	if err != nil {
		return
	}
	if !clean {
		err = statedb.Database().TrieDB().Cap(0)
	}
	return
}

func genesisBlock(time inter.Timestamp, root common.Hash) *EvmBlock {
	h := &EvmHeader{
		Number: 0,
		Time:   time,
		Root:   root,
	}
	return NewEvmBlock(h, nil)
}

// MustApplyFakeGenesis is like ApplyFakeGenesis but treats a failure as fatal.
func MustApplyFakeGenesis(statedb *state.StateDB, time inter.Timestamp, balances map[common.Address]*big.Int) *EvmBlock {
	block, err := ApplyFakeGenesis(statedb, time, balances)
	if err != nil {
		log.Crit("ApplyFakeGenesis", "err", err)
	}
	return block
}

// FakeKey returns the n-th deterministic private key of a fake network.
// The same n always yields the same key.
func FakeKey(n int) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256(big.NewInt(int64(n)).Bytes()))
	if err != nil {
		panic(err)
	}

	return key
}

// FakeAddress returns the account address of FakeKey(n).
func FakeAddress(n int) common.Address {
	return crypto.PubkeyToAddress(FakeKey(n).PublicKey)
}

// FakeBalance returns n ether in wei.
func FakeBalance(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}
