package evmcore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"

	"github.com/rony4d/go-opera-raffle/inter"
)

// Ledger holds account balances and nonces in a go-ethereum StateDB backed by
// an in-memory database. It is not safe for concurrent use, the Machine owns it.
type Ledger struct {
	db *state.StateDB
}

// NewLedger creates a ledger whose genesis block pre-funds the given accounts.
func NewLedger(genesisTime inter.Timestamp, balances map[common.Address]*big.Int) (*Ledger, *EvmBlock, error) {
	sdb := state.NewDatabase(rawdb.NewMemoryDatabase())
	statedb, err := state.New(common.Hash{}, sdb, nil)
	if err != nil {
		return nil, nil, err
	}
	genesis, err := ApplyFakeGenesis(statedb, genesisTime, balances)
	if err != nil {
		return nil, nil, err
	}
	statedb, err = state.New(genesis.Root, sdb, nil)
	if err != nil {
		return nil, nil, err
	}
	return &Ledger{db: statedb}, genesis, nil
}

// Balance returns a copy of the balance of addr.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	return new(big.Int).Set(l.db.GetBalance(addr))
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount %s", amount)
	}
	if amount.Sign() == 0 {
		return nil
	}
	if have := l.db.GetBalance(from); have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, from.Hex(), have, amount)
	}
	l.db.SubBalance(from, amount)
	l.db.AddBalance(to, amount)
	return nil
}

// Nonce returns the number of messages sent by addr.
func (l *Ledger) Nonce(addr common.Address) uint64 {
	return l.db.GetNonce(addr)
}

func (l *Ledger) setNonce(addr common.Address, nonce uint64) {
	l.db.SetNonce(addr, nonce)
}

// Snapshot returns a revision id of the current state.
func (l *Ledger) Snapshot() int {
	return l.db.Snapshot()
}

// RevertToSnapshot undoes every change made since the revision was taken.
func (l *Ledger) RevertToSnapshot(id int) {
	l.db.RevertToSnapshot(id)
}

// Finalise drops the journal of the committed message.
func (l *Ledger) Finalise() {
	l.db.Finalise(false)
}
