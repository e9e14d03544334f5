package evmcore

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Env is the execution context of contract code: the message being executed,
// the block it runs in, and access to balances, value transfer, nested calls
// and logs. An Env is only valid during the call it was passed to.
type Env struct {
	Msg   Message
	Block *EvmHeader

	m     *Machine
	logs  *[]*types.Log
	depth int
}

// Self is the address of the executing contract.
func (e *Env) Self() common.Address {
	return e.Msg.To
}

// Caller is the address that sent the message.
func (e *Env) Caller() common.Address {
	return e.Msg.From
}

// Value is the amount attached to the message. It is never nil.
func (e *Env) Value() *big.Int {
	return e.Msg.value()
}

// Balance returns the current balance of addr, including uncommitted changes
// of this message.
func (e *Env) Balance(addr common.Address) *big.Int {
	return e.m.ledger.Balance(addr)
}

// Emit appends a log. Logs without an address are attributed to Self.
func (e *Env) Emit(l *types.Log) {
	if l.Address == (common.Address{}) {
		l.Address = e.Self()
	}
	*e.logs = append(*e.logs, l)
}

// Transfer sends amount from Self to the given account. If the account has a
// Receiver it runs in a nested context and may itself call contracts. On
// failure the transfer and everything the receiver did are undone.
func (e *Env) Transfer(to common.Address, amount *big.Int) error {
	if e.depth >= MaxCallDepth {
		return ErrCallDepth
	}
	rev := e.m.snapshot(e)
	if err := e.m.ledger.Transfer(e.Self(), to, amount); err != nil {
		e.m.revert(rev, e)
		return err
	}
	receiver := e.m.receivers[to]
	if receiver == nil {
		return nil
	}
	if err := receiver(e.child(Message{From: e.Self(), To: to, Value: amount})); err != nil {
		e.m.revert(rev, e)
		return fmt.Errorf("receiver %s rejected transfer: %w", to.Hex(), err)
	}
	return nil
}

// Call runs fn as the code of the contract at to, called by Self with value
// attached. A failed call is rolled back on its own, leaving the caller free to
// handle the error.
func (e *Env) Call(to common.Address, value *big.Int, fn func(env *Env) error) error {
	if e.depth >= MaxCallDepth {
		return ErrCallDepth
	}
	msg := Message{From: e.Self(), To: to, Value: value}
	rev := e.m.snapshot(e)
	err := e.m.ledger.Transfer(msg.From, msg.To, msg.value())
	if err == nil {
		err = fn(e.child(msg))
	}
	if err != nil {
		e.m.revert(rev, e)
	}
	return err
}

func (e *Env) child(msg Message) *Env {
	return &Env{
		Msg:   msg,
		Block: e.Block,
		m:     e.m,
		logs:  e.logs,
		depth: e.depth + 1,
	}
}
