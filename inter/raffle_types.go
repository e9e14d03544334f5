package inter

import (
	"github.com/ethereum/go-ethereum/common"
)

// RaffleState is the lifecycle state of a raffle. The numeric values are part
// of the ABI (getRaffleState returns them as uint8) and must not change.
type RaffleState uint8

const (
	// Open admits entries and permits upkeep evaluation.
	Open RaffleState = 0
	// Calculating rejects entries and redundant upkeep triggers while a
	// randomness request is outstanding.
	Calculating RaffleState = 1
)

// String returns the human readable name of the state.
func (s RaffleState) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Calculating:
		return "CALCULATING"
	default:
		return "UNKNOWN"
	}
}

// RandomWordsRequest carries the parameters a consumer supplies on every
// randomness request.
type RandomWordsRequest struct {
	// KeyHash selects the gas lane (maximum gas price) the oracle uses to
	// deliver the callback.
	KeyHash common.Hash
	// SubID is the subscription that pays for the request.
	SubID uint64
	// MinConfirmations is how many blocks the oracle waits before answering.
	MinConfirmations uint16
	// CallbackGasLimit is the resource budget reserved for the callback.
	CallbackGasLimit uint32
	// NumWords is the number of random values requested.
	NumWords uint32
}
