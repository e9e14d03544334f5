// Package raffle implements a self-executing lottery contract running on the
// evmcore substrate.
//
// Players enter by paying the entrance fee into the raffle's pool. Once the
// interval has elapsed and the raffle holds players and funds, anyone may
// trigger upkeep, which closes entry and asks the VRF coordinator for one
// random word. The coordinator later calls back with the word, the winner is
// players[word % len(players)], the whole pool is paid to the winner and the
// raffle reopens.
//
// Lifecycle:
//
//	OPEN --performUpkeep--> CALCULATING --rawFulfillRandomWords--> OPEN
//	                        CALCULATING --reissueRequest-------> CALCULATING
//
// The package provides:
//   - Rules: immutable deployment parameters and per-network presets
//   - Raffle: the contract (entry, upkeep, resolution, getters, ABI dispatch)
//   - sentinel errors for every rejected operation
package raffle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"

	"github.com/rony4d/go-opera-raffle/inter"
)

// Chain ids of the known networks.
const (
	HardhatChainID uint64 = 31337
	RinkebyChainID uint64 = 4
)

const (
	// DefaultRequestConfirmations is the number of blocks the coordinator waits
	// before answering a request.
	DefaultRequestConfirmations uint16 = 3
	// DefaultCallbackGasLimit is the gas reserved for rawFulfillRandomWords.
	DefaultCallbackGasLimit uint32 = 500000
	// MaxCallbackGasLimit is the largest callback budget a coordinator accepts.
	MaxCallbackGasLimit uint32 = 2500000
	// NumWords is the number of random words requested per round.
	NumWords uint32 = 1
)

// DefaultGasLane is the 30 gwei key hash used by the known networks.
var DefaultGasLane = common.HexToHash("0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc")

// Rules are the parameters a raffle is deployed with. They never change after
// deployment.
type Rules struct {
	Name    string
	ChainID uint64

	// EntranceFee is the minimum payment accepted by enterRaffle, in wei.
	EntranceFee *big.Int
	// Interval is the minimum time between two resolutions.
	Interval inter.Timestamp

	// VRF request parameters
	GasLane              common.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32

	// RequestTimeout is how long a request may stay unanswered before
	// reissueRequest is allowed to replace it.
	RequestTimeout inter.Timestamp
}

// HardhatRules returns the rules of the in-process development network.
func HardhatRules() Rules {
	return Rules{
		Name:                 "hardhat",
		ChainID:              HardhatChainID,
		EntranceFee:          DefaultEntranceFee(),
		Interval:             inter.Timestamp(30 * time.Second),
		GasLane:              DefaultGasLane,
		RequestConfirmations: DefaultRequestConfirmations,
		CallbackGasLimit:     DefaultCallbackGasLimit,
		NumWords:             NumWords,
		RequestTimeout:       inter.Timestamp(5 * time.Minute),
	}
}

// LocalhostRules returns the rules of a local devnet node. They match
// HardhatRules apart from the name.
func LocalhostRules() Rules {
	r := HardhatRules()
	r.Name = "localhost"
	return r
}

// RinkebyRules returns the rules of the Rinkeby deployment.
func RinkebyRules() Rules {
	return Rules{
		Name:                 "rinkeby",
		ChainID:              RinkebyChainID,
		EntranceFee:          DefaultEntranceFee(),
		Interval:             inter.Timestamp(30 * time.Second),
		GasLane:              DefaultGasLane,
		SubscriptionID:       7936,
		RequestConfirmations: DefaultRequestConfirmations,
		CallbackGasLimit:     DefaultCallbackGasLimit,
		NumWords:             NumWords,
		RequestTimeout:       inter.Timestamp(time.Hour),
	}
}

// DefaultEntranceFee is 0.01 ether.
func DefaultEntranceFee() *big.Int {
	return new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(100))
}

// Validate reports every problem of the rules at once.
func (r Rules) Validate() error {
	var result *multierror.Error
	if r.EntranceFee == nil || r.EntranceFee.Sign() <= 0 {
		result = multierror.Append(result, fmt.Errorf("entrance fee must be positive, got %v", r.EntranceFee))
	}
	if r.Interval == 0 {
		result = multierror.Append(result, fmt.Errorf("interval must be positive"))
	}
	if r.NumWords != NumWords {
		result = multierror.Append(result, fmt.Errorf("num words must be %d, got %d", NumWords, r.NumWords))
	}
	if r.CallbackGasLimit == 0 || r.CallbackGasLimit > MaxCallbackGasLimit {
		result = multierror.Append(result, fmt.Errorf("callback gas limit must be in (0, %d], got %d", MaxCallbackGasLimit, r.CallbackGasLimit))
	}
	if r.RequestTimeout == 0 {
		result = multierror.Append(result, fmt.Errorf("request timeout must be positive"))
	}
	return result.ErrorOrNil()
}

// Copy returns a deep copy of the rules.
func (r Rules) Copy() Rules {
	cp := r
	if r.EntranceFee != nil {
		cp.EntranceFee = new(big.Int).Set(r.EntranceFee)
	}
	return cp
}

// String returns the rules as JSON.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}

func (r Rules) randomWordsRequest() inter.RandomWordsRequest {
	return inter.RandomWordsRequest{
		KeyHash:          r.GasLane,
		SubID:            r.SubscriptionID,
		MinConfirmations: r.RequestConfirmations,
		CallbackGasLimit: r.CallbackGasLimit,
		NumWords:         r.NumWords,
	}
}
