package vrf

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CoordinatorABI is the JSON ABI of the coordinator events.
const CoordinatorABI = `[
{"type":"event","name":"RandomWordsRequested","anonymous":false,"inputs":[
 {"name":"keyHash","type":"bytes32","indexed":true},
 {"name":"requestId","type":"uint256","indexed":false},
 {"name":"preSeed","type":"uint256","indexed":false},
 {"name":"subId","type":"uint64","indexed":true},
 {"name":"minimumRequestConfirmations","type":"uint16","indexed":false},
 {"name":"callbackGasLimit","type":"uint32","indexed":false},
 {"name":"numWords","type":"uint32","indexed":false},
 {"name":"sender","type":"address","indexed":true}]},
{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
 {"name":"requestId","type":"uint256","indexed":true},
 {"name":"outputSeed","type":"uint256","indexed":false},
 {"name":"payment","type":"uint96","indexed":false},
 {"name":"success","type":"bool","indexed":false}]},
{"type":"event","name":"SubscriptionCreated","anonymous":false,"inputs":[
 {"name":"subId","type":"uint64","indexed":true},
 {"name":"owner","type":"address","indexed":false}]},
{"type":"event","name":"SubscriptionFunded","anonymous":false,"inputs":[
 {"name":"subId","type":"uint64","indexed":true},
 {"name":"oldBalance","type":"uint256","indexed":false},
 {"name":"newBalance","type":"uint256","indexed":false}]},
{"type":"event","name":"ConsumerAdded","anonymous":false,"inputs":[
 {"name":"subId","type":"uint64","indexed":true},
 {"name":"consumer","type":"address","indexed":false}]},
{"type":"event","name":"ConsumerRemoved","anonymous":false,"inputs":[
 {"name":"subId","type":"uint64","indexed":true},
 {"name":"consumer","type":"address","indexed":false}]}
]`

// ErrUnknownEvent is returned by ParseLog for logs that are not coordinator events.
var ErrUnknownEvent = errors.New("unknown coordinator event")

var coordinatorABI abi.ABI

func init() {
	var err error
	coordinatorABI, err = abi.JSON(strings.NewReader(CoordinatorABI))
	if err != nil {
		panic(err)
	}
}

// RandomWordsRequested is the decoded RandomWordsRequested event.
type RandomWordsRequested struct {
	Coordinator      common.Address
	KeyHash          common.Hash
	RequestID        *big.Int
	PreSeed          *big.Int
	SubID            uint64
	MinConfirmations uint16
	CallbackGasLimit uint32
	NumWords         uint32
	Sender           common.Address
}

// RandomWordsFulfilled is the decoded RandomWordsFulfilled event.
type RandomWordsFulfilled struct {
	Coordinator common.Address
	RequestID   *big.Int
	OutputSeed  *big.Int
	Payment     *big.Int
	Success     bool
}

// SubscriptionCreated is the decoded SubscriptionCreated event.
type SubscriptionCreated struct {
	SubID uint64
	Owner common.Address
}

// SubscriptionFunded is the decoded SubscriptionFunded event.
type SubscriptionFunded struct {
	SubID      uint64
	OldBalance *big.Int
	NewBalance *big.Int
}

// ConsumerAdded is the decoded ConsumerAdded event.
type ConsumerAdded struct {
	SubID    uint64
	Consumer common.Address
}

// ConsumerRemoved is the decoded ConsumerRemoved event.
type ConsumerRemoved struct {
	SubID    uint64
	Consumer common.Address
}

func eventLog(name string, topics []common.Hash, data ...interface{}) *types.Log {
	event := coordinatorABI.Events[name]
	packed, err := event.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		// arguments are typed by the callers below, a mismatch is a programming error
		panic(err)
	}
	return &types.Log{
		Topics: append([]common.Hash{event.ID}, topics...),
		Data:   packed,
	}
}

func uint64Topic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

// ParseLog decodes a coordinator log into one of the event types of this
// package. Logs of other contracts yield ErrUnknownEvent.
func ParseLog(l *types.Log) (interface{}, error) {
	if len(l.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	event, err := coordinatorABI.EventByID(l.Topics[0])
	if err != nil {
		return nil, ErrUnknownEvent
	}
	if len(l.Topics) != countIndexed(event.Inputs)+1 {
		return nil, ErrUnknownEvent
	}
	values, err := event.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, err
	}

	switch event.Name {
	case "RandomWordsRequested":
		return &RandomWordsRequested{
			Coordinator:      l.Address,
			KeyHash:          l.Topics[1],
			RequestID:        values[0].(*big.Int),
			PreSeed:          values[1].(*big.Int),
			SubID:            l.Topics[2].Big().Uint64(),
			MinConfirmations: values[2].(uint16),
			CallbackGasLimit: values[3].(uint32),
			NumWords:         values[4].(uint32),
			Sender:           common.BytesToAddress(l.Topics[3].Bytes()),
		}, nil
	case "RandomWordsFulfilled":
		return &RandomWordsFulfilled{
			Coordinator: l.Address,
			RequestID:   l.Topics[1].Big(),
			OutputSeed:  values[0].(*big.Int),
			Payment:     values[1].(*big.Int),
			Success:     values[2].(bool),
		}, nil
	case "SubscriptionCreated":
		return &SubscriptionCreated{
			SubID: l.Topics[1].Big().Uint64(),
			Owner: values[0].(common.Address),
		}, nil
	case "SubscriptionFunded":
		return &SubscriptionFunded{
			SubID:      l.Topics[1].Big().Uint64(),
			OldBalance: values[0].(*big.Int),
			NewBalance: values[1].(*big.Int),
		}, nil
	case "ConsumerAdded":
		return &ConsumerAdded{
			SubID:    l.Topics[1].Big().Uint64(),
			Consumer: values[0].(common.Address),
		}, nil
	case "ConsumerRemoved":
		return &ConsumerRemoved{
			SubID:    l.Topics[1].Big().Uint64(),
			Consumer: values[0].(common.Address),
		}, nil
	}
	return nil, ErrUnknownEvent
}

func countIndexed(args abi.Arguments) int {
	n := 0
	for _, arg := range args {
		if arg.Indexed {
			n++
		}
	}
	return n
}
