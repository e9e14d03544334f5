// Package raffleabi holds the ABI of the raffle contract: the method selectors
// used to dispatch raw calls and the encoding of the events the raffle emits.
//
// Events:
//   - RaffleEnter(address indexed player): an entry was accepted
//   - RequestedRaffleWinner(uint256 indexed requestId): a randomness request was issued
//   - WinnerPicked(address indexed player): a round was resolved and paid out
package raffleabi

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractABI is the JSON ABI of the raffle contract.
const ContractABI = `[
{"type":"function","name":"enterRaffle","stateMutability":"payable","inputs":[],"outputs":[]},
{"type":"function","name":"checkUpkeep","stateMutability":"view","inputs":[{"name":"checkData","type":"bytes"}],"outputs":[{"name":"upkeepNeeded","type":"bool"},{"name":"performData","type":"bytes"}]},
{"type":"function","name":"performUpkeep","stateMutability":"nonpayable","inputs":[{"name":"performData","type":"bytes"}],"outputs":[]},
{"type":"function","name":"reissueRequest","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"rawFulfillRandomWords","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint256"},{"name":"randomWords","type":"uint256[]"}],"outputs":[]},
{"type":"function","name":"getEntranceFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getInterval","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getPlayer","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getRaffleState","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"getRecentWinner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getLatestTimeStamp","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getNumberOfPlayers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getNumWords","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getRequestConfirmations","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"RaffleEnter","anonymous":false,"inputs":[{"name":"player","type":"address","indexed":true}]},
{"type":"event","name":"RequestedRaffleWinner","anonymous":false,"inputs":[{"name":"requestId","type":"uint256","indexed":true}]},
{"type":"event","name":"WinnerPicked","anonymous":false,"inputs":[{"name":"player","type":"address","indexed":true}]}
]`

var (
	// ABI is the parsed ContractABI.
	ABI abi.ABI

	raffleEnterID           common.Hash
	requestedRaffleWinnerID common.Hash
	winnerPickedID          common.Hash
)

// ErrUnknownEvent is returned by ParseLog for logs that are not raffle events.
var ErrUnknownEvent = errors.New("unknown raffle event")

func init() {
	var err error
	ABI, err = abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}

	for name, constID := range map[string]*common.Hash{
		"RaffleEnter":           &raffleEnterID,
		"RequestedRaffleWinner": &requestedRaffleWinnerID,
		"WinnerPicked":          &winnerPickedID,
	} {
		event, exist := ABI.Events[name]
		if !exist {
			panic("unknown raffle event")
		}
		*constID = event.ID
	}
}

// RaffleEnter is the decoded RaffleEnter event.
type RaffleEnter struct {
	Raffle common.Address
	Player common.Address
}

// RequestedRaffleWinner is the decoded RequestedRaffleWinner event.
type RequestedRaffleWinner struct {
	Raffle    common.Address
	RequestID *big.Int
}

// WinnerPicked is the decoded WinnerPicked event.
type WinnerPicked struct {
	Raffle common.Address
	Winner common.Address
}

// RaffleEnterLog builds the log of an accepted entry.
func RaffleEnterLog(player common.Address) *types.Log {
	return &types.Log{
		Topics: []common.Hash{raffleEnterID, addressTopic(player)},
	}
}

// RequestedRaffleWinnerLog builds the log of an issued randomness request.
func RequestedRaffleWinnerLog(requestID *big.Int) *types.Log {
	return &types.Log{
		Topics: []common.Hash{requestedRaffleWinnerID, common.BigToHash(requestID)},
	}
}

// WinnerPickedLog builds the log of a resolved round.
func WinnerPickedLog(winner common.Address) *types.Log {
	return &types.Log{
		Topics: []common.Hash{winnerPickedID, addressTopic(winner)},
	}
}

// ParseLog decodes a raffle log into *RaffleEnter, *RequestedRaffleWinner or
// *WinnerPicked. Logs of other contracts yield ErrUnknownEvent.
func ParseLog(l *types.Log) (interface{}, error) {
	if len(l.Topics) != 2 {
		return nil, ErrUnknownEvent
	}
	switch l.Topics[0] {
	case raffleEnterID:
		return &RaffleEnter{
			Raffle: l.Address,
			Player: common.BytesToAddress(l.Topics[1].Bytes()),
		}, nil
	case requestedRaffleWinnerID:
		return &RequestedRaffleWinner{
			Raffle:    l.Address,
			RequestID: l.Topics[1].Big(),
		}, nil
	case winnerPickedID:
		return &WinnerPicked{
			Raffle: l.Address,
			Winner: common.BytesToAddress(l.Topics[1].Bytes()),
		}, nil
	}
	return nil, ErrUnknownEvent
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
