package raffle

import (
	"fmt"
	"math/big"
	"time"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// Run executes ABI-encoded call data against the raffle and returns the
// ABI-encoded result. It serves callers that only speak the contract ABI.
func (r *Raffle) Run(env *evmcore.Env, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, ErrUnknownMethod
	}
	method, err := raffleabi.ABI.MethodById(input[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %x", ErrUnknownMethod, input[:4])
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method.Name, err)
	}

	switch method.Name {
	case "enterRaffle":
		return nil, r.EnterRaffle(env)
	case "checkUpkeep":
		needed, _ := r.CheckUpkeep(env)
		return method.Outputs.Pack(needed, []byte{})
	case "performUpkeep":
		return nil, r.PerformUpkeep(env)
	case "reissueRequest":
		return nil, r.ReissueRequest(env)
	case "rawFulfillRandomWords":
		return nil, r.RawFulfillRandomWords(env, args[0].(*big.Int), args[1].([]*big.Int))
	case "getEntranceFee":
		return method.Outputs.Pack(r.EntranceFee())
	case "getInterval":
		return method.Outputs.Pack(big.NewInt(int64(time.Duration(r.rules.Interval) / time.Second)))
	case "getPlayer":
		i := args[0].(*big.Int)
		if !i.IsInt64() {
			return nil, fmt.Errorf("%w: %s", ErrPlayerIndex, i)
		}
		player, err := r.Player(int(i.Int64()))
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(player)
	case "getRaffleState":
		return method.Outputs.Pack(uint8(r.raffleState))
	case "getRecentWinner":
		return method.Outputs.Pack(r.recentWinner)
	case "getLatestTimeStamp":
		return method.Outputs.Pack(big.NewInt(r.lastTimestamp.Unix()))
	case "getNumberOfPlayers":
		return method.Outputs.Pack(big.NewInt(int64(len(r.players))))
	case "getNumWords":
		return method.Outputs.Pack(new(big.Int).SetUint64(uint64(r.rules.NumWords)))
	case "getRequestConfirmations":
		return method.Outputs.Pack(new(big.Int).SetUint64(uint64(r.rules.RequestConfirmations)))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
}
