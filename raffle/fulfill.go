package raffle

import (
	"fmt"
	"math/big"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// RawFulfillRandomWords is the coordinator's callback. It accepts only the
// outstanding request of this raffle and resolves the round with words[0].
func (r *Raffle) RawFulfillRandomWords(env *evmcore.Env, requestID *big.Int, words []*big.Int) error {
	if err := r.checkSelf(env); err != nil {
		return err
	}
	if caller := env.Caller(); caller != r.coordinator.Address() {
		return fmt.Errorf("%w: have %s, want %s", ErrOnlyCoordinatorCanFulfill, caller.Hex(), r.coordinator.Address().Hex())
	}
	if r.raffleState != inter.Calculating || r.pendingRequest == nil || requestID == nil || r.pendingRequest.Cmp(requestID) != 0 {
		return fmt.Errorf("%w: %v", ErrUnknownRequest, requestID)
	}
	if len(words) == 0 {
		return ErrNoRandomWords
	}
	return r.fulfillRandomWords(env, words[0])
}

// fulfillRandomWords settles the round before paying out: the winner is chosen
// from the player count read before any change, every field is reset, and only
// then is the pool transferred. A receiver of the payout therefore sees an
// open raffle without players.
func (r *Raffle) fulfillRandomWords(env *evmcore.Env, word *big.Int) error {
	count := big.NewInt(int64(len(r.players)))
	index := new(big.Int).Mod(word, count).Uint64()
	winner := r.players[index]
	prize := env.Balance(r.address)

	r.players = nil
	r.raffleState = inter.Open
	r.lastTimestamp = env.Block.Time
	r.recentWinner = winner
	r.pendingRequest = nil
	r.round++

	if err := env.Transfer(winner, prize); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	env.Emit(raffleabi.WinnerPickedLog(winner))
	return nil
}
