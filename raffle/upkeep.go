package raffle

import (
	"fmt"
	"math/big"
	"time"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// CheckUpkeep reports whether a new round should be drawn. Upkeep is needed
// when all of the following hold:
//  1. the raffle is open
//  2. at least Interval has passed since the last resolution
//  3. the raffle has at least one player
//  4. the raffle holds funds
//
// It changes nothing and is meant to be run through Machine.View.
func (r *Raffle) CheckUpkeep(env *evmcore.Env) (bool, UpkeepStatus) {
	balance := env.Balance(r.address)
	elapsed := env.Block.Time.Since(r.lastTimestamp)

	status := UpkeepStatus{
		IsOpen:     r.raffleState == inter.Open,
		TimePassed: elapsed >= time.Duration(r.rules.Interval),
		HasPlayers: len(r.players) > 0,
		HasBalance: balance.Sign() > 0,
		Balance:    balance,
		Players:    len(r.players),
		State:      r.raffleState,
		Elapsed:    inter.Timestamp(elapsed),
	}
	return status.Needed(), status
}

// PerformUpkeep closes the round and requests one random word from the
// coordinator. Anyone may call it; the predicate of CheckUpkeep is evaluated
// again and an *UpkeepNotNeededError is returned if it does not hold.
func (r *Raffle) PerformUpkeep(env *evmcore.Env) error {
	if err := r.checkSelf(env); err != nil {
		return err
	}
	if needed, status := r.CheckUpkeep(env); !needed {
		return &UpkeepNotNeededError{status}
	}
	r.raffleState = inter.Calculating
	return r.requestRandomWords(env)
}

// ReissueRequest replaces an outstanding request that has not been answered
// within RequestTimeout with a fresh one. A late callback for the replaced
// request is then rejected as unknown. This is the way out of a round stuck in
// CALCULATING, whether the callback never came or the payout failed.
func (r *Raffle) ReissueRequest(env *evmcore.Env) error {
	if err := r.checkSelf(env); err != nil {
		return err
	}
	if r.raffleState != inter.Calculating {
		return fmt.Errorf("%w: raffle is %s", ErrReissueNotAllowed, r.raffleState)
	}
	if waited := env.Block.Time.Since(r.requestedAt); waited < time.Duration(r.rules.RequestTimeout) {
		return fmt.Errorf("%w: request %s pending for %s of %s", ErrReissueNotAllowed,
			r.pendingRequest, waited, time.Duration(r.rules.RequestTimeout))
	}
	return r.requestRandomWords(env)
}

// ReissueDue reports whether ReissueRequest would be allowed at the given time.
func (r *Raffle) ReissueDue(now inter.Timestamp) bool {
	return r.raffleState == inter.Calculating &&
		now.Since(r.requestedAt) >= time.Duration(r.rules.RequestTimeout)
}

func (r *Raffle) requestRandomWords(env *evmcore.Env) error {
	var requestID *big.Int
	err := env.Call(r.coordinator.Address(), nil, func(env *evmcore.Env) error {
		var err error
		requestID, err = r.coordinator.RequestRandomWords(env, r.rules.randomWordsRequest())
		return err
	})
	if err != nil {
		return fmt.Errorf("request random words: %w", err)
	}
	r.pendingRequest = requestID
	r.requestedAt = env.Block.Time
	env.Emit(raffleabi.RequestedRaffleWinnerLog(requestID))
	return nil
}
