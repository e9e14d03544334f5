package raffle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// VRFCoordinator is the randomness oracle the raffle requests words from.
// RequestRandomWords runs as the coordinator's code: env.Caller() is the
// raffle. The coordinator answers later by calling RawFulfillRandomWords.
type VRFCoordinator interface {
	Address() common.Address
	RequestRandomWords(env *evmcore.Env, req inter.RandomWordsRequest) (*big.Int, error)
}

// state is everything a raffle message may change besides balances. It is
// copied by value on every snapshot: players is append-only and a reset
// replaces the slice, so copies never observe each other's appends.
type state struct {
	players        []common.Address
	raffleState    inter.RaffleState
	lastTimestamp  inter.Timestamp
	recentWinner   common.Address
	pendingRequest *big.Int
	requestedAt    inter.Timestamp
	round          uint64
}

// Raffle is a deployed raffle contract. Its methods taking an *evmcore.Env are
// contract code and must run inside the Machine (Execute, View or a nested
// call). The remaining getters read the committed state; callers outside the
// Machine should wrap them in Machine.View when other goroutines execute
// messages.
type Raffle struct {
	address     common.Address
	rules       Rules
	coordinator VRFCoordinator

	state
	revisions []state
}

// Deploy validates rules and deploys a raffle from deployer. The raffle opens
// immediately, with its clock set to the deployment block time.
func Deploy(m *evmcore.Machine, deployer common.Address, rules Rules, coordinator VRFCoordinator) (*Raffle, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid raffle rules: %w", err)
	}
	r := &Raffle{
		rules:       rules.Copy(),
		coordinator: coordinator,
	}
	_, _, err := m.DeployContract(deployer, r, func(env *evmcore.Env) error {
		r.address = env.Self()
		r.raffleState = inter.Open
		r.lastTimestamp = env.Block.Time
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// EnterRaffle admits the caller as a player. The attached value joins the pool.
func (r *Raffle) EnterRaffle(env *evmcore.Env) error {
	if err := r.checkSelf(env); err != nil {
		return err
	}
	if env.Value().Cmp(r.rules.EntranceFee) < 0 {
		return fmt.Errorf("%w: paid %s, fee %s", ErrNotEnoughETH, env.Value(), r.rules.EntranceFee)
	}
	if r.raffleState != inter.Open {
		return ErrNotOpen
	}
	r.players = append(r.players, env.Caller())
	env.Emit(raffleabi.RaffleEnterLog(env.Caller()))
	return nil
}

func (r *Raffle) checkSelf(env *evmcore.Env) error {
	if env.Self() != r.address {
		return fmt.Errorf("raffle %s called at %s", r.address.Hex(), env.Self().Hex())
	}
	return nil
}

// Address returns the contract address.
func (r *Raffle) Address() common.Address {
	return r.address
}

// Coordinator returns the address of the VRF coordinator.
func (r *Raffle) Coordinator() common.Address {
	return r.coordinator.Address()
}

// Rules returns a copy of the deployment rules.
func (r *Raffle) Rules() Rules {
	return r.rules.Copy()
}

// EntranceFee returns the minimum entry payment.
func (r *Raffle) EntranceFee() *big.Int {
	return new(big.Int).Set(r.rules.EntranceFee)
}

// Interval returns the minimum time between resolutions.
func (r *Raffle) Interval() inter.Timestamp {
	return r.rules.Interval
}

// NumWords returns the number of random words requested per round.
func (r *Raffle) NumWords() uint32 {
	return r.rules.NumWords
}

// RequestConfirmations returns the confirmations requested from the coordinator.
func (r *Raffle) RequestConfirmations() uint16 {
	return r.rules.RequestConfirmations
}

// Player returns the i-th player of the current round.
func (r *Raffle) Player(i int) (common.Address, error) {
	if i < 0 || i >= len(r.players) {
		return common.Address{}, fmt.Errorf("%w: %d of %d", ErrPlayerIndex, i, len(r.players))
	}
	return r.players[i], nil
}

// NumberOfPlayers returns the number of players of the current round.
func (r *Raffle) NumberOfPlayers() int {
	return len(r.players)
}

// RaffleState returns the lifecycle state.
func (r *Raffle) RaffleState() inter.RaffleState {
	return r.raffleState
}

// RecentWinner returns the winner of the last resolved round, or the zero
// address before the first resolution.
func (r *Raffle) RecentWinner() common.Address {
	return r.recentWinner
}

// LatestTimestamp returns the time of the last resolution, or of the
// deployment before the first one.
func (r *Raffle) LatestTimestamp() inter.Timestamp {
	return r.lastTimestamp
}

// PendingRequest returns the outstanding request id, nil while open.
func (r *Raffle) PendingRequest() *big.Int {
	if r.pendingRequest == nil {
		return nil
	}
	return new(big.Int).Set(r.pendingRequest)
}

// RequestedAt returns the time the outstanding request was issued.
func (r *Raffle) RequestedAt() inter.Timestamp {
	return r.requestedAt
}

// Round returns the number of resolved rounds.
func (r *Raffle) Round() uint64 {
	return r.round
}

// Snapshot implements evmcore.Journaled.
func (r *Raffle) Snapshot() int {
	r.revisions = append(r.revisions, r.state)
	return len(r.revisions) - 1
}

// RevertToSnapshot implements evmcore.Journaled.
func (r *Raffle) RevertToSnapshot(id int) {
	r.state = r.revisions[id]
	r.revisions = r.revisions[:id]
}

// Finalise implements evmcore.Journaled.
func (r *Raffle) Finalise() {
	r.revisions = r.revisions[:0]
}
