package raffle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rony4d/go-opera-raffle/inter"
)

var (
	// ErrNotEnoughETH is returned when an entry pays less than the entrance fee.
	ErrNotEnoughETH = errors.New("raffle: not enough ETH entered")
	// ErrNotOpen is returned when an entry is attempted while calculating.
	ErrNotOpen = errors.New("raffle: not open")
	// ErrUpkeepNotNeeded is wrapped by UpkeepNotNeededError.
	ErrUpkeepNotNeeded = errors.New("raffle: upkeep not needed")
	// ErrTransferFailed is returned when the payout to the winner fails.
	ErrTransferFailed = errors.New("raffle: transfer failed")
	// ErrUnknownRequest is returned for a callback that does not carry the
	// outstanding request id.
	ErrUnknownRequest = errors.New("raffle: unknown request")
	// ErrOnlyCoordinatorCanFulfill is returned when anyone but the coordinator
	// delivers random words.
	ErrOnlyCoordinatorCanFulfill = errors.New("raffle: only coordinator can fulfill")
	// ErrNoRandomWords is returned for a callback without random words.
	ErrNoRandomWords = errors.New("raffle: no random words")
	// ErrPlayerIndex is returned by Player for an index past the last player.
	ErrPlayerIndex = errors.New("raffle: player index out of range")
	// ErrReissueNotAllowed is returned by ReissueRequest unless the outstanding
	// request has timed out.
	ErrReissueNotAllowed = errors.New("raffle: reissue not allowed")
	// ErrUnknownMethod is returned by Run for an unknown method selector.
	ErrUnknownMethod = errors.New("raffle: unknown method")
)

// UpkeepStatus holds the evaluated components of the upkeep predicate.
type UpkeepStatus struct {
	IsOpen     bool
	TimePassed bool
	HasPlayers bool
	HasBalance bool

	Balance *big.Int
	Players int
	State   inter.RaffleState
	Elapsed inter.Timestamp
}

// Needed reports whether all four components hold.
func (s UpkeepStatus) Needed() bool {
	return s.IsOpen && s.TimePassed && s.HasPlayers && s.HasBalance
}

// UpkeepNotNeededError is returned by PerformUpkeep when the predicate does not
// hold. It carries the evaluated components.
type UpkeepNotNeededError struct {
	UpkeepStatus
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%v: balance=%s players=%d state=%s open=%t timePassed=%t",
		ErrUpkeepNotNeeded, e.Balance, e.Players, e.State, e.IsOpen, e.TimePassed)
}

func (e *UpkeepNotNeededError) Unwrap() error {
	return ErrUpkeepNotNeeded
}
