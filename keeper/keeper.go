// Package keeper is the automation trigger of a raffle. On every tick it
// evaluates checkUpkeep off-chain and submits performUpkeep when a round is
// due, or a reissue when the randomness request has gone unanswered for too
// long.
package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/raffle"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// Action is what the keeper did on a tick.
type Action int

const (
	// Idle means neither upkeep nor reissue was due.
	Idle Action = iota
	// Performed means performUpkeep was submitted.
	Performed
	// Reissued means reissueRequest was submitted.
	Reissued
)

func (a Action) String() string {
	switch a {
	case Idle:
		return "idle"
	case Performed:
		return "perform"
	case Reissued:
		return "reissue"
	}
	return "unknown"
}

// Config wires a Keeper to its raffle.
type Config struct {
	Machine *evmcore.Machine
	Raffle  *raffle.Raffle
	// Sender signs the upkeep messages.
	Sender common.Address
	// Ticker paces the checks. Use ticker.New in production and
	// ticker.NewForce in tests.
	Ticker ticker.Ticker
	Log    logrus.FieldLogger
}

// Keeper polls a raffle and triggers its state transitions.
type Keeper struct {
	cfg Config
	log logrus.FieldLogger
}

// New returns a Keeper. The ticker is started by Run.
func New(cfg Config) *Keeper {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Keeper{
		cfg: cfg,
		log: cfg.Log.WithField("raffle", cfg.Raffle.Address().Hex()),
	}
}

// Run checks the raffle on every tick until ctx is done. Failed submissions
// are logged and retried on the next tick.
func (k *Keeper) Run(ctx context.Context) error {
	k.cfg.Ticker.Resume()
	defer k.cfg.Ticker.Stop()

	k.log.Info("Keeper started")
	for {
		select {
		case <-k.cfg.Ticker.Ticks():
			if _, err := k.Tick(); err != nil {
				k.log.WithError(err).Warn("Upkeep failed")
			}
		case <-ctx.Done():
			k.log.Info("Keeper stopped")
			return nil
		}
	}
}

// Tick runs a single check and submits whatever is due.
func (k *Keeper) Tick() (Action, error) {
	action, status, err := k.due()
	if err != nil {
		return Idle, err
	}

	var fn func(env *evmcore.Env) error
	switch action {
	case Performed:
		fn = k.cfg.Raffle.PerformUpkeep
	case Reissued:
		fn = k.cfg.Raffle.ReissueRequest
	default:
		k.log.WithFields(logrus.Fields{
			"state":   status.State,
			"players": status.Players,
			"elapsed": time.Duration(status.Elapsed),
		}).Trace("Upkeep not needed")
		return Idle, nil
	}

	receipt, err := k.cfg.Machine.Execute(evmcore.Message{From: k.cfg.Sender, To: k.cfg.Raffle.Address()}, fn)
	if err != nil {
		var notNeeded *raffle.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			// lost a race with another caller
			return Idle, nil
		}
		return action, err
	}
	fields := logrus.Fields{
		"action": action,
		"block":  receipt.Block.Number,
		"tx":     receipt.TxHash.Hex(),
	}
	for _, l := range receipt.Logs {
		if ev, err := raffleabi.ParseLog(l); err == nil {
			if req, ok := ev.(*raffleabi.RequestedRaffleWinner); ok {
				fields["request"] = req.RequestID
			}
		}
	}
	k.log.WithFields(fields).Info("Upkeep submitted")
	return action, nil
}

// due evaluates both triggers against the block a message sent now would see.
func (k *Keeper) due() (Action, raffle.UpkeepStatus, error) {
	var (
		action = Idle
		status raffle.UpkeepStatus
	)
	err := k.cfg.Machine.View(func(env *evmcore.Env) error {
		var needed bool
		needed, status = k.cfg.Raffle.CheckUpkeep(env)
		switch {
		case needed:
			action = Performed
		case k.cfg.Raffle.ReissueDue(env.Block.Time):
			action = Reissued
		}
		return nil
	})
	return action, status, err
}
