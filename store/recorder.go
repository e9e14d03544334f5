package store

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
	"github.com/rony4d/go-opera-raffle/vrf"
)

// Recorder writes a WinnerRecord for every WinnerPicked log committed by the
// Machine.
type Recorder struct {
	m     *evmcore.Machine
	store *Store
	log   logrus.FieldLogger

	// requested holds the latest RequestedRaffleWinner id per raffle.
	requested map[common.Address]*big.Int

	sub  event.Subscription
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewRecorder returns a Recorder writing to s.
func NewRecorder(m *evmcore.Machine, s *Store, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{
		m:         m,
		store:     s,
		log:       log,
		requested: make(map[common.Address]*big.Int),
		quit:      make(chan struct{}),
	}
}

// Start subscribes to the Machine. Every receipt committed after Start returns
// is recorded.
func (r *Recorder) Start() {
	receipts := make(chan *evmcore.Receipt, 16)
	r.sub = r.m.SubscribeReceipts(receipts)

	r.wg.Add(1)
	go r.loop(receipts)
}

// Stop unsubscribes and waits for the loop to exit. Receipts still queued
// are dropped. Stop without Start is a no-op.
func (r *Recorder) Stop() {
	if r.sub == nil {
		return
	}
	r.sub.Unsubscribe()
	close(r.quit)
	r.wg.Wait()
}

func (r *Recorder) loop(receipts <-chan *evmcore.Receipt) {
	defer r.wg.Done()
	for {
		select {
		case receipt := <-receipts:
			if err := r.Record(receipt); err != nil {
				r.log.WithError(err).Error("Failed to record winner")
			}
		case <-r.quit:
			return
		}
	}
}

// Record stores the winners resolved by receipt. It is not safe for
// concurrent use and must not be called on a started Recorder.
func (r *Recorder) Record(receipt *evmcore.Receipt) error {
	if receipt.Failed() {
		return nil
	}

	// the coordinator logs the answered request after the consumer's logs
	var fulfilled *big.Int
	for _, l := range receipt.Logs {
		if ev, err := vrf.ParseLog(l); err == nil {
			if f, ok := ev.(*vrf.RandomWordsFulfilled); ok && f.Success {
				fulfilled = f.RequestID
			}
		}
	}

	for _, l := range receipt.Logs {
		ev, err := raffleabi.ParseLog(l)
		if err != nil {
			continue
		}
		switch ev := ev.(type) {
		case *raffleabi.RequestedRaffleWinner:
			r.requested[ev.Raffle] = ev.RequestID
		case *raffleabi.WinnerPicked:
			requestID := fulfilled
			if requestID == nil {
				requestID = r.requested[ev.Raffle]
			}
			last, err := r.store.LastRound(ev.Raffle)
			if err != nil {
				return err
			}
			rec := &inter.WinnerRecord{
				Round:     last + 1,
				Raffle:    ev.Raffle,
				Winner:    ev.Winner,
				RequestID: requestID,
				Block:     receipt.Block.Number,
				TxHash:    receipt.TxHash,
				Time:      receipt.Block.Time,
			}
			if err := r.store.Put(rec); err != nil {
				return err
			}
			delete(r.requested, ev.Raffle)
			r.log.WithFields(logrus.Fields{
				"round":  rec.Round,
				"winner": rec.Winner.Hex(),
			}).Info("Recorded winner")
		}
	}
	return nil
}
