package vrf

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/evmcore"
)

// FulfillerConfig configures an oracle node.
type FulfillerConfig struct {
	Machine     *evmcore.Machine
	Coordinator *Coordinator
	// Node is the account that sends fulfillment messages.
	Node common.Address
	// Delay is how long the node waits before answering a request.
	Delay time.Duration
	Log   logrus.FieldLogger
}

// Fulfiller is an oracle node. It watches the coordinator's committed
// RandomWordsRequested logs and answers each request after Delay with a
// separate message, on its own schedule.
type Fulfiller struct {
	cfg FulfillerConfig

	mu        sync.RWMutex
	consumers map[common.Address]Consumer

	wg sync.WaitGroup
}

// NewFulfiller creates an oracle node. Consumers must be added before their
// requests are observed, requests of unknown consumers are skipped.
func NewFulfiller(cfg FulfillerConfig) *Fulfiller {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Fulfiller{
		cfg:       cfg,
		consumers: make(map[common.Address]Consumer),
	}
}

// AddConsumer makes the node answer requests sent by c.
func (f *Fulfiller) AddConsumer(c Consumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumers[c.Address()] = c
}

func (f *Fulfiller) consumer(addr common.Address) (Consumer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.consumers[addr]
	return c, ok
}

// Run serves requests until ctx is done. Scheduled answers that have not been
// sent yet are dropped on return.
func (f *Fulfiller) Run(ctx context.Context) error {
	logsCh := make(chan []*types.Log, 16)
	defer f.wg.Wait()
	sub := f.cfg.Machine.SubscribeLogs(logsCh)
	defer sub.Unsubscribe()

	for {
		select {
		case logs := <-logsCh:
			for _, l := range logs {
				f.handleLog(ctx, l)
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Fulfiller) handleLog(ctx context.Context, l *types.Log) {
	if l.Address != f.cfg.Coordinator.Address() {
		return
	}
	ev, err := ParseLog(l)
	if err != nil {
		return
	}
	req, ok := ev.(*RandomWordsRequested)
	if !ok {
		return
	}
	consumer, ok := f.consumer(req.Sender)
	if !ok {
		f.cfg.Log.WithField("sender", req.Sender.Hex()).Warn("Skipping request of unknown consumer")
		return
	}

	log := f.cfg.Log.WithFields(logrus.Fields{
		"request":  req.RequestID,
		"consumer": req.Sender.Hex(),
	})
	log.Debug("Scheduled fulfillment")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		select {
		case <-time.After(f.cfg.Delay):
		case <-ctx.Done():
			return
		}

		var res *Fulfillment
		_, err := f.cfg.Machine.Execute(evmcore.Message{From: f.cfg.Node, To: f.cfg.Coordinator.Address()}, func(env *evmcore.Env) error {
			var err error
			res, err = f.cfg.Coordinator.FulfillRandomWords(env, req.RequestID, consumer)
			return err
		})
		switch {
		case errors.Is(err, ErrNonexistentRequest):
			log.WithError(err).Debug("Request no longer pending")
		case err != nil:
			log.WithError(err).Error("Failed to fulfill random words")
		case !res.Success:
			log.WithError(res.CallbackErr).Warn("Consumer rejected random words")
		default:
			log.WithField("payment", res.Payment).Info("Fulfilled random words")
		}
	}()
}
