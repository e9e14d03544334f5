// Package metrics exports raffle activity to Prometheus.
package metrics

import (
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
	"github.com/rony4d/go-opera-raffle/vrf"
)

const (
	namespaceRaffle = "raffle"
	subsystemVRF    = "vrf"

	labelSuccess = "success"
)

// RaffleCollector counts the notifications of one raffle and its coordinator.
type RaffleCollector struct {
	raffle common.Address

	entries       prometheus.Counter
	requests      prometheus.Counter
	winners       prometheus.Counter
	players       prometheus.Gauge
	calculating   prometheus.Gauge
	fulfillments  *prometheus.CounterVec
	failedMessage prometheus.Counter

	sub  event.Subscription
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewRaffleCollector(registerer prometheus.Registerer, raffle common.Address) *RaffleCollector {
	labels := prometheus.Labels{"contract": raffle.Hex()}
	c := &RaffleCollector{
		raffle: raffle,
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespaceRaffle,
			Name:        "entries_total",
			Help:        "number of accepted entries",
			ConstLabels: labels,
		}),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespaceRaffle,
			Name:        "randomness_requests_total",
			Help:        "number of randomness requests issued, reissues included",
			ConstLabels: labels,
		}),
		winners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespaceRaffle,
			Name:        "winners_total",
			Help:        "number of resolved rounds",
			ConstLabels: labels,
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespaceRaffle,
			Name:        "players",
			Help:        "number of entries in the current round",
			ConstLabels: labels,
		}),
		calculating: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespaceRaffle,
			Name:        "calculating",
			Help:        "reported as 1 while the raffle waits for randomness",
			ConstLabels: labels,
		}),
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceRaffle,
			Subsystem: subsystemVRF,
			Name:      "fulfillments_total",
			Help:      "number of answered randomness requests by consumer outcome",
		}, []string{labelSuccess}),
		failedMessage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceRaffle,
			Name:      "failed_messages_total",
			Help:      "number of reverted messages",
		}),
		quit: make(chan struct{}),
	}
	registerer.MustRegister(c.entries, c.requests, c.winners, c.players, c.calculating, c.fulfillments, c.failedMessage)
	return c
}

// Observe accounts for one executed message.
func (c *RaffleCollector) Observe(receipt *evmcore.Receipt) {
	if receipt.Failed() {
		c.failedMessage.Inc()
		return
	}
	for _, l := range receipt.Logs {
		if l.Address == c.raffle {
			c.observeRaffle(raffleabi.ParseLog(l))
			continue
		}
		if ev, err := vrf.ParseLog(l); err == nil {
			if f, ok := ev.(*vrf.RandomWordsFulfilled); ok {
				c.fulfillments.WithLabelValues(strconv.FormatBool(f.Success)).Inc()
			}
		}
	}
}

func (c *RaffleCollector) observeRaffle(ev interface{}, err error) {
	if err != nil {
		return
	}
	switch ev.(type) {
	case *raffleabi.RaffleEnter:
		c.entries.Inc()
		c.players.Inc()
	case *raffleabi.RequestedRaffleWinner:
		c.requests.Inc()
		c.calculating.Set(1)
	case *raffleabi.WinnerPicked:
		c.winners.Inc()
		c.players.Set(0)
		c.calculating.Set(0)
	}
}

// Start observes every receipt committed by m from now on.
func (c *RaffleCollector) Start(m *evmcore.Machine) {
	receipts := make(chan *evmcore.Receipt, 16)
	c.sub = m.SubscribeReceipts(receipts)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case r := <-receipts:
				c.Observe(r)
			case <-c.quit:
				return
			}
		}
	}()
}

// Stop ends the observation started by Start.
func (c *RaffleCollector) Stop() {
	if c.sub == nil {
		return
	}
	c.sub.Unsubscribe()
	close(c.quit)
	c.wg.Wait()
}
