package integration

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/raffle"
	"github.com/rony4d/go-opera-raffle/vrf"
)

// ErrNotDevelopment is returned when a devnet is requested for a live network.
var ErrNotDevelopment = errors.New("not a development network")

// Mock coordinator parameters of development deployments.
var (
	// MockBaseFee is the flat premium of every fulfillment, 0.25 LINK.
	MockBaseFee = new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(4))
	// MockGasPriceLink is the LINK price of one unit of callback gas.
	MockGasPriceLink = big.NewInt(1e9)
	// SubscriptionFundAmount is what the deployer funds the subscription with.
	SubscriptionFundAmount = new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
)

// DevnetConfig describes a development deployment.
type DevnetConfig struct {
	Network Network
	// Players is the number of funded accounts besides the deployer.
	Players int
	// Balance of every genesis account, in ether.
	Balance int64
	// GenesisTime defaults to evmcore.FakeGenesisTime.
	GenesisTime inter.Timestamp
	Clock       evmcore.Clock
	Log         logrus.FieldLogger
}

// DefaultDevnetConfig is a hardhat devnet with 9 players.
func DefaultDevnetConfig() DevnetConfig {
	return DevnetConfig{
		Network: HardhatNetwork(),
		Players: 9,
		Balance: 10000,
	}
}

// Devnet is a deployed development network.
type Devnet struct {
	Machine        *evmcore.Machine
	Coordinator    *vrf.Coordinator
	Raffle         *raffle.Raffle
	SubscriptionID uint64

	Deployer common.Address
	// Node is the oracle account answering randomness requests.
	Node    common.Address
	Players []common.Address
}

// DeployDevnet starts a Machine, deploys the mock coordinator, creates and
// funds a subscription, deploys the raffle on it and registers the raffle as
// consumer. Accounts are evmcore.FakeAddress(0) for the deployer and
// FakeAddress(1..Players) for players.
func DeployDevnet(cfg DevnetConfig) (*Devnet, error) {
	if !cfg.Network.Development() {
		return nil, fmt.Errorf("%w: %s", ErrNotDevelopment, cfg.Network.Name)
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	log := cfg.Log.WithField("network", cfg.Network.Name)

	d := &Devnet{
		Deployer: evmcore.FakeAddress(0),
		Node:     evmcore.FakeAddress(cfg.Players + 1),
	}
	genesis := map[common.Address]*big.Int{
		d.Deployer: evmcore.FakeBalance(cfg.Balance),
		d.Node:     evmcore.FakeBalance(cfg.Balance),
	}
	for i := 1; i <= cfg.Players; i++ {
		d.Players = append(d.Players, evmcore.FakeAddress(i))
		genesis[evmcore.FakeAddress(i)] = evmcore.FakeBalance(cfg.Balance)
	}

	m, err := evmcore.NewMachine(evmcore.MachineConfig{
		Genesis:     genesis,
		GenesisTime: cfg.GenesisTime,
		Clock:       cfg.Clock,
		Log:         cfg.Log,
	})
	if err != nil {
		return nil, err
	}
	d.Machine = m

	log.Info("Development network detected, deploying mocks")
	if d.Coordinator, err = vrf.Deploy(m, d.Deployer, MockBaseFee, MockGasPriceLink); err != nil {
		return nil, fmt.Errorf("deploy coordinator: %w", err)
	}
	log.WithField("address", d.Coordinator.Address().Hex()).Info("Mocks deployed")

	_, err = m.Execute(evmcore.Message{From: d.Deployer, To: d.Coordinator.Address()}, func(env *evmcore.Env) error {
		var err error
		if d.SubscriptionID, err = d.Coordinator.CreateSubscription(env); err != nil {
			return err
		}
		return d.Coordinator.FundSubscription(env, d.SubscriptionID, SubscriptionFundAmount)
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	rules := cfg.Network.Rules.Copy()
	rules.SubscriptionID = d.SubscriptionID
	if d.Raffle, err = raffle.Deploy(m, d.Deployer, rules, d.Coordinator); err != nil {
		return nil, fmt.Errorf("deploy raffle: %w", err)
	}

	_, err = m.Execute(evmcore.Message{From: d.Deployer, To: d.Coordinator.Address()}, func(env *evmcore.Env) error {
		return d.Coordinator.AddConsumer(env, d.SubscriptionID, d.Raffle.Address())
	})
	if err != nil {
		return nil, fmt.Errorf("add consumer: %w", err)
	}
	log.WithFields(logrus.Fields{
		"raffle":       d.Raffle.Address().Hex(),
		"subscription": d.SubscriptionID,
	}).Info("Raffle deployed")
	return d, nil
}

// NewFulfiller returns an oracle node for the devnet's coordinator that
// answers the raffle's requests after delay.
func (d *Devnet) NewFulfiller(delay time.Duration, log logrus.FieldLogger) *vrf.Fulfiller {
	f := vrf.NewFulfiller(vrf.FulfillerConfig{
		Machine:     d.Machine,
		Coordinator: d.Coordinator,
		Node:        d.Node,
		Delay:       delay,
		Log:         log,
	})
	f.AddConsumer(d.Raffle)
	return f
}
