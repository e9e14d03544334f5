package raffle

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/vrf"
)

// fixture is a devnet with a funded VRF subscription and a deployed raffle.
// Accounts FakeAddress(1..9) start with 100 ether each.
type fixture struct {
	t      require.TestingT
	m      *evmcore.Machine
	clock  *evmcore.FakeClock
	coord  *vrf.Coordinator
	raffle *Raffle

	deployer common.Address
	node     common.Address
}

func newFixture(t require.TestingT) *fixture {
	genesis := make(map[common.Address]*big.Int)
	for i := 0; i < 10; i++ {
		genesis[evmcore.FakeAddress(i)] = evmcore.FakeBalance(100)
	}
	clock := evmcore.NewFakeClock(evmcore.FakeGenesisTime)
	m, err := evmcore.NewMachine(evmcore.MachineConfig{Genesis: genesis, Clock: clock})
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		m:        m,
		clock:    clock,
		deployer: evmcore.FakeAddress(0),
		node:     common.HexToAddress("0x0de"),
	}
	f.coord, err = vrf.Deploy(m, f.deployer, vrf.DefaultBaseFee, vrf.DefaultGasPriceLink)
	require.NoError(t, err)

	var subID uint64
	_, err = m.Execute(evmcore.Message{From: f.deployer, To: f.coord.Address()}, func(env *evmcore.Env) error {
		var err error
		if subID, err = f.coord.CreateSubscription(env); err != nil {
			return err
		}
		return f.coord.FundSubscription(env, subID, evmcore.FakeBalance(100))
	})
	require.NoError(t, err)

	rules := HardhatRules()
	rules.SubscriptionID = subID
	f.raffle, err = Deploy(m, f.deployer, rules, f.coord)
	require.NoError(t, err)

	_, err = m.Execute(evmcore.Message{From: f.deployer, To: f.coord.Address()}, func(env *evmcore.Env) error {
		return f.coord.AddConsumer(env, subID, f.raffle.Address())
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) player(i int) common.Address {
	return evmcore.FakeAddress(i + 1)
}

func (f *fixture) fee() *big.Int {
	return f.raffle.EntranceFee()
}

func (f *fixture) enter(from common.Address, value *big.Int) (*evmcore.Receipt, error) {
	return f.m.Execute(evmcore.Message{From: from, To: f.raffle.Address(), Value: value}, f.raffle.EnterRaffle)
}

func (f *fixture) mustEnter(players ...common.Address) {
	for _, p := range players {
		_, err := f.enter(p, f.fee())
		require.NoError(f.t, err)
	}
}

func (f *fixture) checkUpkeep() (bool, UpkeepStatus) {
	var (
		needed bool
		status UpkeepStatus
	)
	require.NoError(f.t, f.m.View(func(env *evmcore.Env) error {
		needed, status = f.raffle.CheckUpkeep(env)
		return nil
	}))
	return needed, status
}

func (f *fixture) performUpkeep(from common.Address) (*evmcore.Receipt, error) {
	return f.m.Execute(evmcore.Message{From: from, To: f.raffle.Address()}, f.raffle.PerformUpkeep)
}

func (f *fixture) reissue(from common.Address) (*evmcore.Receipt, error) {
	return f.m.Execute(evmcore.Message{From: from, To: f.raffle.Address()}, f.raffle.ReissueRequest)
}

// fulfill delivers words for requestID through the coordinator; nil words are
// derived from the id.
func (f *fixture) fulfill(requestID *big.Int, words []*big.Int) (*vrf.Fulfillment, *evmcore.Receipt, error) {
	var res *vrf.Fulfillment
	receipt, err := f.m.Execute(evmcore.Message{From: f.node, To: f.coord.Address()}, func(env *evmcore.Env) error {
		var err error
		res, err = f.coord.FulfillRandomWordsWithOverride(env, requestID, f.raffle, words)
		return err
	})
	return res, receipt, err
}

func (f *fixture) elapse() {
	f.clock.Advance(time.Duration(f.raffle.Interval()) + time.Second)
}

// openRound enters the players, waits for the interval and performs upkeep.
// It returns the issued request id.
func (f *fixture) openRound(players ...common.Address) *big.Int {
	f.mustEnter(players...)
	f.elapse()
	_, err := f.performUpkeep(f.deployer)
	require.NoError(f.t, err)
	require.Equal(f.t, inter.Calculating, f.raffle.RaffleState())
	return f.raffle.PendingRequest()
}
