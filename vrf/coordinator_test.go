package vrf

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
)

var errRejected = errors.New("rejected")

// testConsumer records the words it is called back with.
type testConsumer struct {
	address common.Address
	fail    bool

	mu    sync.Mutex
	words map[uint64][]*big.Int
}

func (c *testConsumer) Address() common.Address { return c.address }

func (c *testConsumer) RawFulfillRandomWords(env *evmcore.Env, requestID *big.Int, words []*big.Int) error {
	if c.fail {
		return errRejected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.words[requestID.Uint64()] = words
	return nil
}

func (c *testConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.words)
}

func (c *testConsumer) received(id uint64) []*big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.words[id]
}

type testNet struct {
	m        *evmcore.Machine
	coord    *Coordinator
	owner    common.Address
	subID    uint64
	consumer *testConsumer
}

func (n *testNet) exec(t *testing.T, from common.Address, fn func(env *evmcore.Env) error) (*evmcore.Receipt, error) {
	t.Helper()
	return n.m.Execute(evmcore.Message{From: from, To: n.coord.Address()}, fn)
}

func (n *testNet) request(t *testing.T, params inter.RandomWordsRequest) (*big.Int, error) {
	var id *big.Int
	_, err := n.m.Execute(evmcore.Message{From: evmcore.FakeAddress(9), To: n.consumer.address}, func(env *evmcore.Env) error {
		return env.Call(n.coord.Address(), nil, func(env *evmcore.Env) error {
			var err error
			id, err = n.coord.RequestRandomWords(env, params)
			return err
		})
	})
	return id, err
}

func (n *testNet) params() inter.RandomWordsRequest {
	return inter.RandomWordsRequest{
		KeyHash:          common.HexToHash("0xd89b"),
		SubID:            n.subID,
		MinConfirmations: 3,
		CallbackGasLimit: 500000,
		NumWords:         2,
	}
}

func newTestNet(t *testing.T) *testNet {
	m, err := evmcore.NewMachine(evmcore.MachineConfig{
		Clock: evmcore.NewFakeClock(evmcore.FakeGenesisTime),
	})
	require.NoError(t, err)

	n := &testNet{
		m:     m,
		owner: evmcore.FakeAddress(1),
		consumer: &testConsumer{
			address: common.HexToAddress("0xc0ffee"),
			words:   make(map[uint64][]*big.Int),
		},
	}
	n.coord, err = Deploy(m, n.owner, DefaultBaseFee, DefaultGasPriceLink)
	require.NoError(t, err)

	_, err = n.exec(t, n.owner, func(env *evmcore.Env) error {
		var err error
		if n.subID, err = n.coord.CreateSubscription(env); err != nil {
			return err
		}
		if err = n.coord.FundSubscription(env, n.subID, big.NewInt(1e18)); err != nil {
			return err
		}
		return n.coord.AddConsumer(env, n.subID, n.consumer.address)
	})
	require.NoError(t, err)
	return n
}

func TestSubscriptions(t *testing.T) {
	n := newTestNet(t)

	sub, err := n.coord.GetSubscription(n.subID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sub.ID)
	require.Equal(t, n.owner, sub.Owner)
	require.Equal(t, big.NewInt(1e18), sub.Balance)
	require.Equal(t, []common.Address{n.consumer.address}, sub.Consumers)

	t.Run("only owner manages consumers", func(t *testing.T) {
		_, err := n.exec(t, evmcore.FakeAddress(2), func(env *evmcore.Env) error {
			return n.coord.AddConsumer(env, n.subID, common.HexToAddress("0x01"))
		})
		require.ErrorIs(t, err, ErrMustBeSubOwner)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		_, err := n.exec(t, n.owner, func(env *evmcore.Env) error {
			return n.coord.FundSubscription(env, 42, big.NewInt(1))
		})
		require.ErrorIs(t, err, ErrInvalidSubscription)
		_, err = n.coord.GetSubscription(42)
		require.ErrorIs(t, err, ErrInvalidSubscription)
	})

	t.Run("remove consumer", func(t *testing.T) {
		other := common.HexToAddress("0x02")
		_, err := n.exec(t, n.owner, func(env *evmcore.Env) error {
			if err := n.coord.AddConsumer(env, n.subID, other); err != nil {
				return err
			}
			return n.coord.RemoveConsumer(env, n.subID, other)
		})
		require.NoError(t, err)
		sub, err := n.coord.GetSubscription(n.subID)
		require.NoError(t, err)
		require.Equal(t, []common.Address{n.consumer.address}, sub.Consumers)

		_, err = n.exec(t, n.owner, func(env *evmcore.Env) error {
			return n.coord.RemoveConsumer(env, n.subID, other)
		})
		require.ErrorIs(t, err, ErrInvalidConsumer)
	})
}

func TestRequestRandomWords(t *testing.T) {
	n := newTestNet(t)

	id, err := n.request(t, n.params())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), id)

	id, err = n.request(t, n.params())
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), id)

	req, ok := n.coord.PendingRequest(id)
	require.True(t, ok)
	require.Equal(t, n.consumer.address, req.Sender)

	for name, tc := range map[string]struct {
		mutate func(p *inter.RandomWordsRequest)
		err    error
	}{
		"unknown subscription":   {func(p *inter.RandomWordsRequest) { p.SubID = 7 }, ErrInvalidSubscription},
		"too few confirmations":  {func(p *inter.RandomWordsRequest) { p.MinConfirmations = 2 }, ErrInvalidConfirmations},
		"too many confirmations": {func(p *inter.RandomWordsRequest) { p.MinConfirmations = 201 }, ErrInvalidConfirmations},
		"gas limit":              {func(p *inter.RandomWordsRequest) { p.CallbackGasLimit = MaxCallbackGasLimit + 1 }, ErrGasLimitTooBig},
		"num words":              {func(p *inter.RandomWordsRequest) { p.NumWords = MaxNumWords + 1 }, ErrNumWordsTooBig},
	} {
		t.Run(name, func(t *testing.T) {
			p := n.params()
			tc.mutate(&p)
			_, err := n.request(t, p)
			require.ErrorIs(t, err, tc.err)
		})
	}

	t.Run("unregistered consumer", func(t *testing.T) {
		_, err := n.m.Execute(evmcore.Message{From: evmcore.FakeAddress(9), To: common.HexToAddress("0xbad")}, func(env *evmcore.Env) error {
			return env.Call(n.coord.Address(), nil, func(env *evmcore.Env) error {
				_, err := n.coord.RequestRandomWords(env, n.params())
				return err
			})
		})
		require.ErrorIs(t, err, ErrInvalidConsumer)
	})
}

func TestFulfillRandomWords(t *testing.T) {
	n := newTestNet(t)
	id, err := n.request(t, n.params())
	require.NoError(t, err)

	var res *Fulfillment
	receipt, err := n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
		var err error
		res, err = n.coord.FulfillRandomWords(env, id, n.consumer)
		return err
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, DeriveWords(id, 2), n.consumer.received(1))

	payment := new(big.Int).Add(DefaultBaseFee, new(big.Int).Mul(DefaultGasPriceLink, big.NewInt(500000)))
	require.Equal(t, payment, res.Payment)
	sub, err := n.coord.GetSubscription(n.subID)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(big.NewInt(1e18), payment), sub.Balance)

	ev, err := ParseLog(receipt.Logs[len(receipt.Logs)-1])
	require.NoError(t, err)
	require.Equal(t, &RandomWordsFulfilled{
		Coordinator: n.coord.Address(),
		RequestID:   id,
		OutputSeed:  id,
		Payment:     payment,
		Success:     true,
	}, ev)

	t.Run("consumed request is nonexistent", func(t *testing.T) {
		_, err := n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
			_, err := n.coord.FulfillRandomWords(env, id, n.consumer)
			return err
		})
		require.ErrorIs(t, err, ErrNonexistentRequest)
	})

	t.Run("never issued request is nonexistent", func(t *testing.T) {
		_, err := n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
			_, err := n.coord.FulfillRandomWords(env, big.NewInt(99), n.consumer)
			return err
		})
		require.ErrorIs(t, err, ErrNonexistentRequest)
	})

	t.Run("override words", func(t *testing.T) {
		id, err := n.request(t, n.params())
		require.NoError(t, err)
		words := []*big.Int{big.NewInt(5)}
		_, err = n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
			_, err := n.coord.FulfillRandomWordsWithOverride(env, id, n.consumer, words)
			return err
		})
		require.NoError(t, err)
		require.Equal(t, words, n.consumer.received(id.Uint64()))
	})

	t.Run("failing consumer still consumes the request", func(t *testing.T) {
		id, err := n.request(t, n.params())
		require.NoError(t, err)
		n.consumer.fail = true
		defer func() { n.consumer.fail = false }()

		_, err = n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
			var err error
			res, err = n.coord.FulfillRandomWords(env, id, n.consumer)
			return err
		})
		require.NoError(t, err)
		require.False(t, res.Success)
		require.ErrorIs(t, res.CallbackErr, errRejected)
		_, pending := n.coord.PendingRequest(id)
		require.False(t, pending)
	})
}

func TestFulfillInsufficientBalance(t *testing.T) {
	m, err := evmcore.NewMachine(evmcore.MachineConfig{Clock: evmcore.NewFakeClock(evmcore.FakeGenesisTime)})
	require.NoError(t, err)
	n := &testNet{
		m:        m,
		owner:    evmcore.FakeAddress(1),
		consumer: &testConsumer{address: common.HexToAddress("0xc0ffee"), words: make(map[uint64][]*big.Int)},
	}
	n.coord, err = Deploy(m, n.owner, DefaultBaseFee, DefaultGasPriceLink)
	require.NoError(t, err)
	_, err = n.exec(t, n.owner, func(env *evmcore.Env) error {
		n.subID, _ = n.coord.CreateSubscription(env)
		return n.coord.AddConsumer(env, n.subID, n.consumer.address)
	})
	require.NoError(t, err)

	id, err := n.request(t, n.params())
	require.NoError(t, err)
	_, err = n.exec(t, evmcore.FakeAddress(3), func(env *evmcore.Env) error {
		_, err := n.coord.FulfillRandomWords(env, id, n.consumer)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// the failed fulfillment is rolled back, the request stays pending
	_, pending := n.coord.PendingRequest(id)
	require.True(t, pending)
}

func TestFulfiller(t *testing.T) {
	n := newTestNet(t)
	f := NewFulfiller(FulfillerConfig{
		Machine:     n.m,
		Coordinator: n.coord,
		Node:        evmcore.FakeAddress(5),
		Delay:       10 * time.Millisecond,
	})
	f.AddConsumer(n.consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// requests committed before the node subscribed are never seen, keep
	// requesting until one is answered
	require.Eventually(t, func() bool {
		if _, err := n.request(t, n.params()); err != nil {
			return false
		}
		return n.consumer.count() > 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestParseLogForeign(t *testing.T) {
	_, err := ParseLog(&types.Log{})
	require.ErrorIs(t, err, ErrUnknownEvent)
	_, err = ParseLog(&types.Log{Topics: []common.Hash{{1}}})
	require.ErrorIs(t, err, ErrUnknownEvent)
}
