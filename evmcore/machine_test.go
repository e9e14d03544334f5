package evmcore

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// counter is a minimal journaled contract used to observe rollbacks.
type counter struct {
	n         int
	revisions []int
}

func (c *counter) Snapshot() int {
	c.revisions = append(c.revisions, c.n)
	return len(c.revisions) - 1
}

func (c *counter) RevertToSnapshot(id int) {
	c.n = c.revisions[id]
	c.revisions = c.revisions[:id]
}

func (c *counter) Finalise() {
	c.revisions = c.revisions[:0]
}

var errBoom = errors.New("boom")

func newTestMachine(t *testing.T) (*Machine, *FakeClock) {
	clock := NewFakeClock(FakeGenesisTime)
	m, err := NewMachine(MachineConfig{
		Genesis: map[common.Address]*big.Int{
			FakeAddress(1): FakeBalance(10),
			FakeAddress(2): FakeBalance(10),
		},
		Clock: clock,
	})
	require.NoError(t, err)
	return m, clock
}

func TestFakeKey(t *testing.T) {
	seen := make(map[common.Address]int)
	for n := 0; n < 5; n++ {
		want := FakeAddress(n)
		for i := 0; i < 50; i++ {
			require.Equal(t, want, FakeAddress(n), "key %d", n)
			require.Equal(t, 0, FakeKey(n).D.Cmp(FakeKey(n).D))
		}
		prev, dup := seen[want]
		require.False(t, dup, "keys %d and %d share an address", prev, n)
		seen[want] = n
	}
}

func TestFakeGenesisFundsFakeAddresses(t *testing.T) {
	const accounts = 10
	genesis := make(map[common.Address]*big.Int, accounts)
	for i := 1; i <= accounts; i++ {
		genesis[FakeAddress(i)] = FakeBalance(int64(i))
	}
	m, err := NewMachine(MachineConfig{Genesis: genesis})
	require.NoError(t, err)

	for i := 1; i <= accounts; i++ {
		require.Equal(t, FakeBalance(int64(i)), m.Balance(FakeAddress(i)), "account %d", i)
	}
}

func TestMachineDeployContract(t *testing.T) {
	m, _ := newTestMachine(t)

	failed := &counter{}
	_, receipt, err := m.DeployContract(FakeAddress(1), failed, func(env *Env) error {
		failed.n = 1
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, types.ReceiptStatusFailed, receipt.Status)

	deployed := &counter{}
	_, _, err = m.DeployContract(FakeAddress(1), deployed, func(env *Env) error { return nil })
	require.NoError(t, err)

	_, err = m.Execute(Message{From: FakeAddress(1), To: FakeAddress(2)}, func(env *Env) error { return nil })
	require.NoError(t, err)

	// only the registered contract is snapshotted by later messages
	require.Len(t, deployed.revisions, 1)
	require.Empty(t, failed.revisions)
}

func TestMachineGenesis(t *testing.T) {
	m, _ := newTestMachine(t)

	require.Equal(t, FakeBalance(10), m.Balance(FakeAddress(1)))
	require.Equal(t, 0, m.Balance(FakeAddress(3)).Sign())

	head := m.Head()
	require.Equal(t, uint64(0), uint64(head.Number))
	require.Equal(t, FakeGenesisTime, head.Time)
	require.NotEqual(t, common.Hash{}, head.Root)
}

func TestMachineExecute(t *testing.T) {
	m, clock := newTestMachine(t)
	c := &counter{}
	m.Register(c)

	contract := common.HexToAddress("0xc0")
	value := big.NewInt(1000)

	t.Run("commit", func(t *testing.T) {
		clock.Advance(time.Second)
		receipt, err := m.Execute(Message{From: FakeAddress(1), To: contract, Value: value}, func(env *Env) error {
			c.n++
			require.Equal(t, value, env.Value())
			require.Equal(t, value, env.Balance(contract))
			env.Emit(&types.Log{Topics: []common.Hash{{1}}})
			return nil
		})
		require.NoError(t, err)
		require.False(t, receipt.Failed())
		require.Equal(t, 1, c.n)
		require.Equal(t, value, m.Balance(contract))
		require.Equal(t, uint64(1), m.Nonce(FakeAddress(1)))
		require.Len(t, receipt.Logs, 1)
		require.Equal(t, contract, receipt.Logs[0].Address)
		require.Equal(t, uint64(1), receipt.Logs[0].BlockNumber)
		require.Equal(t, receipt.TxHash, receipt.Logs[0].TxHash)
	})

	t.Run("revert", func(t *testing.T) {
		receipt, err := m.Execute(Message{From: FakeAddress(1), To: contract, Value: value}, func(env *Env) error {
			c.n++
			env.Emit(&types.Log{})
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)
		require.True(t, receipt.Failed())
		require.Empty(t, receipt.Logs)
		require.Equal(t, 1, c.n)
		require.Equal(t, value, m.Balance(contract))
		// a reverted message still consumes the sender's nonce
		require.Equal(t, uint64(2), m.Nonce(FakeAddress(1)))
	})

	t.Run("insufficient funds", func(t *testing.T) {
		called := false
		_, err := m.Execute(Message{From: FakeAddress(3), To: contract, Value: value}, func(env *Env) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
		require.False(t, called)
	})
}

func TestMachineBlockTime(t *testing.T) {
	m, clock := newTestMachine(t)
	noop := func(*Env) error { return nil }

	prev := m.Head()
	for i := 0; i < 3; i++ {
		// the clock stands still, block time must still increase
		r, err := m.Execute(Message{From: FakeAddress(1)}, noop)
		require.NoError(t, err)
		require.Greater(t, uint64(r.Block.Time), uint64(prev.Time))
		require.Equal(t, prev.Number+1, r.Block.Number)
		require.Equal(t, prev.Hash, r.Block.ParentHash)
		prev = r.Block
	}

	clock.Advance(time.Minute)
	r, err := m.Execute(Message{From: FakeAddress(1)}, noop)
	require.NoError(t, err)
	require.Equal(t, clock.Now(), r.Block.Time)
}

func TestMachineNestedCall(t *testing.T) {
	m, _ := newTestMachine(t)
	c := &counter{}
	m.Register(c)

	outer := common.HexToAddress("0xa0")
	inner := common.HexToAddress("0xb0")

	_, err := m.Execute(Message{From: FakeAddress(1), To: outer, Value: big.NewInt(10)}, func(env *Env) error {
		c.n = 1
		err := env.Call(inner, big.NewInt(4), func(env *Env) error {
			require.Equal(t, outer, env.Caller())
			c.n = 2
			env.Emit(&types.Log{})
			return errBoom
		})
		require.ErrorIs(t, err, errBoom)
		// only the nested call is rolled back
		require.Equal(t, 1, c.n)
		require.Equal(t, 0, env.Balance(inner).Sign())

		return env.Call(inner, big.NewInt(4), func(env *Env) error {
			c.n = 3
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, 3, c.n)
	require.Equal(t, big.NewInt(6), m.Balance(outer))
	require.Equal(t, big.NewInt(4), m.Balance(inner))
}

func TestMachineReceiver(t *testing.T) {
	m, _ := newTestMachine(t)
	pool := common.HexToAddress("0xa0")
	hostile := FakeAddress(2)
	fund := func() {
		_, err := m.Execute(Message{From: FakeAddress(1), To: pool, Value: big.NewInt(10)}, func(*Env) error { return nil })
		require.NoError(t, err)
	}
	fund()

	t.Run("rejecting receiver fails the transfer", func(t *testing.T) {
		m.SetReceiver(hostile, func(env *Env) error {
			return errBoom
		})
		_, err := m.Execute(Message{From: FakeAddress(1), To: pool}, func(env *Env) error {
			return env.Transfer(hostile, big.NewInt(10))
		})
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, big.NewInt(10), m.Balance(pool))
	})

	t.Run("receiver sees the transfer and may call back", func(t *testing.T) {
		before := m.Balance(hostile)
		m.SetReceiver(hostile, func(env *Env) error {
			require.Equal(t, pool, env.Caller())
			require.Equal(t, big.NewInt(10), env.Value())
			return env.Call(pool, big.NewInt(1), func(*Env) error { return nil })
		})
		_, err := m.Execute(Message{From: FakeAddress(1), To: pool}, func(env *Env) error {
			return env.Transfer(hostile, big.NewInt(10))
		})
		require.NoError(t, err)
		require.Equal(t, big.NewInt(1), m.Balance(pool))
		require.Equal(t, new(big.Int).Add(before, big.NewInt(9)), m.Balance(hostile))
	})

	t.Run("unbounded recursion hits the depth limit", func(t *testing.T) {
		m.SetReceiver(hostile, nil)
		var recurse func(env *Env) error
		recurse = func(env *Env) error {
			return env.Call(env.Self(), nil, recurse)
		}
		_, err := m.Execute(Message{From: FakeAddress(1), To: pool}, recurse)
		require.ErrorIs(t, err, ErrCallDepth)
	})
}

func TestMachineView(t *testing.T) {
	m, clock := newTestMachine(t)
	c := &counter{}
	m.Register(c)

	clock.Advance(time.Hour)
	err := m.View(func(env *Env) error {
		c.n = 42
		require.Equal(t, clock.Now(), env.Block.Time)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, c.n)
	require.Equal(t, uint64(0), uint64(m.Head().Number))
}

func TestMachineDeploy(t *testing.T) {
	m, _ := newTestMachine(t)

	a1, _, err := m.Deploy(FakeAddress(1), func(env *Env) error { return nil })
	require.NoError(t, err)
	a2, _, err := m.Deploy(FakeAddress(1), func(env *Env) error { return nil })
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
}

func TestMachineSubscribeLogs(t *testing.T) {
	m, _ := newTestMachine(t)
	defer m.Close()

	ch := make(chan []*types.Log, 4)
	sub := m.SubscribeLogs(ch)
	defer sub.Unsubscribe()

	emit := func(env *Env) error {
		env.Emit(&types.Log{})
		return nil
	}
	_, err := m.Execute(Message{From: FakeAddress(1), To: common.HexToAddress("0xa0")}, emit)
	require.NoError(t, err)
	_, err = m.Execute(Message{From: FakeAddress(1), To: common.HexToAddress("0xa0")}, func(env *Env) error {
		env.Emit(&types.Log{})
		return errBoom
	})
	require.Error(t, err)
	_, err = m.Execute(Message{From: FakeAddress(1), To: common.HexToAddress("0xa0")}, emit)
	require.NoError(t, err)

	first := <-ch
	second := <-ch
	require.Equal(t, uint64(1), first[0].BlockNumber)
	require.Equal(t, uint64(3), second[0].BlockNumber)
	require.Len(t, ch, 0)
}

func TestMachineSubscribeReceipts(t *testing.T) {
	m, clock := newTestMachine(t)
	defer m.Close()

	ch := make(chan *Receipt, 4)
	sub := m.SubscribeReceipts(ch)
	defer sub.Unsubscribe()

	_, err := m.Execute(Message{From: FakeAddress(1), To: common.HexToAddress("0xa0")}, func(env *Env) error {
		return errBoom
	})
	require.Error(t, err)
	clock.Advance(time.Second)
	_, err = m.Execute(Message{From: FakeAddress(1), To: common.HexToAddress("0xa0")}, func(env *Env) error {
		return nil
	})
	require.NoError(t, err)

	failed := <-ch
	require.True(t, failed.Failed())
	require.ErrorIs(t, failed.Err, errBoom)
	ok := <-ch
	require.False(t, ok.Failed())
	require.Greater(t, uint64(ok.Block.Time), uint64(failed.Block.Time))
}
