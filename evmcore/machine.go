package evmcore

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/inter"
)

// MaxCallDepth limits the nesting of Env.Call and receiver invocations.
const MaxCallDepth = 64

// Journaled is contract state that takes part in message rollback. The Machine
// snapshots every registered Journaled value together with the ledger before a
// message runs and reverts them together if the message fails.
type Journaled interface {
	// Snapshot returns a revision id of the current state.
	Snapshot() int
	// RevertToSnapshot restores the state of the given revision and forgets
	// every later revision.
	RevertToSnapshot(id int)
	// Finalise forgets every revision. It is called once a message commits.
	Finalise()
}

// Receiver is code attached to an account. It runs whenever value is
// transferred to that account by a contract, with env.Msg describing the
// transfer. A non-nil error fails the transfer.
type Receiver func(env *Env) error

// MachineConfig describes the genesis state and environment of a Machine.
type MachineConfig struct {
	// Genesis holds the initial balances.
	Genesis map[common.Address]*big.Int
	// GenesisTime defaults to FakeGenesisTime.
	GenesisTime inter.Timestamp
	// Clock defaults to SystemClock.
	Clock Clock
	// Log defaults to the logrus standard logger.
	Log logrus.FieldLogger
}

// Machine executes messages one at a time. Each message runs in a block of
// its own and either commits all of its effects or none of them.
type Machine struct {
	mu    sync.Mutex
	pubMu sync.Mutex

	ledger    *Ledger
	clock     Clock
	head      EvmHeader
	journals  []Journaled
	receivers map[common.Address]Receiver

	logsFeed     event.Feed
	receiptsFeed event.Feed
	scope        event.SubscriptionScope

	log logrus.FieldLogger
}

// NewMachine creates a Machine from its genesis config.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.GenesisTime == 0 {
		cfg.GenesisTime = FakeGenesisTime
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	ledger, genesis, err := NewLedger(cfg.GenesisTime, cfg.Genesis)
	if err != nil {
		return nil, err
	}
	return &Machine{
		ledger:    ledger,
		clock:     cfg.Clock,
		head:      genesis.EvmHeader,
		receivers: make(map[common.Address]Receiver),
		log:       cfg.Log,
	}, nil
}

// Register adds contract state to the set of values rolled back on failure.
func (m *Machine) Register(j Journaled) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journals = append(m.journals, j)
}

// SetReceiver attaches code to addr. A nil receiver detaches it.
func (m *Machine) SetReceiver(addr common.Address, r Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r == nil {
		delete(m.receivers, addr)
		return
	}
	m.receivers[addr] = r
}

// Deploy derives a fresh contract address from the deployer's nonce and runs
// init as the constructor message. The address is returned even if init
// fails, it is burnt with the deployer's nonce.
func (m *Machine) Deploy(deployer common.Address, init func(env *Env) error) (common.Address, *Receipt, error) {
	return m.DeployContract(deployer, nil, init)
}

// DeployContract is like Deploy, and registers j once init has succeeded.
// A failed constructor leaves nothing registered.
func (m *Machine) DeployContract(deployer common.Address, j Journaled, init func(env *Env) error) (common.Address, *Receipt, error) {
	m.mu.Lock()
	addr := crypto.CreateAddress(deployer, m.ledger.Nonce(deployer))
	receipt, err := m.execute(Message{From: deployer, To: addr}, init)
	if err == nil && j != nil {
		m.journals = append(m.journals, j)
	}
	m.publish(receipt)
	return addr, receipt, err
}

// Execute runs fn as the code of msg.To, called by msg.From with msg.Value
// attached. The value is moved before fn runs. If either fails, every effect
// of the message is reverted and the error is returned alongside a failed
// receipt.
func (m *Machine) Execute(msg Message, fn func(env *Env) error) (*Receipt, error) {
	m.mu.Lock()
	receipt, err := m.execute(msg, fn)
	m.publish(receipt)
	return receipt, err
}

func (m *Machine) execute(msg Message, fn func(env *Env) error) (*Receipt, error) {
	header := m.head.nextHeader(m.clock.Now())
	nonce := m.ledger.Nonce(msg.From)
	m.ledger.setNonce(msg.From, nonce+1)

	receipt := &Receipt{
		TxHash: txHash(msg, nonce, header.Number),
		Block:  *header,
		Status: types.ReceiptStatusSuccessful,
	}
	env := &Env{
		Msg:   msg,
		Block: header,
		m:     m,
		logs:  new([]*types.Log),
	}

	rev := m.snapshot(env)
	err := m.ledger.Transfer(msg.From, msg.To, msg.value())
	if err == nil {
		err = fn(env)
	}
	if err != nil {
		m.revert(rev, env)
		receipt.Status = types.ReceiptStatusFailed
		receipt.Err = err
	} else {
		receipt.Logs = *env.logs
		for i, l := range receipt.Logs {
			l.BlockNumber = uint64(header.Number)
			l.BlockHash = header.Hash
			l.TxHash = receipt.TxHash
			l.Index = uint(i)
		}
	}
	m.finalise()
	m.head = *header

	m.log.WithFields(logrus.Fields{
		"block":  header.Number,
		"from":   msg.From.Hex(),
		"to":     msg.To.Hex(),
		"value":  msg.value(),
		"status": receipt.Status,
		"logs":   len(receipt.Logs),
	}).Debug("Executed message")

	return receipt, err
}

// View runs fn against the state a message executed now would see and throws
// away every effect. It is the way to read contract state from outside the
// Machine.
func (m *Machine) View(fn func(env *Env) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := &Env{
		Block: m.head.nextHeader(m.clock.Now()),
		m:     m,
		logs:  new([]*types.Log),
	}
	rev := m.snapshot(env)
	defer m.revert(rev, env)
	return fn(env)
}

// Balance returns the committed balance of addr.
func (m *Machine) Balance(addr common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Balance(addr)
}

// Nonce returns the number of messages sent by addr.
func (m *Machine) Nonce(addr common.Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Nonce(addr)
}

// Head returns the header of the latest block.
func (m *Machine) Head() EvmHeader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head
}

// SubscribeLogs delivers the logs of every committed message to ch, in block
// order. Subscribers must keep draining ch: delivery blocks the next message's
// publication, not its execution.
func (m *Machine) SubscribeLogs(ch chan<- []*types.Log) event.Subscription {
	return m.scope.Track(m.logsFeed.Subscribe(ch))
}

// SubscribeReceipts delivers the receipt of every executed message to ch,
// failed ones included, under the same ordering rules as SubscribeLogs.
func (m *Machine) SubscribeReceipts(ch chan<- *Receipt) event.Subscription {
	return m.scope.Track(m.receiptsFeed.Subscribe(ch))
}

// Close unsubscribes every log subscriber.
func (m *Machine) Close() {
	m.scope.Close()
}

// publish releases the execution lock and delivers the committed logs. The
// publication lock is taken first so that logs go out in block order.
func (m *Machine) publish(receipt *Receipt) {
	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()

	m.receiptsFeed.Send(receipt)
	if len(receipt.Logs) == 0 {
		return
	}
	m.logsFeed.Send(receipt.Logs)
}

type revision struct {
	ledger   int
	journals []int
	logs     int
}

func (m *Machine) snapshot(env *Env) revision {
	rev := revision{
		ledger:   m.ledger.Snapshot(),
		journals: make([]int, len(m.journals)),
		logs:     len(*env.logs),
	}
	for i, j := range m.journals {
		rev.journals[i] = j.Snapshot()
	}
	return rev
}

func (m *Machine) revert(rev revision, env *Env) {
	m.ledger.RevertToSnapshot(rev.ledger)
	for i, id := range rev.journals {
		m.journals[i].RevertToSnapshot(id)
	}
	*env.logs = (*env.logs)[:rev.logs]
}

func (m *Machine) finalise() {
	m.ledger.Finalise()
	for _, j := range m.journals {
		j.Finalise()
	}
}
