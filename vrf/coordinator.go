// Package vrf implements a VRF coordinator in the manner of Chainlink's
// VRFCoordinatorV2Mock, plus an oracle node (Fulfiller) that answers requests
// asynchronously.
//
// Flow:
//  1. the subscription owner creates and funds a subscription and registers
//     consumer contracts on it
//  2. a consumer calls RequestRandomWords and receives a request id
//  3. some time later the oracle calls FulfillRandomWords, which derives the
//     words, charges the subscription and calls the consumer back
//
// The random words are not verifiable: word i of request id is
// keccak256(abi.encode(id, i)), which is what the mock does.
package vrf

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/inter"
)

// Request limits enforced by RequestRandomWords.
const (
	MinRequestConfirmations uint16 = 3
	MaxRequestConfirmations uint16 = 200
	MaxCallbackGasLimit     uint32 = 2500000
	MaxNumWords             uint32 = 500
)

var (
	// DefaultBaseFee is the flat fee per request, 0.25 LINK.
	DefaultBaseFee = new(big.Int).Mul(big.NewInt(25), big.NewInt(1e16))
	// DefaultGasPriceLink is the LINK price of one unit of callback gas.
	DefaultGasPriceLink = big.NewInt(1e9)
)

var (
	ErrNonexistentRequest    = errors.New("vrf: nonexistent request")
	ErrInvalidSubscription   = errors.New("vrf: invalid subscription")
	ErrInvalidConsumer       = errors.New("vrf: invalid consumer")
	ErrMustBeSubOwner        = errors.New("vrf: must be subscription owner")
	ErrInsufficientBalance   = errors.New("vrf: insufficient subscription balance")
	ErrInvalidConfirmations  = errors.New("vrf: invalid request confirmations")
	ErrGasLimitTooBig        = errors.New("vrf: gas limit too big")
	ErrNumWordsTooBig        = errors.New("vrf: num words too big")
	ErrTooManyConsumers      = errors.New("vrf: too many consumers")
	ErrWrongConsumerCallback = errors.New("vrf: consumer is not the requester")
)

// MaxConsumers is the maximum number of consumers per subscription.
const MaxConsumers = 100

// Consumer is a contract that receives random words.
type Consumer interface {
	Address() common.Address
	RawFulfillRandomWords(env *evmcore.Env, requestID *big.Int, words []*big.Int) error
}

// Subscription is a prepaid account shared by a set of consumers.
type Subscription struct {
	ID        uint64
	Owner     common.Address
	Balance   *big.Int
	Consumers []common.Address
}

func (s *Subscription) copy() *Subscription {
	cp := *s
	cp.Balance = new(big.Int).Set(s.Balance)
	cp.Consumers = append([]common.Address(nil), s.Consumers...)
	return &cp
}

func (s *Subscription) hasConsumer(addr common.Address) bool {
	for _, c := range s.Consumers {
		if c == addr {
			return true
		}
	}
	return false
}

// Request is an outstanding randomness request.
type Request struct {
	ID      *big.Int
	Sender  common.Address
	Params  inter.RandomWordsRequest
	PreSeed *big.Int
	Time    inter.Timestamp
}

// Fulfillment is the outcome of FulfillRandomWords.
type Fulfillment struct {
	RequestID *big.Int
	Words     []*big.Int
	Payment   *big.Int
	// Success reports whether the consumer accepted the words. A request is
	// consumed either way.
	Success bool
	// CallbackErr is the consumer's error when Success is false.
	CallbackErr error
}

type coordinatorState struct {
	lastSubID     uint64
	lastRequestID uint64
	subs          map[uint64]*Subscription
	requests      map[uint64]*Request
}

func (s coordinatorState) copy() coordinatorState {
	cp := s
	cp.subs = make(map[uint64]*Subscription, len(s.subs))
	for id, sub := range s.subs {
		cp.subs[id] = sub.copy()
	}
	cp.requests = make(map[uint64]*Request, len(s.requests))
	for id, req := range s.requests {
		cp.requests[id] = req
	}
	return cp
}

// Coordinator is a deployed VRF coordinator.
type Coordinator struct {
	address      common.Address
	baseFee      *big.Int
	gasPriceLink *big.Int

	state     coordinatorState
	revisions []coordinatorState
}

// Deploy deploys a coordinator charging baseFee plus gasPriceLink per unit of
// callback gas for each fulfilled request.
func Deploy(m *evmcore.Machine, deployer common.Address, baseFee, gasPriceLink *big.Int) (*Coordinator, error) {
	c := &Coordinator{
		baseFee:      new(big.Int).Set(baseFee),
		gasPriceLink: new(big.Int).Set(gasPriceLink),
		state: coordinatorState{
			subs:     make(map[uint64]*Subscription),
			requests: make(map[uint64]*Request),
		},
	}
	_, _, err := m.DeployContract(deployer, c, func(env *evmcore.Env) error {
		c.address = env.Self()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Address returns the contract address.
func (c *Coordinator) Address() common.Address {
	return c.address
}

// CreateSubscription opens a subscription owned by the caller.
func (c *Coordinator) CreateSubscription(env *evmcore.Env) (uint64, error) {
	c.state.lastSubID++
	id := c.state.lastSubID
	c.state.subs[id] = &Subscription{
		ID:      id,
		Owner:   env.Caller(),
		Balance: new(big.Int),
	}
	env.Emit(eventLog("SubscriptionCreated", []common.Hash{uint64Topic(id)}, env.Caller()))
	return id, nil
}

// FundSubscription credits amount of LINK to the subscription. Like the mock,
// no LINK is actually moved.
func (c *Coordinator) FundSubscription(env *evmcore.Env, subID uint64, amount *big.Int) error {
	sub, ok := c.state.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	old := new(big.Int).Set(sub.Balance)
	sub.Balance = new(big.Int).Add(sub.Balance, amount)
	env.Emit(eventLog("SubscriptionFunded", []common.Hash{uint64Topic(subID)}, old, new(big.Int).Set(sub.Balance)))
	return nil
}

// AddConsumer allows consumer to request words paid by the subscription. Only
// the subscription owner may call it. Adding a registered consumer is a no-op.
func (c *Coordinator) AddConsumer(env *evmcore.Env, subID uint64, consumer common.Address) error {
	sub, err := c.ownedSubscription(env, subID)
	if err != nil {
		return err
	}
	if sub.hasConsumer(consumer) {
		return nil
	}
	if len(sub.Consumers) >= MaxConsumers {
		return ErrTooManyConsumers
	}
	sub.Consumers = append(sub.Consumers, consumer)
	env.Emit(eventLog("ConsumerAdded", []common.Hash{uint64Topic(subID)}, consumer))
	return nil
}

// RemoveConsumer revokes a consumer. Only the subscription owner may call it.
func (c *Coordinator) RemoveConsumer(env *evmcore.Env, subID uint64, consumer common.Address) error {
	sub, err := c.ownedSubscription(env, subID)
	if err != nil {
		return err
	}
	for i, addr := range sub.Consumers {
		if addr == consumer {
			sub.Consumers = append(sub.Consumers[:i:i], sub.Consumers[i+1:]...)
			env.Emit(eventLog("ConsumerRemoved", []common.Hash{uint64Topic(subID)}, consumer))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConsumer, consumer.Hex())
}

func (c *Coordinator) ownedSubscription(env *evmcore.Env, subID uint64) (*Subscription, error) {
	sub, ok := c.state.subs[subID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	if sub.Owner != env.Caller() {
		return nil, ErrMustBeSubOwner
	}
	return sub, nil
}

// GetSubscription returns a copy of the subscription.
func (c *Coordinator) GetSubscription(subID uint64) (Subscription, error) {
	sub, ok := c.state.subs[subID]
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %d", ErrInvalidSubscription, subID)
	}
	return *sub.copy(), nil
}

// PendingRequest returns the outstanding request with the given id.
func (c *Coordinator) PendingRequest(requestID *big.Int) (Request, bool) {
	if !requestID.IsUint64() {
		return Request{}, false
	}
	req, ok := c.state.requests[requestID.Uint64()]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// RequestRandomWords registers a request from the calling consumer and returns
// its id. Ids start at 1.
func (c *Coordinator) RequestRandomWords(env *evmcore.Env, params inter.RandomWordsRequest) (*big.Int, error) {
	sub, ok := c.state.subs[params.SubID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubscription, params.SubID)
	}
	if !sub.hasConsumer(env.Caller()) {
		return nil, fmt.Errorf("%w: %s on subscription %d", ErrInvalidConsumer, env.Caller().Hex(), params.SubID)
	}
	if params.MinConfirmations < MinRequestConfirmations || params.MinConfirmations > MaxRequestConfirmations {
		return nil, fmt.Errorf("%w: have %d, want [%d, %d]", ErrInvalidConfirmations,
			params.MinConfirmations, MinRequestConfirmations, MaxRequestConfirmations)
	}
	if params.CallbackGasLimit > MaxCallbackGasLimit {
		return nil, fmt.Errorf("%w: have %d, max %d", ErrGasLimitTooBig, params.CallbackGasLimit, MaxCallbackGasLimit)
	}
	if params.NumWords > MaxNumWords {
		return nil, fmt.Errorf("%w: have %d, max %d", ErrNumWordsTooBig, params.NumWords, MaxNumWords)
	}

	c.state.lastRequestID++
	id := new(big.Int).SetUint64(c.state.lastRequestID)
	preSeed := new(big.Int).Add(id, big.NewInt(100))
	c.state.requests[c.state.lastRequestID] = &Request{
		ID:      id,
		Sender:  env.Caller(),
		Params:  params,
		PreSeed: preSeed,
		Time:    env.Block.Time,
	}

	env.Emit(eventLog("RandomWordsRequested",
		[]common.Hash{params.KeyHash, uint64Topic(params.SubID), common.BytesToHash(env.Caller().Bytes())},
		new(big.Int).Set(id), preSeed, params.MinConfirmations, params.CallbackGasLimit, params.NumWords))
	return new(big.Int).Set(id), nil
}

// FulfillRandomWords answers a request with derived words. See
// FulfillRandomWordsWithOverride.
func (c *Coordinator) FulfillRandomWords(env *evmcore.Env, requestID *big.Int, consumer Consumer) (*Fulfillment, error) {
	return c.FulfillRandomWordsWithOverride(env, requestID, consumer, nil)
}

// FulfillRandomWordsWithOverride answers a request with the given words, or
// with derived words if words is nil. The consumer runs in a nested call: its
// failure is reported in the Fulfillment and does not fail the fulfillment,
// but the request is consumed and the subscription charged regardless.
func (c *Coordinator) FulfillRandomWordsWithOverride(env *evmcore.Env, requestID *big.Int, consumer Consumer, words []*big.Int) (*Fulfillment, error) {
	if requestID == nil || !requestID.IsUint64() {
		return nil, fmt.Errorf("%w: %v", ErrNonexistentRequest, requestID)
	}
	req, ok := c.state.requests[requestID.Uint64()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNonexistentRequest, requestID)
	}
	if consumer.Address() != req.Sender {
		return nil, fmt.Errorf("%w: request %s was sent by %s", ErrWrongConsumerCallback, requestID, req.Sender.Hex())
	}
	if words == nil {
		words = DeriveWords(req.ID, req.Params.NumWords)
	}

	callbackErr := env.Call(consumer.Address(), nil, func(env *evmcore.Env) error {
		return consumer.RawFulfillRandomWords(env, new(big.Int).Set(req.ID), words)
	})

	payment := new(big.Int).Mul(c.gasPriceLink, new(big.Int).SetUint64(uint64(req.Params.CallbackGasLimit)))
	payment.Add(payment, c.baseFee)
	sub, ok := c.state.subs[req.Params.SubID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSubscription, req.Params.SubID)
	}
	if sub.Balance.Cmp(payment) < 0 {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, sub.Balance, payment)
	}
	sub.Balance = new(big.Int).Sub(sub.Balance, payment)
	delete(c.state.requests, requestID.Uint64())

	env.Emit(eventLog("RandomWordsFulfilled", []common.Hash{common.BigToHash(req.ID)},
		new(big.Int).Set(req.ID), new(big.Int).Set(payment), callbackErr == nil))

	return &Fulfillment{
		RequestID:   new(big.Int).Set(req.ID),
		Words:       words,
		Payment:     payment,
		Success:     callbackErr == nil,
		CallbackErr: callbackErr,
	}, nil
}

// DeriveWords returns keccak256(abi.encode(requestID, i)) for i in [0, n).
func DeriveWords(requestID *big.Int, n uint32) []*big.Int {
	words := make([]*big.Int, n)
	for i := range words {
		h := crypto.Keccak256(
			common.BigToHash(requestID).Bytes(),
			common.BigToHash(big.NewInt(int64(i))).Bytes(),
		)
		words[i] = new(big.Int).SetBytes(h)
	}
	return words
}

// Snapshot implements evmcore.Journaled.
func (c *Coordinator) Snapshot() int {
	c.revisions = append(c.revisions, c.state.copy())
	return len(c.revisions) - 1
}

// RevertToSnapshot implements evmcore.Journaled.
func (c *Coordinator) RevertToSnapshot(id int) {
	c.state = c.revisions[id]
	c.revisions = c.revisions[:id]
}

// Finalise implements evmcore.Journaled.
func (c *Coordinator) Finalise() {
	c.revisions = c.revisions[:0]
}
