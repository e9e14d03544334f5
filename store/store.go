// Package store persists the history of resolved raffle rounds.
package store

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-raffle/inter"
)

var (
	// ErrNotFound is returned for rounds that were never recorded.
	ErrNotFound = errors.New("winner record not found")
	// ErrRoundExists is returned when a round is recorded twice.
	ErrRoundExists = errors.New("winner record already exists")
)

// winnerPrefix + raffle address + big-endian round -> RLP(WinnerRecord)
var winnerPrefix = []byte("w")

const (
	// DefaultCache is the LevelDB cache size in megabytes.
	DefaultCache = 16
	// DefaultHandles is the number of LevelDB file handles.
	DefaultHandles = 16
)

// Store is a winner history on top of a key-value database.
type Store struct {
	db  ethdb.KeyValueStore
	log logrus.FieldLogger
}

// New wraps an open database.
func New(db ethdb.KeyValueStore, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}
}

// NewMemStore returns a store that lives in memory.
func NewMemStore() *Store {
	return New(rawdb.NewMemoryDatabase(), nil)
}

// Open opens a LevelDB store in dir. An empty dir gives a memory store.
func Open(dir string, log logrus.FieldLogger) (*Store, error) {
	if dir == "" {
		return New(rawdb.NewMemoryDatabase(), log), nil
	}
	db, err := rawdb.NewLevelDBDatabase(dir, DefaultCache, DefaultHandles, "raffle/store/", false)
	if err != nil {
		return nil, fmt.Errorf("open winner store %s: %w", dir, err)
	}
	return New(db, log), nil
}

func roundsKey(raffle common.Address) []byte {
	key := make([]byte, 0, len(winnerPrefix)+common.AddressLength)
	key = append(key, winnerPrefix...)
	return append(key, raffle.Bytes()...)
}

func winnerKey(raffle common.Address, round uint64) []byte {
	return append(roundsKey(raffle), bigendian.Uint64ToBytes(round)...)
}

// Put records a resolved round. Rounds are immutable once written.
func (s *Store) Put(r *inter.WinnerRecord) error {
	key := winnerKey(r.Raffle, r.Round)
	if ok, err := s.db.Has(key); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: round %d of %s", ErrRoundExists, r.Round, r.Raffle.Hex())
	}
	enc, err := rlp.EncodeToBytes(r)
	if err != nil {
		return err
	}
	if err := s.db.Put(key, enc); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"raffle": r.Raffle.Hex(),
		"round":  r.Round,
		"winner": r.Winner.Hex(),
		"hash":   r.Hash().String(),
	}).Debug("Stored winner")
	return nil
}

// Get returns the record of a round.
func (s *Store) Get(raffle common.Address, round uint64) (*inter.WinnerRecord, error) {
	enc, err := s.db.Get(winnerKey(raffle, round))
	if err != nil || len(enc) == 0 {
		return nil, fmt.Errorf("%w: round %d of %s", ErrNotFound, round, raffle.Hex())
	}
	return decode(enc)
}

// ForEach calls fn for every recorded round of raffle in ascending order until
// fn returns false.
func (s *Store) ForEach(raffle common.Address, fn func(*inter.WinnerRecord) bool) error {
	it := s.db.NewIterator(roundsKey(raffle), nil)
	defer it.Release()

	for it.Next() {
		r, err := decode(it.Value())
		if err != nil {
			return err
		}
		if !fn(r) {
			break
		}
	}
	return it.Error()
}

// History returns every recorded round of raffle.
func (s *Store) History(raffle common.Address) ([]*inter.WinnerRecord, error) {
	var records []*inter.WinnerRecord
	err := s.ForEach(raffle, func(r *inter.WinnerRecord) bool {
		records = append(records, r)
		return true
	})
	return records, err
}

// LastRound returns the highest recorded round of raffle, or 0.
func (s *Store) LastRound(raffle common.Address) (uint64, error) {
	var last uint64
	err := s.ForEach(raffle, func(r *inter.WinnerRecord) bool {
		last = r.Round
		return true
	})
	return last, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(enc []byte) (*inter.WinnerRecord, error) {
	r := new(inter.WinnerRecord)
	if err := rlp.DecodeBytes(enc, r); err != nil {
		return nil, fmt.Errorf("decode winner record: %w", err)
	}
	return r, nil
}
