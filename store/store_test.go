package store

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-raffle/inter"
)

var testRaffle = common.HexToAddress("0xaa")

func testRecord(round uint64) *inter.WinnerRecord {
	return &inter.WinnerRecord{
		Round:     round,
		Raffle:    testRaffle,
		Winner:    common.BigToAddress(new(big.Int).SetUint64(round)),
		RequestID: new(big.Int).SetUint64(round + 1),
		Block:     100,
		TxHash:    common.HexToHash("0x01"),
		Time:      inter.FromTime(time.Unix(1700000000, 0)),
	}
}

func TestStorePutGet(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	_, err := s.Get(testRaffle, 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(testRecord(1)))
	got, err := s.Get(testRaffle, 1)
	require.NoError(t, err)
	require.Equal(t, testRecord(1), got)
	require.Equal(t, testRecord(1).Hash(), got.Hash())

	require.ErrorIs(t, s.Put(testRecord(1)), ErrRoundExists)

	_, err = s.Get(common.HexToAddress("0xbb"), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestStoreHistory checks rounds come back in numeric order and are kept
// apart per raffle.
func TestStoreHistory(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	for _, round := range []uint64{10, 2, 1, 256} {
		require.NoError(t, s.Put(testRecord(round)))
	}
	other := testRecord(3)
	other.Raffle = common.HexToAddress("0xbb")
	require.NoError(t, s.Put(other))

	history, err := s.History(testRaffle)
	require.NoError(t, err)
	rounds := make([]uint64, 0, len(history))
	for _, r := range history {
		rounds = append(rounds, r.Round)
	}
	require.Equal(t, []uint64{1, 2, 10, 256}, rounds)

	last, err := s.LastRound(testRaffle)
	require.NoError(t, err)
	require.Equal(t, uint64(256), last)

	last, err = s.LastRound(common.HexToAddress("0xcc"))
	require.NoError(t, err)
	require.Zero(t, last)

	var seen int
	require.NoError(t, s.ForEach(testRaffle, func(*inter.WinnerRecord) bool {
		seen++
		return seen < 2
	}))
	require.Equal(t, 2, seen)
}

func TestStoreOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(testRecord(1)))
	require.NoError(t, s.Close())

	s, err = Open(dir, nil)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(testRaffle, 1)
	require.NoError(t, err)
	require.Equal(t, testRecord(1).Winner, got.Winner)
}
