// Package inter defines the data structures shared between the raffle core,
// the execution substrate and the randomness oracle. Keeping them here lets the
// oracle and the raffle talk to each other without importing one another.
//
// Key concepts:
//   - Timestamp: block time with nanosecond precision
//   - RaffleState: the OPEN / CALCULATING lifecycle of a raffle
//   - RandomWordsRequest: the parameters a consumer sends to the oracle
//   - WinnerRecord: the persisted outcome of a resolved raffle round
package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

// Timestamp is a UNIX nanoseconds timestamp. Block times, the raffle's last
// resolution time and request issue times all use it.
type Timestamp uint64

// FromUnix converts a UNIX seconds value into a Timestamp.
func FromUnix(t int64) Timestamp {
	return Timestamp(t * int64(time.Second))
}

// FromTime converts a wall-clock time into a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Unix returns the timestamp in whole seconds.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Time returns the timestamp as a time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t))
}

// Bytes returns the big-endian encoding of the timestamp.
func (t Timestamp) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(t))
}

// Since returns the duration elapsed from prev to t. If prev is later than t
// the result is zero: block time never runs backwards for the callers of this
// helper, and a negative elapsed interval must never satisfy a time check.
func (t Timestamp) Since(prev Timestamp) time.Duration {
	if prev >= t {
		return 0
	}
	return time.Duration(t - prev)
}

// Add returns t shifted forward by d.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d)
}

// MaxTimestamp returns the later of two timestamps.
func MaxTimestamp(x, y Timestamp) Timestamp {
	if x > y {
		return x
	}
	return y
}
