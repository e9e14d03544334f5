package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// WinnerRecord is the outcome of one resolved raffle round. It is built from
// the committed logs of the resolving block and persisted by the store.
type WinnerRecord struct {
	// Round is the 1-based index of the resolved cycle.
	Round uint64
	// Raffle is the address of the raffle contract.
	Raffle common.Address
	// Winner received the whole pool.
	Winner common.Address
	// RequestID is the randomness request the round was resolved with.
	RequestID *big.Int
	// Block is the number of the block that resolved the round.
	Block idx.Block
	// TxHash identifies the resolving message.
	TxHash common.Hash
	// Time is the block time of the resolution.
	Time Timestamp
}

// Hash returns a deterministic digest of the record. Two stores holding the
// same history produce the same hashes, which makes exported histories easy to
// compare.
func (r WinnerRecord) Hash() hash.Hash {
	reqID := []byte{}
	if r.RequestID != nil {
		reqID = r.RequestID.Bytes()
	}
	return hash.Of(
		bigendian.Uint64ToBytes(r.Round),
		r.Raffle.Bytes(),
		r.Winner.Bytes(),
		reqID,
		bigendian.Uint64ToBytes(uint64(r.Block)),
		r.TxHash.Bytes(),
		r.Time.Bytes(),
	)
}
