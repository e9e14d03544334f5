package raffle

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-raffle/inter"
)

// TestPresets checks the parameters of every known network.
func TestPresets(t *testing.T) {
	tests := []struct {
		name    string
		rules   Rules
		chainID uint64
		subID   uint64
	}{
		{"hardhat", HardhatRules(), HardhatChainID, 0},
		{"localhost", LocalhostRules(), HardhatChainID, 0},
		{"rinkeby", RinkebyRules(), RinkebyChainID, 7936},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rules
			require.Equal(t, tt.name, r.Name)
			require.Equal(t, tt.chainID, r.ChainID)
			require.Equal(t, tt.subID, r.SubscriptionID)
			require.Equal(t, big.NewInt(1e16), r.EntranceFee)
			require.Equal(t, inter.Timestamp(30*time.Second), r.Interval)
			require.Equal(t, DefaultGasLane, r.GasLane)
			require.Equal(t, uint32(500000), r.CallbackGasLimit)
			require.Equal(t, uint16(3), r.RequestConfirmations)
			require.Equal(t, uint32(1), r.NumWords)
			require.NoError(t, r.Validate())
		})
	}
}

func TestRulesValidate(t *testing.T) {
	r := HardhatRules()
	r.EntranceFee = big.NewInt(0)
	r.Interval = 0
	r.NumWords = 2
	r.CallbackGasLimit = MaxCallbackGasLimit + 1
	r.RequestTimeout = 0

	err := r.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 5)

	r = HardhatRules()
	r.EntranceFee = nil
	require.Error(t, r.Validate())
}

// TestRulesCopy verifies that a copy does not share the entrance fee.
func TestRulesCopy(t *testing.T) {
	original := HardhatRules()
	cp := original.Copy()
	require.Equal(t, original, cp)

	cp.EntranceFee.SetInt64(1)
	require.Equal(t, big.NewInt(1e16), original.EntranceFee)
}

func TestRulesString(t *testing.T) {
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(RinkebyRules().String()), &decoded))
	require.Equal(t, "rinkeby", decoded["Name"])
	require.EqualValues(t, 7936, decoded["SubscriptionID"])
}
