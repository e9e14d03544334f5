package integration

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-opera-raffle/raffle"
)

// Package integration assembles raffle deployments. Networks bundle the
// deployment rules of a chain with the address of its VRF coordinator, so the
// launcher can pick a whole setup by name:
//
//	net, err := integration.NetworkByName("hardhat")
//	devnet, err := integration.DeployDevnet(integration.DevnetConfig{Network: net})
//
// Development networks have no coordinator of their own, a mock one is
// deployed together with the raffle.

// DevelopmentChains lists the networks that run on mocks.
var DevelopmentChains = []string{"hardhat", "localhost"}

// RinkebyCoordinator is the VRFCoordinatorV2 deployment on Rinkeby.
var RinkebyCoordinator = common.HexToAddress("0x6168499c0cFfCaCD319c818142124B7A15E857ab")

// Network describes where and how a raffle is deployed.
type Network struct {
	Name    string
	ChainID uint64
	Rules   raffle.Rules
	// Coordinator is zero on development chains.
	Coordinator common.Address
}

// Development reports whether the network runs on mocks.
func (n Network) Development() bool {
	return IsDevelopment(n.Name)
}

// IsDevelopment reports whether name is one of DevelopmentChains.
func IsDevelopment(name string) bool {
	for _, c := range DevelopmentChains {
		if c == name {
			return true
		}
	}
	return false
}

func HardhatNetwork() Network {
	return Network{Name: "hardhat", ChainID: raffle.HardhatChainID, Rules: raffle.HardhatRules()}
}

func LocalhostNetwork() Network {
	return Network{Name: "localhost", ChainID: raffle.HardhatChainID, Rules: raffle.LocalhostRules()}
}

func RinkebyNetwork() Network {
	return Network{
		Name:        "rinkeby",
		ChainID:     raffle.RinkebyChainID,
		Rules:       raffle.RinkebyRules(),
		Coordinator: RinkebyCoordinator,
	}
}

// Networks returns every known network.
func Networks() []Network {
	return []Network{HardhatNetwork(), LocalhostNetwork(), RinkebyNetwork()}
}

func names() string {
	var out []string
	for _, n := range Networks() {
		out = append(out, n.Name)
	}
	return strings.Join(out, ", ")
}

// NetworkByName looks a network up by its name.
func NetworkByName(name string) (Network, error) {
	for _, n := range Networks() {
		if n.Name == name {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("unknown network: %q (valid: %s)", name, names())
}

// NetworkByChainID looks a network up by its chain id. Chain 31337 resolves
// to hardhat.
func NetworkByChainID(chainID uint64) (Network, error) {
	for _, n := range Networks() {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("unknown chain id: %d (valid: %s)", chainID, names())
}

// ApplyRules merges overrides into target. Zero fields of overrides keep the
// target's values, so only what was set explicitly changes.
func ApplyRules(target *raffle.Rules, overrides raffle.Rules) {
	if overrides.Name != "" {
		target.Name = overrides.Name
	}
	if overrides.ChainID != 0 {
		target.ChainID = overrides.ChainID
	}
	if overrides.EntranceFee != nil {
		target.EntranceFee = overrides.EntranceFee
	}
	if overrides.Interval != 0 {
		target.Interval = overrides.Interval
	}
	if overrides.GasLane != (common.Hash{}) {
		target.GasLane = overrides.GasLane
	}
	if overrides.SubscriptionID != 0 {
		target.SubscriptionID = overrides.SubscriptionID
	}
	if overrides.RequestConfirmations != 0 {
		target.RequestConfirmations = overrides.RequestConfirmations
	}
	if overrides.CallbackGasLimit != 0 {
		target.CallbackGasLimit = overrides.CallbackGasLimit
	}
	if overrides.NumWords != 0 {
		target.NumWords = overrides.NumWords
	}
	if overrides.RequestTimeout != 0 {
		target.RequestTimeout = overrides.RequestTimeout
	}
}
