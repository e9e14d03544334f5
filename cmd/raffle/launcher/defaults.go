package launcher

import (
	"time"
)

// Defaults bundles the baseline configuration values the launcher uses
// before config files and flags override them.
type Defaults struct {
	Node       NodeDefaults
	Network    NetworkDefaults
	Logging    LoggingDefaults
	Metrics    MetricsDefaults
	Keeper     KeeperDefaults
	VRF        VRFDefaults
	Simulation SimulationDefaults
	Frontend   FrontendDefaults
}

type NodeDefaults struct {
	DataDir string // root of the winner history and exports
	Name    string // shown in logs
}

type NetworkDefaults struct {
	Name string // network preset, see integration.Networks
}

type LoggingDefaults struct {
	Verbosity int    // 0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace
	Format    string // text or json
	Color     bool
}

type MetricsDefaults struct {
	Enabled bool
	Addr    string
}

type KeeperDefaults struct {
	Interval time.Duration // how often checkUpkeep is evaluated
}

type VRFDefaults struct {
	Delay time.Duration // answer delay of the oracle node
}

type SimulationDefaults struct {
	Players       int
	EntryInterval time.Duration
}

type FrontendDefaults struct {
	Dir string
}

// DefaultConfig returns a fully populated Defaults instance.
func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir: "~/.raffle",
			Name:    "go-opera-raffle",
		},
		Network: NetworkDefaults{
			Name: "hardhat",
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     true,
		},
		Metrics: MetricsDefaults{
			Enabled: false,
			Addr:    "127.0.0.1:6060",
		},
		Keeper: KeeperDefaults{
			Interval: time.Second,
		},
		VRF: VRFDefaults{
			Delay: 2 * time.Second,
		},
		Simulation: SimulationDefaults{
			Players:       9,
			EntryInterval: time.Second,
		},
		Frontend: FrontendDefaults{
			Dir: "../nextjs-lottery/constants",
		},
	}
}
