package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// Flags of the simulated devnet and its services.
var (
	PlayersFlag = cli.IntFlag{
		Name:  "sim.players",
		Usage: "Number of funded player accounts",
		Value: 9,
	}
	DurationFlag = cli.DurationFlag{
		Name:  "sim.duration",
		Usage: "How long the simulation runs, 0 runs until interrupted",
	}
	EntryIntervalFlag = cli.DurationFlag{
		Name:  "sim.entry",
		Usage: "Delay between two entries of simulated players",
		Value: time.Second,
	}
	KeeperIntervalFlag = cli.DurationFlag{
		Name:  "keeper.interval",
		Usage: "How often the keeper checks upkeep",
		Value: time.Second,
	}
	VRFDelayFlag = cli.DurationFlag{
		Name:  "vrf.delay",
		Usage: "How long the oracle node waits before answering a request",
		Value: 2 * time.Second,
	}
	StoreFlag = cli.BoolFlag{
		Name:  "store",
		Usage: "Persist the winner history under <datadir>/winners",
	}
	FrontendDirFlag = cli.StringFlag{
		Name:  "frontend",
		Usage: "Frontend constants directory receiving contractAddresses.json and abi.json",
		Value: "../nextjs-lottery/constants",
	}
)

// SimulationFlags holds knobs of the simulate command.
func SimulationFlags() []cli.Flag {
	return []cli.Flag{
		PlayersFlag,
		DurationFlag,
		EntryIntervalFlag,
		KeeperIntervalFlag,
		VRFDelayFlag,
		StoreFlag,
	}
}

// ExportFlags holds knobs of the export command.
func ExportFlags() []cli.Flag {
	return []cli.Flag{
		FrontendDirFlag,
	}
}
