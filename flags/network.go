package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// Flags selecting and tuning the deployment.
var (
	NetworkFlag = cli.StringFlag{
		Name:  "network",
		Usage: "Network preset (hardhat|localhost|rinkeby)",
		Value: "hardhat",
	}
	EntranceFeeFlag = cli.StringFlag{
		Name:  "raffle.fee",
		Usage: "Entrance fee in wei, overrides the network preset",
	}
	IntervalFlag = cli.DurationFlag{
		Name:  "raffle.interval",
		Usage: "Minimum time between two draws, overrides the network preset",
	}
	RequestTimeoutFlag = cli.DurationFlag{
		Name:  "raffle.timeout",
		Usage: "Time after which an unanswered randomness request may be reissued",
	}
	CallbackGasFlag = cli.Uint64Flag{
		Name:  "raffle.callbackgas",
		Usage: "Gas limit of the randomness callback",
	}
)

// NetworkFlags covers network selection and deployment parameters.
func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		NetworkFlag,
		EntranceFeeFlag,
		IntervalFlag,
		RequestTimeoutFlag,
		CallbackGasFlag,
	}
}
