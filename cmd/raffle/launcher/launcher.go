package launcher

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-raffle/flags"
	"github.com/rony4d/go-opera-raffle/integration"
)

var (
	gitCommit = ""

	app = newApp(os.Stdout)
)

func newApp(out io.Writer) *cli.App {
	app := flags.NewApp(gitCommit, "self-executing raffle on a simulated VRF devnet")
	app.Writer = out
	app.Commands = []cli.Command{
		{
			Name:   "simulate",
			Usage:  "Run a devnet with players, a keeper and an oracle node",
			Action: simulate,
			Flags:  flags.Merge(flags.CommonFlags(), flags.NetworkFlags(), flags.SimulationFlags()),
		},
		{
			Name:   "config",
			Usage:  "Print the effective configuration as TOML",
			Action: dumpConfigCommand,
			Flags:  flags.Merge(flags.CommonFlags(), flags.NetworkFlags(), flags.SimulationFlags(), flags.ExportFlags()),
		},
		{
			Name:   "export",
			Usage:  "Deploy the devnet raffle and write its address and ABI for the frontend",
			Action: export,
			Flags:  flags.Merge(flags.CommonFlags(), flags.NetworkFlags(), flags.ExportFlags()),
		},
	}
	return app
}

// Launch runs the command line.
func Launch(args []string) error {
	return app.Run(args)
}

// setup reads the config and builds the logger of a command.
func setup(ctx *cli.Context) (Config, *logrus.Logger, error) {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := makeLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func dumpConfigCommand(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	return dumpConfig(ctx.App.Writer, cfg)
}

func export(ctx *cli.Context) error {
	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	net, err := cfg.NetworkPreset()
	if err != nil {
		return err
	}
	d, err := integration.DeployDevnet(integration.DevnetConfig{
		Network: net,
		Players: cfg.Simulation.Players,
		Balance: integration.DefaultDevnetConfig().Balance,
		Log:     logger,
	})
	if err != nil {
		return err
	}
	defer d.Machine.Close()

	dir := resolvePath(cfg.Frontend.Dir)
	if err := integration.UpdateFrontend(dir, net.ChainID, d.Raffle.Address()); err != nil {
		return fmt.Errorf("update frontend: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"dir":     dir,
		"chainId": net.ChainID,
		"raffle":  d.Raffle.Address().Hex(),
	}).Info("Frontend updated")
	return nil
}
