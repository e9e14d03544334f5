package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-raffle/evmcore"
	"github.com/rony4d/go-opera-raffle/integration"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/keeper"
	"github.com/rony4d/go-opera-raffle/metrics"
	"github.com/rony4d/go-opera-raffle/raffle"
	"github.com/rony4d/go-opera-raffle/store"
)

func simulate(ctx *cli.Context) error {
	cfg, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := runSimulation(sigCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Simulation failed")
		return err
	}
	for _, r := range history {
		logger.WithFields(logrus.Fields{
			"round":   r.Round,
			"winner":  r.Winner.Hex(),
			"request": r.RequestID,
			"block":   r.Block,
			"time":    r.Time.Time().Format(time.RFC3339),
		}).Info("Winner")
	}
	logger.WithField("rounds", len(history)).Info("Simulation finished")
	return nil
}

// runSimulation deploys a devnet and runs players, the keeper and the oracle
// node against it until ctx is done or the configured duration passes. It
// returns the recorded winners.
func runSimulation(ctx context.Context, cfg Config, logger *logrus.Logger) ([]*inter.WinnerRecord, error) {
	if err := cfg.Simulation.validate(cfg.Keeper, cfg.VRF); err != nil {
		return nil, err
	}
	net, err := cfg.NetworkPreset()
	if err != nil {
		return nil, err
	}
	d, err := integration.DeployDevnet(integration.DevnetConfig{
		Network: net,
		Players: cfg.Simulation.Players,
		Balance: integration.DefaultDevnetConfig().Balance,
		Log:     logger,
	})
	if err != nil {
		return nil, err
	}
	defer d.Machine.Close()

	if path := cfg.StorePath(); path != "" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	winners, err := store.Open(cfg.StorePath(), logger)
	if err != nil {
		return nil, err
	}
	defer winners.Close()

	recorder := store.NewRecorder(d.Machine, winners, logger)
	recorder.Start()
	defer recorder.Stop()

	registry := prometheus.NewRegistry()
	collector := metrics.NewRaffleCollector(registry, d.Raffle.Address())
	collector.Start(d.Machine)
	defer collector.Stop()

	if cfg.Simulation.Duration.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Simulation.Duration.Duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.NewFulfiller(cfg.VRF.Delay.Duration, logger.WithField("service", "vrf")).Run(gctx)
	})
	g.Go(func() error {
		return keeper.New(keeper.Config{
			Machine: d.Machine,
			Raffle:  d.Raffle,
			Sender:  d.Deployer,
			Ticker:  ticker.New(cfg.Keeper.Interval.Duration),
			Log:     logger.WithField("service", "keeper"),
		}).Run(gctx)
	})
	g.Go(func() error {
		return enterPlayers(gctx, d, cfg.Simulation.EntryInterval.Duration, logger.WithField("service", "players"))
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.NewServer(logger, cfg.Metrics.Addr, registry).Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// let the recorder catch up with the last resolved round
	var resolved uint64
	_ = d.Machine.View(func(env *evmcore.Env) error {
		resolved = d.Raffle.Round()
		return nil
	})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if last, err := winners.LastRound(d.Raffle.Address()); err != nil || last >= resolved {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return winners.History(d.Raffle.Address())
}

func (s SimulationConfig) validate(k KeeperConfig, v VRFConfig) error {
	var result *multierror.Error
	if s.Players < 1 {
		result = multierror.Append(result, fmt.Errorf("at least one player is required, got %d", s.Players))
	}
	if s.EntryInterval.Duration <= 0 {
		result = multierror.Append(result, fmt.Errorf("entry interval must be positive"))
	}
	if k.Interval.Duration <= 0 {
		result = multierror.Append(result, fmt.Errorf("keeper interval must be positive"))
	}
	if v.Delay.Duration < 0 {
		result = multierror.Append(result, fmt.Errorf("vrf delay must not be negative"))
	}
	return result.ErrorOrNil()
}

// enterPlayers makes the players enter in turn, one every interval.
func enterPlayers(ctx context.Context, d *integration.Devnet, interval time.Duration, log logrus.FieldLogger) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for i := 0; ; i++ {
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil
		}
		player := d.Players[i%len(d.Players)]
		_, err := d.Machine.Execute(evmcore.Message{
			From:  player,
			To:    d.Raffle.Address(),
			Value: d.Raffle.EntranceFee(),
		}, d.Raffle.EnterRaffle)
		switch {
		case errors.Is(err, raffle.ErrNotOpen):
			log.Debug("Raffle is drawing, entry refused")
		case err != nil:
			log.WithError(err).Warn("Entry failed")
		default:
			log.WithField("player", player.Hex()).Debug("Entered raffle")
		}
	}
}
