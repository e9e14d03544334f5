// This file maps CLI context and config files to the launcher Config.

package launcher

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-opera-raffle/flags"
	"github.com/rony4d/go-opera-raffle/inter"
	"github.com/rony4d/go-opera-raffle/integration"
	"github.com/rony4d/go-opera-raffle/raffle"
)

// Duration is a time.Duration written as a string in config files.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node       NodeConfig
	Network    NetworkConfig
	Logging    LoggingConfig
	Metrics    MetricsConfig
	Keeper     KeeperConfig
	VRF        VRFConfig
	Simulation SimulationConfig
	Store      StoreConfig
	Frontend   FrontendConfig
}

type NodeConfig struct {
	DataDir string
	Name    string
}

// NetworkConfig selects a network preset. Non-zero fields override the
// preset's rules.
type NetworkConfig struct {
	Name             string
	EntranceFee      string `toml:",omitempty"` // wei
	Interval         Duration
	RequestTimeout   Duration
	CallbackGasLimit uint32
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string `toml:",omitempty"`
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type KeeperConfig struct {
	Interval Duration
}

type VRFConfig struct {
	Delay Duration
}

type SimulationConfig struct {
	Players       int
	Duration      Duration
	EntryInterval Duration
}

type StoreConfig struct {
	Enabled bool
	// Path is relative to the data directory.
	Path string
}

type FrontendConfig struct {
	Dir string
}

func defaultConfig() Config {
	d := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir: resolvePath(d.Node.DataDir),
			Name:    d.Node.Name,
		},
		Network: NetworkConfig{
			Name: d.Network.Name,
		},
		Logging: LoggingConfig{
			Verbosity: d.Logging.Verbosity,
			Format:    d.Logging.Format,
			Color:     d.Logging.Color,
		},
		Metrics: MetricsConfig{
			Enabled: d.Metrics.Enabled,
			Addr:    d.Metrics.Addr,
		},
		Keeper:   KeeperConfig{Interval: Duration{d.Keeper.Interval}},
		VRF:      VRFConfig{Delay: Duration{d.VRF.Delay}},
		Store:    StoreConfig{Path: "winners"},
		Frontend: FrontendConfig{Dir: d.Frontend.Dir},
		Simulation: SimulationConfig{
			Players:       d.Simulation.Players,
			EntryInterval: Duration{d.Simulation.EntryInterval},
		},
	}
}

// MakeAllConfigs merges defaults, the optional config file, then CLI flag
// overrides into a single config struct.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.String(flags.ConfigFileFlag.Name); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(ctx, &cfg)

	if _, err := cfg.Rules(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown fields: %s", strings.Join(keys, ", "))
	}
	return nil
}

func dumpConfig(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet(flags.DataDirFlag.Name) {
		cfg.Node.DataDir = resolvePath(ctx.String(flags.DataDirFlag.Name))
	}

	if ctx.IsSet(flags.LogFormatFlag.Name) {
		cfg.Logging.Format = ctx.String(flags.LogFormatFlag.Name)
	}
	if ctx.IsSet(flags.VerbosityFlag.Name) {
		cfg.Logging.Verbosity = ctx.Int(flags.VerbosityFlag.Name)
	}
	if ctx.IsSet(flags.LogColorFlag.Name) {
		cfg.Logging.Color = ctx.Bool(flags.LogColorFlag.Name)
	}
	if ctx.IsSet(flags.SentryDSNFlag.Name) {
		cfg.Logging.SentryDSN = ctx.String(flags.SentryDSNFlag.Name)
	}

	if ctx.Bool(flags.MetricsEnabledFlag.Name) {
		cfg.Metrics.Enabled = true
	}
	if ctx.IsSet(flags.MetricsAddrFlag.Name) {
		cfg.Metrics.Addr = ctx.String(flags.MetricsAddrFlag.Name)
	}

	if ctx.IsSet(flags.NetworkFlag.Name) {
		cfg.Network.Name = ctx.String(flags.NetworkFlag.Name)
	}
	if ctx.IsSet(flags.EntranceFeeFlag.Name) {
		cfg.Network.EntranceFee = ctx.String(flags.EntranceFeeFlag.Name)
	}
	if ctx.IsSet(flags.IntervalFlag.Name) {
		cfg.Network.Interval = Duration{ctx.Duration(flags.IntervalFlag.Name)}
	}
	if ctx.IsSet(flags.RequestTimeoutFlag.Name) {
		cfg.Network.RequestTimeout = Duration{ctx.Duration(flags.RequestTimeoutFlag.Name)}
	}
	if ctx.IsSet(flags.CallbackGasFlag.Name) {
		cfg.Network.CallbackGasLimit = uint32(ctx.Uint64(flags.CallbackGasFlag.Name))
	}

	if ctx.IsSet(flags.PlayersFlag.Name) {
		cfg.Simulation.Players = ctx.Int(flags.PlayersFlag.Name)
	}
	if ctx.IsSet(flags.DurationFlag.Name) {
		cfg.Simulation.Duration = Duration{ctx.Duration(flags.DurationFlag.Name)}
	}
	if ctx.IsSet(flags.EntryIntervalFlag.Name) {
		cfg.Simulation.EntryInterval = Duration{ctx.Duration(flags.EntryIntervalFlag.Name)}
	}
	if ctx.IsSet(flags.KeeperIntervalFlag.Name) {
		cfg.Keeper.Interval = Duration{ctx.Duration(flags.KeeperIntervalFlag.Name)}
	}
	if ctx.IsSet(flags.VRFDelayFlag.Name) {
		cfg.VRF.Delay = Duration{ctx.Duration(flags.VRFDelayFlag.Name)}
	}
	if ctx.Bool(flags.StoreFlag.Name) {
		cfg.Store.Enabled = true
	}
	if ctx.IsSet(flags.FrontendDirFlag.Name) {
		cfg.Frontend.Dir = ctx.String(flags.FrontendDirFlag.Name)
	}
}

// NetworkPreset returns the selected network with its rules overridden by
// the config.
func (c Config) NetworkPreset() (integration.Network, error) {
	n, err := integration.NetworkByName(c.Network.Name)
	if err != nil {
		return n, err
	}
	var overrides raffle.Rules
	if c.Network.EntranceFee != "" {
		fee, ok := new(big.Int).SetString(c.Network.EntranceFee, 10)
		if !ok {
			return n, fmt.Errorf("invalid entrance fee %q", c.Network.EntranceFee)
		}
		overrides.EntranceFee = fee
	}
	overrides.Interval = inter.Timestamp(c.Network.Interval.Duration)
	overrides.RequestTimeout = inter.Timestamp(c.Network.RequestTimeout.Duration)
	overrides.CallbackGasLimit = c.Network.CallbackGasLimit
	integration.ApplyRules(&n.Rules, overrides)
	return n, nil
}

// Rules returns the validated deployment rules.
func (c Config) Rules() (raffle.Rules, error) {
	n, err := c.NetworkPreset()
	if err != nil {
		return raffle.Rules{}, err
	}
	if err := n.Rules.Validate(); err != nil {
		return raffle.Rules{}, err
	}
	return n.Rules, nil
}

// StorePath is the winner history directory, or "" when disabled.
func (c Config) StorePath() string {
	if !c.Store.Enabled {
		return ""
	}
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Node.DataDir, c.Store.Path)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
