// Package config loads the configuration of a consensus replica from
// defaults, an optional config file, HOTSHOT_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/hotshot/consensus/hotshot/committees"
	"github.com/onflow/hotshot/consensus/hotshot/model"
	"github.com/onflow/hotshot/consensus/hotshot/quorumproposal"
	"github.com/onflow/hotshot/consensus/hotshot/quorumvote"
	"github.com/onflow/hotshot/consensus/hotshot/signature"
	"github.com/onflow/hotshot/consensus/hotshot/voteaggregator"
)

const envPrefix = "HOTSHOT"

// minEpochHeight is the smallest epoch height for which the epoch root
// (epoch_height-5) and the transition window (the last 3 blocks) don't overlap
// the first block of the epoch.
const minEpochHeight = 6

type Config struct {
	EpochHeight          uint64           `mapstructure:"epoch_height"`
	ViewTimeout          time.Duration    `mapstructure:"view_timeout"`
	SecondShareTimeout   time.Duration    `mapstructure:"second_share_timeout"`
	DrbDifficulty        uint64           `mapstructure:"drb_difficulty"`
	DrbUpgradeDifficulty uint64           `mapstructure:"drb_upgrade_difficulty"`
	Membership           MembershipConfig `mapstructure:"membership"`
	Versions             VersionsConfig   `mapstructure:"versions"`
	Aggregator           AggregatorConfig `mapstructure:"aggregator"`
	Storage              StorageConfig    `mapstructure:"storage"`
	Log                  LogConfig        `mapstructure:"log"`
}

type MembershipConfig struct {
	RetryInitial  time.Duration `mapstructure:"retry_initial"`
	RetryMax      time.Duration `mapstructure:"retry_max"`
	RetryAttempts uint64        `mapstructure:"retry_attempts"`
	CacheSize     int           `mapstructure:"cache_size"`
}

// VersionsConfig describes the protocol versions of the chain. Base runs from
// genesis; epochs activate at EpochsFromView unless it is 0. Upgrade is the
// version an upgrade certificate may move the chain to, if any.
type VersionsConfig struct {
	Base           string `mapstructure:"base"`
	Upgrade        string `mapstructure:"upgrade"`
	EpochsFromView uint64 `mapstructure:"epochs_from_view"`
}

type AggregatorConfig struct {
	Workers int `mapstructure:"workers"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used for keys that aren't set.
func Default() Config {
	coordinator := committees.DefaultCoordinatorConfig()
	return Config{
		EpochHeight:          0,
		ViewTimeout:          quorumproposal.DefaultViewTimeout,
		SecondShareTimeout:   quorumvote.DefaultSecondShareTimeout,
		DrbDifficulty:        coordinator.DrbDifficulty,
		DrbUpgradeDifficulty: coordinator.DrbUpgradeDifficulty,
		Membership: MembershipConfig{
			RetryInitial:  coordinator.RetryInitial,
			RetryMax:      coordinator.RetryMax,
			RetryAttempts: coordinator.RetryAttempts,
			CacheSize:     coordinator.CacheSize,
		},
		Versions: VersionsConfig{
			Base: model.BaseVersion.String(),
		},
		Aggregator: AggregatorConfig{
			Workers: 4,
		},
		Storage: StorageConfig{
			Dir: "/data/hotshot",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults, environment and flags apply. flags may be nil.
//
// Expected error returns:
//   - model.ConfigurationError if the resulting configuration is invalid
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		err := bindFlags(v, flags)
		if err != nil {
			return nil, fmt.Errorf("could not bind flags: %w", err)
		}
	}

	var c Config
	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	err = c.Validate()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("epoch_height", d.EpochHeight)
	v.SetDefault("view_timeout", d.ViewTimeout)
	v.SetDefault("second_share_timeout", d.SecondShareTimeout)
	v.SetDefault("drb_difficulty", d.DrbDifficulty)
	v.SetDefault("drb_upgrade_difficulty", d.DrbUpgradeDifficulty)
	v.SetDefault("membership.retry_initial", d.Membership.RetryInitial)
	v.SetDefault("membership.retry_max", d.Membership.RetryMax)
	v.SetDefault("membership.retry_attempts", d.Membership.RetryAttempts)
	v.SetDefault("membership.cache_size", d.Membership.CacheSize)
	v.SetDefault("versions.base", d.Versions.Base)
	v.SetDefault("versions.upgrade", d.Versions.Upgrade)
	v.SetDefault("versions.epochs_from_view", d.Versions.EpochsFromView)
	v.SetDefault("aggregator.workers", d.Aggregator.Workers)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks the configuration for inconsistencies.
//
// Expected error returns:
//   - model.ConfigurationError describing every invalid setting
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.EpochHeight != 0 && c.EpochHeight < minEpochHeight {
		errs = multierror.Append(errs, fmt.Errorf("epoch_height %d is below %d", c.EpochHeight, minEpochHeight))
	}
	if c.Versions.EpochsFromView != 0 && c.EpochHeight == 0 {
		errs = multierror.Append(errs, fmt.Errorf("versions.epochs_from_view is set without epoch_height"))
	}
	if c.ViewTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("view_timeout must be positive, got %v", c.ViewTimeout))
	}
	if c.SecondShareTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("second_share_timeout must be positive, got %v", c.SecondShareTimeout))
	}
	if c.Membership.RetryInitial <= 0 || c.Membership.RetryMax < c.Membership.RetryInitial {
		errs = multierror.Append(errs, fmt.Errorf("invalid membership backoff [%v, %v]", c.Membership.RetryInitial, c.Membership.RetryMax))
	}
	if c.Membership.CacheSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("membership.cache_size must be positive, got %d", c.Membership.CacheSize))
	}
	if c.Aggregator.Workers <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("aggregator.workers must be positive, got %d", c.Aggregator.Workers))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid log.level: %w", err))
	}
	if _, err := c.UpgradeLock(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return model.NewConfigurationError(err)
	}
	return nil
}

// UpgradeLock builds the version activation table of the chain.
func (c *Config) UpgradeLock() (*model.UpgradeLock, error) {
	base, err := model.ParseVersion(c.Versions.Base)
	if err != nil {
		return nil, model.NewConfigurationErrorf("invalid versions.base: %w", err)
	}
	table := []model.VersionActivation{{View: model.GenesisView, Version: base}}
	if c.Versions.EpochsFromView != 0 {
		if base.AtLeast(model.EpochVersion) {
			return nil, model.NewConfigurationErrorf("versions.base %s already runs epochs", base)
		}
		table = append(table, model.VersionActivation{View: model.View(c.Versions.EpochsFromView), Version: model.EpochVersion})
	}

	var supported []model.Version
	if c.Versions.Upgrade != "" {
		upgrade, err := model.ParseVersion(c.Versions.Upgrade)
		if err != nil {
			return nil, model.NewConfigurationErrorf("invalid versions.upgrade: %w", err)
		}
		if !base.Less(upgrade) {
			return nil, model.NewConfigurationErrorf("versions.upgrade %s doesn't follow versions.base %s", upgrade, base)
		}
		supported = append(supported, upgrade)
	}
	return model.NewUpgradeLock(table, supported...)
}

// LogLevel returns the parsed log level, info if it doesn't parse.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) CoordinatorConfig() committees.CoordinatorConfig {
	return committees.CoordinatorConfig{
		EpochHeight:          c.EpochHeight,
		DrbDifficulty:        c.DrbDifficulty,
		DrbUpgradeDifficulty: c.DrbUpgradeDifficulty,
		RetryInitial:         c.Membership.RetryInitial,
		RetryMax:             c.Membership.RetryMax,
		RetryAttempts:        c.Membership.RetryAttempts,
		CacheSize:            c.Membership.CacheSize,
	}
}

func (c *Config) AggregatorConfig() voteaggregator.TaskConfig {
	return voteaggregator.TaskConfig{
		Workers:     c.Aggregator.Workers,
		EpochHeight: c.EpochHeight,
	}
}

func (c *Config) ProposalConfig(sk *signature.PrivateKey) quorumproposal.Config {
	return quorumproposal.Config{
		PublicKey:   sk.PublicKey(),
		PrivateKey:  sk,
		EpochHeight: c.EpochHeight,
		ViewTimeout: c.ViewTimeout,
	}
}

func (c *Config) VoteConfig(sk *signature.PrivateKey) quorumvote.Config {
	return quorumvote.Config{
		PublicKey:          sk.PublicKey(),
		PrivateKey:         sk,
		EpochHeight:        c.EpochHeight,
		SecondShareTimeout: c.SecondShareTimeout,
	}
}
