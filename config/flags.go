package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// flag names and the config keys they set
	epochHeight          = "epoch-height"
	viewTimeout          = "view-timeout"
	secondShareTimeout   = "second-share-timeout"
	drbDifficulty        = "drb-difficulty"
	drbUpgradeDifficulty = "drb-upgrade-difficulty"
	// membership catch-up
	membershipRetryInitial  = "membership-retry-initial"
	membershipRetryMax      = "membership-retry-max"
	membershipRetryAttempts = "membership-retry-attempts"
	membershipCacheSize     = "membership-cache-size"
	// versions
	versionBase           = "version-base"
	versionUpgrade        = "version-upgrade"
	versionEpochsFromView = "version-epochs-from-view"

	aggregatorWorkers = "aggregator-workers"
	storageDir        = "datadir"
	logLevel          = "loglevel"
)

var flagKeys = map[string]string{
	epochHeight:             "epoch_height",
	viewTimeout:             "view_timeout",
	secondShareTimeout:      "second_share_timeout",
	drbDifficulty:           "drb_difficulty",
	drbUpgradeDifficulty:    "drb_upgrade_difficulty",
	membershipRetryInitial:  "membership.retry_initial",
	membershipRetryMax:      "membership.retry_max",
	membershipRetryAttempts: "membership.retry_attempts",
	membershipCacheSize:     "membership.cache_size",
	versionBase:             "versions.base",
	versionUpgrade:          "versions.upgrade",
	versionEpochsFromView:   "versions.epochs_from_view",
	aggregatorWorkers:       "aggregator.workers",
	storageDir:              "storage.dir",
	logLevel:                "log.level",
}

func AllFlagNames() []string {
	names := make([]string, 0, len(flagKeys))
	for name := range flagKeys {
		names = append(names, name)
	}
	return names
}

// InitializeFlags registers all configuration flags on the flag set, using
// the values of config as defaults.
func InitializeFlags(flags *pflag.FlagSet, config Config) {
	flags.Uint64(epochHeight, config.EpochHeight, "number of blocks per epoch, 0 disables epochs")
	flags.Duration(viewTimeout, config.ViewTimeout, "duration of a view before replicas time out")
	flags.Duration(secondShareTimeout, config.SecondShareTimeout, "how long a replica in an epoch transition waits for its next-epoch VID share")
	flags.Uint64(drbDifficulty, config.DrbDifficulty, "iterations of the DRB computation")
	flags.Uint64(drbUpgradeDifficulty, config.DrbUpgradeDifficulty, "iterations of the DRB computation after the DRB upgrade")

	flags.Duration(membershipRetryInitial, config.Membership.RetryInitial, "initial backoff of a stake table catch-up")
	flags.Duration(membershipRetryMax, config.Membership.RetryMax, "maximum backoff of a stake table catch-up")
	flags.Uint64(membershipRetryAttempts, config.Membership.RetryAttempts, "attempts of a stake table catch-up before it fails")
	flags.Int(membershipCacheSize, config.Membership.CacheSize, "number of resolved epoch memberships kept in memory")

	flags.String(versionBase, config.Versions.Base, "protocol version at genesis (major.minor)")
	flags.String(versionUpgrade, config.Versions.Upgrade, "protocol version an upgrade certificate may move to, empty for none")
	flags.Uint64(versionEpochsFromView, config.Versions.EpochsFromView, "view at which epochs activate, 0 for never")

	flags.Int(aggregatorWorkers, config.Aggregator.Workers, "number of workers verifying votes")
	flags.String(storageDir, config.Storage.Dir, "directory of the consensus database")
	flags.String(logLevel, config.Log.Level, "level for logging output")
}

// bindFlags makes the flags of the set override their config keys. Flags
// unknown to the configuration are ignored.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("could not bind flag %s to %s: %w", f.Name, key, bindErr)
		}
	})
	return err
}
