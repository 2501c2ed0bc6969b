package common

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/onflow/hotshot/config"
)

// ConfigFileFlag names the persistent flag holding the config file path.
const ConfigFileFlag = "config"

// LoadConfig loads the configuration with the flags of the command, which
// include those its parents declare persistent.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(ConfigFileFlag)
	if err != nil {
		return nil, fmt.Errorf("could not read --%s: %w", ConfigFileFlag, err)
	}
	return config.Load(path, cmd.Flags())
}

// Logger returns the logger of a command, writing to stderr so its JSON output
// stays parsable.
func Logger(c *config.Config) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(c.LogLevel()).
		With().
		Timestamp().
		Logger()
}
