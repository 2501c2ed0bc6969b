package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onflow/hotshot/cmd/util/cmd/common"
	listproposals "github.com/onflow/hotshot/cmd/util/cmd/list-proposals/cmd"
	readconsensusstate "github.com/onflow/hotshot/cmd/util/cmd/read-consensus-state/cmd"
	"github.com/onflow/hotshot/config"
)

var rootCmd = &cobra.Command{
	Use:   "util",
	Short: "Utility functions for a consensus replica",
	// usage errors are printed by cobra, runtime errors by Execute
	SilenceErrors: true,
}

var RootCmd = rootCmd

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(common.ConfigFileFlag, "", "path to a config file (yaml, toml or json)")
	config.InitializeFlags(rootCmd.PersistentFlags(), config.Default())

	addCommands()
}

func addCommands() {
	rootCmd.AddCommand(readconsensusstate.Cmd)
	rootCmd.AddCommand(listproposals.Cmd)
}
