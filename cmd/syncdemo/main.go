// Command syncdemo drives the scenarios from spec.md §8 against an
// in-process server and a handful of clients, to make the replication
// protocol observable from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "syncdemo",
		Short: "Drive the sync engine's replication scenarios from the command line",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v.SetEnvPrefix("SYNCDEMO")
			v.AutomaticEnv()
			return v.BindPFlags(cmd.Flags())
		},
	}
	cmd.PersistentFlags().String("log-level", "info", "one of debug, info, warn, error")
	cmd.PersistentFlags().String("statefile", "", "optional path to a JSON patch log to preload the server with")

	cmd.AddCommand(newRunCmd(v))
	cmd.AddCommand(newScenarioCmd(v))
	return cmd
}
