package cmd

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/encodeous/ripple/mock"
	"github.com/encodeous/ripple/state"
)

var sampleEngine string

var sampleCmd = &cobra.Command{
	Use:       "sample <name>",
	Short:     "Print a built in scenario as yaml",
	Args:      cobra.ExactArgs(1),
	ValidArgs: mock.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := mock.Get(args[0], state.EngineKind(sampleEngine))
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(sc)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
	GroupID: "cfg",
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringVarP(&sampleEngine, "engine", "e", string(state.LinkStateEngine), "Engine of the printed scenario")
}
