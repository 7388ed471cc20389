package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	logPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ripple",
	Short: "Ripple routing engine simulator",
	Long: `Ripple runs distance-vector and link-state routing nodes over a simulated network.
Scenarios describe the links between nodes and how they change over time; ripple checks that every node ends up with the shortest routes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cfg",
		Title: "Scenarios",
	})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVarP(&logPath, "log-path", "l", "", "Also write logs to this file")
}
