package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/encodeous/ripple/sim"
	"github.com/encodeous/ripple/state"
)

var (
	verifySample string
	verifySeeds  int
)

// verifyCmd runs a scenario under both engines and compares every node with the network
var verifyCmd = &cobra.Command{
	Use:   "verify [scenario.yaml]",
	Short: "Check that both engines converge to the shortest routes on a scenario",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) > 0 {
			file = args[0]
		}
		log, closeLog, err := newLogger("verify", "")
		if err != nil {
			return err
		}
		defer closeLog()

		failed := false
		for _, engine := range []state.EngineKind{state.DistanceVectorEngine, state.LinkStateEngine} {
			for seed := range max(verifySeeds, 1) {
				sc, err := loadScenario(file, verifySample, engine)
				if err != nil {
					return err
				}
				if verifySeeds > 0 {
					sc.Seed = uint64(seed)
				}
				s, err := sim.New(sc, log, nil)
				if err != nil {
					return err
				}
				if err := s.Run(); err != nil {
					return err
				}
				ms := s.Mismatches()
				log.Info("verified", "engine", engine, "seed", sc.Seed, "mismatches", len(ms), "stats", s.Stats.String())
				for _, m := range ms {
					fmt.Printf("%s (seed %d): %s\n", engine, sc.Seed, m.Error())
				}
				failed = failed || len(ms) > 0
			}
		}
		if failed {
			return errors.New("some nodes disagree with the network")
		}
		return nil
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifySample, "sample", "s", "", "Verify a built in sample scenario instead of a file")
	verifyCmd.Flags().IntVar(&verifySeeds, "seeds", 0, "Repeat with this many jitter seeds")
}
