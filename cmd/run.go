package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	_ "github.com/encodeous/ripple/perf"
	"github.com/encodeous/ripple/sim"
	"github.com/encodeous/ripple/state"
)

var (
	sampleName  string
	engineName  string
	dumpNodes   []string
	live        bool
	debugAddr   string
	liveTimeout time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Run a scenario to quiescence and print the resulting routes",
	Long: `This runs every node of the scenario until no messages are left in flight.
By default the simulation is single threaded and deterministic; --live runs each node on its own goroutine with real timers instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) > 0 {
			file = args[0]
		}
		sc, err := loadScenario(file, sampleName, state.EngineKind(engineName))
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger("ripple", sc.LogPath)
		if err != nil {
			return err
		}
		defer closeLog()

		reg := prometheus.NewRegistry()
		metrics := sim.NewMetrics(reg)
		if debugAddr != "" {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			go func() {
				log.Warn("debug server stopped", "err", http.ListenAndServe(debugAddr, nil))
			}()
		}

		var network sim.Network
		var verify func() error
		if live {
			l, err := sim.NewLive(sc, log, metrics)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			l.Start(ctx)
			wctx, cancel := context.WithTimeout(ctx, liveTimeout)
			defer cancel()
			err = l.WaitQuiescent(wctx)
			defer func() {
				if err := l.Stop(); err != nil && !errors.Is(err, sim.ErrStopped) {
					log.Error("live network failed", "err", err)
				}
			}()
			if err != nil {
				return err
			}
			network, verify = l, l.Verify
		} else {
			s, err := sim.New(sc, log, metrics)
			if err != nil {
				return err
			}
			if err := s.Run(); err != nil {
				return err
			}
			log.Info("simulation quiescent", "at", s.Now, "stats", s.Stats.String())
			network, verify = s, s.Verify
		}

		if err := printDumps(network, dumpNodes); err != nil {
			return err
		}
		if err := verify(); err != nil {
			return err
		}
		log.Info("every node agrees with the network", "nodes", len(network.Nodes()))
		return nil
	},
	GroupID: "sim",
}

type dumper interface {
	Dump(id state.NodeId) (string, error)
}

func printDumps(net sim.Network, nodes []string) error {
	d, ok := net.(dumper)
	if !ok {
		return nil
	}
	ids := make([]state.NodeId, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, state.NodeId(n))
	}
	if len(nodes) == 1 && nodes[0] == "all" {
		ids = net.Nodes()
	}
	for _, id := range ids {
		dump, err := d.Dump(id)
		if err != nil {
			return err
		}
		fmt.Println(dump)
		fmt.Println()
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&sampleName, "sample", "s", "", "Run a built in sample scenario instead of a file")
	runCmd.Flags().StringVarP(&engineName, "engine", "e", "", "Override the scenario's engine: distance-vector or link-state")
	runCmd.Flags().StringSliceVarP(&dumpNodes, "dump", "d", nil, "Print the tables of these nodes, or all")
	runCmd.Flags().BoolVar(&live, "live", false, "Run each node on its own goroutine with real timers")
	runCmd.Flags().DurationVar(&liveTimeout, "timeout", time.Minute, "How long a live run may take to quiesce")
	runCmd.Flags().StringVar(&debugAddr, "debug-addr", "", "Serve /metrics and /debug/metrics on this address")
}
