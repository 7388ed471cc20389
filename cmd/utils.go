package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"

	"github.com/encodeous/ripple/mock"
	"github.com/encodeous/ripple/state"
)

// newLogger logs to stderr, and to the scenario's log file or --log-path when either is set.
func newLogger(prefix string, file string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	closer := func() {}
	if logPath != "" {
		file = logPath
	}
	if file != "" {
		err := os.MkdirAll(path.Dir(file), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(file, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		closer = func() { _ = f.Close() }
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// loadScenario reads a scenario file, or a sample by name when sample is set.
func loadScenario(file, sample string, engine state.EngineKind) (state.Scenario, error) {
	if sample != "" {
		return mock.Get(sample, engine)
	}
	if file == "" {
		return state.Scenario{}, fmt.Errorf("expecting a scenario file or --sample")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return state.Scenario{}, err
	}
	var sc state.Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return state.Scenario{}, fmt.Errorf("%w: %w", state.ErrInvalidConfig, err)
	}
	if engine != "" {
		sc.Engine = engine
	}
	return sc, nil
}
