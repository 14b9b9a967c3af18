package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"travelguard/internal/audit"
	auditmemory "travelguard/internal/audit/store/memory"
	"travelguard/internal/platform/logger"
	"travelguard/internal/replay"
	"travelguard/internal/state/store/memory"
	"travelguard/internal/topology"
	"travelguard/internal/validator"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, replay.ErrMismatch) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type flags struct {
	scenario string
	topology string
	debounce time.Duration
	logLevel string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a location event scenario through an in-memory validator",
		Long: `replay feeds the events of a YAML scenario, in order, to a fresh validator
backed by the in-memory store and prints one line per decision. When the
scenario lists expected codes, any mismatch makes the command exit non-zero.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f, out)
		},
	}
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "scenario YAML file")
	cmd.Flags().StringVar(&f.topology, "topology", "", "topology YAML file (default: built-in campus)")
	cmd.Flags().DurationVar(&f.debounce, "debounce", 0, "debounce threshold override, e.g. 5s")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "error", "validator log level")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func run(cmd *cobra.Command, f flags, out io.Writer) error {
	log := logger.NewWithWriter(cmd.ErrOrStderr(), f.logLevel, "text")

	sc, err := replay.LoadScenario(f.scenario)
	if err != nil {
		return err
	}
	topo, err := loadTopology(f.topology, log)
	if err != nil {
		return err
	}

	cfg := validator.DefaultConfig()
	switch {
	case f.debounce > 0:
		cfg.DebounceThreshold = f.debounce
	case sc.Debounce > 0:
		cfg.DebounceThreshold = sc.Debounce
	}
	if cfg.ViolationTTL < cfg.DebounceThreshold {
		cfg.ViolationTTL = 2 * cfg.DebounceThreshold
	}

	alerts := auditmemory.NewInMemoryStore()
	pub := audit.NewPublisher(nil, audit.WithAlertSink(alerts), audit.WithLogger(log))
	defer pub.Close()

	v, err := validator.New(memory.New(), topo,
		validator.WithConfig(cfg),
		validator.WithLogger(log),
		validator.WithPublisher(pub),
	)
	if err != nil {
		return err
	}

	if sc.Name != "" {
		fmt.Fprintf(out, "# %s (debounce %s)\n", sc.Name, cfg.DebounceThreshold)
	}
	_, err = replay.Run(cmd.Context(), sc, v, out)
	printAlerts(cmd, alerts, out)
	if errors.Is(err, replay.ErrMismatch) {
		fmt.Fprintf(cmd.ErrOrStderr(), "replay: %v\n", err)
	}
	return err
}

func printAlerts(cmd *cobra.Command, alerts *auditmemory.InMemoryStore, out io.Writer) {
	recs, _ := alerts.ListAll(cmd.Context())
	fmt.Fprintf(out, "# %d confirmed violation(s)\n", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(out, "#   %s entered %s at t=%.2f\n", rec.Decision.EntityID, rec.Decision.Zone, rec.Decision.Timestamp)
	}
}

func loadTopology(path string, log *slog.Logger) (*topology.Topology, error) {
	if path == "" {
		return topology.Default(topology.WithLogger(log)), nil
	}
	return topology.Load(path, topology.WithLogger(log))
}
