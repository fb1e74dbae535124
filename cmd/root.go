package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cloud-sim/cloud-sim/sim"
	"github.com/cloud-sim/cloud-sim/sim/config"
	"github.com/cloud-sim/cloud-sim/sim/trace"
)

var (
	configDir   string // Directory holding specs.yaml and cloud.yaml
	scriptPath  string // YAML command script
	logLevel    string // Log verbosity level
	logsFolder  string // Folder for per-run CSV log files
	seed        int64  // Seed overriding cloud.yaml
	untilTick   int64  // Stop after this tick; negative runs to completion
	traceLevel  string // Decision trace level
	recordQueue int    // Buffer of the log record channel
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cloud-sim",
	Short: "Discrete-event simulator for cloud infrastructure",
}

// runCmd loads a cloud, replays a command script and drains the simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a cloud simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		cfg, err := config.Load(configDir)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		var script Script
		if scriptPath != "" {
			if script, err = LoadScript(scriptPath); err != nil {
				logrus.Fatalf("Failed to load script: %v", err)
			}
		}

		runID := uuid.NewString()
		sink := sim.NewChanSink(recordQueue)
		opts := cfg.Options(sim.Options{
			LogLevel:   logLevel,
			Sink:       sink,
			TraceLevel: trace.TraceLevel(traceLevel),
		})
		if cmd.Flags().Changed("seed") {
			opts.Seed = seed
		}
		w, err := sim.NewWorld(opts)
		if err != nil {
			logrus.Fatalf("Failed to build world: %v", err)
		}
		logrus.WithField("run_id", runID).Infof("Starting simulation: placement=%q seed=%d", opts.Placement, opts.Seed)

		writer, err := newRecordWriter(os.Stdout, logsFolder, runID)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		startTime := time.Now()
		var g errgroup.Group
		g.Go(func() error {
			return writer.Drain(sink.Records())
		})
		var rejected int
		g.Go(func() error {
			defer sink.Close()
			if err := cfg.Populate(w); err != nil {
				return fmt.Errorf("populating cloud: %w", err)
			}
			rejected = script.Run(w)
			if untilTick >= 0 {
				w.SimulateUntil(untilTick)
			} else {
				w.SimulateAll()
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		w.Metrics().Print(os.Stdout)
		if w.Trace().Enabled() {
			printTraceSummary(w.Trace())
		}
		logrus.WithField("run_id", runID).Infof("Simulation complete in %s: %d rejected command(s), %d event(s) pending",
			units.HumanDuration(time.Since(startTime)), rejected, w.Loop().Len())
	},
}

// validateCmd checks a config directory and an optional script without running them
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config directory and command script",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		if scriptPath != "" {
			if _, err := LoadScript(scriptPath); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d spec(s), %d data center(s)\n", len(cfg.Specs), len(cfg.Cloud.DataCenters))
		return nil
	},
}

func printTraceSummary(st *trace.SimulationTrace) {
	summary := trace.Summarize(st)
	fmt.Println("=== Decision Trace ===")
	fmt.Printf("Placements           : %d\n", summary.TotalPlacements)
	fmt.Printf("Unique Servers       : %d\n", summary.UniqueTargets)
	fmt.Printf("Admission Checks     : %d\n", summary.AdmissionChecks)
	fmt.Printf("Saturated            : %d\n", summary.SaturatedCount)
	fmt.Printf("Under-provisioned    : %d\n", summary.UnderProvisioned)

	servers := make([]string, 0, len(summary.Starved))
	for name := range summary.Starved {
		servers = append(servers, name)
	}
	sort.Strings(servers)
	for _, name := range servers {
		fmt.Printf("  %-18s : %d under-provisioned\n", name, summary.Starved[name])
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&configDir, "config", "", "Directory with specs.yaml and cloud.yaml")
		c.Flags().StringVar(&scriptPath, "script", "", "YAML command script to replay")
		_ = c.MarkFlagRequired("config")
	}

	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&logsFolder, "logs-folder", "", "Folder for per-run CSV log files")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for workload models (overrides cloud.yaml)")
	runCmd.Flags().Int64Var(&untilTick, "until", -1, "Stop after this tick (negative runs until no event is pending)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().IntVar(&recordQueue, "record-buffer", 1024, "Buffer size of the log record stream")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
