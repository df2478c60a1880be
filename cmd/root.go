package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hetmem/hetmem/core"
)

var (
	// CLI flags for the chunk manager
	logLevel    string // Log verbosity level
	configPath  string // Optional YAML config file
	chunkElems  int64  // Elements per chunk
	dtype       string // Chunk element type
	placeholder string // Detached-view placeholder policy
	accelMB     int64  // Simulated accelerator memory per rank (MiB)
	hostMB      int64  // Simulated host memory per rank (MiB)

	// CLI flags for the synthetic training run
	worldSize   int    // Number of in-process ranks
	layers      int    // Synthetic model depth
	hidden      int64  // Synthetic model hidden size
	steadySteps int    // Steady-state training steps after the warmup step
	metricsAddr string // Optional prometheus scrape address
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hetmem",
	Short: "Chunk-based memory manager for models larger than one device",
}

// runCmd drives a synthetic multi-rank training loop through the chunk
// manager and reports eviction and migration activity.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic training loop through the chunk manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := core.DefaultConfig(chunkElems)
		if configPath != "" {
			loaded, err := core.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = *loaded
		}
		if cmd.Flags().Changed("chunk-elems") || cfg.Chunk.CapacityElems == 0 {
			cfg.Chunk.CapacityElems = chunkElems
		}
		if cmd.Flags().Changed("dtype") {
			cfg.Chunk.DType = dtype
		}
		if cmd.Flags().Changed("placeholder") {
			cfg.Chunk.Placeholder = placeholder
		}

		logrus.Infof("Starting run: world=%d, layers=%d, hidden=%d, chunk=%d elems, accel=%dMiB, host=%dMiB",
			worldSize, layers, hidden, cfg.Chunk.CapacityElems, accelMB, hostMB)

		return runTraining(cfg, trainSpec{
			World:       worldSize,
			Layers:      layers,
			Hidden:      hidden,
			SteadySteps: steadySteps,
			AccelBytes:  accelMB << 20,
			HostBytes:   hostMB << 20,
			MetricsAddr: metricsAddr,
		})
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (overridden by explicit flags)")

	// Chunk manager configs
	runCmd.Flags().Int64Var(&chunkElems, "chunk-elems", 1<<19, "Elements per chunk")
	runCmd.Flags().StringVar(&dtype, "dtype", "float32", "Chunk element type (float32, float16)")
	runCmd.Flags().StringVar(&placeholder, "placeholder", "empty", "Detached view placeholder (empty, zero_element)")
	runCmd.Flags().Int64Var(&accelMB, "accel-mem-mb", 64, "Simulated accelerator memory per rank (MiB)")
	runCmd.Flags().Int64Var(&hostMB, "host-mem-mb", 512, "Simulated host memory per rank (MiB)")

	// Synthetic training configs
	runCmd.Flags().IntVar(&worldSize, "world-size", 1, "Number of in-process ranks")
	runCmd.Flags().IntVar(&layers, "layers", 12, "Synthetic model depth")
	runCmd.Flags().Int64Var(&hidden, "hidden", 512, "Synthetic model hidden size")
	runCmd.Flags().IntVar(&steadySteps, "steps", 3, "Steady-state steps after the warmup step")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(runCmd)
}
