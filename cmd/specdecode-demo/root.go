// cmd/specdecode-demo/root.go
package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/specdecode/coordinator"
	_ "github.com/specdecode/coordinator/proposer"
	_ "github.com/specdecode/coordinator/sampler"
	_ "github.com/specdecode/coordinator/scorer"
)

var (
	configPath    string
	numSteps      int
	batchSize     int
	numPeerRanks  int
	logLevel      string
	lookaheadSlot int64
)

var rootCmd = &cobra.Command{
	Use:   "specdecode-demo",
	Short: "Drives a synthetic speculative-decoding coordinator for a fixed number of steps",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the speculative decoding coordinator against a synthetic workload",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := coordinator.LoadSpeculativeConfig(configPath)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}

		metrics := coordinator.NewWindowedMetricsCollector(1)
		scorer, err := buildScorer(cfg)
		if err != nil {
			logrus.Fatalf("building scorer: %v", err)
		}

		built, err := coordinator.BuildCoordinator(cfg, scorer, metrics, numPeerRanks)
		if err != nil {
			logrus.Fatalf("building coordinator: %v", err)
		}

		lifecycle := coordinator.NewLifecycleManager(built.Driver.Proposer, scorer, metrics, cfg.DraftModelType == "eagle")
		if err := lifecycle.InitDevice(0); err != nil {
			logrus.Fatalf("init_device: %v", err)
		}
		gpu, cpu, err := lifecycle.DetermineNumAvailableBlocks()
		if err != nil {
			logrus.Fatalf("determine_num_available_blocks: %v", err)
		}
		if err := lifecycle.InitializeCache(gpu, cpu); err != nil {
			logrus.Fatalf("initialize_cache: %v", err)
		}
		logrus.Infof("initialized cache: gpu_blocks=%d cpu_blocks=%d", gpu, cpu)

		ctx := context.Background()
		requestIDs := make([]string, batchSize)
		for i := range requestIDs {
			requestIDs[i] = uuid.NewString()
		}

		for _, peer := range built.Peers {
			go func(p *coordinator.NonDriverLoop) {
				step := 0
				next := func() *coordinator.ExecuteModelRequest { step++; return syntheticRequest(requestIDs, lookaheadSlot, step-1) }
				if err := p.Run(ctx, next); err != nil {
					logrus.Errorf("peer rank %d: %v", p.PeerIndex, err)
				}
			}(peer)
		}

		for step := 0; step < numSteps; step++ {
			req := syntheticRequest(requestIDs, lookaheadSlot, step)
			outputs, err := built.Driver.RunStep(ctx, req)
			if err != nil {
				logrus.Fatalf("step %d: %v", step, err)
			}
			logrus.Infof("step %d: produced %d sampler output records", step, len(outputs))
		}
		if err := built.Group.Shutdown(ctx); err != nil {
			logrus.Fatalf("shutdown: %v", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "path to a speculative decoding YAML config")
	runCmd.Flags().IntVar(&numSteps, "steps", 10, "number of coordinator steps to run")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 4, "number of concurrent sequences")
	runCmd.Flags().IntVar(&numPeerRanks, "peer-ranks", 1, "number of non-driver ranks to simulate")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().Int64Var(&lookaheadSlot, "lookahead", 5, "num_lookahead_slots per step")

	_ = runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)
}
