package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/devhliu/openmalaria/sim"
)

var (
	// CLI flags
	scenarioPath     string // YAML scenario file
	seed             int64  // Master seed for the simulation random streams
	logLevel         string // Log verbosity level
	checkpointSave   string // Path to write a checkpoint to after the run
	checkpointResume string // Path to resume a checkpoint from before the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "openmalaria",
	Short: "Individual-based simulator for malaria case management and interventions",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("No scenario file provided. Exiting simulation.")
		}

		scenario, err := sim.LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Unusable scenario: %v", err)
		}

		logrus.Infof("Starting scenario %q: %d-day steps, population %d, warmup %dy, horizon %dy",
			scenario.Name, scenario.TimestepDays, scenario.PopulationSize,
			scenario.WarmupYears, scenario.HorizonYears)

		startTime := time.Now()

		s, err := sim.NewSimulator(scenario, seed, sim.NopTransmission{})
		if err != nil {
			logrus.Fatalf("Unusable scenario: %v", err)
		}
		if checkpointResume != "" {
			if err := s.ResumeCheckpoint(checkpointResume); err != nil {
				logrus.Fatalf("Cannot resume: %v", err)
			}
		}

		s.Run()

		if checkpointSave != "" {
			if err := s.SaveCheckpoint(checkpointSave); err != nil {
				logrus.Fatalf("Cannot save checkpoint: %v", err)
			}
		}
		s.Survey.Print(s.Clinical.InfantAllCauseMortality())

		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
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
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario file")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for the simulation random streams")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&checkpointSave, "checkpoint-save", "", "Write a checkpoint to this path after the run")
	runCmd.Flags().StringVar(&checkpointResume, "checkpoint-resume", "", "Resume from a checkpoint at this path before running")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
