package cmd

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/qlink-sim/qlink-sim/sim"
	"github.com/qlink-sim/qlink-sim/sim/scenario"
)

var (
	// CLI flags shared by the run modes
	scenarioPath string  // Path to the YAML scenario file
	keyLength    int     // Target net key length in bits (overrides scenario targets)
	timeBudget   float64 // Time budget in seconds for budget mode (overrides scenario targets)
	logLevel     string  // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qlink-sim",
	Short: "Timing and error-budget calculator for point-to-point QKD links",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// loadSimulator builds a simulator from the scenario flag, resolving the key
// length and time budget from flags first and the scenario's targets second.
func loadSimulator(cmd *cobra.Command) (*sim.Simulator, int, float64, error) {
	spec, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, 0, 0, err
	}
	s, err := spec.Build()
	if err != nil {
		return nil, 0, 0, err
	}

	kl, budget := keyLength, timeBudget
	if spec.Targets != nil {
		if !cmd.Flags().Changed("key-length") {
			kl = spec.Targets.KeyLength
		}
		if !cmd.Flags().Changed("time") && spec.Targets.TimeBudget > 0 {
			budget = spec.Targets.TimeBudget
		}
	}
	return s, kl, budget, nil
}

// printJSON writes a result to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runCmd estimates reaching a target key length.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Estimate qubits and time needed to reach a target key length",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, kl, _, err := loadSimulator(cmd)
		if err != nil {
			return err
		}
		logrus.Infof("running target mode: key length %d bits, loss rate %.4f", kl, s.TotalError())
		res, err := s.Run(kl)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

// budgetCmd estimates key yield under a fixed time budget.
var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Estimate key yield within a fixed time budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, kl, budget, err := loadSimulator(cmd)
		if err != nil {
			return err
		}
		logrus.Infof("running budget mode: %g seconds toward %d bits", budget, kl)
		res, err := s.RunFor(kl, budget)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

// diagnosticsCmd reports both modes plus the raw delay components.
var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Report target-mode and budget-mode estimates with delay breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, kl, budget, err := loadSimulator(cmd)
		if err != nil {
			return err
		}
		res, err := s.RunAllDiagnostics(kl, budget)
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
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
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	for _, c := range []*cobra.Command{runCmd, budgetCmd, diagnosticsCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario file")
		c.Flags().IntVar(&keyLength, "key-length", 256, "Target net key length in bits")
		_ = c.MarkFlagRequired("scenario")
	}
	budgetCmd.Flags().Float64Var(&timeBudget, "time", 0.01, "Time budget in seconds")
	diagnosticsCmd.Flags().Float64Var(&timeBudget, "time", 0.01, "Time budget in seconds")

	rootCmd.AddCommand(runCmd, budgetCmd, diagnosticsCmd)
}
