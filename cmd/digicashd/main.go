// main.go - digicashd: run the blind-signature e-cash protocol end to end.
//
// Usage:
//   digicashd keygen                      generate a bank key and run its self-test
//   digicashd simulate --owner alice      withdraw and spend one coin
//   digicashd simulate --double-spend     spend the same coin at every merchant
//   digicashd simulate --replay           have a merchant deposit twice
//
// Configuration is read from --config (created with defaults if missing).

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	root, a := newRootCmd()
	if err := a.execute(root); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *Config
	log        *Logger
	metrics    *MetricsCollector
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "digicashd",
		Short:         "Chaumian blind-signature e-cash with double-spend detection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "digicash.json", "path to the JSON configuration file")
	root.AddCommand(a.keygenCmd(), a.simulateCmd())
	return root, a
}

// execute runs root and closes the log files whether or not the command failed
func (a *app) execute(root *cobra.Command) error {
	err := root.Execute()
	if a.log != nil {
		if cerr := a.log.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (a *app) setup() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	audit := ""
	if cfg.EnableAudit {
		audit = cfg.AuditLogPath
	}
	log, err := NewLogger(cfg.LogLevel, cfg.LogFile, audit)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.metrics = cfg, log, NewMetricsCollector()
	return nil
}

func (a *app) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a bank key and report component health",
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := NewSimulation(a.cfg, a.log, a.metrics)
			if err != nil {
				return err
			}
			pub := sim.bank.PublicKey()
			fmt.Fprintf(cmd.OutOrStdout(), "bank key: %d bits, e=%s\n", pub.N.BitLen(), pub.E)

			hc := NewHealthChecker(version)
			sim.RegisterHealth(hc)
			health := hc.CheckHealth()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(health); err != nil {
				return err
			}
			if health.OverallStatus != Healthy {
				return fmt.Errorf("system is %s", health.OverallStatus)
			}
			return nil
		},
	}
}

func (a *app) simulateCmd() *cobra.Command {
	opts := SimulationOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Withdraw one coin, spend it and clear the deposits",
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := NewSimulation(a.cfg, a.log, a.metrics)
			if err != nil {
				return err
			}
			report, err := sim.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(cmd, report)

			summary, err := a.metrics.GetMetricsSummary()
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(summary))
			for k := range summary {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "metrics:")
			for _, k := range keys {
				fmt.Fprintf(out, "  %s %g\n", k, summary[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Owner, "owner", "alice", "account the coin is withdrawn for")
	cmd.Flags().Uint64Var(&opts.Amount, "amount", 20, "coin denomination")
	cmd.Flags().BoolVar(&opts.DoubleSpend, "double-spend", false, "spend the coin at every merchant")
	cmd.Flags().BoolVar(&opts.Replay, "replay", false, "deposit the first merchant's vector twice")
	return cmd
}

func printReport(cmd *cobra.Command, r *SimulationReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "coin %s\n", r.GUID)
	for _, m := range r.Accepted {
		fmt.Fprintf(out, "  accepted by %s\n", m)
	}
	for m, err := range r.Rejected {
		fmt.Fprintf(out, "  rejected by %s: %v\n", m, err)
	}
	if len(r.Verdicts) == 0 {
		fmt.Fprintln(out, "  no fraud detected")
	}
	for _, v := range r.Verdicts {
		fmt.Fprintf(out, "  %s\n", v)
	}
}
