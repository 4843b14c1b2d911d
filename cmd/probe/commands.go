package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"probe-go/internal/analysis"
	"probe-go/internal/config"
	"probe-go/internal/probe"
	"probe-go/internal/report"
	"probe-go/internal/state"
)

// options holds the flag values of one command tree.
type options struct {
	configPath    string
	dataPath      string
	sizeColumn    string
	effortColumn  string
	querySize     float64
	confidence    float64
	hoursPerMonth float64
	jsonOutput    bool

	cfg config.Config
}

// newRootCmd builds a fresh command tree; flag state never leaks between
// executions.
func newRootCmd() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:          "probe",
		Short:        "PROBE effort estimation from historical size/effort data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			o.cfg, err = config.Load(o.configPath)
			return err
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Print descriptive statistics of the historical data",
		RunE:  o.runDescribe,
	}

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the size/effort regression and print its coefficients",
		RunE:  o.runFit,
	}

	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate effort for a size with a confidence interval",
		RunE:  o.runEstimate,
	}

	rootCmd.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default $PROBE_CONFIG or probe.yaml)")
	rootCmd.PersistentFlags().StringVarP(&o.dataPath, "data", "d", "", "CSV file of historical projects")
	rootCmd.PersistentFlags().StringVar(&o.sizeColumn, "size-column", "", "size column name (default from config)")
	rootCmd.PersistentFlags().StringVar(&o.effortColumn, "effort-column", "", "effort column name (default from config)")
	rootCmd.PersistentFlags().BoolVar(&o.jsonOutput, "json", false, "print JSON instead of text")
	_ = rootCmd.MarkPersistentFlagRequired("data")

	estimateCmd.Flags().Float64VarP(&o.querySize, "size", "s", 0, "estimated size of the new project in LOC")
	estimateCmd.Flags().Float64VarP(&o.confidence, "confidence", "c", 0, "confidence level in (0,1) (default from config)")
	estimateCmd.Flags().Float64Var(&o.hoursPerMonth, "hours-per-month", 0, "effective hours per person-month (default from config)")
	_ = estimateCmd.MarkFlagRequired("size")

	rootCmd.AddCommand(describeCmd, fitCmd, estimateCmd)
	return rootCmd
}

func (o *options) loadHistory() (*state.History, error) {
	svc := analysis.NewCSVService(analysis.Columns{Size: o.cfg.SizeColumn, Effort: o.cfg.EffortColumn})
	hist, err := svc.LoadFile(o.dataPath, analysis.Columns{Size: o.sizeColumn, Effort: o.effortColumn})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", o.dataPath, err)
	}
	log.Printf("Loaded %d projects from %s (size=%q, effort=%q)", hist.Dataset.Len(), hist.Name, hist.SizeColumn, hist.EffortColumn)
	return hist, nil
}

func (o *options) runDescribe(cmd *cobra.Command, args []string) error {
	hist, err := o.loadHistory()
	if err != nil {
		return err
	}
	desc, err := probe.Describe(hist.Dataset)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		return writeJSON(out, desc)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t%s\t\n", hist.SizeColumn, hist.EffortColumn)
	rows := []struct {
		label string
		x, y  float64
	}{
		{"count", float64(desc.Size.Count), float64(desc.Effort.Count)},
		{"mean", desc.Size.Mean, desc.Effort.Mean},
		{"std", desc.Size.StdDev, desc.Effort.StdDev},
		{"min", desc.Size.Min, desc.Effort.Min},
		{"25%", desc.Size.Q1, desc.Effort.Q1},
		{"50%", desc.Size.Median, desc.Effort.Median},
		{"75%", desc.Size.Q3, desc.Effort.Q3},
		{"max", desc.Size.Max, desc.Effort.Max},
		{"var", desc.SizeVariance, desc.EffortVariance},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t\n", r.label, r.x, r.y)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "covariance %.4f\n", desc.Covariance)
	return err
}

func (o *options) runFit(cmd *cobra.Command, args []string) error {
	hist, err := o.loadHistory()
	if err != nil {
		return err
	}
	m, err := probe.Fit(hist.Dataset)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		return writeJSON(out, struct {
			Model    probe.Model     `json:"model"`
			RSquared float64         `json:"r_squared"`
			Plot     report.PlotData `json:"plot"`
		}{m, m.RSquared(), report.Plot(hist.Dataset, m, nil)})
	}
	fmt.Fprintf(out, "r  = %.5f\n", m.Correlation)
	fmt.Fprintf(out, "r² = %.5f\n", m.RSquared())
	fmt.Fprintf(out, "b0 = %.2f (intercept)\n", m.Intercept)
	fmt.Fprintf(out, "b1 = %.6f (slope)\n", m.Slope)
	_, err = fmt.Fprintln(out, m)
	return err
}

func (o *options) runEstimate(cmd *cobra.Command, args []string) error {
	hist, err := o.loadHistory()
	if err != nil {
		return err
	}
	level := o.cfg.DefaultConfidence
	if cmd.Flags().Changed("confidence") {
		level = o.confidence
	}
	hpm := o.cfg.HoursPerMonth
	if o.hoursPerMonth > 0 {
		hpm = o.hoursPerMonth
	}

	est, err := probe.Estimate(hist.Dataset, o.querySize, level)
	if err != nil {
		return err
	}
	summary := report.NewSummary(hist.Dataset, est, hpm)
	out := cmd.OutOrStdout()
	if o.jsonOutput {
		return writeJSON(out, struct {
			Summary   report.Summary `json:"summary"`
			Narrative []string       `json:"narrative"`
		}{summary, report.Narrative(summary)})
	}
	return report.Write(out, summary)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
