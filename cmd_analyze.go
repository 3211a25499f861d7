package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rook-computer/bgenerator/internal/analyze"
	"github.com/rook-computer/bgenerator/internal/imageio"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Report the dominant colours of an image",
	Long: `Sample an image on a pixel grid, bucket the colours and list the most
frequent buckets. The first entry is the dominant colour.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	defaults := analyze.DefaultOptions()
	f := analyzeCmd.Flags()
	f.Int("stride", defaults.Stride, "sample every Nth pixel")
	f.Int("step", defaults.Step, "bucket size per channel")
	f.Int("limit", defaults.Limit, "number of colours to report")
	f.Bool("json", false, "print the report as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	img, err := imageio.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	opts := analyze.DefaultOptions()
	f := cmd.Flags()
	opts.Stride, _ = f.GetInt("stride")
	opts.Step, _ = f.GetInt("step")
	opts.Limit, _ = f.GetInt("limit")

	report, err := analyze.Analyze(img, opts)
	if err != nil {
		return err
	}
	if asJSON, _ := f.GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, report analyze.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "HEX\tRGB\tSHARE\n")
	for _, c := range report.Colors {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", c.Hex, c.RGB, c.Percentage)
	}
	fmt.Fprintf(tw, "\ndominant %s from %d samples\n", report.Dominant, report.Sampled)
	return tw.Flush()
}
