package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/synscope/internal/config"
	"firestige.xyz/synscope/internal/log"
	"firestige.xyz/synscope/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <trace.pcap>",
	Short: "Extract SYN flood features from a capture file",
	Long: `
Read a classical pcap capture (Ethernet link type), aggregate the IPv4 packets over a
sliding window and write synsynack_time.csv, synsynack_size.csv, synsynack_icmp.csv
and size_time.csv into the output directory.

Examples:
  synscope analyze trace.pcap                         # window of 100 packets, tables in .
  synscope analyze trace.pcap -w 50 -o out/           # window of 50 packets, tables in out/
  synscope analyze trace.pcap --filter "tcp or icmp"  # only keep frames matching the filter
  synscope analyze trace.pcap --plot --plot-script plot.py
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		cfg.Input = args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runAnalyze(ctx, cfg, cmd.OutOrStdout())
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.String("filter", "", "tcpdump filter expression applied to IPv4 frames")
	f.String("max-frame-size", "4KB", "largest accepted network-layer payload")
	f.IntP("window", "w", 100, "window size in packets")
	f.String("flag-match", "exact", "SYN/SYN-ACK classification: exact or mask")
	f.StringP("output", "o", ".", "output directory for the series tables")
	f.Int("precision", 6, "fractional digits per value")
	f.Bool("plot", false, "run the plot command for every table")
	f.String("plot-command", "python3", "plot command")
	f.String("plot-script", "", "script passed as first argument to the plot command")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file")
	f.Bool("report", false, "write a YAML run summary into the output directory")
}

func runAnalyze(ctx context.Context, cfg *config.Config, out io.Writer) error {
	res, err := pipeline.NewBuilder(cfg).
		WithLogger(log.GetLogger().WithField("command", "analyze")).
		Build().
		Run(ctx)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", cfg.Input, err)
	}

	fmt.Fprintf(out, "records: %d, packets: %d, skipped: %d, excluded: %d, windows: %d\n",
		res.Stats.Records, res.Packets, res.Stats.Skipped(),
		res.Stats.Excluded+res.Stats.FilterRejected, res.Vectors)
	if res.Truncated {
		fmt.Fprintln(out, "warning: capture ends inside a record, the last frame was dropped")
	}
	for _, p := range res.Outputs {
		fmt.Fprintf(out, "wrote %s\n", p)
	}
	if res.PlotFailures > 0 {
		fmt.Fprintf(out, "warning: %d plot command(s) failed\n", res.PlotFailures)
	}
	return nil
}
