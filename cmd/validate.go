package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/synscope/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without reading any capture.

Defaults and SYNSCOPE_* environment overrides are applied exactly as for analyze.

Examples:
  synscope validate -c synscope.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if configFile == "" {
			exitWithError("no configuration file given (use -c)", nil)
		}
		if err := runValidate(configFile, cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "VALID: window %d (%s), max frame %s, output %q, plot %t, report %t\n",
		cfg.Window.Size,
		cfg.Window.FlagMatch,
		cfg.Decoder.MaxFrameSize.HumanReadable(),
		cfg.Output.Dir,
		cfg.Plot.Enabled,
		cfg.Report.Enabled,
	)
	return nil
}
