// Package plot hands finished series tables to an external plotting command.
package plot

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"firestige.xyz/synscope/internal/log"
	"firestige.xyz/synscope/internal/window"
)

const (
	DefaultCommand     = "python3"
	DefaultScript      = "plot.py"
	DefaultSubdivision = 2
	DefaultTimeout     = 30 * time.Second
)

// Table is one series table ready to be plotted.
type Table struct {
	Kind window.SeriesKind
	Path string
}

// Config describes the plotting command.
type Config struct {
	Command     string
	Script      string
	Subdivision int
	Timeout     time.Duration
}

// Runner invokes Command once per table as
// "<command> <script> <csv> <xlabel> <ylabel> <subdivision>".
type Runner struct {
	cfg    Config
	logger log.Logger
}

func NewRunner(cfg Config) *Runner {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Subdivision <= 0 {
		cfg.Subdivision = DefaultSubdivision
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Runner{cfg: cfg, logger: log.GetLogger()}
}

// Args returns the argument list for table, without the command itself.
func (r *Runner) Args(t Table) []string {
	x, y := t.Kind.Axes()
	args := make([]string, 0, 5)
	if r.cfg.Script != "" {
		args = append(args, r.cfg.Script)
	}
	return append(args, t.Path, x, y, strconv.Itoa(r.cfg.Subdivision))
}

// Plot runs the command for a single table.
func (r *Runner) Plot(ctx context.Context, t Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Command, r.Args(t)...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("plot %s: %w: %s", t.Kind, err, msg)
		}
		return fmt.Errorf("plot %s: %w", t.Kind, err)
	}
	return nil
}

// PlotAll plots every table in order. Failures are logged and counted, the
// remaining tables are still attempted. Only cancellation of ctx stops early.
func (r *Runner) PlotAll(ctx context.Context, tables []Table) (failed int, err error) {
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := r.Plot(ctx, t); err != nil {
			failed++
			r.logger.WithError(err).WithField("table", t.Path).Warn("plot command failed")
			continue
		}
		r.logger.WithField("table", t.Path).Debug("plot command finished")
	}
	return failed, nil
}
