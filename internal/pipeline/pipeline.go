// Package pipeline implements the trace analysis pipeline.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"firestige.xyz/synscope/internal/config"
	"firestige.xyz/synscope/internal/core"
	"firestige.xyz/synscope/internal/log"
	"firestige.xyz/synscope/internal/metrics"
	"firestige.xyz/synscope/internal/plot"
	"firestige.xyz/synscope/internal/report"
	csvsink "firestige.xyz/synscope/internal/sink/csv"
	"firestige.xyz/synscope/internal/source/pcapfile"
	"firestige.xyz/synscope/internal/utils"
	"firestige.xyz/synscope/internal/window"
)

// filterSnapLen is the snapshot length the filter program is compiled for.
const filterSnapLen = 262144

// Plotter renders finished series tables.
type Plotter interface {
	PlotAll(ctx context.Context, tables []plot.Table) (failed int, err error)
}

// OpenFunc opens the trace named by the configuration.
type OpenFunc func(path string) (io.ReadCloser, error)

// Deps are the collaborators of a run. Zero values select the defaults.
type Deps struct {
	Open    OpenFunc
	Plotter Plotter
	Logger  log.Logger
}

// Result describes a finished run.
type Result struct {
	Stats        pcapfile.Stats
	Truncated    bool
	Packets      int
	Vectors      int
	Outputs      []string
	PlotFailures int
	Summary      *report.Summary
	Metrics      *metrics.Metrics
}

// Pipeline runs one trace from the capture file to the series tables.
type Pipeline struct {
	cfg     *config.Config
	open    OpenFunc
	plotter Plotter
	logger  log.Logger
	metrics *metrics.Metrics
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		open:    deps.Open,
		plotter: deps.Plotter,
		logger:  deps.Logger,
		metrics: metrics.New(),
	}
	if p.open == nil {
		p.open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	if p.logger == nil {
		p.logger = log.GetLogger()
	}
	if p.plotter == nil && cfg.Plot.Enabled {
		p.plotter = plot.NewRunner(plot.Config{
			Command:     cfg.Plot.Command,
			Script:      cfg.Plot.Script,
			Subdivision: cfg.Plot.Subdivision,
			Timeout:     cfg.Plot.Timeout,
		})
	}
	return p
}

// Run is shorthand for New(cfg, deps).Run(ctx).
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	return New(cfg, deps).Run(ctx)
}

// Run reads the trace, aggregates it and writes the outputs. Any error
// returned before the tables are written leaves the output directory
// untouched.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	if cfg.Input == "" {
		return nil, fmt.Errorf("%w: no input trace given", core.ErrConfigInvalid)
	}
	logger := p.logger.WithField("input", cfg.Input)

	opts := []pcapfile.Option{
		pcapfile.WithMaxFrameSize(int(cfg.Decoder.MaxFrameSize.Bytes())),
		pcapfile.WithLogger(logger),
	}
	if cfg.Filter != "" {
		f, err := utils.NewFrameFilter(cfg.Filter, filterSnapLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
		}
		opts = append(opts, pcapfile.WithFilter(f))
	}

	src, err := p.open(cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer src.Close()

	r, err := pcapfile.Open(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("open trace %s: %w", cfg.Input, err)
	}
	logger.WithFields(map[string]interface{}{
		"byte_order": r.Header().ByteOrder.String(),
		"snaplen":    r.Header().SnapLen,
	}).Debug("trace opened")

	packets, err := pcapfile.ReadAll(ctx, r)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Stats:     r.Stats(),
		Truncated: r.Truncated(),
		Packets:   len(packets),
		Metrics:   p.metrics,
	}

	vectors, err := window.Aggregate(packets, cfg.Window.Size, window.WithFlagMatch(cfg.Window.FlagMatch))
	if err != nil {
		return nil, err
	}
	res.Vectors = len(vectors)
	if len(vectors) == 0 {
		logger.WithFields(map[string]interface{}{
			"packets": len(packets),
			"window":  cfg.Window.Size,
		}).Warn("fewer packets than the window size, tables will be empty")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sink := csvsink.New(cfg.Output.Dir, cfg.Output.Precision)
	res.Outputs, err = sink.WriteAll(window.Series(vectors))
	if err != nil {
		return nil, err
	}

	if p.plotter != nil {
		tables := make([]plot.Table, 0, len(window.Kinds))
		for _, kind := range window.Kinds {
			tables = append(tables, plot.Table{Kind: kind, Path: sink.Path(kind)})
		}
		res.PlotFailures, err = p.plotter.PlotAll(ctx, tables)
		if err != nil {
			return res, err
		}
	}

	observe(p.metrics, res)
	if cfg.Metrics.Textfile != "" {
		if err := p.metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.WithError(err).Warn("metrics not written")
		}
	}

	res.Summary = p.summarize(r, packets, res)
	if fields, err := res.Summary.Fields(); err == nil {
		logger.WithFields(fields).Info("analysis finished")
	}
	if cfg.Report.Enabled {
		if err := res.Summary.WriteFile(cfg.Report.Path); err != nil {
			logger.WithError(err).Warn("summary not written")
		}
	}

	return res, nil
}

func (p *Pipeline) summarize(r *pcapfile.Reader, packets []core.Packet, res *Result) *report.Summary {
	s := report.NewSummary(p.cfg.Input, r, packets)
	s.Filter = p.cfg.Filter
	s.Window = report.WindowInfo{
		Size:      p.cfg.Window.Size,
		FlagMatch: string(p.cfg.Window.FlagMatch),
		Vectors:   res.Vectors,
	}
	s.Outputs = res.Outputs
	s.PlotFailures = res.PlotFailures
	return s
}
