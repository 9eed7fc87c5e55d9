package pipeline

import (
	"firestige.xyz/synscope/internal/config"
	"firestige.xyz/synscope/internal/log"
)

// Builder assembles a Pipeline from its configuration and collaborators.
type Builder struct {
	cfg  *config.Config
	deps Deps
}

// NewBuilder creates a new pipeline builder for cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{cfg: cfg}
}

// WithOpen sets how the input trace is opened.
func (b *Builder) WithOpen(open OpenFunc) *Builder {
	b.deps.Open = open
	return b
}

// WithPlotter sets the plotter, replacing the command configured in cfg.
func (b *Builder) WithPlotter(p Plotter) *Builder {
	b.deps.Plotter = p
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.deps.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.cfg, b.deps)
}
