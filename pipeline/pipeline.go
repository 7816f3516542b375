// Package pipeline wires the whole flow behind one configuration: rows are
// read, a source schema is inferred, the target type is resolved, the
// transduction engine runs, and map output is optionally merged back onto
// its source.
//
//	cfg, err := pipeline.LoadConfig("tweets.yaml")
//	p, err := pipeline.New(ctx, cfg)
//	defer p.Close()
//	out, err := p.RunFile(ctx, "movies.csv")
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tailored-agentic-units/agentics/catalog"
	"github.com/tailored-agentic-units/agentics/composition"
	"github.com/tailored-agentic-units/agentics/core/stage"
	"github.com/tailored-agentic-units/agentics/observability"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/rows"
	"github.com/tailored-agentic-units/agentics/runs"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/states"
	"github.com/tailored-agentic-units/agentics/transduction"
)

const source = "pipeline.Pipeline"

var (
	ErrNoTargetType = stage.NewError(stage.Schema, "no target type configured")
	ErrNoInput      = stage.NewError(stage.Ingestion, "operation requires input rows")
)

// Output is the result of one pipeline run.
type Output struct {
	RunID      string
	Kind       transduction.Kind
	Collection states.Collection
	Failures   []transduction.RecordFailure
	Merged     bool
}

// Option overrides a subsystem that New would otherwise create from
// configuration.
type Option func(*Pipeline)

// WithProvider overrides the config-created provider.
func WithProvider(p provider.Provider) Option {
	return func(pl *Pipeline) { pl.provider = p }
}

// WithLedger overrides the config-created run ledger.
func WithLedger(s runs.Store) Option {
	return func(pl *Pipeline) { pl.ledger = s }
}

// WithCatalog overrides the config-created type catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(pl *Pipeline) { pl.catalog = c }
}

// Pipeline runs configured transductions and compositions.
type Pipeline struct {
	cfg      Config
	kind     transduction.Kind
	registry *provider.Registry
	provider provider.Provider
	owned    bool
	ledger   runs.Store
	catalog  *catalog.Catalog
	engine   *transduction.Engine
	composer *composition.Composer
	observer observability.Observer
}

// New creates a Pipeline from configuration. Options are applied first;
// subsystems they did not supply are created from their config sections.
// When New fails, whatever it created is closed again.
func New(ctx context.Context, cfg *Config, opts ...Option) (_ *Pipeline, err error) {
	kind, err := transduction.ParseKind(cfg.Operation)
	if err != nil {
		return nil, err
	}

	observer, err := observability.GetObserver(cfg.Transduction.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	p := &Pipeline{
		cfg:      *cfg,
		kind:     kind,
		registry: provider.NewRegistry(),
		observer: observer,
	}
	for _, opt := range opts {
		opt(p)
	}

	cleanup := []func() error{p.registry.Close}
	defer func() {
		if err != nil {
			for _, c := range slices.Backward(cleanup) {
				c()
			}
		}
	}()

	for name, pc := range cfg.Providers {
		merged := provider.DefaultConfig()
		merged.Merge(&pc)
		if err := p.registry.Register(name, merged); err != nil {
			return nil, fmt.Errorf("failed to register provider %q: %w", name, err)
		}
	}

	if p.provider == nil {
		if p.provider, err = p.resolveProvider(); err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		p.owned = p.cfg.UseProvider == ""
		if p.owned {
			owned := p.provider
			cleanup = append(cleanup, func() error { return provider.Close(owned) })
		}
	}

	if p.ledger == nil {
		if p.ledger, err = runs.Open(cfg.Runs); err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
		cleanup = append(cleanup, p.ledger.Close)
	}

	if p.catalog == nil {
		if p.catalog, err = catalog.Open(ctx, &cfg.Catalog); err != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", err)
		}
	}

	tcfg := cfg.Transduction
	if cfg.BatchSize > 0 {
		tcfg.BatchSize = cfg.BatchSize
	}
	p.engine, err = transduction.New(p.provider, &tcfg,
		transduction.WithObserver(observer),
		transduction.WithLedger(p.ledger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	if p.composer, err = composition.New(cfg.Transduction.Observer); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) resolveProvider() (provider.Provider, error) {
	if p.cfg.UseProvider != "" {
		return p.registry.Get(p.cfg.UseProvider)
	}
	return provider.New(&p.cfg.Provider)
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Registry returns the named providers from the configuration.
func (p *Pipeline) Registry() *provider.Registry {
	return p.registry
}

// Ledger returns the run ledger.
func (p *Pipeline) Ledger() runs.Store {
	return p.ledger
}

// Catalog returns the type catalog.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// Engine returns the transduction engine.
func (p *Pipeline) Engine() *transduction.Engine {
	return p.engine
}

// Composer returns the composer used by Combine.
func (p *Pipeline) Composer() *composition.Composer {
	return p.composer
}

// Target resolves the configured target type.
func (p *Pipeline) Target(ctx context.Context) (*schema.Descriptor, error) {
	switch {
	case p.cfg.TypeDefinition != "":
		return schema.ImportText(p.cfg.TypeDefinition)
	case p.cfg.CatalogType != "":
		return p.catalog.Descriptor(ctx, p.cfg.CatalogType)
	case len(p.cfg.Fields) > 0:
		return schema.Build(p.cfg.TypeName, p.cfg.Fields)
	case p.cfg.TypeName != "" && p.catalog.Has(p.cfg.TypeName):
		return p.catalog.Descriptor(ctx, p.cfg.TypeName)
	}
	return nil, ErrNoTargetType
}

// Source builds the source collection from decoded rows, inferring its
// schema from the rows' values.
func (p *Pipeline) Source(table rows.Table) (states.Collection, error) {
	return collect(p.cfg.SourceName, table)
}

func collect(name string, table rows.Table) (states.Collection, error) {
	if table.Len() == 0 {
		return states.Collection{}, nil
	}
	desc, err := schema.Infer(name, table.Columns, table.Rows)
	if err != nil {
		return states.Collection{}, err
	}
	return states.FromRows(table.Rows, desc)
}

// RunFile reads input rows from path and runs the configured operation.
// Generate ignores path, which may be empty.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Output, error) {
	if p.kind == transduction.KindGenerate || path == "" {
		return p.Run(ctx, rows.Table{})
	}
	table, err := rows.ReadFile(path, p.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, table)
}

// Run executes the configured operation over table.
func (p *Pipeline) Run(ctx context.Context, table rows.Table) (*Output, error) {
	start := time.Now()

	target, err := p.Target(ctx)
	if err != nil {
		return nil, err
	}

	var src states.Collection
	if p.kind != transduction.KindGenerate {
		if table.Len() == 0 && p.kind == transduction.KindReduce {
			return nil, ErrNoInput
		}
		if src, err = p.Source(table.Limit(p.cfg.MaxRows)); err != nil {
			return nil, err
		}
	}

	observability.Emit(ctx, p.observer, EventStart, observability.LevelInfo, source, map[string]any{
		"operation": string(p.kind),
		"target":    target.Name(),
		"rows":      src.Len(),
		"provider":  p.provider.Name(),
	})

	result, err := p.engine.Run(ctx, p.kind, src, transduction.Spec{
		Target:       target,
		Instructions: p.cfg.Instructions,
		Explain:      p.cfg.Explanations,
	}, p.cfg.Count)
	if err != nil {
		return nil, err
	}

	out := &Output{
		RunID:      result.RunID,
		Kind:       result.Kind,
		Collection: result.Collection,
		Failures:   result.Failures,
	}

	if p.kind == transduction.KindMap && p.cfg.MergeSource() && src.Len() > 0 {
		merged, err := src.Merge(result.Collection)
		if err != nil {
			return nil, err
		}
		out.Collection = merged.WithInstructions(result.Collection.Instructions())
		out.Merged = true
	}

	observability.Emit(ctx, p.observer, EventComplete, observability.LevelInfo, source, map[string]any{
		"run_id":   out.RunID,
		"records":  out.Collection.Len(),
		"failed":   len(out.Failures),
		"merged":   out.Merged,
		"duration": time.Since(start).String(),
	})

	return out, nil
}

// Combine joins two row tables with the configured selector. Each side's
// schema is inferred under its given name, which decides the compose key.
func (p *Pipeline) Combine(ctx context.Context, leftName string, left rows.Table, rightName string, right rows.Table) (states.Collection, error) {
	l, err := collect(leftName, left)
	if err != nil {
		return states.Collection{}, fmt.Errorf("left: %w", err)
	}
	r, err := collect(rightName, right)
	if err != nil {
		return states.Collection{}, fmt.Errorf("right: %w", err)
	}
	return p.composer.Combine(ctx, p.cfg.Selector, l, r)
}

// CombineFiles reads two row files and combines them. Type names come from
// the file names, so "tweets.json" composes under the key "tweets".
func (p *Pipeline) CombineFiles(ctx context.Context, leftPath, rightPath string) (states.Collection, error) {
	left, err := rows.ReadFile(leftPath, p.cfg.MaxRows)
	if err != nil {
		return states.Collection{}, err
	}
	right, err := rows.ReadFile(rightPath, p.cfg.MaxRows)
	if err != nil {
		return states.Collection{}, err
	}
	return p.Combine(ctx, baseName(leftPath), left, baseName(rightPath), right)
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Close releases the providers the pipeline created and the ledger.
func (p *Pipeline) Close() error {
	var errs []error
	if p.owned {
		errs = append(errs, provider.Close(p.provider))
	}
	errs = append(errs, p.registry.Close(), p.ledger.Close())
	return errors.Join(errs...)
}
