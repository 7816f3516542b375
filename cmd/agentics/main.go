package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"

	"github.com/tailored-agentic-units/agentics/observability"
	"github.com/tailored-agentic-units/agentics/pipeline"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/rows"
	"github.com/tailored-agentic-units/agentics/states"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to pipeline config JSON or YAML file")
		input      = flag.String("input", "", "Input rows (.json, .jsonl, .csv); not needed for generate")
		output     = flag.String("output", "", "Output JSON file; stdout when empty")
		operation  = flag.String("operation", "", "map, reduce or generate (overrides config)")
		count      = flag.Int("count", 0, "Records to generate (overrides config)")
		batchSize  = flag.Int("batch-size", 0, "Records per batch (overrides config)")
		maxRows    = flag.Int("max-rows", 0, "Read at most this many input rows (overrides config)")
		explain    = flag.Bool("explain", false, "Request an explanation per output record")
		catalogDir = flag.String("catalog", "", "Type catalog directory (overrides config)")
		typeName   = flag.String("type", "", "Catalog type to produce (overrides config)")
		kind       = flag.String("provider", "", "Provider kind: openai, connect, grpc or mock (overrides config)")
		model      = flag.String("model", "", "Model name (overrides config)")
		baseURL    = flag.String("base-url", "", "Provider base URL (overrides config)")
		combine    = flag.String("combine", "", "Combine -left and -right with a selector: merge, compose or concatenate")
		left       = flag.String("left", "", "Left rows for -combine")
		right      = flag.String("right", "", "Right rows for -combine")
		serve      = flag.String("serve", "", "Serve Transduce and Combine over Connect on this address")
		grpcAddr   = flag.String("grpc", "", "With -serve, also serve a synthesizing Generate backend over gRPC on this address")
		listRuns   = flag.Int("runs", 0, "Print the most recent runs from the ledger and exit")
		dump       = flag.Bool("dump", false, "Dump the resolved configuration to stderr")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := pipeline.DefaultConfig()
	if *configFile != "" {
		loaded, err := pipeline.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *operation != "" {
		cfg.Operation = *operation
	}
	if *count > 0 {
		cfg.Count = *count
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *maxRows > 0 {
		cfg.MaxRows = *maxRows
	}
	if *explain {
		cfg.Explanations = true
	}
	if *catalogDir != "" {
		cfg.Catalog.Path = *catalogDir
	}
	if *typeName != "" {
		cfg.CatalogType = *typeName
	}
	if *combine != "" {
		cfg.Selector = *combine
	}
	if *kind != "" {
		cfg.Provider.Kind = provider.Kind(*kind)
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *baseURL != "" {
		cfg.Provider.BaseURL = *baseURL
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	// Combining and listing runs make no model calls.
	if (*combine != "" || *listRuns > 0) && cfg.Provider.Model == "" && cfg.UseProvider == "" {
		cfg.Provider.Kind = provider.KindMock
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	if *dump {
		spew.Fdump(os.Stderr, cfg)
	}

	if *combine != "" && (*left == "" || *right == "") {
		fmt.Fprintln(os.Stderr, "Usage: agentics -combine <selector> -left <file> -right <file>")
		os.Exit(1)
	}
	if *combine == "" && *serve == "" && *listRuns == 0 && *configFile == "" && *typeName == "" {
		fmt.Fprintln(os.Stderr, "Usage: agentics -config <file> [-input <rows>] [-output <file>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	p, err := pipeline.New(ctx, &cfg)
	if err != nil {
		stop()
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	switch {
	case *listRuns > 0:
		err = printRuns(ctx, p, *listRuns)
	case *serve != "":
		err = runServer(ctx, p, *serve, *grpcAddr, logger)
	case *combine != "":
		var out states.Collection
		if out, err = p.CombineFiles(ctx, *left, *right); err == nil {
			err = emit(out, *output)
		}
	default:
		var result *pipeline.Output
		if result, err = p.RunFile(ctx, *input); err == nil {
			err = emit(result.Collection, *output)
			fmt.Fprintf(os.Stderr, "Run %s: %d records, %d failed\n", result.RunID, result.Collection.Len(), len(result.Failures))
			for _, f := range result.Failures {
				fmt.Fprintf(os.Stderr, "  [%d] %v\n", f.Index, f.Err)
			}
		}
	}

	// Close before exiting so the ledger is flushed even on failure.
	if closeErr := p.Close(); closeErr != nil {
		logger.Warn("close failed", "error", closeErr)
	}
	stop()

	if err != nil {
		log.Fatalf("Failed: %v", err)
	}
}

func emit(c states.Collection, path string) error {
	if path != "" {
		if err := rows.WriteFile(path, c); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	data, err := rows.Encode(c)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func printRuns(ctx context.Context, p *pipeline.Pipeline, limit int) error {
	list, err := p.Ledger().List(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	for _, r := range list {
		fmt.Printf("%s  %-8s %-9s %-12s %d/%d failed  %s\n",
			r.ID, r.Operation, r.Status, r.Target, r.Failed, r.Total, r.StartedAt.Format("2006-01-02 15:04:05"))
		if r.Error != "" {
			fmt.Printf("    error: %s\n", r.Error)
		}
	}
	return nil
}
