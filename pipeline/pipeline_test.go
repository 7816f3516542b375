package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/agentics/core/stage"
	"github.com/tailored-agentic-units/agentics/pipeline"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/rows"
	"github.com/tailored-agentic-units/agentics/runs"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/transduction"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func mockConfig() *pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Provider.Kind = provider.KindMock
	cfg.Transduction.Observer = "noop"
	return &cfg
}

func newPipeline(t *testing.T, cfg *pipeline.Config, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

const moviesCSV = "movie_name,genre,year\nAlien,horror,1979\nHeat,crime,1995\nUp,animation,2009\n"

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "tweets.yaml", `
operation: amap
type_name: Tweet
fields:
  - name: tweet
    type: str
instructions: Generate a tweet for the movie
batch_size: 4
merge_source: false
provider:
  kind: mock
transduction:
  call_timeout: 30s
runs:
  driver: sqlite
`},
		{"json", "tweets.json", `{
  "operation": "amap",
  "type_name": "Tweet",
  "fields": [{"name": "tweet", "type": "str"}],
  "instructions": "Generate a tweet for the movie",
  "batch_size": 4,
  "merge_source": false,
  "provider": {"kind": "mock"},
  "transduction": {"call_timeout": "30s"},
  "runs": {"driver": "sqlite"}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := pipeline.LoadConfig(writeFile(t, dir, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.Operation != "amap" || cfg.TypeName != "Tweet" || len(cfg.Fields) != 1 {
				t.Errorf("Unexpected type section: %+v", cfg)
			}
			if cfg.BatchSize != 4 || cfg.MergeSource() {
				t.Errorf("Expected batch 4 and no merge, got %d %v", cfg.BatchSize, cfg.MergeSource())
			}
			if cfg.Provider.Kind != provider.KindMock || cfg.Provider.BaseURL == "" {
				t.Errorf("Expected mock provider over defaults, got %+v", cfg.Provider)
			}
			if cfg.Transduction.CallTimeout.Std().Seconds() != 30 || cfg.Transduction.BatchSize != 10 {
				t.Errorf("Unexpected transduction section: %+v", cfg.Transduction)
			}
			if cfg.Runs.Driver != runs.DriverSQLite || cfg.Selector != "merge" {
				t.Errorf("Unexpected defaults: %+v", cfg)
			}
		})
	}

	if _, err := pipeline.LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := pipeline.LoadConfig(writeFile(t, dir, "bad.json", "{")); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestRun_MovieToTweetMergedWithSource(t *testing.T) {
	dir := t.TempDir()
	cfg := mockConfig()
	cfg.TypeName = "Tweet"
	cfg.Fields = []schema.FieldSpec{{Name: "tweet", Type: "str"}}
	cfg.Instructions = "Generate a tweet for the movie"
	cfg.Explanations = true

	p := newPipeline(t, cfg)
	out, err := p.RunFile(context.Background(), writeFile(t, dir, "movies.csv", moviesCSV))
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}

	if !out.Merged || out.Kind != transduction.KindMap {
		t.Errorf("Expected merged map output, got %+v", out)
	}
	if out.Collection.Len() != 3 {
		t.Fatalf("Expected 3 records, got %d", out.Collection.Len())
	}
	wantNames := []string{"movie_name", "genre", "year", "tweet"}
	if got := out.Collection.Schema().Names(); fmt.Sprint(got) != fmt.Sprint(wantNames) {
		t.Errorf("Expected fields %v, got %v", wantNames, got)
	}
	for i, row := range out.Collection.Rows() {
		if row["tweet"] != fmt.Sprintf("tweet %d", i+1) {
			t.Errorf("Row %d: unexpected tweet %v", i, row["tweet"])
		}
	}
	if exps, ok := out.Collection.Explanations(); !ok || len(exps) != 3 {
		t.Errorf("Expected 3 explanations, got %v", exps)
	}

	run, err := p.Ledger().Get(context.Background(), out.RunID)
	if err != nil || run.Status != string(transduction.StatusCompleted) {
		t.Errorf("Expected completed ledger entry, got %+v, %v", run, err)
	}
}

func TestRun_MapWithoutMerge(t *testing.T) {
	off := false
	cfg := mockConfig()
	cfg.TypeDefinition = "name: Tweet\nfields:\n  - name: tweet\n    type: str\n"
	cfg.MergeSourceNil = &off

	table, err := rows.DecodeCSV(strings.NewReader(moviesCSV))
	if err != nil {
		t.Fatal(err)
	}

	out, err := newPipeline(t, cfg).Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Merged || out.Collection.Schema().Len() != 1 {
		t.Errorf("Expected bare tweet output, got %v", out.Collection.Schema())
	}
}

func TestRun_GenerateFromCatalog(t *testing.T) {
	cfg := mockConfig()
	cfg.Operation = "generate"
	cfg.CatalogType = "employee"
	cfg.Count = 5

	out, err := newPipeline(t, cfg).RunFile(context.Background(), "")
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if out.Collection.Len() != 5 {
		t.Fatalf("Expected 5 records, got %d", out.Collection.Len())
	}
	for i, rec := range out.Collection.Records() {
		name, _ := rec.Get("name")
		salary, _ := rec.Get("base_salary")
		if name == nil || salary == nil {
			t.Errorf("Record %d missing fields: %v", i, rec.Map())
		}
	}
}

func TestRun_Reduce(t *testing.T) {
	cfg := mockConfig()
	cfg.Operation = "areduce"
	cfg.TypeName = "Answer"

	p := newPipeline(t, cfg)
	table, _ := rows.DecodeCSV(strings.NewReader(moviesCSV))

	out, err := p.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Collection.Len() != 1 || out.Merged {
		t.Errorf("Expected single unmerged record, got %d", out.Collection.Len())
	}

	_, err = p.Run(context.Background(), rows.Table{})
	if !errors.Is(err, pipeline.ErrNoInput) {
		t.Errorf("Expected ErrNoInput, got %v", err)
	}
	if got := stage.Of(err); got != stage.Ingestion {
		t.Errorf("Expected ingestion stage, got %q", got)
	}
}

func TestRun_WithProviderOverride(t *testing.T) {
	cfg := mockConfig()
	cfg.Provider = provider.Config{Kind: "openai"}
	cfg.TypeName = "Tweet"
	cfg.Fields = []schema.FieldSpec{{Name: "tweet", Type: "str"}}
	cfg.MaxRows = 2

	mock := provider.NewMock(func(_ context.Context, req provider.Request) (provider.Response, error) {
		in := req.Input.(map[string]any)
		return provider.Response{Value: map[string]any{"tweet": "see " + in["movie_name"].(string)}}, nil
	})

	p := newPipeline(t, cfg, pipeline.WithProvider(mock), pipeline.WithLedger(runs.NewMemoryStore()))
	table, _ := rows.DecodeCSV(strings.NewReader(moviesCSV))

	out, err := p.Run(context.Background(), table)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Collection.Len() != 2 || mock.Calls() != 2 {
		t.Errorf("Expected max_rows to cap at 2, got %d records and %d calls", out.Collection.Len(), mock.Calls())
	}
	if got, _ := out.Collection.Record(1).Get("tweet"); got != "see Heat" {
		t.Errorf("Unexpected tweet: %v", got)
	}
}

func TestNamedProviders(t *testing.T) {
	cfg := mockConfig()
	cfg.Provider = provider.Config{}
	cfg.Providers = map[string]provider.Config{"dry": {Kind: provider.KindMock}}
	cfg.UseProvider = "dry"
	cfg.TypeName = "Movie"
	cfg.Operation = "generate"
	cfg.Count = 2

	p := newPipeline(t, cfg)
	if infos := p.Registry().List(); len(infos) != 1 || infos[0].Name != "dry" {
		t.Errorf("Unexpected registry: %+v", infos)
	}
	if _, err := p.RunFile(context.Background(), ""); err != nil {
		t.Fatalf("RunFile: %v", err)
	}

	cfg.UseProvider = "absent"
	if _, err := pipeline.New(context.Background(), cfg); !errors.Is(err, provider.ErrProviderNotFound) {
		t.Errorf("Expected ErrProviderNotFound, got %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := mockConfig()
	cfg.Operation = "fold"
	if _, err := pipeline.New(context.Background(), cfg); !errors.Is(err, transduction.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}

	cfg = mockConfig()
	cfg.Provider.Kind = provider.KindOpenAI
	if _, err := pipeline.New(context.Background(), cfg); !errors.Is(err, provider.ErrMissingModel) {
		t.Errorf("Expected ErrMissingModel, got %v", err)
	}

	cfg = mockConfig()
	p := newPipeline(t, cfg)
	_, err := p.Run(context.Background(), rows.Table{})
	if !errors.Is(err, pipeline.ErrNoTargetType) {
		t.Errorf("Expected ErrNoTargetType, got %v", err)
	}
	if got := stage.Of(err); got != stage.Schema {
		t.Errorf("Expected schema stage, got %q", got)
	}
}

func TestNew_FailureClosesLedger(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	notADir := writeFile(t, dir, "catalog", "not a directory")

	cfg := mockConfig()
	cfg.Runs.Driver = runs.DriverSQLite
	cfg.Runs.Path = dbPath
	cfg.Catalog.Path = notADir

	if _, err := pipeline.New(context.Background(), cfg); err == nil {
		t.Fatal("Expected catalog error")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("Expected ledger database to have been created: %v", err)
	}
	// SQLite removes the write-ahead log when the last connection closes.
	if _, err := os.Stat(dbPath + "-wal"); !os.IsNotExist(err) {
		t.Errorf("Expected ledger to be closed after a failed New, wal stat: %v", err)
	}
}

func TestCombineFiles(t *testing.T) {
	dir := t.TempDir()
	movies := writeFile(t, dir, "movies.csv", moviesCSV)
	tweets := writeFile(t, dir, "tweets.json", `[{"tweet":"a"},{"tweet":"b"},{"tweet":"c"}]`)

	tests := []struct {
		selector string
		records  int
		check    func(row map[string]any) bool
	}{
		{"merge", 3, func(row map[string]any) bool { return row["tweet"] == "a" && row["movie_name"] == "Alien" }},
		{"compose", 3, func(row map[string]any) bool {
			nested, ok := row["tweets"].(map[string]any)
			return ok && nested["tweet"] == "a"
		}},
		{"add", 6, func(row map[string]any) bool { return row["movie_name"] == "Alien" }},
		{"zip", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			cfg := mockConfig()
			cfg.Selector = tt.selector
			out, err := newPipeline(t, cfg).CombineFiles(context.Background(), movies, tweets)
			if err != nil {
				t.Fatalf("CombineFiles: %v", err)
			}
			if out.Len() != tt.records {
				t.Fatalf("Expected %d records, got %d", tt.records, out.Len())
			}
			if tt.check != nil && !tt.check(out.Rows()[0]) {
				t.Errorf("Unexpected first row: %v", out.Rows()[0])
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	off := false
	cfg.Merge(&pipeline.Config{
		Operation:      "generate",
		Count:          3,
		Explanations:   true,
		MergeSourceNil: &off,
		Provider:       provider.Config{Model: "m"},
	})

	if cfg.Operation != "generate" || cfg.Count != 3 || !cfg.Explanations || cfg.MergeSource() {
		t.Errorf("Unexpected merge: %+v", cfg)
	}
	if cfg.Provider.Model != "m" || cfg.Provider.Kind != provider.KindOpenAI {
		t.Errorf("Unexpected provider merge: %+v", cfg.Provider)
	}
	if cfg.SourceName != "Source" {
		t.Errorf("Expected default source name, got %q", cfg.SourceName)
	}
}
