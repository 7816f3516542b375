package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/agentics/catalog"
	"github.com/tailored-agentic-units/agentics/schema"
)

func TestOpen_SeededMemoryCatalog(t *testing.T) {
	cfg := catalog.DefaultConfig()
	c, err := catalog.Open(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	want := []string{"answer", "email", "employee", "movie", "tweet"}
	names := c.Names()
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if len(catalog.SeedNames()) != 5 {
		t.Errorf("SeedNames() = %v", catalog.SeedNames())
	}
}

func TestCatalog_Descriptor(t *testing.T) {
	cfg := catalog.DefaultConfig()
	c, err := catalog.Open(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	desc, err := c.Descriptor(context.Background(), "Employee")
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if desc.Name() != "Employee" || desc.Len() != 6 {
		t.Errorf("Descriptor() = %s with %d fields", desc.Name(), desc.Len())
	}
	reports, ok := desc.Field("reports")
	if !ok || !reports.IsList() || reports.Type != schema.String {
		t.Errorf("reports field = %+v", reports)
	}
	salary, _ := desc.Field("base_salary")
	if salary.Type != schema.Float {
		t.Errorf("base_salary type = %s, want float", salary.Type)
	}

	again, _ := c.Descriptor(context.Background(), "employee")
	if again != desc {
		t.Error("Descriptor() did not reuse the parsed definition")
	}

	if _, err := c.Descriptor(context.Background(), "spaceship"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Descriptor(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestCatalog_PutRemovePersist(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "types")
	seed := false
	cfg := catalog.Config{Path: root, SeedNil: &seed}

	c, err := catalog.Open(ctx, &cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(c.Names()) != 0 {
		t.Fatalf("Expected empty catalog, got %v", c.Names())
	}

	review, err := schema.Build("Review", []schema.FieldSpec{
		{Name: "stars", Type: "int"},
		{Name: "tags", Type: "list[str]"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, review); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := catalog.Open(ctx, &cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if !reopened.Has("Review") {
		t.Fatal("Has(Review) = false after reopen")
	}
	got, err := reopened.Descriptor(ctx, "review")
	if err != nil {
		t.Fatalf("Descriptor() error = %v", err)
	}
	if !got.Equal(review) {
		t.Errorf("Descriptor() = %s, want %s", got, review)
	}

	if err := reopened.Remove(ctx, "Review"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if reopened.Has("review") {
		t.Error("Has() = true after Remove")
	}
	if _, err := reopened.Descriptor(ctx, "review"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Descriptor() after Remove error = %v", err)
	}
}

func TestCatalog_PutRequiresName(t *testing.T) {
	desc, _ := schema.Build("", []schema.FieldSpec{{Name: "a", Type: "str"}})
	c := catalog.New(catalog.NewMemoryStore())
	if err := c.Put(context.Background(), desc); !errors.Is(err, catalog.ErrNoName) {
		t.Errorf("Put() error = %v, want ErrNoName", err)
	}
}

func TestCatalog_InvalidDefinition(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	_ = store.Save(ctx, catalog.Entry{Key: "broken.yaml", Value: []byte("name: Broken\nfields:\n  - name: a\n    type: spaceship\n")})

	c := catalog.New(store)
	if err := c.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := c.Descriptor(ctx, "broken")
	var schemaErr *schema.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("Descriptor() error = %v, want *schema.SchemaError", err)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := catalog.DefaultConfig()
	off := false
	cfg.Merge(&catalog.Config{Path: "/tmp/types", SeedNil: &off})

	if cfg.Path != "/tmp/types" || cfg.Seed() {
		t.Errorf("Merge() = %+v", cfg)
	}
	empty := catalog.Config{}
	if !empty.Seed() {
		t.Error("Seed() default should be true")
	}
}
