package provider_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/agentics/provider"
)

func mockConfig(model string) provider.Config {
	return provider.Config{Kind: provider.KindMock, Model: model}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := provider.NewRegistry()

	if err := r.Register("local", mockConfig("m1")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	p, err := r.Get("local")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	again, err := r.Get("local")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if p != again {
		t.Error("expected cached provider instance")
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := provider.NewRegistry()

	if err := r.Register("", mockConfig("m")); !errors.Is(err, provider.ErrEmptyProviderName) {
		t.Errorf("got %v, want ErrEmptyProviderName", err)
	}

	if err := r.Register("a", mockConfig("m")); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", mockConfig("m")); !errors.Is(err, provider.ErrProviderExists) {
		t.Errorf("got %v, want ErrProviderExists", err)
	}

	if _, err := r.Get("missing"); !errors.Is(err, provider.ErrProviderNotFound) {
		t.Errorf("got %v, want ErrProviderNotFound", err)
	}
	if err := r.Replace("missing", mockConfig("m")); !errors.Is(err, provider.ErrProviderNotFound) {
		t.Errorf("got %v, want ErrProviderNotFound", err)
	}
	if err := r.Unregister("missing"); !errors.Is(err, provider.ErrProviderNotFound) {
		t.Errorf("got %v, want ErrProviderNotFound", err)
	}

	if err := r.Register("broken", provider.Config{Kind: provider.KindOpenAI}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get("broken"); !errors.Is(err, provider.ErrMissingModel) {
		t.Errorf("got %v, want ErrMissingModel", err)
	}
}

func TestRegistry_ReplaceInvalidatesCache(t *testing.T) {
	r := provider.NewRegistry()
	if err := r.Register("a", mockConfig("m1")); err != nil {
		t.Fatal(err)
	}

	first, _ := r.Get("a")
	if err := r.Replace("a", mockConfig("m2")); err != nil {
		t.Fatal(err)
	}
	second, _ := r.Get("a")

	if first == second {
		t.Error("expected a new instance after Replace")
	}

	infos := r.List()
	if len(infos) != 1 || infos[0].Model != "m2" {
		t.Errorf("unexpected list %+v", infos)
	}
}

func TestRegistry_SetAndList(t *testing.T) {
	r := provider.NewRegistry()
	m := provider.NewMock(nil)

	if err := r.Set("zeta", m); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("alpha", mockConfig("m")); err != nil {
		t.Fatal(err)
	}

	got, err := r.Get("zeta")
	if err != nil || got != m {
		t.Fatalf("Get(zeta) = %v, %v", got, err)
	}

	infos := r.List()
	if len(infos) != 2 || infos[0].Name != "alpha" || infos[1].Name != "zeta" {
		t.Errorf("List not sorted: %+v", infos)
	}

	if err := r.Unregister("zeta"); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	r := provider.NewRegistry()
	if err := r.Register("shared", mockConfig("m")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]provider.Provider, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Get("shared")
			if err != nil {
				t.Errorf("Get failed: %v", err)
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i, p := range results {
		if p != results[0] {
			t.Errorf("goroutine %d got a different instance", i)
		}
	}
}
