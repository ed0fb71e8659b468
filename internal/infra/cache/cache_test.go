package cache_test

import (
	"testing"
	"time"

	"github.com/naywayne90/sygfp-go/internal/domain"
	"github.com/naywayne90/sygfp-go/internal/infra/cache"
)

func TestCacheSetAndGet(t *testing.T) {
	c := cache.New[[]domain.BudgetAvailability](5 * time.Minute)

	snapshot := []domain.BudgetAvailability{{LigneID: "l1", Code: "6211", Disponible: 1_000_000}}
	c.Set("availability:2026", snapshot)

	got, ok := c.Get("availability:2026")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if len(got) != 1 || got[0].Code != "6211" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c := cache.New[[]domain.BudgetAvailability](5 * time.Minute)

	if _, ok := c.Get("availability:2019"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheOverwrite(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("k", "old")
	c.Set("k", "new")

	val, _ := c.Get("k")
	if val != "new" {
		t.Errorf("expected overwritten value, got %q", val)
	}
}

func TestCacheExpiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)

	c.Set("k", "v")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to be expired")
	}
}

func TestCacheDelete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)

	c.Set("availability:2026", "v")
	c.Delete("availability:2026")

	if _, ok := c.Get("availability:2026"); ok {
		t.Fatal("expected key to be deleted")
	}
}
