package tablecache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsCacheable(t *testing.T) {
	cases := map[string]bool{
		"mortality:v3":     true,
		"mortality:latest": false,
		"mortality:draft":  false,
		"lapse:v1":         true,
	}
	for key, want := range cases {
		if got := IsCacheable(key); got != want {
			t.Errorf("IsCacheable(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New("", 1<<20)
	c.Put("mortality:v1", "v1", []float64{0.1, 0.2, 0.3})

	got, ok := c.Get("mortality:v1")
	if !ok {
		t.Fatal("expected hit")
	}
	want := []float64{0.1, 0.2, 0.3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestVersionImmutability(t *testing.T) {
	c := New("", 1<<20)
	v1 := []float64{1.0, 2.0}
	c.Put("a:v1", "v1", v1)
	c.Put("a:v1", "v1", v1)

	got, ok := c.Get("a:v1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got[0] != 1.0 || got[1] != 2.0 {
		t.Errorf("got %v, want %v", got, v1)
	}
}

func TestEvictionUnderBudget(t *testing.T) {
	c := New("", 24) // 3 doubles

	c.Put("a:v1", "v1", []float64{1.0})
	c.Put("b:v1", "v1", []float64{2.0})
	c.Put("c:v1", "v1", []float64{3.0})

	if _, ok := c.Get("a:v1"); !ok {
		t.Fatal("expected a:v1 to be a hit before touching")
	}

	c.Put("d:v1", "v1", []float64{4.0})

	if _, ok := c.Get("b:v1"); ok {
		t.Error("expected b:v1 to be evicted")
	}
	for _, key := range []string{"a:v1", "c:v1", "d:v1"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %s to still be present", key)
		}
	}

	stats := c.Stats()
	if stats.BytesStored > 24 {
		t.Errorf("BytesStored = %d, want <= 24", stats.BytesStored)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c1 := New(dir, 1<<20)
	c1.Put("mortality:v1", "v1", []float64{0.01, 0.02, 0.03})

	c2 := New(dir, 1<<20)
	got, ok := c2.Get("mortality:v1")
	if !ok {
		t.Fatal("expected fresh cache sharing the directory to hit on disk")
	}
	want := []float64{0.01, 0.02, 0.03}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFailOpenOnReadOnlyDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root bypasses directory permission enforcement")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)

	c := New(dir, 1<<20)
	c.Put("mortality:v1", "v1", []float64{0.1})

	got, ok := c.Get("mortality:v1")
	if !ok {
		t.Fatal("expected in-memory hit despite unwritable disk root")
	}
	if got[0] != 0.1 {
		t.Errorf("got %v, want [0.1]", got)
	}
}

func TestClearRemovesDiskEntries(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 1<<20)
	c.Put("a:v1", "v1", []float64{1.0})

	path := filepath.Join(dir, "a_v1.cache")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file to exist: %v", err)
	}

	c.Clear()

	if _, ok := c.Get("a:v1"); ok {
		t.Error("expected miss after Clear")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected cache file removed, stat err = %v", err)
	}
}

func TestBadMagicTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a_v1.cache")
	if err := os.WriteFile(path, []byte{0xFF, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := New(dir, 1<<20)
	if _, ok := c.Get("a:v1"); ok {
		t.Error("expected bad-magic file to be treated as absent")
	}
}

func TestStatsHitsAndMisses(t *testing.T) {
	c := New("", 1<<20)
	c.Put("a:v1", "v1", []float64{1.0})

	c.Get("a:v1")
	c.Get("missing:v1")

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.EntriesCount != 1 {
		t.Errorf("EntriesCount = %d, want 1", stats.EntriesCount)
	}
}
