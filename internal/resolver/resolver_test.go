package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/R3E-Network/livecalc/infrastructure/amclient/token"
	"github.com/R3E-Network/livecalc/infrastructure/amclient/transport"
	"github.com/R3E-Network/livecalc/infrastructure/tablecache"
)

func makeJWT(exp int64) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp)))
	return header + "." + payload + ".sig"
}

func newResolverAgainst(t *testing.T, handler http.HandlerFunc, cache *tablecache.Cache) (*Resolver, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	tr, err := transport.New(transport.Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("transport.New() error = %v", err)
	}

	tok, err := token.NewLazy(makeJWT(time.Now().Add(time.Hour).Unix()))
	if err != nil {
		t.Fatalf("token.NewLazy() error = %v", err)
	}

	return New(tr, tok, cache), server
}

func TestResolveFlatArray(t *testing.T) {
	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data":[0.1,0.2,0.3]}`))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	result, err := r.Resolve(context.Background(), "lapse", "v1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(result.Data) != 3 || result.Data[1] != 0.2 {
		t.Errorf("Data = %v, want [0.1 0.2 0.3]", result.Data)
	}
	if result.Source != "lapse:v1" {
		t.Errorf("Source = %q, want %q", result.Source, "lapse:v1")
	}
}

func TestResolveRaggedArray(t *testing.T) {
	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data":[[1,2],[3,4,5]]}`))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	result, err := r.Resolve(context.Background(), "x", "v1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []float64{1, 2, 3, 4, 5}
	for i := range want {
		if result.Data[i] != want[i] {
			t.Errorf("Data[%d] = %v, want %v", i, result.Data[i], want[i])
		}
	}
}

func TestResolveCachesOnConcreteVersion(t *testing.T) {
	var calls int
	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Write([]byte(`{"data":[9.9]}`))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "mortality", "v7"); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (subsequent resolves should hit cache)", calls)
	}
}

func TestResolveBypassesCacheForLatest(t *testing.T) {
	cache := tablecache.New("", 1<<20)
	cache.Put("m:v1", "v1", []float64{1.0})

	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data":[2.0]}`))
	}, cache)
	defer server.Close()

	statsBefore := cache.Stats()
	result, err := r.Resolve(context.Background(), "m", "latest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if result.Data[0] != 2.0 {
		t.Errorf("Data[0] = %v, want 2.0 (mutable tag must bypass cache)", result.Data[0])
	}

	if _, ok := cache.Get("m:latest"); ok {
		t.Error("expected m:latest to still be a cache miss")
	}
	if cache.Stats().EntriesCount != statsBefore.EntriesCount {
		t.Error("expected entries_count to be unchanged by a latest resolve")
	}
}

func TestListVersionsMixedShapes(t *testing.T) {
	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"versions":["v1",{"version":"v2"}]}`))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	versions, err := r.ListVersions(context.Background(), "mortality")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 2 || versions[0] != "v1" || versions[1] != "v2" {
		t.Errorf("versions = %v, want [v1 v2]", versions)
	}
}

func TestResolveScalarMortality(t *testing.T) {
	data := make([]float64, 242)
	data[40] = 0.005   // male age 40
	data[121+40] = 0.004 // female age 40

	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(fmt.Sprintf(`{"data":%s}`, floatsToJSON(data))))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	got, err := r.ResolveScalar(context.Background(), "mortality", "v1", map[string]string{"age": "40", "gender": "M"})
	if err != nil {
		t.Fatalf("ResolveScalar() error = %v", err)
	}
	if got != 0.005 {
		t.Errorf("got %v, want 0.005", got)
	}

	got, err = r.ResolveScalar(context.Background(), "mortality", "v1", map[string]string{"age": "40", "gender": "Female"})
	if err != nil {
		t.Fatalf("ResolveScalar() error = %v", err)
	}
	if got != 0.004 {
		t.Errorf("got %v, want 0.004", got)
	}
}

func TestResolveScalarMissingAge(t *testing.T) {
	r, server := newResolverAgainst(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"data":[0.1]}`))
	}, tablecache.New("", 1<<20))
	defer server.Close()

	_, err := r.ResolveScalar(context.Background(), "mortality", "v1", map[string]string{})
	if err == nil {
		t.Fatal("expected error for missing age attribute")
	}
}

func TestLoadLocalMortality(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mortality.csv")
	content := "age,male_qx,female_qx\n40,0.005,0.004\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := LoadLocalMortality(path)
	if err != nil {
		t.Fatalf("LoadLocalMortality() error = %v", err)
	}
	if result.Source != "local:"+path {
		t.Errorf("Source = %q, want %q", result.Source, "local:"+path)
	}
	if result.Data[40] != 0.005 || result.Data[121+40] != 0.004 {
		t.Errorf("unexpected data at age 40: male=%v female=%v", result.Data[40], result.Data[121+40])
	}
}

func TestLoadLocalLapse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lapse.csv")
	content := "year,lapse_rate\n1,0.02\n2,0.03\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := LoadLocalLapse(path)
	if err != nil {
		t.Fatalf("LoadLocalLapse() error = %v", err)
	}
	if result.Data[0] != 0.02 || result.Data[1] != 0.03 {
		t.Errorf("unexpected lapse data: %v", result.Data[:2])
	}
}

func TestLoadLocalExpense(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "expense.csv")
	content := "name,value\nacquisition,100\nmaintenance,20\npct_premium,0.05\nper_claim,50\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := LoadLocalExpense(path)
	if err != nil {
		t.Fatalf("LoadLocalExpense() error = %v", err)
	}
	want := []float64{100, 20, 0.05, 50}
	for i := range want {
		if result.Data[i] != want[i] {
			t.Errorf("Data[%d] = %v, want %v", i, result.Data[i], want[i])
		}
	}
}

func floatsToJSON(v []float64) string {
	out := "["
	for i, f := range v {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%v", f)
	}
	return out + "]"
}
