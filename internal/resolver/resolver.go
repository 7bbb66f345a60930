// Package resolver coordinates the HTTP transport, token handler, and
// versioned table cache to turn (name, version) into a flat vector of
// doubles, with attribute-keyed scalar lookups and a local-file fallback
// that bypasses all three.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/R3E-Network/livecalc/infrastructure/amclient/token"
	"github.com/R3E-Network/livecalc/infrastructure/amclient/transport"
	"github.com/R3E-Network/livecalc/infrastructure/errors"
	"github.com/R3E-Network/livecalc/infrastructure/tablecache"
)

// Resolver coordinates transport, token, and cache lookups. The dependency
// graph is a tree of exclusively-owned components: Resolver owns references
// to all three but none of them reference each other.
type Resolver struct {
	transport *transport.Transport
	tokens    *token.Handler
	cache     *tablecache.Cache
}

// New constructs a Resolver. cache may be nil to disable caching entirely
// (every resolve goes to the network).
func New(t *transport.Transport, tok *token.Handler, cache *tablecache.Cache) *Resolver {
	return &Resolver{transport: t, tokens: tok, cache: cache}
}

// Result pairs a resolved vector with an audit trail of where it came from:
// "local:<path>" for file-backed loads, or "<name>:<version>" for
// network/cache-backed ones.
type Result struct {
	Data   []float64
	Source string
}

type tableDataResponse struct {
	Data json.RawMessage `json:"data"`
}

// Resolve returns the flat table for (name, version). Cacheable keys consult
// the cache first; on a miss, or for non-cacheable ("latest"/"draft") keys,
// it fetches over HTTP and, if cacheable, populates the cache.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (Result, error) {
	key := name + ":" + version
	cacheable := r.cache != nil && tablecache.IsCacheable(key)

	if cacheable {
		if data, ok := r.cache.Get(key); ok {
			return Result{Data: data, Source: key}, nil
		}
	}

	data, err := r.fetch(ctx, name, version)
	if err != nil {
		return Result{}, errors.ResolutionError(name, version, err)
	}

	if cacheable {
		r.cache.Put(key, version, data)
	}

	return Result{Data: data, Source: key}, nil
}

func (r *Resolver) fetch(ctx context.Context, name, version string) ([]float64, error) {
	tok, err := r.tokens.CurrentToken()
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/api/v1/tables/%s/versions/%s/data", name, version)
	headers := map[string]string{"Authorization": "Bearer " + tok}

	resp, err := r.transport.Get(ctx, path, headers)
	if err != nil {
		return nil, err
	}

	var parsed tableDataResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, errors.DecodeError("malformed table data response", err)
	}

	data, err := flattenNumeric(parsed.Data)
	if err != nil {
		return nil, errors.DecodeError("unexpected table data shape", err)
	}
	return data, nil
}

// flattenNumeric accepts either a flat JSON array of numbers or a ragged 2-D
// array and flattens it row-major.
func flattenNumeric(raw json.RawMessage) ([]float64, error) {
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var ragged [][]float64
	if err := json.Unmarshal(raw, &ragged); err != nil {
		return nil, fmt.Errorf("data is neither a flat nor a 2-D numeric array: %w", err)
	}
	out := make([]float64, 0, len(ragged))
	for _, row := range ragged {
		out = append(out, row...)
	}
	return out, nil
}

// ListVersions returns the known versions of a table, flattening a response
// whose elements are either raw strings or objects carrying a "version"
// field.
func (r *Resolver) ListVersions(ctx context.Context, name string) ([]string, error) {
	tok, err := r.tokens.CurrentToken()
	if err != nil {
		return nil, errors.ResolutionError(name, "", err)
	}

	path := fmt.Sprintf("/api/v1/tables/%s/versions", name)
	headers := map[string]string{"Authorization": "Bearer " + tok}

	resp, err := r.transport.Get(ctx, path, headers)
	if err != nil {
		return nil, errors.ResolutionError(name, "", err)
	}

	var envelope struct {
		Versions []json.RawMessage `json:"versions"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, errors.ResolutionError(name, "", errors.DecodeError("malformed versions response", err))
	}

	out := make([]string, 0, len(envelope.Versions))
	for _, raw := range envelope.Versions {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			out = append(out, obj.Version)
			continue
		}
		return nil, errors.ResolutionError(name, "", errors.DecodeError("unexpected version entry shape", nil))
	}
	return out, nil
}

// ResolveScalar resolves the full table for (name, version), then indexes it
// by attrs using the table-type-specific protocol in mortalityIndex.
func (r *Resolver) ResolveScalar(ctx context.Context, name, version string, attrs map[string]string) (float64, error) {
	result, err := r.Resolve(ctx, name, version)
	if err != nil {
		return 0, err
	}

	idx, err := mortalityIndex(attrs)
	if err != nil {
		return 0, errors.ResolutionError(name, version, err)
	}
	if idx < 0 || idx >= len(result.Data) {
		return 0, errors.ResolutionError(name, version, fmt.Errorf("index %d out of range for table of length %d", idx, len(result.Data)))
	}
	return result.Data[idx], nil
}
