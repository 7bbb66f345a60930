package orchestrator

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/R3E-Network/livecalc/pkg/logger"
)

// runChunkRequest is the wire shape of the debug run_chunk endpoint: the
// caller supplies base64-encoded input bytes and gets back base64-encoded
// output bytes plus any partial-engine names.
type runChunkRequest struct {
	InputBase64 string `json:"input_base64"`
	OutputSize  int    `json:"output_size"`
}

type runChunkResponse struct {
	OutputsBase64 map[string]string `json:"outputs_base64"`
	Partial       []string          `json:"partial"`
}

// Server exposes a minimal HTTP front end over an Orchestrator for manual
// and scripted debugging of a fixed engine set. It is never the primary
// entry point: cmd/livecalc drives the orchestrator directly for real
// valuation runs.
type Server struct {
	orch    *Orchestrator
	engines []Engine
	cfg     Config
	creds   Credentials
	log     *logger.Logger
}

// NewServer constructs a Server around an already-assembled engine set and
// configuration. The engine set is re-used across requests: engines that are
// already initialized are run as-is on every request and are left for the
// caller to dispose; Run initializes and disposes only engines that are
// still Uninitialized.
func NewServer(orch *Orchestrator, engines []Engine, cfg Config, creds Credentials, log *logger.Logger) *Server {
	return &Server{orch: orch, engines: engines, cfg: cfg, creds: creds, log: log}
}

// Router builds the chi router backing this Server: a liveness probe and
// the debug run_chunk endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/run_chunk", s.handleRunChunk)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleRunChunk(w http.ResponseWriter, r *http.Request) {
	var req runChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	in, err := base64.StdEncoding.DecodeString(req.InputBase64)
	if err != nil {
		http.Error(w, "input_base64 is not valid base64: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.orch.Run(r.Context(), s.engines, s.cfg, s.creds, in, req.OutputSize)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("run_chunk request failed")
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := runChunkResponse{OutputsBase64: make(map[string]string, len(result.BytesOut)), Partial: result.Partial}
	for name, bytes := range result.BytesOut {
		resp.OutputsBase64[name] = base64.StdEncoding.EncodeToString(bytes)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
