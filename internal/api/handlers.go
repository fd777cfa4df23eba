package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kalambet/uigen/internal/pipeline"
	"github.com/kalambet/uigen/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	// RecentLimit is how many versions GET /api/versions returns.
	RecentLimit = 10

	dbFetchError = "DB Fetch Error"
)

// Generator runs the generation pipeline and persists its result.
type Generator interface {
	Run(ctx context.Context, userPrompt, currentCode string) (pipeline.Generation, error)
}

// VersionReader reads stored versions.
type VersionReader interface {
	RecentVersions(ctx context.Context, limit int) ([]storage.Version, error)
	GetVersion(ctx context.Context, id string) (storage.Version, error)
}

type Deps struct {
	Generator      Generator
	Versions       VersionReader
	AllowedOrigins []string // empty or ["*"] allows any origin
}

type generateRequest struct {
	UserPrompt  string `json:"userPrompt"`
	CurrentCode string `json:"currentCode"`
}

type generateResponse struct {
	Plan        string `json:"plan"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
	VersionID   string `json:"versionId"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// NewHandler returns the HTTP API: generation, version history and health.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(corsHandler(deps.AllowedOrigins))

	r.Get("/health", handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", handleGenerate(deps))
		r.Get("/versions", handleListVersions(deps))
		r.Get("/versions/{id}", handleGetVersion(deps))
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = origins
		opts.AllowCredentials = true
	}
	return cors.Handler(opts)
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "")
			return
		}
		if strings.TrimSpace(req.UserPrompt) == "" {
			writeError(w, http.StatusBadRequest, "userPrompt is required", "")
			return
		}

		// A started generation runs to completion even if the client goes away.
		gen, err := deps.Generator.Run(context.WithoutCancel(r.Context()), req.UserPrompt, req.CurrentCode)
		if err != nil {
			// Stage and persistence failures both stay 500; the stage field
			// tells them apart.
			writeError(w, http.StatusInternalServerError, err.Error(), string(pipeline.FailedStage(err)))
			return
		}

		writeJSON(w, http.StatusOK, generateResponse{
			Plan:        gen.Plan,
			Code:        gen.Code,
			Explanation: gen.Explanation,
			VersionID:   gen.VersionID,
		})
	}
}

func handleListVersions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := deps.Versions.RecentVersions(r.Context(), RecentLimit)
		if err != nil {
			slog.Error("listing versions", "error", err)
			writeError(w, http.StatusInternalServerError, dbFetchError, "")
			return
		}
		if versions == nil {
			versions = []storage.Version{}
		}
		writeJSON(w, http.StatusOK, versions)
	}
}

func handleGetVersion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		v, err := deps.Versions.GetVersion(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "version not found", "")
			return
		}
		if err != nil {
			slog.Error("getting version", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, dbFetchError, "")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg, stage string) {
	writeJSON(w, code, errorResponse{Error: msg, Stage: stage})
}
