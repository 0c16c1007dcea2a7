package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/RobinCoderZhao/hopeshot/internal/news/aggregator"
	"github.com/RobinCoderZhao/hopeshot/internal/news/pipeline"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/pkg/i18n"
)

// queryInt parses an optional integer parameter bounded to [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// queryLanguage accepts region-tagged codes such as "en-US".
func queryLanguage(r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("language")
	if strings.TrimSpace(raw) == "" {
		return string(i18n.LangEN), true
	}
	lang, ok := i18n.NormalizeLanguage(raw)
	return string(lang), ok
}

func (s *Server) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"message": "HopeShot news API",
			"status":  "running",
			"version": Version,
			"features": []string{
				"Multi-source news aggregation",
				"Cross-source duplicate removal",
				"Rate-limited multi-prompt scoring",
			},
		})
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := s.pipeline.Aggregator()
		available := agg.AvailableSources()
		status := "healthy"
		if len(available) == 0 {
			status = "degraded"
		}
		env := os.Getenv("ENVIRONMENT")
		if env == "" {
			env = "development"
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":  status,
			"version": Version,
			"sources": map[string]any{
				"total_configured":  len(available),
				"available_sources": available,
				"source_details":    agg.SourceInfo().Sources,
			},
			"system": map[string]any{
				"environment":     env,
				"scoring_enabled": s.pipeline.Analyzer() != nil,
				"storage_enabled": s.pipeline.Store() != nil,
			},
		})
	}
}

func (s *Server) handleNews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize, ok := queryInt(r, "pageSize", aggregator.DefaultPageSize, 1, aggregator.MaxPageSize)
		if !ok {
			respondError(w, http.StatusBadRequest, "pageSize must be between 1 and 100")
			return
		}
		language, ok := queryLanguage(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "unsupported language")
			return
		}
		analyze, _ := strconv.ParseBool(r.URL.Query().Get("analyze"))
		if analyze && s.authEnabled() {
			if _, err := s.authenticate(r); err != nil {
				respondError(w, http.StatusUnauthorized, "scoring requires an operator token: "+err.Error())
				return
			}
		}

		resp, err := s.pipeline.Run(r.Context(), pipeline.Request{
			Query:    r.URL.Query().Get("q"),
			Language: language,
			PageSize: pageSize,
			Analyze:  analyze,
		})
		if errors.Is(err, aggregator.ErrNoSources) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if err != nil {
			s.logger.Error("news request failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to fetch news: "+err.Error())
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSourceNews() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageSize, ok := queryInt(r, "pageSize", 10, 1, 50)
		if !ok {
			respondError(w, http.StatusBadRequest, "pageSize must be between 1 and 50")
			return
		}
		language, ok := queryLanguage(r)
		if !ok {
			respondError(w, http.StatusBadRequest, "unsupported language")
			return
		}
		provider := sources.Provider(strings.ToLower(r.PathValue("source")))

		res, err := s.pipeline.Aggregator().FetchSource(r.Context(), provider, sources.Query{
			Text:     r.URL.Query().Get("q"),
			Language: language,
			PageSize: pageSize,
		})
		switch {
		case errors.Is(err, aggregator.ErrUnknownSource):
			respondError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, sources.ErrNotConfigured), errors.Is(err, aggregator.ErrDailyLimit):
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if res.Status == sources.StatusError {
			respondError(w, http.StatusBadGateway, res.Error)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.pipeline.Aggregator().SourceInfo())
	}
}

func (s *Server) handleTestSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, s.pipeline.Aggregator().TestAll(r.Context()))
	}
}
