package api

import (
	"net/http"
	"strings"

	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/store"
)

// listParam collects a repeatable, comma-separable query parameter.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) handleArticles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := s.pipeline.Store()
		if st == nil {
			respondError(w, http.StatusServiceUnavailable, "storage is not configured")
			return
		}
		limit, ok := queryInt(r, "limit", 50, 1, 500)
		if !ok {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}

		var levels []string
		for _, raw := range listParam(r, "impact") {
			level, ok := analyzer.NormalizeImpactLevel(raw)
			if !ok {
				respondError(w, http.StatusBadRequest, "unknown impact level: "+raw)
				return
			}
			levels = append(levels, level)
		}

		articles, err := st.List(r.Context(), store.Filter{
			Categories:   listParam(r, "category"),
			ImpactLevels: levels,
			Limit:        limit,
		})
		if err != nil {
			s.logger.Error("list articles failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Database error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "success",
			"count":    len(articles),
			"articles": articles,
		})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]any{
			"status":  "success",
			"sources": s.pipeline.Aggregator().SourceInfo().Sources,
		}
		if a := s.pipeline.Analyzer(); a != nil {
			out["gemini_stats"] = a.Limiter().Stats()
			out["prompt_versions"] = a.Prompts()
		}
		if st := s.pipeline.Store(); st != nil {
			stats, err := st.Stats(r.Context())
			if err != nil {
				s.logger.Error("database stats failed", "error", err)
				respondError(w, http.StatusInternalServerError, "Database error")
				return
			}
			out["database"] = stats
		}
		respondJSON(w, http.StatusOK, out)
	}
}
