package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/RobinCoderZhao/hopeshot/internal/news/aggregator"
	"github.com/RobinCoderZhao/hopeshot/internal/news/analyzer"
	"github.com/RobinCoderZhao/hopeshot/internal/news/pipeline"
	"github.com/RobinCoderZhao/hopeshot/internal/news/sources"
	"github.com/RobinCoderZhao/hopeshot/internal/news/store"
	"github.com/RobinCoderZhao/hopeshot/internal/user"
	"github.com/RobinCoderZhao/hopeshot/pkg/storage"
)

type staticSource struct {
	articles []sources.Article
}

func (s *staticSource) Name() sources.Provider { return sources.AFP }
func (s *staticSource) IsConfigured() bool     { return true }
func (s *staticSource) Fetch(_ context.Context, q sources.Query) sources.FetchResult {
	n := len(s.articles)
	if q.PageSize > 0 && q.PageSize < n {
		n = q.PageSize
	}
	return sources.FetchResult{Status: sources.StatusSuccess, Source: sources.AFP, Articles: s.articles[:n], TotalResults: n}
}
func (s *staticSource) TestConnection(context.Context) sources.TestResult {
	return sources.TestResult{Source: sources.AFP, Status: sources.StatusSuccess, Message: "ok"}
}

type testEnv struct {
	handler http.Handler
	store   *store.Store
	users   *user.Store
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: storage.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	st, err := store.New(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	users, err := user.NewStore(ctx, db)
	if err != nil {
		t.Fatal(err)
	}

	src := &staticSource{articles: []sources.Article{
		{Title: "Community garden feeds a town", URL: "https://afp.example/garden", Provider: sources.AFP},
		{Title: "Students build a solar boat", URL: "https://afp.example/boat", Provider: sources.AFP},
	}}
	p := pipeline.New(pipeline.Options{
		Aggregator: aggregator.New([]sources.Client{src}, aggregator.Config{}),
		Store:      st,
	})
	srv := NewServer(Options{
		Pipeline:   p,
		Users:      users,
		JWTSecret:  secret,
		CORSOrigin: "http://localhost:3000",
	})
	return &testEnv{handler: srv.Routes(), store: st, users: users}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: invalid json %q", method, target, rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	rec, body := env.do(t, "GET", "/health", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["status"], "healthy")
	assert.Equal(t, body["version"], Version)
	assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "http://localhost:3000")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRequestIDIsReused(t *testing.T) {
	env := newTestEnv(t, "")
	rec, _ := env.do(t, "GET", "/", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, rec.Header().Get("X-Request-ID"), "abc-123")
}

func TestNews_FetchOnly(t *testing.T) {
	env := newTestEnv(t, "")
	rec, body := env.do(t, "GET", "/api/news?q=hope&pageSize=5", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["status"], "success")
	assert.Equal(t, body["totalArticles"], float64(2))
	assert.Equal(t, body["gemini_analyzed"], false)
}

func TestNews_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	for _, target := range []string{
		"/api/news?pageSize=0",
		"/api/news?pageSize=101",
		"/api/news?pageSize=abc",
		"/api/news?language=xx",
		"/api/news/afp?pageSize=51",
	} {
		rec, body := env.do(t, "GET", target, "", nil)
		assert.Equal(t, rec.Code, http.StatusBadRequest)
		assert.Equal(t, body["status"], "error")
	}
}

func TestNews_AnalyzeRequiresToken(t *testing.T) {
	env := newTestEnv(t, "test-secret")
	rec, _ := env.do(t, "GET", "/api/news?analyze=true", "", nil)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec, _ = env.do(t, "GET", "/api/news?analyze=true", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, rec.Code, http.StatusUnauthorized)
}

func TestSourceNews(t *testing.T) {
	env := newTestEnv(t, "")
	rec, body := env.do(t, "GET", "/api/news/afp?pageSize=1", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["status"], "success")

	rec, _ = env.do(t, "GET", "/api/news/bogus", "", nil)
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t, "")
	rec, body := env.do(t, "GET", "/api/sources", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	srcs := body["sources"].(map[string]any)
	afp := srcs["afp"].(map[string]any)
	assert.Equal(t, afp["configured"], true)

	rec, body = env.do(t, "GET", "/api/sources/test", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["sources_tested"], float64(1))
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t, "test-secret")
	if _, err := env.users.Create(context.Background(), "ops@example.com", "correct horse", user.RoleAdmin); err != nil {
		t.Fatal(err)
	}

	rec, _ := env.do(t, "POST", "/api/auth/login", `{"email":"ops@example.com","password":"wrong"}`, nil)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec, body := env.do(t, "POST", "/api/auth/login", `{"email":"ops@example.com","password":"correct horse"}`, nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["role"], user.RoleAdmin)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}

	rec, _ = env.do(t, "GET", "/api/auth/me", "", nil)
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	auth := map[string]string{"Authorization": "Bearer " + token}
	rec, body = env.do(t, "GET", "/api/auth/me", "", auth)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["operator_id"], float64(1))

	// A valid token unlocks scoring; no scorer is configured here.
	rec, body = env.do(t, "GET", "/api/news?analyze=true", "", auth)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["message"], "Scoring is not configured")
}

func TestLogin_Disabled(t *testing.T) {
	env := newTestEnv(t, "")
	rec, _ := env.do(t, "POST", "/api/auth/login", `{"email":"a@b.c","password":"x"}`, nil)
	assert.Equal(t, rec.Code, http.StatusServiceUnavailable)
}

func TestArticlesAndStats(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	_, err := env.store.Insert(ctx, store.Record{
		Article: sources.Article{Title: "Reef recovers", URL: "https://afp.example/reef", Provider: sources.AFP},
		Analysis: analyzer.Result{
			Sentiment:     "positive",
			Emotions:      analyzer.Emotions{Hope: 0.9},
			Categories:    []string{"environment"},
			ImpactLevel:   analyzer.ImpactNational,
			LocationCodes: []int{36},
		},
		PromptID:   "v1",
		PromptName: "Comprehensive",
	})
	if err != nil {
		t.Fatal(err)
	}

	rec, body := env.do(t, "GET", "/api/articles?impact=national&category=environment", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["count"], float64(1))

	rec, body = env.do(t, "GET", "/api/articles?impact=global", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, body["count"], float64(0))

	rec, _ = env.do(t, "GET", "/api/articles?impact=galactic", "", nil)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec, body = env.do(t, "GET", "/api/stats", "", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	db := body["database"].(map[string]any)
	assert.Equal(t, db["total_articles"], float64(1))
}
