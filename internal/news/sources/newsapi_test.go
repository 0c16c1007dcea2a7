package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestNewsAPI_Fetch(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		got = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"totalResults": 3,
			"articles": []map[string]any{
				{
					"source":      map[string]any{"id": "bbc-news", "name": "BBC News"},
					"author":      "A. Writer",
					"title":       "Community garden feeds 300 families",
					"description": "Neighbours turned a vacant lot into food.",
					"url":         "https://bbc.example/garden",
					"urlToImage":  "https://bbc.example/garden.jpg",
					"publishedAt": "2026-03-01T08:00:00Z",
					"content":     "Full text [+1200 chars]",
				},
				{"title": "[Removed]", "url": "https://removed.example"},
				{"title": "COMMUNITY GARDEN FEEDS 300 FAMILIES", "url": "https://other.example/garden"},
			},
		})
	}))
	defer srv.Close()

	c := NewNewsAPIClient(NewsAPIConfig{APIKey: "key", BaseURL: srv.URL})
	res := c.Fetch(context.Background(), Query{Language: "en", PageSize: 250})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, len(res.Articles))
	assert.Equal(t, 3, res.TotalResults)

	assert.Equal(t, newsAPIDefaultQuery, got.Get("q"))
	assert.Equal(t, "100", got.Get("pageSize"))
	assert.Equal(t, "key", got.Get("apiKey"))
	assert.Equal(t, "en", got.Get("language"))

	a := res.Articles[0]
	assert.Equal(t, "Community garden feeds 300 families", a.Title)
	assert.Equal(t, "https://bbc.example/garden", a.URL)
	assert.Equal(t, "https://bbc.example/garden.jpg", a.URLToImage)
	assert.Equal(t, SourceRef{ID: "bbc-news", Name: "BBC News"}, a.Source)
	assert.Equal(t, NewsAPI, a.Provider)
	assert.Equal(t, "en", a.Language)
}

func TestNewsAPI_ErrorIsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	}))
	defer srv.Close()

	c := NewNewsAPIClient(NewsAPIConfig{APIKey: "bad", BaseURL: srv.URL})
	res := c.Fetch(context.Background(), Query{Text: "hope", PageSize: 10})

	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, NewsAPI, res.Source)
	assert.Equal(t, 0, len(res.Articles))
	assert.NotEqual(t, "", res.Error)

	tr := c.TestConnection(context.Background())
	assert.Equal(t, StatusError, tr.Status)
}

func TestNewsAPI_TransportErrorIsResult(t *testing.T) {
	c := NewNewsAPIClient(NewsAPIConfig{APIKey: "key", BaseURL: "http://127.0.0.1:1"})
	res := c.Fetch(context.Background(), Query{PageSize: 10})
	assert.Equal(t, StatusError, res.Status)
	assert.NotEqual(t, nil, res.Err)
}

func TestNewsAPI_MalformedRecordIsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "totalResults": 3, "articles": [
			{"source": {"id": null, "name": "Wire"}, "author": null, "title": "Town bans single-use plastic", "url": "https://w.example/1"},
			{"source": "Wire", "title": "Broken source field", "url": "https://w.example/2"},
			{"source": {"name": "Wire"}, "author": "C. Reporter", "title": "Bees return to city parks", "url": "https://w.example/3"}
		]}`))
	}))
	defer srv.Close()

	c := NewNewsAPIClient(NewsAPIConfig{APIKey: "key", BaseURL: srv.URL})
	res := c.Fetch(context.Background(), Query{PageSize: 10})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, len(res.Articles))
	assert.Equal(t, "", res.Articles[0].Author)
	assert.Equal(t, "https://w.example/3", res.Articles[1].URL)
}
