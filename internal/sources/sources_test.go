package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/sieratagger/internal/models"
	"github.com/ObiAU/sieratagger/internal/store/sqlite"
)

func TestJSONFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.json")
	content := `[
		{"id": "108201_2793502", "title": "Bill to give AZ troopers body cameras", "text": "A proposal."},
		{"id": "298972_1402", "title": "JPMorgan Joins Net Zero Banking Alliance", "text": "JPMorgan Chase announced."}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	src := NewJSONFileSource(path)
	articles, err := src.FetchArticles(context.Background())

	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "108201_2793502", articles[0].ID)
	assert.Equal(t, "JPMorgan Joins Net Zero Banking Alliance", articles[1].Title)
	assert.Equal(t, "json:"+path, src.GetName())
}

func TestJSONFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewJSONFileSource(filepath.Join(dir, "missing.json")).FetchArticles(context.Background())
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": "not-a-list"}`), 0600))
	_, err = NewJSONFileSource(bad).FetchArticles(context.Background())
	assert.Error(t, err)
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()

	want := []models.Article{{ID: "1", Title: "t1", Text: "x1"}, {ID: "2", Title: "t2", Text: "x2"}}
	require.NoError(t, store.ImportArticles(context.Background(), want))

	src := NewSQLiteSource(store, path)
	got, err := src.FetchArticles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "sqlite:"+path, src.GetName())
}

func TestStaticSource_ReturnsCopy(t *testing.T) {
	articles := []models.Article{{ID: "1"}}
	src := NewStaticSource(articles)

	got, err := src.FetchArticles(context.Background())
	require.NoError(t, err)
	got[0].ID = "changed"

	again, err := src.FetchArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", again[0].ID)
}

func TestNewsAPIClient_FetchArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "net zero", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"totalResults": 1,
			"articles": [{
				"source": {"id": "reuters", "name": "Reuters"},
				"title": "JPMorgan joins alliance",
				"description": "Bank signs on.",
				"url": "https://example.com/jpm",
				"publishedAt": "2021-04-20T10:00:00Z",
				"content": "Full text."
			}]
		}`))
	}))
	defer server.Close()

	src := NewNewsAPIClient("secret", "net zero", 5).WithEndpoint(server.URL)
	articles, err := src.FetchArticles(context.Background())

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, shortID("newsapi", "https://example.com/jpm"), articles[0].ID)
	assert.Equal(t, "JPMorgan joins alliance", articles[0].Title)
	assert.Equal(t, "Bank signs on.\nFull text.", articles[0].Text)
	assert.Equal(t, "newsapi", src.GetName())
}

func TestNewsAPIClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewNewsAPIClient("bad", "", 5).WithEndpoint(server.URL).FetchArticles(context.Background())

	assert.ErrorContains(t, err, "newsapi returned status 401")
}

func TestShortID_Stable(t *testing.T) {
	assert.Equal(t, shortID("newsapi", "u"), shortID("newsapi", "u"))
	assert.NotEqual(t, shortID("newsapi", "u"), shortID("newsapi", "v"))
	assert.Len(t, shortID("newsapi", "u"), len("newsapi_")+16)
}

func TestTreeNewsClient_FetchArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"_id": "tn1", "title": "EU fines bank over climate disclosures", "source": "Reuters", "time": 1700000000000},
			{"_id": "", "title": "Regulator opens probe", "body": "Details to follow."},
			{"_id": "tn3", "title": "  "},
			{"_id": "tn4", "title": "Over the limit"}
		]`))
	}))
	defer server.Close()

	articles, err := NewTreeNewsClient(2).WithEndpoint(server.URL).FetchArticles(context.Background())

	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "tn1", articles[0].ID)
	assert.Equal(t, "EU fines bank over climate disclosures\nSource: Reuters", articles[0].Text)
	assert.Equal(t, shortID("treenews", "Regulator opens probe"), articles[1].ID)
	assert.Equal(t, "Regulator opens probe\nDetails to follow.", articles[1].Text)
}

func TestTreeNewsClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewTreeNewsClient(10).WithEndpoint(server.URL).FetchArticles(context.Background())

	assert.ErrorContains(t, err, "treenews returned status 502")
}
