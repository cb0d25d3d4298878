package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/sieratagger/internal/config"
	"github.com/ObiAU/sieratagger/internal/models"
	"github.com/ObiAU/sieratagger/internal/store/sqlite"
)

var envKeys = []string{
	"TOKEN", "X_API_Key", "X_API_KEY", "REFRESH_TOKEN", "SIERA_BASE_URL",
	"BATCH_SIZE", "REQUEST_TIMEOUT", "MAX_AUTH_RETRIES", "REQUESTS_PER_SECOND",
	"ARTICLES_DB", "ARTICLES_FILE", "NEWS_API_KEY", "OPENAI_API_KEY", "OPENAI_MODEL",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "LOG_LEVEL",
}

type fakeSiera struct {
	mu        sync.Mutex
	batches   [][]models.Article
	refreshes int
	expired   bool
}

func (f *fakeSiera) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/version":
		_, _ = w.Write([]byte(`{"version":"2024.1"}`))
	case "/new_token":
		f.refreshes++
		f.expired = false
		_, _ = w.Write([]byte(`{"token":"renewed"}`))
	case "/tag":
		if f.expired {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"The incoming token has expired"}`))
			return
		}
		var batch []models.Article
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &batch)
		f.batches = append(f.batches, batch)
		result := map[string][]string{}
		for _, a := range batch {
			result[a.ID] = []string{"esg", "tag-" + a.ID}
		}
		_ = json.NewEncoder(w).Encode(result)
	default:
		http.NotFound(w, r)
	}
}

// setupEnv points the CLI at a fake Siera service with valid credentials and
// returns the env file renewed tokens are written to.
func setupEnv(t *testing.T, fake *fakeSiera) string {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	t.Setenv("TOKEN", "initial")
	t.Setenv("X_API_Key", "key")
	t.Setenv("REFRESH_TOKEN", "refresh")
	t.Setenv("SIERA_BASE_URL", server.URL)
	t.Setenv("REQUESTS_PER_SECOND", "0")

	return filepath.Join(t.TempDir(), ".env")
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := Execute(context.Background())
	return out.String(), err
}

func writeArticles(t *testing.T, n int) string {
	t.Helper()
	articles := make([]models.Article, n)
	for i := range articles {
		articles[i] = models.Article{
			ID:    fmt.Sprintf("a%02d", i),
			Title: fmt.Sprintf("Title %d", i),
			Text:  fmt.Sprintf("Text %d", i),
		}
	}
	data, err := json.Marshal(articles)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "articles.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"tag", "version", "refresh-token", "import"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersionCmd_PrintsRulesVersion(t *testing.T) {
	envFile := setupEnv(t, &fakeSiera{})

	out, err := runCLI(t, "version", "--env-file", envFile)

	require.NoError(t, err)
	assert.Contains(t, out, "siera rules version 2024.1")
}

func TestVersionCmd_MissingCredentials(t *testing.T) {
	envFile := setupEnv(t, &fakeSiera{})
	require.NoError(t, os.Unsetenv("REFRESH_TOKEN"))

	_, err := runCLI(t, "version", "--env-file", envFile)

	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestRefreshCmd_PersistsToEnvFile(t *testing.T) {
	fake := &fakeSiera{}
	envFile := setupEnv(t, fake)

	out, err := runCLI(t, "refresh-token", "--env-file", envFile)

	require.NoError(t, err)
	assert.Contains(t, out, "Access token renewed")
	assert.Equal(t, 1, fake.refreshes)

	values, err := godotenv.Read(envFile)
	require.NoError(t, err)
	assert.Equal(t, "renewed", values["TOKEN"])
}

func TestRefreshCmd_PersistsToConfigFile(t *testing.T) {
	envFile := setupEnv(t, &fakeSiera{})
	configFile := filepath.Join(t.TempDir(), "config.toml")

	_, err := runCLI(t, "refresh-token", "--env-file", envFile, "--config", configFile)
	require.NoError(t, err)

	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "renewed")
	assert.NoFileExists(t, envFile)
}

func TestTagCmd_JSONSource(t *testing.T) {
	fake := &fakeSiera{expired: true}
	envFile := setupEnv(t, fake)
	articles := writeArticles(t, 12)

	out, err := runCLI(t, "tag", "--env-file", envFile, "--articles", articles, "--batch-size", "5")

	require.NoError(t, err)
	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 5)
	assert.Len(t, fake.batches[1], 5)
	assert.Len(t, fake.batches[2], 2)
	assert.Equal(t, 1, fake.refreshes)

	var printed []taggedArticle
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	require.Len(t, printed, 12)
	assert.Equal(t, "a00", printed[0].ID)
	assert.Equal(t, "a11", printed[11].ID)
	assert.JSONEq(t, `["esg","tag-a03"]`, string(printed[3].Tags))

	values, err := godotenv.Read(envFile)
	require.NoError(t, err)
	assert.Equal(t, "renewed", values["TOKEN"])
}

func TestTagCmd_SQLiteSourceSavesTags(t *testing.T) {
	fake := &fakeSiera{}
	envFile := setupEnv(t, fake)
	dbPath := filepath.Join(t.TempDir(), "news.db")

	out, err := runCLI(t, "import", writeArticles(t, 3), "--env-file", envFile, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 articles")

	_, err = runCLI(t, "tag", "--env-file", envFile, "--source", "sqlite", "--db", dbPath)
	require.NoError(t, err)
	require.Len(t, fake.batches, 1)

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	tags, _, err := db.Tags(context.Background(), "a01")
	require.NoError(t, err)
	assert.JSONEq(t, `["esg","tag-a01"]`, string(tags))
}

func TestTagCmd_RejectsBadInput(t *testing.T) {
	envFile := setupEnv(t, &fakeSiera{})
	articles := writeArticles(t, 1)

	_, err := runCLI(t, "tag", "--env-file", envFile, "--articles", articles, "--batch-size", "11")
	assert.ErrorContains(t, err, "batch size must be between 1 and 10")

	_, err = runCLI(t, "tag", "--env-file", envFile, "--articles", articles, "--backend", "gemini")
	assert.ErrorContains(t, err, `unknown backend "gemini"`)

	_, err = runCLI(t, "tag", "--env-file", envFile, "--source", "rss")
	assert.ErrorContains(t, err, `unknown source "rss"`)

	_, err = runCLI(t, "tag", "--env-file", envFile, "--backend", "openai")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
