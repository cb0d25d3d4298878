package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ObiAU/sieratagger/internal/models"
)

type fakeBotAPI struct {
	mu   sync.Mutex
	sent []url.Values
	fail bool
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"tagger","username":"tagger_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm)
		fail := f.fail
		f.mu.Unlock()
		if fail {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestBot(t *testing.T, fake *fakeBotAPI) *Bot {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(server.Close)

	bot, err := NewBotWithEndpoint("123:abc", server.URL+"/bot%s/%s", 42, server.Client(), nil)
	require.NoError(t, err)
	return bot
}

func TestBot_PublishSendsSummary(t *testing.T) {
	fake := &fakeBotAPI{}
	bot := newTestBot(t, fake)

	batch := []models.Article{
		{ID: "a1", Title: "Banks & <Climate>"},
		{ID: "a2", Title: "Untagged"},
	}
	result := models.TagResult{"a1": json.RawMessage(`{ "topics": ["esg"] }`)}

	require.NoError(t, bot.Publish(context.Background(), batch, result))

	require.Len(t, fake.sent, 1)
	form := fake.sent[0]
	assert.Equal(t, "42", form.Get("chat_id"))
	assert.Equal(t, "HTML", form.Get("parse_mode"))
	text := form.Get("text")
	assert.Contains(t, text, "(2 articles)")
	assert.Contains(t, text, "Banks &amp; &lt;Climate&gt;")
	assert.Contains(t, text, `{&#34;topics&#34;:[&#34;esg&#34;]}`)
	assert.Contains(t, text, "<i>no tags returned</i>")
}

func TestBot_PublishIgnoresDeliveryFailure(t *testing.T) {
	fake := &fakeBotAPI{fail: true}
	bot := newTestBot(t, fake)

	err := bot.Publish(context.Background(), []models.Article{{ID: "a1"}}, models.TagResult{})

	assert.NoError(t, err)
	assert.Len(t, fake.sent, 1)
}

func TestNewBotWithEndpoint_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	_, err := NewBotWithEndpoint("bad", server.URL+"/bot%s/%s", 42, server.Client(), nil)

	assert.ErrorContains(t, err, "failed to create telegram bot")
}

func TestFormatBatchMessage_StaysUnderLimit(t *testing.T) {
	bot := &Bot{}
	long := strings.Repeat("x", 1000)

	var batch []models.Article
	result := models.TagResult{}
	for i := range 10 {
		id := string(rune('a' + i))
		batch = append(batch, models.Article{ID: id, Title: long})
		result[id] = json.RawMessage(`["tag"]`)
	}

	msg := bot.formatBatchMessage(batch, result)

	assert.LessOrEqual(t, len(msg), maxMessageLength)
	assert.Contains(t, msg, "more")
	assert.Equal(t, strings.Count(msg, "<code>"), strings.Count(msg, "</code>"))
}

func TestFormatBatchMessage_FallsBackToID(t *testing.T) {
	msg := (&Bot{}).formatBatchMessage([]models.Article{{ID: "298972_1402"}}, nil)

	assert.Contains(t, msg, "<b>298972_1402</b>")
}
