package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ObiAU/sieratagger/internal/models"
)

// maxMessageLength is Telegram's limit for a single message.
const maxMessageLength = 4096

const moreSuffix = "\n… and %d more"

var _ models.ResultSink = (*Bot)(nil)

// Bot posts a summary of every tagged batch to one chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

func NewBot(token string, chatID int64, logger *slog.Logger) (*Bot, error) {
	return NewBotWithEndpoint(token, tgbotapi.APIEndpoint, chatID, &http.Client{}, logger)
}

// NewBotWithEndpoint allows pointing the bot at a different Bot API server.
// endpoint is a format string taking the token and the method name.
func NewBotWithEndpoint(token, endpoint string, chatID int64, client *http.Client, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bot{api: api, chatID: chatID, logger: logger}, nil
}

// Publish never fails the run: a message that cannot be delivered is logged.
func (b *Bot) Publish(_ context.Context, batch []models.Article, result models.TagResult) error {
	b.sendMessage(b.formatBatchMessage(batch, result))
	return nil
}

func (b *Bot) formatBatchMessage(batch []models.Article, result models.TagResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏷️ <b>Siera tags</b> (%d articles)\n", len(batch))

	for i, article := range batch {
		title := article.Title
		if title == "" {
			title = article.ID
		}
		entry := fmt.Sprintf("\n📰 <b>%s</b>\n", html.EscapeString(title))

		if tags, ok := result[article.ID]; ok {
			entry += fmt.Sprintf("<code>%s</code>\n", html.EscapeString(compact(tags)))
		} else {
			entry += "<i>no tags returned</i>\n"
		}

		// Whole entries only, so HTML tags are never cut in half.
		if sb.Len()+len(entry) > maxMessageLength-len(moreSuffix) {
			fmt.Fprintf(&sb, moreSuffix, len(batch)-i)
			break
		}
		sb.WriteString(entry)
	}

	return sb.String()
}

func (b *Bot) sendMessage(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send telegram message", "chat_id", b.chatID, "error", err)
	}
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
