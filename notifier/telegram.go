package notifier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efeurhobobullish/vcf-generator/contract"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramNotifier talks to the Telegram Bot API.
type TelegramNotifier struct {
	log   *slog.Logger
	bot   *bot.Bot
	token string
}

// NewTelegramNotifier makes no network call: getMe is skipped.
func NewTelegramNotifier(log *slog.Logger, baseURL, token string, timeout time.Duration) (*TelegramNotifier, error) {
	if baseURL == "" {
		baseURL = DefaultTelegramAPIURL
	}
	b, err := bot.New(token,
		bot.WithServerURL(strings.TrimRight(baseURL, "/")),
		bot.WithHTTPClient(timeout, &http.Client{Timeout: timeout}),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", redact(err, token))
	}
	return &TelegramNotifier{log: log, bot: b, token: token}, nil
}

func (t *TelegramNotifier) SendText(ctx context.Context, destination string, message string) error {
	start := time.Now()
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: destination,
		Text:   message,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", redact(err, t.token))
	}
	t.log.Debug("Telegram call succeeded", "method", "sendMessage", "took", time.Since(start))
	return nil
}

func (t *TelegramNotifier) SendDocument(ctx context.Context, destination string, document contract.Document) error {
	start := time.Now()
	_, err := t.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: destination,
		Document: &models.InputFileUpload{
			Filename: document.FileName,
			Data:     bytes.NewReader(document.Content),
		},
		Caption: document.Caption,
	})
	if err != nil {
		return fmt.Errorf("telegram sendDocument: %w", redact(err, t.token))
	}
	t.log.Debug("Telegram call succeeded",
		"method", "sendDocument",
		"file", document.FileName,
		"content_type", mimetype.Detect(document.Content).String(),
		"took", time.Since(start))
	return nil
}

// redactedError hides the bot token, which the API URL embeds.
type redactedError struct {
	msg string
	err error
}

func (r redactedError) Error() string { return r.msg }
func (r redactedError) Unwrap() error { return r.err }

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), token, "<redacted>"), err: err}
}
