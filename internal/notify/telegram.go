package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

var _ Notifier = (*TelegramNotifier)(nil)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers messages through the Telegram Bot API. Missing
// credentials disable the notifier instead of failing startup.
type TelegramNotifier struct {
	http    *resty.Client
	token   string
	chatID  string
	enabled bool
	log     *slog.Logger
}

// NewTelegramNotifier creates a TelegramNotifier for the given bot token and
// chat. baseURL overrides the Telegram API endpoint when non-empty (used in
// tests).
func NewTelegramNotifier(token, chatID, baseURL string, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("notifier", "telegram")

	if baseURL == "" {
		baseURL = telegramAPIBase
	}

	t := &TelegramNotifier{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
		token:   token,
		chatID:  chatID,
		enabled: token != "" && chatID != "",
		log:     log,
	}
	if !t.enabled {
		log.Warn("telegram notifier disabled: missing bot_token or chat_id")
	}
	return t
}

func (t *TelegramNotifier) Name() string  { return "telegram" }
func (t *TelegramNotifier) Enabled() bool { return t.enabled }

// Send posts the message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, message string) error {
	if !t.enabled {
		return ErrDisabled
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"text":    message,
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram sendMessage: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
