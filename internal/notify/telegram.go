package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramConfig configures the Telegram bot transport.
type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string
	// MessagesPerSecond is kept under the Bot API's per-chat limit.
	MessagesPerSecond float64
	MaxTries          uint
	Timeout           time.Duration
}

// TelegramSender posts messages to a chat through the Bot API sendMessage
// method, retrying transient failures with exponential backoff.
type TelegramSender struct {
	endpoint string
	chatID   string
	maxTries uint
	http     *http.Client
	limiter  *rate.Limiter
	log      *slog.Logger
}

var _ Sender = (*TelegramSender)(nil)

func NewTelegramSender(cfg TelegramConfig, log *slog.Logger) *TelegramSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramURL
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 1
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TelegramSender{
		endpoint: fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(cfg.BaseURL, "/"), cfg.Token),
		chatID:   cfg.ChatID,
		maxTries: cfg.MaxTries,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), 1),
		log:      log,
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func (s *TelegramSender) Deliver(ctx context.Context, message string) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := s.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		err := s.post(ctx, message)
		if err != nil {
			s.log.Debug("telegram delivery attempt failed", "attempt", attempt, "error", err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.maxTries))
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed after %d attempts: %w", attempt, err)
	}
	return nil
}

func (s *TelegramSender) post(ctx context.Context, message string) error {
	form := url.Values{"chat_id": {s.chatID}, "text": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var out telegramResponse
	_ = jsoniter.Unmarshal(body, &out)

	switch {
	case resp.StatusCode == http.StatusOK && out.OK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests && out.Parameters.RetryAfter > 0:
		return backoff.RetryAfter(out.Parameters.RetryAfter)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("telegram rejected message: %d %s", resp.StatusCode, out.Description))
	default:
		return fmt.Errorf("telegram returned %d %s", resp.StatusCode, out.Description)
	}
}
