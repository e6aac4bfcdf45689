package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultSendTimeout     = 10 * time.Second
	defaultSendWorkers     = 2
	defaultSendBufferSize  = 64
	maxSendRetries         = 2

	// Telegram tolerates roughly one message per second per bot before
	// throttling; the limiter keeps bursts from tripping HTTP 429.
	defaultMessagesPerSecond = 1
	defaultBurst             = 4
)

// TelegramConfig holds the configuration for creating a TelegramSender.
type TelegramConfig struct {
	BotToken       string
	ChatIDs        []string
	BaseURL        string // overridable for tests
	TimeoutSeconds int
}

// telegramWork is an internal message sent to the worker pool.
type telegramWork struct {
	ctx context.Context
	msg Message
}

// TelegramSender implements Sender over the Telegram Bot API. Messages are
// enqueued and delivered by background workers; delivery to one monitor's
// chats succeeds when at least one chat accepts the message.
type TelegramSender struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	botToken   string
	chatIDs    []string
	limiter    *rate.Limiter
	sendCh     chan telegramWork
	wg         sync.WaitGroup
}

// NewTelegramSender creates a TelegramSender. The bot token and at least one
// chat id are required.
func NewTelegramSender(logger *zap.Logger, cfg TelegramConfig) (*TelegramSender, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("at least one telegram chat id is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultSendTimeout
	}

	return &TelegramSender{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("telegram"),
		baseURL:    baseURL,
		botToken:   cfg.BotToken,
		chatIDs:    cfg.ChatIDs,
		limiter:    rate.NewLimiter(defaultMessagesPerSecond, defaultBurst),
		sendCh:     make(chan telegramWork, defaultSendBufferSize),
	}, nil
}

// Name implements Sender.
func (ts *TelegramSender) Name() string { return "telegram" }

// Start implements Sender. Launches background workers to drain the queue.
func (ts *TelegramSender) Start(ctx context.Context) {
	for i := 0; i < defaultSendWorkers; i++ {
		ts.wg.Add(1)
		go ts.worker(ctx)
	}
	ts.logger.Info("Telegram sender started",
		zap.Int("workers", defaultSendWorkers),
		zap.Int("chats", len(ts.chatIDs)),
	)
}

// Close waits for all workers to finish draining queued messages. Call after
// the context passed to Start is cancelled.
func (ts *TelegramSender) Close() {
	ts.wg.Wait()
}

// Send implements Sender. Enqueues the message for async delivery; returns
// an error only when the buffer is full.
func (ts *TelegramSender) Send(ctx context.Context, msg Message) error {
	select {
	case ts.sendCh <- telegramWork{ctx: ctx, msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		telegramSendTotal.WithLabelValues("dropped").Inc()
		ts.logger.Warn("Telegram send buffer full, dropping message",
			zap.String("kind", string(msg.Kind)))
		return fmt.Errorf("telegram send buffer full")
	}
}

// SendNow delivers a message synchronously, bypassing the queue. Used by the
// CLI send-test command.
func (ts *TelegramSender) SendNow(ctx context.Context, msg Message) error {
	return ts.deliver(ctx, msg)
}

// GetMe verifies the bot token and returns the bot username.
func (ts *TelegramSender) GetMe(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getMe", ts.baseURL, ts.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool `json:"ok"`
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode getMe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !body.OK {
		return "", fmt.Errorf("telegram getMe returned HTTP %d", resp.StatusCode)
	}
	return body.Result.Username, nil
}

// worker drains the queue. On context cancellation it delivers remaining
// buffered messages before exiting.
func (ts *TelegramSender) worker(ctx context.Context) {
	defer ts.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case work := <-ts.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), ts.httpClient.Timeout)
					if err := ts.deliver(drainCtx, work.msg); err != nil {
						ts.logger.Warn("Telegram send failed during shutdown drain",
							zap.String("kind", string(work.msg.Kind)),
							zap.Error(err),
						)
					}
					cancel()
				default:
					return
				}
			}
		case work, ok := <-ts.sendCh:
			if !ok {
				return
			}
			if err := ts.deliver(work.ctx, work.msg); err != nil {
				ts.logger.Error("Telegram send failed",
					zap.String("kind", string(work.msg.Kind)),
					zap.Error(err),
				)
			}
		}
	}
}

// deliver sends a message to every configured chat. It succeeds when at
// least one chat accepted the message.
func (ts *TelegramSender) deliver(ctx context.Context, msg Message) error {
	delivered := 0
	var lastErr error

	for _, chatID := range ts.chatIDs {
		if err := ts.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if err := ts.sendToChat(ctx, chatID, msg.Text); err != nil {
			lastErr = err
			ts.logger.Warn("Failed to deliver to chat",
				zap.String("chat_id", chatID),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		telegramSendTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("message delivered to no chats: %w", lastErr)
	}
	telegramSendTotal.WithLabelValues("success").Inc()
	ts.logger.Debug("Message delivered",
		zap.String("kind", string(msg.Kind)),
		zap.Int("chats", delivered),
	)
	return nil
}

// sendToChat posts one sendMessage call with retry on transient failures.
func (ts *TelegramSender) sendToChat(ctx context.Context, chatID, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSendRetries+1; attempt++ {
		if attempt > 0 {
			// Linear backoff: 1s, 2s.
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
			telegramSendTotal.WithLabelValues("retry").Inc()
		}

		lastErr = ts.doPost(ctx, payload)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		ts.logger.Debug("Telegram send transient failure, will retry",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", maxSendRetries+1, lastErr)
}

// doPost executes a single sendMessage request.
func (ts *TelegramSender) doPost(ctx context.Context, payload []byte) error {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", ts.baseURL, ts.botToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		telegramSendDuration.WithLabelValues("error").Observe(duration)
		return &sendError{err: err, retryable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusOK {
		telegramSendDuration.WithLabelValues("success").Observe(duration)
		return nil
	}

	telegramSendDuration.WithLabelValues("error").Observe(duration)
	return &sendError{
		err:       fmt.Errorf("telegram returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}

// sendError wraps an error with a retryable flag.
type sendError struct {
	err       error
	retryable bool
}

func (e *sendError) Error() string { return e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

// isRetryable returns true if the error is a transient failure worth
// retrying. Unknown errors (connection refused, DNS) are retryable.
func isRetryable(err error) bool {
	var se *sendError
	if errors.As(err, &se) {
		return se.retryable
	}
	return true
}
