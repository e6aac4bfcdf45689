package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSender(t *testing.T, baseURL string) *TelegramSender {
	t.Helper()
	ts, err := NewTelegramSender(zap.NewNop(), TelegramConfig{
		BotToken:       "test-token",
		ChatIDs:        []string{"100"},
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	return ts
}

func waitForCount(t *testing.T, counter *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if counter.Load() >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected counter to reach %d, got %d", want, counter.Load())
}

func okResponse(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
}

func TestNewTelegramSender_RequiresToken(t *testing.T) {
	_, err := NewTelegramSender(zap.NewNop(), TelegramConfig{ChatIDs: []string{"100"}})
	assert.Error(t, err)
}

func TestNewTelegramSender_RequiresChats(t *testing.T) {
	_, err := NewTelegramSender(zap.NewNop(), TelegramConfig{BotToken: "t"})
	assert.Error(t, err)
}

func TestTelegramSender_Success(t *testing.T) {
	var received atomic.Int32
	var mu sync.Mutex
	var receivedBody []byte
	var receivedPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		receivedBody = body
		receivedPath = r.URL.Path
		mu.Unlock()
		received.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		okResponse(w)
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts.Start(ctx)

	require.NoError(t, ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "<b>отчет</b>"}))
	waitForCount(t, &received, 1, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/bottest-token/sendMessage", receivedPath)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(receivedBody, &payload))
	assert.Equal(t, "100", payload["chat_id"])
	assert.Equal(t, "<b>отчет</b>", payload["text"])
	assert.Equal(t, "HTML", payload["parse_mode"])
	assert.Equal(t, true, payload["disable_web_page_preview"])
}

func TestTelegramSender_RetryOn5xx(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		okResponse(w)
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ts.Start(ctx)

	require.NoError(t, ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "x"}))
	waitForCount(t, &attempts, 3, 15*time.Second)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestTelegramSender_NoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts.Start(ctx)

	require.NoError(t, ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "x"}))

	// Wait a bit to ensure no retries happen.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestTelegramSender_MultiChatPartialSuccess(t *testing.T) {
	var delivered atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"chat_id":"bad"`) {
			// Non-retryable failure for one chat.
			w.WriteHeader(http.StatusForbidden)
			return
		}
		delivered.Add(1)
		okResponse(w)
	}))
	defer srv.Close()

	ts, err := NewTelegramSender(zap.NewNop(), TelegramConfig{
		BotToken:       "test-token",
		ChatIDs:        []string{"bad", "good"},
		BaseURL:        srv.URL,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)

	// One accepting chat is enough for delivery to succeed.
	require.NoError(t, ts.SendNow(context.Background(), Message{Kind: KindTest, Text: "x"}))
	assert.Equal(t, int32(1), delivered.Load())
}

func TestTelegramSender_AllChatsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	err := ts.SendNow(context.Background(), Message{Kind: KindTest, Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivered to no chats")
}

func TestTelegramSender_BufferFullDrop(t *testing.T) {
	// Create a sender but do NOT start workers so the buffer fills up.
	ts := newTestSender(t, "http://127.0.0.1:1")

	ctx := context.Background()
	for i := 0; i < defaultSendBufferSize; i++ {
		require.NoError(t, ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "x"}))
	}

	err := ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestTelegramSender_GetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getMe", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"username":"medmon_bot"}}`))
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	username, err := ts.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "medmon_bot", username)
}

func TestTelegramSender_GetMe_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	_, err := ts.GetMe(context.Background())
	assert.Error(t, err)
}

func TestTelegramSender_ShutdownDrain(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		okResponse(w)
	}))
	defer srv.Close()

	ts := newTestSender(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	ts.Start(ctx)

	require.NoError(t, ts.Send(ctx, Message{Kind: KindDailyDigest, Text: "x"}))
	waitForCount(t, &received, 1, 5*time.Second)
	cancel()
	ts.Close()

	assert.GreaterOrEqual(t, received.Load(), int32(1))
}
