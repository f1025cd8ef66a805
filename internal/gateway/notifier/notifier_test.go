package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownSkipsEmptySections(t *testing.T) {
	msg := StructuredMessage{Icon: "🟢", Title: "grid started", Footer: "dry-run"}
	msg.AddSection("levels", "count: 12", "  ").AddSection("empty", "", " ")
	msg.Timestamp = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	out := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(out, "🟢 grid started"))
	assert.Contains(t, out, "```\nlevels\n- count: 12\n```")
	assert.NotContains(t, out, "empty")
	assert.Contains(t, out, "dry-run")
	assert.Contains(t, out, "2024-05-01 08:00:00 UTC")
}

func TestRenderMarkdownEscapesFences(t *testing.T) {
	msg := StructuredMessage{Title: "x"}
	msg.AddSection("s", "a```b")
	assert.Contains(t, msg.RenderMarkdown(), "a'''b")
}

func TestTelegramSendText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	require.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestTelegramRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	tg.Retries = 2
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTelegramReportsAPIDescription(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	err := tg.SendText(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "telegram status=400: Bad Request: chat not found", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTelegramAPIErrorParsing(t *testing.T) {
	assert.NoError(t, apiError(200, nil))
	assert.NoError(t, apiError(200, []byte(`{"ok":true,"result":{}}`)))
	assert.EqualError(t, apiError(200, []byte(`{"ok":false,"description":"message is too long"}`)),
		"telegram status=200: message is too long")
	assert.EqualError(t, apiError(502, []byte("<html>bad gateway</html>")), "telegram status=502")
}

func TestTelegramRequiresCredentials(t *testing.T) {
	assert.Error(t, NewTelegram("", "1").SendText(context.Background(), "x"))
}
