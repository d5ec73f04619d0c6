package telegram

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T, chatIDs []string, handler http.Handler) *Sender {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sender := NewSender("test-token", chatIDs, zerolog.Nop())
	sender.baseURL = server.URL
	return sender
}

func TestSend(t *testing.T) {
	var got sendMessageRequest
	sender := newTestSender(t, []string{"12345"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok": true}`)
	}))

	require.NoError(t, sender.Send("hello"))
	assert.Equal(t, "12345", got.ChatID)
	assert.Equal(t, "hello", got.Text)
	assert.True(t, got.DisableWebPagePreview)
}

func TestSend_RetriesOnFailure(t *testing.T) {
	var calls int
	sender := newTestSender(t, []string{"12345"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			fmt.Fprint(w, `{"ok": false, "description": "flaky"}`)
			return
		}
		fmt.Fprint(w, `{"ok": true}`)
	}))

	require.NoError(t, sender.Send("hello"))
	assert.Equal(t, 3, calls)
}

func TestSend_FailsAfterMaxAttempts(t *testing.T) {
	var calls int
	sender := newTestSender(t, []string{"12345"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"ok": false, "description": "nope"}`)
	}))

	err := sender.Send("hello")
	require.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}

func TestSend_OneChatSucceedingIsEnough(t *testing.T) {
	sender := newTestSender(t, []string{"bad", "good"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ChatID == "bad" {
			fmt.Fprint(w, `{"ok": false, "description": "blocked"}`)
			return
		}
		fmt.Fprint(w, `{"ok": true}`)
	}))

	assert.NoError(t, sender.Send("hello"))
}

func TestSend_ChunksLongMessages(t *testing.T) {
	var texts []string
	sender := newTestSender(t, []string{"12345"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		texts = append(texts, req.Text)
		fmt.Fprint(w, `{"ok": true}`)
	}))

	// ~6000 chars across many lines
	long := strings.TrimRight(strings.Repeat(strings.Repeat("x", 59)+"\n", 100), "\n")
	require.NoError(t, sender.Send(long))

	require.Greater(t, len(texts), 1)
	for _, text := range texts {
		assert.LessOrEqual(t, len(text), maxMessageLen)
	}
	assert.Equal(t, long, strings.Join(texts, "\n"))
}

func TestChunkMessage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		chunks []string
	}{
		{
			name:   "short message stays whole",
			text:   "one\ntwo",
			maxLen: 100,
			chunks: []string{"one\ntwo"},
		},
		{
			name:   "splits on newline",
			text:   "aaaa\nbbbb\ncccc",
			maxLen: 10,
			chunks: []string{"aaaa\nbbbb", "cccc"},
		},
		{
			name:   "hard split without newline",
			text:   "aaaaaaaaaabbbbb",
			maxLen: 10,
			chunks: []string{"aaaaaaaaaa", "bbbbb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.chunks, chunkMessage(tt.text, tt.maxLen))
		})
	}
}

func TestChunkMessage_RuneBoundaryFallback(t *testing.T) {
	// no newline anywhere, every rune is 3 bytes; a byte-offset cut would
	// split a rune in half
	text := strings.Repeat("—", 10)
	chunks := chunkMessage(text, 8)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, len(chunk), 8)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}
