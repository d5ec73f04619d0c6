// Package telegram delivers reports through the Telegram Bot API.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// Telegram rejects messages over 4096 characters; longer reports are
	// split into chunks on line boundaries.
	maxMessageLen = 4096
	maxAttempts   = 3
)

// Sender sends messages to one or more Telegram chats
type Sender struct {
	baseURL  string
	botToken string
	chatIDs  []string
	client   *http.Client
	log      zerolog.Logger
}

// NewSender creates a new Telegram sender
func NewSender(botToken string, chatIDs []string, log zerolog.Logger) *Sender {
	return &Sender{
		baseURL:  "https://api.telegram.org",
		botToken: botToken,
		chatIDs:  chatIDs,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("client", "telegram").Logger(),
	}
}

// Name identifies this channel in logs and the run journal
func (s *Sender) Name() string {
	return "telegram"
}

// Send delivers message to every configured chat, chunking as needed.
// Succeeds when at least one chat accepted every chunk sent to it.
func (s *Sender) Send(message string) error {
	chunks := chunkMessage(message, maxMessageLen)

	anyOK := false
	for _, chatID := range s.chatIDs {
		chatOK := true
		for _, chunk := range chunks {
			if err := s.sendChunk(chatID, chunk); err != nil {
				s.log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to send to chat")
				chatOK = false
				break
			}
		}
		if chatOK {
			anyOK = true
		}
	}

	if !anyOK {
		return fmt.Errorf("no telegram chat accepted the message")
	}
	return nil
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// sendChunk posts one message with retries
func (s *Sender) sendChunk(chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.post(url, payload)
		if lastErr == nil {
			return nil
		}
		s.log.Warn().
			Err(lastErr).
			Str("chat_id", chatID).
			Int("attempt", attempt).
			Msg("Telegram send failed")
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func (s *Sender) post(url string, payload []byte) error {
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("API error: %s", result.Description)
	}
	return nil
}

// chunkMessage splits text into pieces of at most maxLen bytes, preferring
// to cut on newlines
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cut := strings.LastIndex(text[:maxLen], "\n")
		if cut <= 0 {
			// no newline in the window; back off to a rune boundary
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	return chunks
}
