// Package signalapi delivers reports through a signal-cli-rest-api instance.
package signalapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const maxAttempts = 3

// Sender sends messages via the signal-cli-rest-api /v2/send endpoint
type Sender struct {
	baseURL    string
	sender     string
	recipients []string
	client     *http.Client
	log        zerolog.Logger
}

// NewSender creates a new Signal sender. baseURL points at the
// signal-cli-rest-api instance, e.g. http://signal:8080.
func NewSender(baseURL, sender string, recipients []string, log zerolog.Logger) *Sender {
	return &Sender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sender:     sender,
		recipients: recipients,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "signal").Logger(),
	}
}

// Name identifies this channel in logs and the run journal
func (s *Sender) Name() string {
	return "signal"
}

type sendRequest struct {
	Message    string   `json:"message"`
	Number     string   `json:"number"`
	Recipients []string `json:"recipients"`
}

// Send posts the message with retries. Any 2xx status counts as accepted.
func (s *Sender) Send(message string) error {
	payload, err := json.Marshal(sendRequest{
		Message:    message,
		Number:     s.sender,
		Recipients: s.recipients,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/v2/send"
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.post(url, payload)
		if lastErr == nil {
			return nil
		}
		s.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("Signal send failed")
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

func (s *Sender) post(url string, payload []byte) error {
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
