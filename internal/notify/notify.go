// Package notify fans a report out to the configured delivery channels.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Notifier delivers one message to one channel
type Notifier interface {
	Name() string
	Send(message string) error
}

// Service delivers a message to every configured notifier.
// With no notifiers configured the report goes to stdout instead, which
// keeps a credential-less setup usable, but does not count as delivered.
type Service struct {
	notifiers []Notifier
	log       zerolog.Logger
}

// NewService creates a notification service over the given channels
func NewService(notifiers []Notifier, log zerolog.Logger) *Service {
	return &Service{
		notifiers: notifiers,
		log:       log.With().Str("service", "notify").Logger(),
	}
}

// Channels returns the number of configured delivery channels
func (s *Service) Channels() int {
	return len(s.notifiers)
}

// Send delivers message to all channels and reports whether at least one
// accepted it. Individual channel failures are logged, not fatal.
func (s *Service) Send(message string) bool {
	if len(s.notifiers) == 0 {
		s.log.Warn().Msg("No delivery channels configured, writing report to stdout")
		fmt.Println(message)
		return false
	}

	delivered := false
	for _, n := range s.notifiers {
		if err := n.Send(message); err != nil {
			s.log.Error().Err(err).Str("channel", n.Name()).Msg("Delivery failed")
			continue
		}
		s.log.Info().Str("channel", n.Name()).Msg("Report delivered")
		delivered = true
	}
	return delivered
}
