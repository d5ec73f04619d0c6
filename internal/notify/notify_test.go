package notify

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubNotifier struct {
	name string
	err  error

	sent []string
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(message string) error {
	s.sent = append(s.sent, message)
	return s.err
}

func TestSend_AllChannels(t *testing.T) {
	a := &stubNotifier{name: "telegram"}
	b := &stubNotifier{name: "signal"}
	svc := NewService([]Notifier{a, b}, zerolog.Nop())

	assert.True(t, svc.Send("report"))
	assert.Equal(t, []string{"report"}, a.sent)
	assert.Equal(t, []string{"report"}, b.sent)
}

func TestSend_OneChannelFailing(t *testing.T) {
	a := &stubNotifier{name: "telegram", err: errors.New("boom")}
	b := &stubNotifier{name: "signal"}
	svc := NewService([]Notifier{a, b}, zerolog.Nop())

	assert.True(t, svc.Send("report"))
	assert.Len(t, b.sent, 1)
}

func TestSend_AllChannelsFailing(t *testing.T) {
	a := &stubNotifier{name: "telegram", err: errors.New("boom")}
	svc := NewService([]Notifier{a}, zerolog.Nop())

	assert.False(t, svc.Send("report"))
}

func TestSend_NoChannels(t *testing.T) {
	svc := NewService(nil, zerolog.Nop())
	assert.False(t, svc.Send("report"))
}
