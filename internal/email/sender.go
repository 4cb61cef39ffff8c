package email

import (
	"context"
	"errors"
)

// Sender define la interfaz para notificar escalaciones a soporte.
type Sender interface {
	SendEscalation(ctx context.Context, toEmail string, sessionID string, userMessage string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendEscalation(_ context.Context, _ string, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
