package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para el correo transaccional de cuentas.
type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail, nome, code string, expiresAt time.Time) error
	SendPasswordResetCode(ctx context.Context, toEmail, nome, code string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, toEmail, nome string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendVerificationCode(_ context.Context, _, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordResetCode(_ context.Context, _, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordChanged(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
