// Package email sends operational mail on behalf of the admin backend.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// Message is an outgoing email.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to a logger instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email sent",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body_length", len(msg.Body))
	return nil
}

// Config controls outgoing mail.
type Config struct {
	CanSend       bool   `yaml:"can_send"`
	AdminAddress  string `yaml:"admin_address"`
	SystemAddress string `yaml:"system_address"`
	SenderName    string `yaml:"sender_name"`
}

// Service sends system emails.
type Service struct {
	sender Sender
	cfg    Config
}

// NewService creates an email service.
func NewService(sender Sender, cfg Config) *Service {
	return &Service{sender: sender, cfg: cfg}
}

// SendDummyMailToAdmin sends a test message from the system address to the
// admin address.
func (s *Service) SendDummyMailToAdmin(ctx context.Context) error {
	if !s.cfg.CanSend {
		return apperr.InvalidInput("This app cannot send emails.")
	}
	msg := Message{
		From:     s.cfg.SystemAddress,
		FromName: s.cfg.SenderName,
		To:       s.cfg.AdminAddress,
		Subject:  "Test Mail",
		Body:     "This is a test mail from " + s.cfg.SenderName,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending dummy mail: %w", err)
	}
	return nil
}

// Verify interface compliance.
var _ Sender = (*LogSender)(nil)
