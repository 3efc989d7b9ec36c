package delivery

import (
	"context"
	"log/slog"
	"time"

	"NewsDigest/internal/ports"
)

// Service delivers a rendered digest to every active subscriber. A failure
// for one recipient is logged and never blocks the others; successful
// deliveries are stamped on the subscriber record.
type Service struct {
	subscribers ports.SubscriberStore
	sender      ports.MailSender
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the subscriber collaborator and the mail transport.
func NewService(subscribers ports.SubscriberStore, sender ports.MailSender, logger *slog.Logger) *Service {
	return &Service{
		subscribers: subscribers,
		sender:      sender,
		logger:      logger,
		now:         time.Now,
	}
}

// Send mails the digest to each active subscriber and reports how many
// deliveries succeeded.
func (s *Service) Send(ctx context.Context, subject, htmlBody string) (int, error) {
	if s.subscribers == nil || s.sender == nil {
		return 0, nil
	}

	subs, err := s.subscribers.Active(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subs {
		if err := s.sender.Send(ctx, sub.Email, subject, htmlBody); err != nil {
			s.warn("digest delivery failed", "recipient", sub.Email, "error", err)
			continue
		}
		sent++
		if err := s.subscribers.MarkDelivered(ctx, sub.Email, s.now()); err != nil {
			s.warn("delivery stamp failed", "recipient", sub.Email, "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("digest delivered", "recipients", len(subs), "sent", sent)
	}
	return sent, nil
}

func (s *Service) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
