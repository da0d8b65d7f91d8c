// Package mailer implements the email notification channel.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/pkg/config"
)

// Mailer sends one templated email.
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

// New returns the adapter selected by cfg.Provider.
func New(cfg config.EmailConfig, logger *zap.Logger) (Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case config.EmailProviderSendgrid:
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid email provider")
		}
		return NewSendgrid(cfg, renderer, logger), nil
	default:
		return NewConsole(cfg, renderer, logger), nil
	}
}

func subjectPrefix(cfg config.EmailConfig) string {
	if cfg.SubjectPrefix == "" {
		return ""
	}
	return "[" + cfg.SubjectPrefix + "] "
}
