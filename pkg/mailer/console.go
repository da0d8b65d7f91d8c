package mailer

import (
	"context"
	"net/mail"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/pkg/config"
)

// Console renders emails and writes them to the log instead of sending them.
type Console struct {
	from       mail.Address
	subjPrefix string
	renderer   *Renderer
	logger     *zap.Logger
}

// NewConsole builds the development adapter.
func NewConsole(cfg config.EmailConfig, renderer *Renderer, logger *zap.Logger) *Console {
	return &Console{
		from:       mail.Address{Name: cfg.FromName, Address: cfg.FromAddress},
		subjPrefix: subjectPrefix(cfg),
		renderer:   renderer,
		logger:     logger,
	}
}

// Send renders msg and logs it.
func (c *Console) Send(ctx context.Context, msg models.EmailMessage) error {
	rendered, err := c.renderer.Render(msg, c.subjPrefix)
	if err != nil {
		return err
	}
	to := mail.Address{Name: msg.To.Name, Address: msg.To.Email}
	c.logger.Info("email",
		zap.String("from", c.from.String()),
		zap.String("to", to.String()),
		zap.String("subject", rendered.Subject),
		zap.String("template", msg.Template),
		zap.String("body", rendered.Text),
	)
	return nil
}
