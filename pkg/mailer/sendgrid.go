package mailer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/pkg/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Sendgrid delivers email through the SendGrid v3 API.
type Sendgrid struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	client     *rest.Client
	renderer   *Renderer
	logger     *zap.Logger
}

// NewSendgrid builds the adapter. Requests time out after cfg.Timeout.
func NewSendgrid(cfg config.EmailConfig, renderer *Renderer, logger *zap.Logger) *Sendgrid {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sendgrid{
		key:        cfg.SendgridAPIKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: subjectPrefix(cfg),
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		renderer:   renderer,
		logger:     logger,
	}
}

// Send renders msg and posts it. Any status >= 400 is an error.
func (s *Sendgrid) Send(ctx context.Context, msg models.EmailMessage) error {
	rendered, err := s.renderer.Render(msg, s.subjPrefix)
	if err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg.To, rendered))

	res, err := s.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected email: status %d: %s", res.StatusCode, res.Body)
	}
	s.logger.Debug("email sent", zap.String("template", msg.Template), zap.String("user_id", msg.To.UserID))
	return nil
}

func (s *Sendgrid) prepare(to models.Recipient, rendered *Rendered) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = rendered.Subject
	p.AddTos(sgmail.NewEmail(to.Name, to.Email))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", rendered.Text),
		sgmail.NewContent("text/html", rendered.HTML),
	)
	return m
}
