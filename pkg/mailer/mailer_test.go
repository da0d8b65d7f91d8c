package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/lms-call-api/internal/models"
	"github.com/noah-isme/lms-call-api/pkg/config"
)

func rescheduledMessage() models.EmailMessage {
	return models.EmailMessage{
		Template: models.EmailTemplateCallRescheduled,
		To:       models.Recipient{UserID: "s1", Email: "s1@example.com", Name: "Asha"},
		Subject:  "Class rescheduled",
		Data: map[string]interface{}{
			"RecipientName": "Asha",
			"Schedule":      models.CallTimeRange{Date: "2024-06-11", StartTime: "10:00", EndTime: "11:00", Timezone: "Asia/Kolkata"},
			"Previous":      models.CallTimeRange{Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Timezone: "Asia/Kolkata"},
			"Link":          "https://lms.example.com/calls/c1",
		},
	}
}

func TestRendererRendersEveryTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	schedule := models.CallTimeRange{Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", Timezone: "UTC"}
	for _, name := range templateNames {
		t.Run(name, func(t *testing.T) {
			out, err := r.Render(models.EmailMessage{
				Template: name,
				Subject:  "subject",
				Data: map[string]interface{}{
					"RecipientName": "Sam",
					"Schedule":      schedule,
					"StudentName":   "Asha",
					"TeacherName":   "Mr. Rao",
					"Rating":        5,
					"MaxRating":     5,
					"Date":          "2024-06-10",
					"LeadTime":      "1 hour",
				},
			}, "[LMS] ")
			require.NoError(t, err)
			assert.Equal(t, "[LMS] subject", out.Subject)
			assert.Contains(t, out.Text, "Hi Sam")
			assert.Contains(t, out.HTML, "Hi Sam")
		})
	}
}

func TestRendererRescheduleTable(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(rescheduledMessage(), "")
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "<td>2024-06-10</td><td>09:00 - 10:00</td><td>Asia/Kolkata</td><td>Cancelled</td>")
	assert.Contains(t, out.HTML, "<td>2024-06-11</td><td>10:00 - 11:00</td><td>Asia/Kolkata</td><td>Scheduled</td>")
	assert.Contains(t, out.Text, "Previous schedule (cancelled): 2024-06-10")
	assert.Contains(t, out.HTML, `href="https://lms.example.com/calls/c1"`)
}

func TestRendererEscapesHTML(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(models.EmailMessage{
		Template: models.EmailTemplateCallCancelled,
		Data: map[string]interface{}{
			"RecipientName": "<b>x</b>",
			"Schedule":      models.CallTimeRange{Date: "2024-06-10"},
			"Reason":        "<script>alert(1)</script>",
		},
	}, "")
	require.NoError(t, err)
	assert.NotContains(t, out.HTML, "<script>")
	assert.Contains(t, out.Text, "<script>alert(1)</script>")
}

func TestRendererUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(models.EmailMessage{Template: "nope"}, "")
	assert.Error(t, err)
}

func TestSendgridSend(t *testing.T) {
	var captured map[string]interface{}
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	renderer, err := NewRenderer()
	require.NoError(t, err)
	sg := NewSendgrid(config.EmailConfig{SendgridAPIKey: "key", FromName: "LMS", FromAddress: "noreply@example.com", SubjectPrefix: "LMS"}, renderer, zap.NewNop())
	sg.host = server.URL

	require.NoError(t, sg.Send(context.Background(), rescheduledMessage()))
	assert.Equal(t, "Bearer key", auth)
	personalizations, ok := captured["personalizations"].([]interface{})
	require.True(t, ok)
	require.Len(t, personalizations, 1)
	first := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[LMS] Class rescheduled", first["subject"])
}

func TestSendgridRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer server.Close()

	renderer, err := NewRenderer()
	require.NoError(t, err)
	sg := NewSendgrid(config.EmailConfig{SendgridAPIKey: "key"}, renderer, zap.NewNop())
	sg.host = server.URL

	err = sg.Send(context.Background(), rescheduledMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestConsoleLogsEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	renderer, err := NewRenderer()
	require.NoError(t, err)
	console := NewConsole(config.EmailConfig{FromAddress: "noreply@example.com"}, renderer, zap.New(core))

	require.NoError(t, console.Send(context.Background(), rescheduledMessage()))
	entries := logs.FilterMessage("email").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Class rescheduled", entries[0].ContextMap()["subject"])
}

func TestNewSelectsProvider(t *testing.T) {
	m, err := New(config.EmailConfig{Provider: config.EmailProviderConsole}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Console{}, m)

	_, err = New(config.EmailConfig{Provider: config.EmailProviderSendgrid}, nil)
	assert.Error(t, err)

	m, err = New(config.EmailConfig{Provider: config.EmailProviderSendgrid, SendgridAPIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Sendgrid{}, m)
}
