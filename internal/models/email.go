package models

// Email templates understood by the mailer.
const (
	EmailTemplateCallScheduled       = "call_scheduled"
	EmailTemplateCallRescheduled     = "call_rescheduled"
	EmailTemplateCallCancelled       = "call_cancelled"
	EmailTemplateCallReminder        = "call_reminder"
	EmailTemplateReportCardSubmitted = "report_card_submitted"
)

// EmailMessage is a rendered-on-send email for exactly one recipient.
type EmailMessage struct {
	Template string                 `json:"template"`
	To       Recipient              `json:"to"`
	Subject  string                 `json:"subject"`
	Data     map[string]interface{} `json:"data"`
}
