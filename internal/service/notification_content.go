package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/lms-call-api/internal/models"
)

// NotificationContent builds push messages and email template data for events.
type NotificationContent struct {
	frontendBaseURL string
}

// NewNotificationContent builds content with links rooted at frontendBaseURL.
func NewNotificationContent(frontendBaseURL string) *NotificationContent {
	return &NotificationContent{frontendBaseURL: strings.TrimRight(frontendBaseURL, "/")}
}

func (c *NotificationContent) callLink(callID string) string {
	return "/calls/" + callID
}

func (c *NotificationContent) reportCardLink(id string) string {
	return "/report-cards/" + id
}

func (c *NotificationContent) absolute(link string) string {
	return c.frontendBaseURL + link
}

func describeRange(r models.CallTimeRange) string {
	out := fmt.Sprintf("%s, %s - %s", r.Date, r.StartTime, r.EndTime)
	if r.Timezone != "" {
		out += " (" + r.Timezone + ")"
	}
	return out
}

// Push returns the in-app message and link for one recipient.
func (c *NotificationContent) Push(event NotificationEvent, recipient models.Recipient) (string, string) {
	switch event.Kind {
	case EventReportCardSubmitted:
		rc := event.ReportCard
		if rc == nil || rc.ReportCard == nil {
			return "A report card was submitted", ""
		}
		return fmt.Sprintf("%s submitted a report card for %s (rating %d/%d)",
			nameOr(rc.TeacherName, "A teacher"), nameOr(rc.StudentName, "a student"), rc.ReportCard.Rating, models.MaxReportCardRating), c.reportCardLink(rc.ReportCard.ID)
	}

	if event.Call == nil || event.Call.Call == nil {
		return "Your class schedule changed", ""
	}
	call := event.Call.Call
	current := describeRange(call.TimeRange())
	link := c.callLink(call.ID)

	switch event.Kind {
	case EventScheduled:
		return "New class scheduled for " + current, link
	case EventRescheduled:
		if prev := previousRange(event.Call); prev != nil {
			return fmt.Sprintf("Class moved from %s to %s", describeRange(*prev), current), link
		}
		return "Class rescheduled to " + current, link
	case EventCancelled:
		msg := "Class on " + current + " has been cancelled"
		if reason := cancellationReason(event.Call); reason != "" {
			msg += ": " + reason
		}
		return msg, link
	case EventCallReminder:
		return fmt.Sprintf("Reminder: your class starts in %s (%s)", humanLeadTime(event.Call.LeadTime), current), link
	}
	return "Your class schedule changed", link
}

// Email returns the message handed to the email adapter for one recipient.
func (c *NotificationContent) Email(event NotificationEvent, recipient models.Recipient) models.EmailMessage {
	msg := models.EmailMessage{
		To: recipient,
		Data: map[string]interface{}{
			"RecipientName": nameOr(recipient.Name, "there"),
		},
	}

	if event.Kind == EventReportCardSubmitted {
		msg.Template = models.EmailTemplateReportCardSubmitted
		msg.Subject = "New report card submitted"
		if rc := event.ReportCard; rc != nil && rc.ReportCard != nil {
			msg.Data["StudentName"] = nameOr(rc.StudentName, rc.ReportCard.StudentID)
			msg.Data["TeacherName"] = nameOr(rc.TeacherName, rc.ReportCard.TeacherID)
			msg.Data["Rating"] = rc.ReportCard.Rating
			msg.Data["MaxRating"] = models.MaxReportCardRating
			msg.Data["Date"] = rc.ReportCard.Date.Format(canonicalDateLayout)
			if rc.ReportCard.Comments != nil {
				msg.Data["Comments"] = *rc.ReportCard.Comments
			}
			msg.Data["Link"] = c.absolute(c.reportCardLink(rc.ReportCard.ID))
		}
		return msg
	}

	if event.Call == nil || event.Call.Call == nil {
		msg.Template = models.EmailTemplateCallScheduled
		msg.Subject = "Class update"
		return msg
	}
	call := event.Call.Call
	msg.Data["Schedule"] = call.TimeRange()
	msg.Data["Link"] = c.absolute(c.callLink(call.ID))
	if call.JoinLink != "" {
		msg.Data["JoinLink"] = call.JoinLink
	}

	switch event.Kind {
	case EventScheduled:
		msg.Template = models.EmailTemplateCallScheduled
		msg.Subject = "New class scheduled"
	case EventRescheduled:
		msg.Template = models.EmailTemplateCallRescheduled
		msg.Subject = "Class rescheduled"
		if prev := previousRange(event.Call); prev != nil {
			msg.Data["Previous"] = *prev
		}
	case EventCancelled:
		msg.Template = models.EmailTemplateCallCancelled
		msg.Subject = "Class cancelled"
		if reason := cancellationReason(event.Call); reason != "" {
			msg.Data["Reason"] = reason
		}
	case EventCallReminder:
		msg.Template = models.EmailTemplateCallReminder
		msg.Subject = "Class starts in " + humanLeadTime(event.Call.LeadTime)
		msg.Data["LeadTime"] = humanLeadTime(event.Call.LeadTime)
	default:
		msg.Template = models.EmailTemplateCallScheduled
		msg.Subject = "Class update"
	}
	return msg
}

func previousRange(p *CallEventPayload) *models.CallTimeRange {
	if p.Delta != nil && p.Delta.Previous != nil {
		return p.Delta.Previous
	}
	return p.Call.PreviousTimeRange()
}

func cancellationReason(p *CallEventPayload) string {
	if p.Delta != nil && p.Delta.Reason != "" {
		return p.Delta.Reason
	}
	if p.Call.CancellationReason != nil {
		return *p.Call.CancellationReason
	}
	return ""
}

func humanLeadTime(t models.NotificationTiming) string {
	switch t {
	case models.Timing1Day:
		return "1 day"
	case models.Timing1Hour:
		return "1 hour"
	case models.Timing30Min:
		return "30 minutes"
	case models.Timing10Min:
		return "10 minutes"
	}
	return string(t)
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
