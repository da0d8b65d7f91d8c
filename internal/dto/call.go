package dto

// ScheduleCallRequest commits a new class session for a batch.
type ScheduleCallRequest struct {
	LessonID     string `json:"lessonId" validate:"required"`
	BatchID      string `json:"batchId" validate:"required"`
	CourseID     string `json:"courseId"`
	TeacherID    string `json:"teacherId" validate:"required"`
	Date         string `json:"date" validate:"required"`
	StartTime    string `json:"startTime" validate:"required"`
	EndTime      string `json:"endTime" validate:"required"`
	Timezone     string `json:"timezone" validate:"required,timezone"`
	Type         string `json:"type" validate:"omitempty,max=64"`
	JoinLink     string `json:"joinLink" validate:"omitempty,url"`
	CallDuration int    `json:"callDuration" validate:"omitempty,min=0"`
}

// RescheduleCallRequest moves a call to a new date and time range.
type RescheduleCallRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
}

// CancelCallRequest optionally carries a human readable reason.
type CancelCallRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// CallOperationResponse wraps a call transition result with a delivery summary.
type CallOperationResponse struct {
	Call          interface{}          `json:"call"`
	Notifications *DispatchSummaryView `json:"notifications,omitempty"`
}

// DispatchSummaryView is the client-facing view of a dispatch report.
type DispatchSummaryView struct {
	Recipients int `json:"recipients"`
	Skipped    int `json:"skipped"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}
