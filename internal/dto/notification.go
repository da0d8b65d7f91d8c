package dto

// UpdateNotificationPreferenceRequest replaces a user's notification preference.
type UpdateNotificationPreferenceRequest struct {
	Enabled *bool    `json:"enabled" validate:"required"`
	Methods []string `json:"methods" validate:"omitempty,unique,dive,oneof=email push"`
	Timings []string `json:"timings" validate:"omitempty,unique,dive,oneof=1day 1hour 30min 10min"`
}

// NotificationQuery filters the caller's notifications.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread"`
	Limit      int  `form:"limit" validate:"omitempty,min=1,max=200"`
}
