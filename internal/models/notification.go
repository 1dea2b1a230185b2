package models

// NotificationKind separates toasts from modals the user must acknowledge
type NotificationKind string

const (
	NotificationToast NotificationKind = "toast"
	NotificationModal NotificationKind = "modal"
)

// NotificationLevel is the colour of a notification
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Notification is a user-visible message attached to a response.
type Notification struct {
	Kind     NotificationKind  `json:"kind"`
	Level    NotificationLevel `json:"level"`
	Title    string            `json:"title,omitempty"`
	Message  string            `json:"message"`
	Redirect string            `json:"redirect,omitempty"`
}

// Toast builds a non-blocking notification
func Toast(level NotificationLevel, message string) Notification {
	return Notification{Kind: NotificationToast, Level: level, Message: message}
}

// Modal builds a blocking notification
func Modal(level NotificationLevel, title, message, redirect string) Notification {
	return Notification{Kind: NotificationModal, Level: level, Title: title, Message: message, Redirect: redirect}
}
