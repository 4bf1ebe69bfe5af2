package domain

import "time"

type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Notification is a message shown in a member's dashboard bell.
type Notification struct {
	ID        int64
	UserID    int64
	Title     string
	Message   string
	Type      NotificationType
	Category  string
	ActionURL string
	Read      bool
	CreatedAt time.Time
}
