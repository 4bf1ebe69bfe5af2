package domain

import "time"

// Plan is the subscription tier a member bought.
type Plan string

const (
	PlanVIP          Plan = "VIP"
	PlanLite         Plan = "LITE"
	PlanLiteV2       Plan = "LITE_V2"
	PlanRendaPassiva Plan = "RENDA_PASSIVA"
	PlanFIIs         Plan = "FIIS"
	PlanAmerica      Plan = "AMERICA"
	PlanAdmin        Plan = "ADMIN"
)

// Plans lists every known plan in display order.
var Plans = []Plan{PlanVIP, PlanLite, PlanLiteV2, PlanRendaPassiva, PlanFIIs, PlanAmerica, PlanAdmin}

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	for _, known := range Plans {
		if p == known {
			return true
		}
	}
	return false
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusPending  UserStatus = "PENDING"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending:
		return true
	}
	return false
}

// User represents a member (or administrator) of the platform.
type User struct {
	ID                 int64
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	Plan               Plan
	Status             UserStatus
	CustomPermissions  []string
	ExpirationDate     *time.Time
	MustChangePassword bool
	HotmartCustomerID  string
	LastLogin          *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsAdmin reports whether the user holds the administrative plan.
func (u *User) IsAdmin() bool {
	return u != nil && u.Plan == PlanAdmin
}

// Expired reports whether the user's access window closed before now.
func (u *User) Expired(now time.Time) bool {
	return u.ExpirationDate != nil && u.ExpirationDate.Before(now)
}
