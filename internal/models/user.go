package models

import "time"

// User roles understood by the authorization middleware.
const (
	RoleTeacher      = "teacher"
	RoleManager      = "manager"
	RoleReceptionist = "receptionist"
	RoleAdmin        = "admin"
)

// ValidRole reports whether the supplied role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleTeacher, RoleManager, RoleReceptionist, RoleAdmin:
		return true
	}
	return false
}

// User describes back-office staff: teachers, managers, receptionists and admins.
type User struct {
	BaseModel

	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"type:varchar(32);not null;index" json:"role"`
	Avatar   string `gorm:"type:text" json:"avatar,omitempty"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	// Push registration; token is never serialized to API consumers.
	DeviceToken        *string    `gorm:"type:text" json:"-"`
	DevicePlatform     string     `gorm:"type:varchar(16)" json:"device_platform,omitempty"`
	DeviceRegisteredAt *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	PasswordResetToken   string     `gorm:"type:text" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
}
