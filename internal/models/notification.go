package models

import "time"

// Notification types. A request is rewritten to a response in place when it
// receives its answer; a message never transitions.
const (
	NotificationTypeRequest  = "request"
	NotificationTypeMessage  = "message"
	NotificationTypeResponse = "response"
)

// Notification statuses. Pending is the initial state; the remaining four are
// terminal and a record transitions at most once.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusAbsent   = "absent"
	StatusPresent  = "present"
)

// TerminalStatus reports whether the supplied status ends the workflow.
func TerminalStatus(status string) bool {
	switch status {
	case StatusApproved, StatusRejected, StatusAbsent, StatusPresent:
		return true
	}
	return false
}

// Notification is the workflow record exchanged between a receptionist and a
// teacher about a student. It references users, the student and the class by
// identifier only and does not own their lifecycle.
type Notification struct {
	BaseModel

	FromUserID string `gorm:"type:uuid;not null;index" json:"from_user_id"`
	From       *User  `gorm:"foreignKey:FromUserID" json:"from,omitempty"`

	ToUserID string `gorm:"type:uuid;not null;index" json:"to_user_id"`
	To       *User  `gorm:"foreignKey:ToUserID" json:"to,omitempty"`

	StudentID string   `gorm:"type:uuid;not null;index" json:"student_id"`
	Student   *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`

	ClassID string `gorm:"type:uuid;not null;index" json:"class_id"`
	Class   *Class `gorm:"foreignKey:ClassID" json:"class,omitempty"`

	Type   string `gorm:"type:varchar(16);not null" json:"type"`
	Status string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	Message         string `gorm:"type:varchar(500)" json:"message"`
	ResponseMessage string `gorm:"type:varchar(500)" json:"response_message,omitempty"`

	IsRead bool `gorm:"default:false;index" json:"is_read"`

	RequestDate  time.Time  `gorm:"index" json:"request_date"`
	ResponseDate *time.Time `json:"response_date,omitempty"`
}

// Summary renders a short human-readable description used by delivery payloads.
func (n *Notification) Summary() string {
	studentName := "Unknown"
	if n.Student != nil {
		studentName = n.Student.Name
	}

	switch n.Type {
	case NotificationTypeRequest:
		className := "Unknown"
		if n.Class != nil {
			className = n.Class.Name
		}
		return "Request for student " + studentName + " in class " + className
	case NotificationTypeResponse:
		return "Response: " + n.Status + " for student " + studentName
	}

	if n.Message != "" {
		return n.Message
	}
	return "Message"
}
