package models

import "time"

// Student belongs to exactly one class. Deactivated students keep their class
// reference for historical lookup but no longer count against the roster.
type Student struct {
	BaseModel

	// StudentCode is stored normalized: uppercase alphanumeric only.
	StudentCode string `gorm:"uniqueIndex;type:varchar(32);not null" json:"student_code"`

	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	NameEnglish string `gorm:"type:varchar(100)" json:"name_english,omitempty"`
	NameArabic  string `gorm:"type:varchar(100)" json:"name_arabic,omitempty"`

	ClassID string `gorm:"type:uuid;not null;index" json:"class_id"`
	Class   *Class `gorm:"foreignKey:ClassID" json:"class,omitempty"`

	IsActive   bool      `gorm:"default:true;index" json:"is_active"`
	EnrolledAt time.Time `json:"enrolled_at"`
}
