package models

import "time"

// DefaultClassCapacity is applied when a class is created without an explicit capacity.
const DefaultClassCapacity = 30

// Class groups students under an owning teacher. The roster is the set of
// active students whose ClassID references this class; it may never exceed
// Capacity.
type Class struct {
	BaseModel

	Name        string `gorm:"type:varchar(100);not null;index" json:"name"`
	Description string `gorm:"type:varchar(500)" json:"description,omitempty"`

	// TeacherID is nullable only through explicit unassignment.
	TeacherID *string `gorm:"type:uuid;index" json:"teacher_id"`
	Teacher   *User   `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`

	Students []Student `gorm:"foreignKey:ClassID" json:"students,omitempty"`

	Capacity int  `gorm:"default:30" json:"capacity"`
	IsActive bool `gorm:"default:true;index" json:"is_active"`

	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}
