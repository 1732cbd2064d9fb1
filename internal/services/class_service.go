package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	apperrors "github.com/schoolgate/schoolgate/pkg/errors"
)

var (
	// ErrClassNotFound indicates the requested class does not exist.
	ErrClassNotFound = apperrors.New("CLASS_NOT_FOUND", "Class not found", http.StatusNotFound)
	// ErrClassFull indicates the class roster is at capacity.
	ErrClassFull = apperrors.New("CLASS_FULL", "Class has reached its capacity", http.StatusBadRequest)
	// ErrTeacherRoleRequired indicates the assignment target is not a teacher account.
	ErrTeacherRoleRequired = apperrors.New("CLASS_TEACHER_ROLE_REQUIRED", "Assigned user must have the teacher role", http.StatusBadRequest)
	// ErrStudentAlreadyInClass indicates the student is already on the roster.
	ErrStudentAlreadyInClass = apperrors.New("STUDENT_ALREADY_IN_CLASS", "Student is already in this class", http.StatusBadRequest)
)

// CreateClassInput describes the fields accepted when creating a class.
type CreateClassInput struct {
	Name        string
	Description string
	TeacherID   string
	Capacity    int
	StartDate   time.Time
	EndDate     *time.Time
}

// UpdateClassInput enumerates mutable class attributes. Nil fields are left untouched.
type UpdateClassInput struct {
	Name        *string
	Description *string
	Capacity    *int
	IsActive    *bool
	StartDate   *time.Time
	EndDate     *time.Time
}

// ClassFilters captures listing filters.
type ClassFilters struct {
	TeacherID string
	IsActive  *bool
	Query     string
}

// ListClassesOptions controls pagination for class listing.
type ListClassesOptions struct {
	Page     int
	PageSize int
	Filters  ClassFilters
}

// ClassService manages classes, their teacher assignment and their roster.
type ClassService struct {
	db *gorm.DB
}

// NewClassService constructs a ClassService instance.
func NewClassService(db *gorm.DB) (*ClassService, error) {
	if db == nil {
		return nil, errors.New("class service: db is required")
	}
	return &ClassService{db: db}, nil
}

// Create registers a new class. An empty capacity falls back to the default.
func (s *ClassService) Create(ctx context.Context, input CreateClassInput) (*models.Class, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("class name is required")
	}
	if input.Capacity < 0 {
		return nil, apperrors.NewBadRequest("capacity cannot be negative")
	}

	capacity := input.Capacity
	if capacity == 0 {
		capacity = models.DefaultClassCapacity
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}

	class := &models.Class{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Capacity:    capacity,
		IsActive:    true,
		StartDate:   startDate,
		EndDate:     input.EndDate,
	}

	if teacherID := strings.TrimSpace(input.TeacherID); teacherID != "" {
		if err := s.requireTeacher(ctx, teacherID); err != nil {
			return nil, err
		}
		class.TeacherID = &teacherID
	}

	if err := s.db.WithContext(ctx).Create(class).Error; err != nil {
		return nil, fmt.Errorf("class service: create class: %w", err)
	}

	return s.Get(ctx, class.ID)
}

// Get loads a class with its teacher and active roster.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	ctx = ensureContext(ctx)

	var class models.Class
	err := s.db.WithContext(ctx).
		Preload("Teacher").
		Preload("Students", "is_active = ?", true).
		First(&class, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("class service: load class: %w", err)
	}
	return &class, nil
}

// List returns a page of classes matching the filters together with the total count.
func (s *ClassService) List(ctx context.Context, opts ListClassesOptions) ([]models.Class, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalizePagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Class{})
	if teacherID := strings.TrimSpace(opts.Filters.TeacherID); teacherID != "" {
		query = query.Where("teacher_id = ?", teacherID)
	}
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("class service: count classes: %w", err)
	}

	var classes []models.Class
	err := query.
		Preload("Teacher").
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&classes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("class service: list classes: %w", err)
	}

	return classes, total, nil
}

// ListByTeacher returns the active classes owned by a teacher.
func (s *ClassService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	ctx = ensureContext(ctx)

	var classes []models.Class
	err := s.db.WithContext(ctx).
		Preload("Students", "is_active = ?", true).
		Where("teacher_id = ? AND is_active = ?", teacherID, true).
		Order("name ASC").
		Find(&classes).Error
	if err != nil {
		return nil, fmt.Errorf("class service: list classes by teacher: %w", err)
	}
	return classes, nil
}

// Update applies partial changes to a class. Shrinking capacity below the
// current roster size is rejected.
func (s *ClassService) Update(ctx context.Context, id string, input UpdateClassInput) (*models.Class, error) {
	ctx = ensureContext(ctx)

	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("class name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Capacity != nil {
		if *input.Capacity < 1 {
			return nil, apperrors.NewBadRequest("capacity must be at least 1")
		}
		enrolled, err := s.activeStudentCount(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if int64(*input.Capacity) < enrolled {
			return nil, apperrors.NewConflict(fmt.Sprintf("capacity %d is below the current roster of %d", *input.Capacity, enrolled))
		}
		updates["capacity"] = *input.Capacity
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.StartDate != nil {
		updates["start_date"] = *input.StartDate
	}
	if input.EndDate != nil {
		updates["end_date"] = *input.EndDate
	}

	if len(updates) == 0 {
		return class, nil
	}

	if err := s.db.WithContext(ctx).Model(class).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("class service: update class: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete deactivates a class and its remaining roster. Records are retained
// for notification history.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Class{}).
			Where("id = ?", id).
			Update("is_active", false)
		if result.Error != nil {
			return fmt.Errorf("class service: deactivate class: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrClassNotFound
		}

		err := tx.Model(&models.Student{}).
			Where("class_id = ? AND is_active = ?", id, true).
			Update("is_active", false).Error
		if err != nil {
			return fmt.Errorf("class service: deactivate roster: %w", err)
		}
		return nil
	})
}

// AssignTeacher sets the owning teacher of a class.
func (s *ClassService) AssignTeacher(ctx context.Context, classID, teacherID string) (*models.Class, error) {
	ctx = ensureContext(ctx)

	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, apperrors.NewBadRequest("teacher id is required")
	}
	if err := s.requireTeacher(ctx, teacherID); err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).Model(&models.Class{}).
		Where("id = ?", classID).
		Update("teacher_id", teacherID)
	if result.Error != nil {
		return nil, fmt.Errorf("class service: assign teacher: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrClassNotFound
	}

	return s.Get(ctx, classID)
}

// UnassignTeacher removes the teacher from a class without touching the roster.
func (s *ClassService) UnassignTeacher(ctx context.Context, classID string) (*models.Class, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Class{}).
		Where("id = ?", classID).
		Update("teacher_id", nil)
	if result.Error != nil {
		return nil, fmt.Errorf("class service: unassign teacher: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrClassNotFound
	}

	return s.Get(ctx, classID)
}

// AddStudent moves a student onto the class roster, enforcing capacity.
func (s *ClassService) AddStudent(ctx context.Context, classID, studentID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var class models.Class
		if err := tx.First(&class, "id = ? AND is_active = ?", classID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return fmt.Errorf("class service: load class: %w", err)
		}

		var student models.Student
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStudentNotFound
			}
			return fmt.Errorf("class service: load student: %w", err)
		}

		if student.IsActive && student.ClassID == classID {
			return ErrStudentAlreadyInClass
		}

		enrolled, err := s.activeStudentCount(ctx, tx, classID)
		if err != nil {
			return err
		}
		if enrolled >= int64(class.Capacity) {
			return ErrClassFull
		}

		err = tx.Model(&models.Student{}).Where("id = ?", student.ID).Updates(map[string]any{
			"class_id":  classID,
			"is_active": true,
		}).Error
		if err != nil {
			return fmt.Errorf("class service: add student: %w", err)
		}
		return nil
	})
}

// RemoveStudent takes a student off the roster by deactivating the record.
// The class reference is kept so past notifications stay resolvable.
func (s *ClassService) RemoveStudent(ctx context.Context, classID, studentID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ? AND class_id = ?", studentID, classID).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("class service: remove student: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *ClassService) activeStudentCount(ctx context.Context, tx *gorm.DB, classID string) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.Student{}).
		Where("class_id = ? AND is_active = ?", classID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("class service: count roster: %w", err)
	}
	return count, nil
}

func (s *ClassService) requireTeacher(ctx context.Context, teacherID string) error {
	var teacher models.User
	err := s.db.WithContext(ctx).First(&teacher, "id = ? AND is_active = ?", teacherID, true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("class service: load teacher: %w", err)
	}
	if teacher.Role != models.RoleTeacher {
		return ErrTeacherRoleRequired
	}
	return nil
}
