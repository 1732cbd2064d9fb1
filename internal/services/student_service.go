package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	apperrors "github.com/schoolgate/schoolgate/pkg/errors"
)

var (
	// ErrStudentNotFound indicates the requested student does not exist.
	ErrStudentNotFound = apperrors.New("STUDENT_NOT_FOUND", "Student not found", http.StatusNotFound)
	// ErrStudentCodeTaken indicates another student already uses the code.
	ErrStudentCodeTaken = apperrors.New("STUDENT_CODE_TAKEN", "Student code is already in use", http.StatusBadRequest)
)

var studentCodeRe = regexp.MustCompile(`^[A-Z0-9]+$`)

// CreateStudentInput describes the fields accepted when enrolling a student.
type CreateStudentInput struct {
	StudentCode string
	Name        string
	NameEnglish string
	NameArabic  string
	ClassID     string
	EnrolledAt  time.Time
}

// UpdateStudentInput enumerates mutable student attributes. Nil fields are left untouched.
type UpdateStudentInput struct {
	Name        *string
	NameEnglish *string
	NameArabic  *string
	ClassID     *string
	IsActive    *bool
}

// StudentFilters captures listing filters.
type StudentFilters struct {
	ClassID  string
	IsActive *bool
	Query    string
}

// ListStudentsOptions controls pagination for student listing.
type ListStudentsOptions struct {
	Page     int
	PageSize int
	Filters  StudentFilters
}

// StudentService manages student enrolment and class membership.
type StudentService struct {
	db *gorm.DB
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(db *gorm.DB) (*StudentService, error) {
	if db == nil {
		return nil, errors.New("student service: db is required")
	}
	return &StudentService{db: db}, nil
}

// NormalizeStudentCode uppercases and trims a raw student code.
func NormalizeStudentCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create enrols a student into a class, enforcing code uniqueness and capacity.
func (s *StudentService) Create(ctx context.Context, input CreateStudentInput) (*models.Student, error) {
	ctx = ensureContext(ctx)

	code := NormalizeStudentCode(input.StudentCode)
	if code == "" {
		return nil, apperrors.NewBadRequest("student code is required")
	}
	if !studentCodeRe.MatchString(code) {
		return nil, apperrors.NewBadRequest("student code must contain only letters and digits")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("student name is required")
	}

	classID := strings.TrimSpace(input.ClassID)
	if classID == "" {
		return nil, apperrors.NewBadRequest("class id is required")
	}

	enrolledAt := input.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = time.Now().UTC()
	}

	student := &models.Student{
		StudentCode: code,
		Name:        name,
		NameEnglish: strings.TrimSpace(input.NameEnglish),
		NameArabic:  strings.TrimSpace(input.NameArabic),
		ClassID:     classID,
		IsActive:    true,
		EnrolledAt:  enrolledAt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkClassHasRoom(tx, classID); err != nil {
			return err
		}
		if err := tx.Create(student).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrStudentCodeTaken
			}
			return fmt.Errorf("student service: create student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, student.ID)
}

// Get loads a single student with their class.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	ctx = ensureContext(ctx)

	var student models.Student
	err := s.db.WithContext(ctx).
		Preload("Class").
		First(&student, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("student service: load student: %w", err)
	}
	return &student, nil
}

// GetByCode looks a student up by their normalized student code.
func (s *StudentService) GetByCode(ctx context.Context, code string) (*models.Student, error) {
	ctx = ensureContext(ctx)

	code = NormalizeStudentCode(code)
	if code == "" {
		return nil, ErrStudentNotFound
	}

	var student models.Student
	err := s.db.WithContext(ctx).
		Preload("Class").
		First(&student, "student_code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("student service: load student by code: %w", err)
	}
	return &student, nil
}

// List returns a page of students matching the filters together with the total count.
func (s *StudentService) List(ctx context.Context, opts ListStudentsOptions) ([]models.Student, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalizePagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Student{})
	if classID := strings.TrimSpace(opts.Filters.ClassID); classID != "" {
		query = query.Where("class_id = ?", classID)
	}
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(name_english) LIKE ? OR student_code LIKE ?",
			like, like, "%"+NormalizeStudentCode(q)+"%",
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("student service: count students: %w", err)
	}

	var students []models.Student
	err := query.
		Preload("Class").
		Order("name ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&students).Error
	if err != nil {
		return nil, 0, fmt.Errorf("student service: list students: %w", err)
	}

	return students, total, nil
}

// ListByClass returns the active roster of a class.
func (s *StudentService) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	ctx = ensureContext(ctx)

	var students []models.Student
	err := s.db.WithContext(ctx).
		Where("class_id = ? AND is_active = ?", classID, true).
		Order("name ASC").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("student service: list roster: %w", err)
	}
	return students, nil
}

// Update applies partial changes to a student. Changing the class re-checks
// the destination roster's capacity.
func (s *StudentService) Update(ctx context.Context, id string, input UpdateStudentInput) (*models.Student, error) {
	ctx = ensureContext(ctx)

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("student name cannot be empty")
		}
		updates["name"] = name
	}
	if input.NameEnglish != nil {
		updates["name_english"] = strings.TrimSpace(*input.NameEnglish)
	}
	if input.NameArabic != nil {
		updates["name_arabic"] = strings.TrimSpace(*input.NameArabic)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	reassignTo := ""
	if input.ClassID != nil {
		classID := strings.TrimSpace(*input.ClassID)
		if classID == "" {
			return nil, apperrors.NewBadRequest("class id cannot be empty")
		}
		if classID != student.ClassID {
			reassignTo = classID
			updates["class_id"] = classID
		}
	}

	if len(updates) == 0 {
		return student, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reassignTo != "" {
			if err := s.checkClassHasRoom(tx, reassignTo); err != nil {
				return err
			}
		}
		// Update by id: the loaded model carries a preloaded Class, and
		// GORM's association handling would write the old class_id back.
		if err := tx.Model(&models.Student{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("student service: update student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes a student from active rosters while keeping the record for
// notification history.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("student service: deactivate student: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (s *StudentService) checkClassHasRoom(tx *gorm.DB, classID string) error {
	var class models.Class
	if err := tx.First(&class, "id = ? AND is_active = ?", classID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return fmt.Errorf("student service: load class: %w", err)
	}

	var enrolled int64
	err := tx.Model(&models.Student{}).
		Where("class_id = ? AND is_active = ?", classID, true).
		Count(&enrolled).Error
	if err != nil {
		return fmt.Errorf("student service: count roster: %w", err)
	}
	if enrolled >= int64(class.Capacity) {
		return ErrClassFull
	}
	return nil
}
