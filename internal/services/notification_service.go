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
	// ErrNotificationNotFound indicates the requested notification does not exist.
	ErrNotificationNotFound = apperrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
	// ErrAlreadyResponded indicates the notification already left the pending state.
	ErrAlreadyResponded = apperrors.New("NOTIFICATION_ALREADY_RESPONDED", "Notification has already been responded to", http.StatusConflict)
	// ErrNotRespondable indicates the notification is not a request and carries no pending question.
	ErrNotRespondable = apperrors.New("NOTIFICATION_NOT_RESPONDABLE", "Only request notifications can be responded to", http.StatusBadRequest)
	// ErrClassUnassigned indicates the student's class has no teacher to receive the request.
	ErrClassUnassigned = apperrors.New("CLASS_UNASSIGNED", "Class has no assigned teacher", http.StatusBadRequest)
	// ErrRecipientNotReceptionist indicates a message was addressed to a non-receptionist account.
	ErrRecipientNotReceptionist = apperrors.New("RECIPIENT_NOT_RECEPTIONIST", "Messages can only be sent to receptionists", http.StatusBadRequest)
)

// WorkflowDispatcher fans workflow events out to realtime and push channels.
// Implementations must not block the caller.
type WorkflowDispatcher interface {
	NotificationCreated(n *models.Notification)
	NotificationResponded(n *models.Notification)
	NotificationRead(n *models.Notification)
}

// SendRequestInput describes a receptionist request about a student. The
// recipient is always the teacher assigned to the student's class.
type SendRequestInput struct {
	StudentID string
	Message   string
}

// SendMessageInput describes a free-form message to an explicit recipient.
type SendMessageInput struct {
	ToUserID  string
	StudentID string
	Message   string
}

// RespondInput carries a teacher's answer to a pending request.
type RespondInput struct {
	Status          string
	ResponseMessage string
}

// NotificationFilters captures listing filters.
type NotificationFilters struct {
	Status     string
	Type       string
	UnreadOnly bool
}

// ListNotificationsOptions controls pagination for notification listing.
type ListNotificationsOptions struct {
	Page     int
	PageSize int
	Filters  NotificationFilters
}

// NotificationService owns the request/response workflow between
// receptionists and teachers.
type NotificationService struct {
	db         *gorm.DB
	dispatcher WorkflowDispatcher
}

// NewNotificationService constructs a NotificationService. The dispatcher may
// be nil; delivery is then skipped.
func NewNotificationService(db *gorm.DB, dispatcher WorkflowDispatcher) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, dispatcher: dispatcher}, nil
}

// SendRequest creates a pending request addressed to the teacher of the
// student's class. An empty message gets a generated summary.
func (s *NotificationService) SendRequest(ctx context.Context, fromUserID string, input SendRequestInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var student models.Student
	err := s.db.WithContext(ctx).
		Preload("Class").
		First(&student, "id = ? AND is_active = ?", strings.TrimSpace(input.StudentID), true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("notification service: load student: %w", err)
	}

	if student.Class == nil || !student.Class.IsActive {
		return nil, ErrClassNotFound
	}
	if student.Class.TeacherID == nil || *student.Class.TeacherID == "" {
		return nil, ErrClassUnassigned
	}

	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = fmt.Sprintf("Request for student %s (%s)", student.Name, student.StudentCode)
	}

	notification := &models.Notification{
		FromUserID:  fromUserID,
		ToUserID:    *student.Class.TeacherID,
		StudentID:   student.ID,
		ClassID:     student.ClassID,
		Type:        models.NotificationTypeRequest,
		Status:      models.StatusPending,
		Message:     message,
		RequestDate: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create request: %w", err)
	}

	created, err := s.load(ctx, notification.ID)
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.NotificationCreated(created)
	}
	return created, nil
}

// SendMessage creates a message notification from the teacher of record to a
// receptionist. Messages never transition; they only carry a read flag.
func (s *NotificationService) SendMessage(ctx context.Context, fromUserID string, input SendMessageInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("message is required")
	}

	var recipient models.User
	err := s.db.WithContext(ctx).
		First(&recipient, "id = ? AND is_active = ?", strings.TrimSpace(input.ToUserID), true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("notification service: load recipient: %w", err)
	}
	if recipient.Role != models.RoleReceptionist {
		return nil, ErrRecipientNotReceptionist
	}

	var student models.Student
	err = s.db.WithContext(ctx).
		Preload("Class").
		First(&student, "id = ?", strings.TrimSpace(input.StudentID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("notification service: load student: %w", err)
	}

	// Only the teacher assigned to the student's class may message about them.
	if student.Class == nil || student.Class.TeacherID == nil || *student.Class.TeacherID != fromUserID {
		return nil, apperrors.NewForbidden("only the class teacher can send messages about this student")
	}

	notification := &models.Notification{
		FromUserID:  fromUserID,
		ToUserID:    recipient.ID,
		StudentID:   student.ID,
		ClassID:     student.ClassID,
		Type:        models.NotificationTypeMessage,
		Status:      models.StatusPending,
		Message:     message,
		RequestDate: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create message: %w", err)
	}

	created, err := s.load(ctx, notification.ID)
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.NotificationCreated(created)
	}
	return created, nil
}

// Respond answers a pending request. The transition is a single conditional
// update keyed on the pending status, so concurrent responders race on the
// database row and exactly one wins.
func (s *NotificationService) Respond(ctx context.Context, responderID, notificationID string, input RespondInput) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	status := strings.ToLower(strings.TrimSpace(input.Status))
	if !models.TerminalStatus(status) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid response status %q", input.Status))
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND to_user_id = ? AND type = ? AND status = ?",
			notificationID, responderID, models.NotificationTypeRequest, models.StatusPending).
		Updates(map[string]any{
			"type":             models.NotificationTypeResponse,
			"status":           status,
			"response_message": strings.TrimSpace(input.ResponseMessage),
			"response_date":    now,
			"is_read":          true,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("notification service: respond: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Reload to tell the caller exactly why the transition lost.
		var existing models.Notification
		err := s.db.WithContext(ctx).First(&existing, "id = ?", notificationID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotificationNotFound
			}
			return nil, fmt.Errorf("notification service: load notification: %w", err)
		}
		if existing.ToUserID != responderID {
			return nil, apperrors.NewForbidden("only the assigned recipient can respond")
		}
		if existing.Type == models.NotificationTypeMessage {
			return nil, ErrNotRespondable
		}
		return nil, ErrAlreadyResponded
	}

	updated, err := s.load(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.NotificationResponded(updated)
	}
	return updated, nil
}

// MarkRead flags a notification as read by its recipient. Marking an
// already-read notification is a no-op; the sender is told the first time.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.load(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.ToUserID != userID {
		return nil, apperrors.NewForbidden("only the recipient can mark a notification as read")
	}

	if notification.IsRead {
		return notification, nil
	}

	err = s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("is_read", true).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}
	notification.IsRead = true

	if s.dispatcher != nil {
		s.dispatcher.NotificationRead(notification)
	}
	return notification, nil
}

// GetByID loads a notification for one of its participants. Viewing implies
// acknowledgement: the recipient opening an unread record marks it read.
func (s *NotificationService) GetByID(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.load(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if notification.FromUserID != userID && notification.ToUserID != userID {
		return nil, apperrors.NewForbidden("notification belongs to another conversation")
	}

	if !notification.IsRead && notification.ToUserID == userID {
		return s.MarkRead(ctx, userID, notificationID)
	}
	return notification, nil
}

// ListForUser returns the user's notifications, newest first. Both sides of a
// conversation see the record.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, opts ListNotificationsOptions) ([]models.Notification, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalizePagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID)

	if status := strings.ToLower(strings.TrimSpace(opts.Filters.Status)); status != "" {
		query = query.Where("status = ?", status)
	}
	if kind := strings.ToLower(strings.TrimSpace(opts.Filters.Type)); kind != "" {
		query = query.Where("type = ?", kind)
	}
	if opts.Filters.UnreadOnly {
		query = query.Where("to_user_id = ? AND is_read = ?", userID, false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var notifications []models.Notification
	err := query.
		Preload("From").
		Preload("To").
		Preload("Student").
		Preload("Class").
		Order("request_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return notifications, total, nil
}

// ListByStudent returns a student's notification history, newest first.
func (s *NotificationService) ListByStudent(ctx context.Context, studentID string, opts ListNotificationsOptions) ([]models.Notification, int64, error) {
	ctx = ensureContext(ctx)
	page, pageSize := normalizePagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("student_id = ?", studentID)

	if status := strings.ToLower(strings.TrimSpace(opts.Filters.Status)); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var notifications []models.Notification
	err := query.
		Preload("From").
		Preload("To").
		Order("request_date DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return notifications, total, nil
}

// UnreadCount returns how many notifications await the user as recipient.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("to_user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

func (s *NotificationService) load(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).
		Preload("From").
		Preload("To").
		Preload("Student").
		Preload("Class").
		First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}
	return &notification, nil
}
