package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schoolgate/schoolgate/internal/models"
	apperrors "github.com/schoolgate/schoolgate/pkg/errors"
)

// recordDispatcher captures workflow events synchronously for assertions.
type recordDispatcher struct {
	mu        sync.Mutex
	created   []string
	responded []string
	read      []string
}

func (r *recordDispatcher) NotificationCreated(n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, n.ID)
}

func (r *recordDispatcher) NotificationResponded(n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responded = append(r.responded, n.ID)
}

func (r *recordDispatcher) NotificationRead(n *models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read = append(r.read, n.ID)
}

func newNotificationService(t *testing.T, fx *workflowFixture) (*NotificationService, *recordDispatcher) {
	t.Helper()
	dispatcher := &recordDispatcher{}
	svc, err := NewNotificationService(fx.db, dispatcher)
	require.NoError(t, err)
	return svc, dispatcher
}

func TestSendRequestTargetsClassTeacher(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{
		StudentID: fx.student.ID,
		Message:   "Parent waiting at the gate",
	})
	require.NoError(t, err)
	require.Equal(t, fx.receptionist.ID, n.FromUserID)
	require.Equal(t, fx.teacher.ID, n.ToUserID)
	require.Equal(t, fx.class.ID, n.ClassID)
	require.Equal(t, models.NotificationTypeRequest, n.Type)
	require.Equal(t, models.StatusPending, n.Status)
	require.False(t, n.IsRead)
	require.False(t, n.RequestDate.IsZero())
	require.Nil(t, n.ResponseDate)
	require.Equal(t, []string{n.ID}, dispatcher.created)
}

func TestSendRequestDefaultMessage(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{
		StudentID: fx.student.ID,
	})
	require.NoError(t, err)
	require.Contains(t, n.Message, fx.student.Name)
	require.Contains(t, n.Message, fx.student.StudentCode)
}

func TestSendRequestRejectsInactiveStudent(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)
	require.NoError(t, fx.db.Model(fx.student).Update("is_active", false).Error)

	_, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{
		StudentID: fx.student.ID,
	})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestSendRequestRequiresAssignedTeacher(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)
	require.NoError(t, fx.db.Model(fx.class).Update("teacher_id", nil).Error)

	_, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{
		StudentID: fx.student.ID,
	})
	require.ErrorIs(t, err, ErrClassUnassigned)
}

func TestSendMessage(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendMessage(context.Background(), fx.teacher.ID, SendMessageInput{
		ToUserID:  fx.receptionist.ID,
		StudentID: fx.student.ID,
		Message:   "Please call the parents of Amal",
	})
	require.NoError(t, err)
	require.Equal(t, models.NotificationTypeMessage, n.Type)
	require.Equal(t, fx.receptionist.ID, n.ToUserID)
	require.Len(t, dispatcher.created, 1)

	_, err = svc.SendMessage(context.Background(), fx.teacher.ID, SendMessageInput{
		ToUserID:  fx.receptionist.ID,
		StudentID: fx.student.ID,
	})
	require.Error(t, err)
}

func TestSendMessageRequiresClassTeacher(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	otherTeacher := createTestUser(t, fx.db, models.RoleTeacher)
	_, err := svc.SendMessage(context.Background(), otherTeacher.ID, SendMessageInput{
		ToUserID:  fx.receptionist.ID,
		StudentID: fx.student.ID,
		Message:   "Not my class",
	})
	appErr := apperrors.FromError(err)
	require.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestSendMessageRequiresReceptionistRecipient(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	manager := createTestUser(t, fx.db, models.RoleManager)
	_, err := svc.SendMessage(context.Background(), fx.teacher.ID, SendMessageInput{
		ToUserID:  manager.ID,
		StudentID: fx.student.ID,
		Message:   "Heads up",
	})
	require.ErrorIs(t, err, ErrRecipientNotReceptionist)
}

func TestRespondRewritesRequestInPlace(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	updated, err := svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{
		Status:          models.StatusAbsent,
		ResponseMessage: "Amal did not come in today",
	})
	require.NoError(t, err)

	// Same record, rewritten in place.
	require.Equal(t, n.ID, updated.ID)
	require.Equal(t, models.NotificationTypeResponse, updated.Type)
	require.Equal(t, models.StatusAbsent, updated.Status)
	require.Equal(t, "Amal did not come in today", updated.ResponseMessage)
	require.NotNil(t, updated.ResponseDate)
	// Answering implies the recipient read the request.
	require.True(t, updated.IsRead)
	require.Equal(t, []string{n.ID}, dispatcher.responded)

	var count int64
	require.NoError(t, fx.db.Model(&models.Notification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRespondTransitionsAtMostOnce(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: models.StatusPresent})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: models.StatusAbsent})
	require.ErrorIs(t, err, ErrAlreadyResponded)

	// The losing attempt changes nothing.
	stored, err := svc.GetByID(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPresent, stored.Status)
	require.Len(t, dispatcher.responded, 1)
}

func TestRespondConcurrentAttemptsHaveOneWinner(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	// Two tabs answering the same request at once: exactly one attempt
	// lands, the other observes the terminal state.
	statuses := []string{models.StatusPresent, models.StatusAbsent}
	errs := make([]error, len(statuses))

	var wg sync.WaitGroup
	for i, status := range statuses {
		wg.Add(1)
		go func(i int, status string) {
			defer wg.Done()
			_, errs[i] = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: status})
		}(i, status)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyResponded)
	}
	require.Equal(t, 1, winners)

	stored, err := svc.GetByID(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.Equal(t, models.NotificationTypeResponse, stored.Type)
	require.Contains(t, statuses, stored.Status)
	require.Len(t, dispatcher.responded, 1)
}

func TestRespondOnlyRecipientMay(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	otherTeacher := createTestUser(t, fx.db, models.RoleTeacher)
	_, err = svc.Respond(context.Background(), otherTeacher.ID, n.ID, RespondInput{Status: models.StatusApproved})
	appErr := apperrors.FromError(err)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	// The requester cannot answer their own request either.
	_, err = svc.Respond(context.Background(), fx.receptionist.ID, n.ID, RespondInput{Status: models.StatusApproved})
	require.Error(t, err)
}

func TestRespondValidatesStatus(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: "pending"})
	require.Error(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: "maybe"})
	require.Error(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, "missing-id", RespondInput{Status: models.StatusApproved})
	require.ErrorIs(t, err, ErrNotificationNotFound)
}

func TestRespondRejectsMessages(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendMessage(context.Background(), fx.teacher.ID, SendMessageInput{
		ToUserID:  fx.receptionist.ID,
		StudentID: fx.student.ID,
		Message:   "FYI",
	})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), fx.receptionist.ID, n.ID, RespondInput{Status: models.StatusApproved})
	require.ErrorIs(t, err, ErrNotRespondable)
}

func TestMarkReadIdempotent(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	read, err := svc.MarkRead(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)

	// Second call succeeds without another receipt.
	_, err = svc.MarkRead(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.Len(t, dispatcher.read, 1)
}

func TestMarkReadOnlyRecipient(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	// The sender cannot acknowledge on the recipient's behalf.
	_, err = svc.MarkRead(context.Background(), fx.receptionist.ID, n.ID)
	appErr := apperrors.FromError(err)
	require.Equal(t, "FORBIDDEN", appErr.Code)

	read, err := svc.MarkRead(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.True(t, read.IsRead)
}

func TestGetByIDMarksRecipientRead(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, dispatcher := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	// The requester viewing their own pending request does not consume it.
	viewed, err := svc.GetByID(context.Background(), fx.receptionist.ID, n.ID)
	require.NoError(t, err)
	require.False(t, viewed.IsRead)

	// The teacher opening it acknowledges it.
	viewed, err = svc.GetByID(context.Background(), fx.teacher.ID, n.ID)
	require.NoError(t, err)
	require.True(t, viewed.IsRead)
	require.Len(t, dispatcher.read, 1)

	outsider := createTestUser(t, fx.db, models.RoleManager)
	_, err = svc.GetByID(context.Background(), outsider.ID, n.ID)
	require.Error(t, err)
}

func TestUnreadCountRecipientOnly(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	teacherUnread, err := svc.UnreadCount(context.Background(), fx.teacher.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, teacherUnread)

	// Unread tracks the recipient side, never the sender's.
	receptionistUnread, err := svc.UnreadCount(context.Background(), fx.receptionist.ID)
	require.NoError(t, err)
	require.Zero(t, receptionistUnread)

	// Answering consumes the request.
	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: models.StatusPresent})
	require.NoError(t, err)

	teacherUnread, err = svc.UnreadCount(context.Background(), fx.teacher.ID)
	require.NoError(t, err)
	require.Zero(t, teacherUnread)
}

func TestListForUserNewestFirst(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	_, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)
	_, err = svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	list, total, err := svc.ListForUser(context.Background(), fx.teacher.ID, ListNotificationsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	require.True(t, !list[0].RequestDate.Before(list[1].RequestDate))
	require.NotNil(t, list[0].Student)
	require.NotNil(t, list[0].From)

	// Both sides see the conversation.
	_, total, err = svc.ListForUser(context.Background(), fx.receptionist.ID, ListNotificationsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	// An unrelated user sees nothing.
	outsider := createTestUser(t, fx.db, models.RoleManager)
	_, total, err = svc.ListForUser(context.Background(), outsider.ID, ListNotificationsOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestListForUserFilters(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	n, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)
	_, err = svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	_, err = svc.Respond(context.Background(), fx.teacher.ID, n.ID, RespondInput{Status: models.StatusApproved})
	require.NoError(t, err)

	_, total, err := svc.ListForUser(context.Background(), fx.teacher.ID, ListNotificationsOptions{
		Filters: NotificationFilters{Status: models.StatusPending},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.ListForUser(context.Background(), fx.teacher.ID, ListNotificationsOptions{
		Filters: NotificationFilters{Type: models.NotificationTypeResponse},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	// Unread for the teacher: only the remaining pending request.
	_, total, err = svc.ListForUser(context.Background(), fx.teacher.ID, ListNotificationsOptions{
		Filters: NotificationFilters{UnreadOnly: true},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestListByStudent(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	_, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)
	_, err = svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
	require.NoError(t, err)

	other := createTestStudent(t, fx.db, fx.class.ID)
	_, err = svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: other.ID})
	require.NoError(t, err)

	list, total, err := svc.ListByStudent(context.Background(), fx.student.ID, ListNotificationsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, list, 2)
}

func TestListForUserPagination(t *testing.T) {
	fx := newWorkflowFixture(t)
	svc, _ := newNotificationService(t, fx)

	for i := 0; i < 5; i++ {
		_, err := svc.SendRequest(context.Background(), fx.receptionist.ID, SendRequestInput{StudentID: fx.student.ID})
		require.NoError(t, err)
	}

	list, total, err := svc.ListForUser(context.Background(), fx.teacher.ID, ListNotificationsOptions{
		Page:     2,
		PageSize: 2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, total)
	require.Len(t, list, 2)
}
