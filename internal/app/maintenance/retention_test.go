package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/database/testutil"
	"github.com/schoolgate/schoolgate/internal/models"
)

// workflowRefs holds the referenced rows a notification needs under
// foreign-key enforcement.
type workflowRefs struct {
	fromID    string
	toID      string
	studentID string
	classID   string
}

func seedWorkflowRefs(t *testing.T, db *gorm.DB) workflowRefs {
	t.Helper()

	receptionist := &models.User{
		Name: "Front Desk", Email: "desk@example.com", Password: "x", Role: models.RoleReceptionist,
	}
	teacher := &models.User{
		Name: "Homeroom Teacher", Email: "homeroom@example.com", Password: "x", Role: models.RoleTeacher,
	}
	require.NoError(t, db.Create(receptionist).Error)
	require.NoError(t, db.Create(teacher).Error)

	class := &models.Class{
		Name: "Grade 1-A", TeacherID: &teacher.ID, Capacity: 30, IsActive: true,
		StartDate: time.Now().UTC(),
	}
	require.NoError(t, db.Create(class).Error)

	student := &models.Student{
		StudentCode: "RET01", Name: "Retained Student", ClassID: class.ID,
		IsActive: true, EnrolledAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(student).Error)

	return workflowRefs{
		fromID:    receptionist.ID,
		toID:      teacher.ID,
		studentID: student.ID,
		classID:   class.ID,
	}
}

func (r workflowRefs) notification() *models.Notification {
	return &models.Notification{
		FromUserID:  r.fromID,
		ToUserID:    r.toID,
		StudentID:   r.studentID,
		ClassID:     r.classID,
		Type:        models.NotificationTypeRequest,
		Status:      models.StatusPending,
		RequestDate: time.Now().UTC(),
	}
}

func TestPurgeNotificationsRemovesEverything(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	refs := seedWorkflowRefs(t, db)
	purger := NewPurger(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(refs.notification()).Error)
	}

	removed, err := purger.PurgeNotifications(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)

	// A second run finds nothing.
	removed, err = purger.PurgeNotifications(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestCleanupResetTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	expired := time.Now().UTC().Add(-time.Hour)
	live := time.Now().UTC().Add(time.Hour)

	stale := &models.User{
		Name: "Stale", Email: "stale@example.com", Password: "x", Role: models.RoleTeacher,
		PasswordResetToken: "digest-a", PasswordResetExpires: &expired,
	}
	fresh := &models.User{
		Name: "Fresh", Email: "fresh@example.com", Password: "x", Role: models.RoleTeacher,
		PasswordResetToken: "digest-b", PasswordResetExpires: &live,
	}
	require.NoError(t, db.Create(stale).Error)
	require.NoError(t, db.Create(fresh).Error)

	purger := NewPurger(db)
	cleared, err := purger.CleanupResetTokens(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, cleared)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", stale.ID).Error)
	require.Empty(t, reloaded.PasswordResetToken)
	require.Nil(t, reloaded.PasswordResetExpires)

	var reloadedFresh models.User
	require.NoError(t, db.First(&reloadedFresh, "id = ?", fresh.ID).Error)
	require.Equal(t, "digest-b", reloadedFresh.PasswordResetToken)
}

func TestRunOnceCoversAllJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	refs := seedWorkflowRefs(t, db)
	purger := NewPurger(db)

	require.NoError(t, db.Create(refs.notification()).Error)

	require.NoError(t, purger.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	purger := NewPurger(db, WithPurgeSchedule("not-a-spec"))
	require.Error(t, purger.Start())
}

func TestStartStopLifecycle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	purger := NewPurger(db)
	require.NoError(t, purger.Start())
	<-purger.Stop().Done()
}
