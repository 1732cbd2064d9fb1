package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/database/testutil"
	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/pkg/crypto"
)

var testSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrBool(v bool) *bool       { return &v }

func createTestUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword("Password123!")
	require.NoError(t, err)

	seq := testSeq.Add(1)
	user := &models.User{
		Name:     fmt.Sprintf("%s %d", role, seq),
		Email:    fmt.Sprintf("%s-%d@example.com", role, seq),
		Password: hashed,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestClass(t *testing.T, db *gorm.DB, teacherID *string, capacity int) *models.Class {
	t.Helper()

	class := &models.Class{
		Name:      fmt.Sprintf("Class %d", testSeq.Add(1)),
		TeacherID: teacherID,
		Capacity:  capacity,
		IsActive:  true,
		StartDate: time.Now().UTC(),
	}
	require.NoError(t, db.Create(class).Error)
	return class
}

func createTestStudent(t *testing.T, db *gorm.DB, classID string) *models.Student {
	t.Helper()

	seq := testSeq.Add(1)
	student := &models.Student{
		StudentCode: fmt.Sprintf("STU%04d", seq),
		Name:        fmt.Sprintf("Student %d", seq),
		ClassID:     classID,
		IsActive:    true,
		EnrolledAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(student).Error)
	return student
}

// workflowFixture wires a receptionist, a teacher owning a class and one
// enrolled student, the minimum cast for a request round trip.
type workflowFixture struct {
	db           *gorm.DB
	receptionist *models.User
	teacher      *models.User
	class        *models.Class
	student      *models.Student
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	db := newTestDB(t)
	receptionist := createTestUser(t, db, models.RoleReceptionist)
	teacher := createTestUser(t, db, models.RoleTeacher)
	class := createTestClass(t, db, &teacher.ID, 10)
	student := createTestStudent(t, db, class.ID)

	return &workflowFixture{
		db:           db,
		receptionist: receptionist,
		teacher:      teacher,
		class:        class,
		student:      student,
	}
}
