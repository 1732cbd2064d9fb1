package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schoolgate/schoolgate/internal/models"
)

func TestStudentServiceCreateNormalizesCode(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)

	student, err := svc.Create(context.Background(), CreateStudentInput{
		StudentCode: "  ab12cd ",
		Name:        "Amal",
		NameArabic:  "أمل",
		ClassID:     class.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "AB12CD", student.StudentCode)
	require.True(t, student.IsActive)
	require.False(t, student.EnrolledAt.IsZero())
	require.NotNil(t, student.Class)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "AB-12", Name: "X", ClassID: class.ID})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "AB12", ClassID: class.ID})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "AB12", Name: "X"})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "AB12", Name: "X", ClassID: "missing"})
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestStudentServiceCreateDuplicateCode(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "STU100", Name: "A", ClassID: class.ID})
	require.NoError(t, err)

	// Codes differing only in case collide after normalization.
	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "stu100", Name: "B", ClassID: class.ID})
	require.ErrorIs(t, err, ErrStudentCodeTaken)
	require.Equal(t, http.StatusBadRequest, ErrStudentCodeTaken.StatusCode)
}

func TestStudentServiceCreateEnforcesCapacity(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 1)
	createTestStudent(t, db, class.ID)

	_, err = svc.Create(context.Background(), CreateStudentInput{StudentCode: "OVER1", Name: "X", ClassID: class.ID})
	require.ErrorIs(t, err, ErrClassFull)
}

func TestStudentServiceGetByCode(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)
	created, err := svc.Create(context.Background(), CreateStudentInput{StudentCode: "CODE9", Name: "X", ClassID: class.ID})
	require.NoError(t, err)

	found, err := svc.GetByCode(context.Background(), " code9 ")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.NotNil(t, found.Class)

	_, err = svc.GetByCode(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceUpdateReassignsClass(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	origin := createTestClass(t, db, nil, 10)
	student := createTestStudent(t, db, origin.ID)

	full := createTestClass(t, db, nil, 1)
	createTestStudent(t, db, full.ID)

	_, err = svc.Update(context.Background(), student.ID, UpdateStudentInput{ClassID: &full.ID})
	require.ErrorIs(t, err, ErrClassFull)

	open := createTestClass(t, db, nil, 5)
	updated, err := svc.Update(context.Background(), student.ID, UpdateStudentInput{
		ClassID: &open.ID,
		Name:    ptrString("Renamed"),
	})
	require.NoError(t, err)
	require.Equal(t, open.ID, updated.ClassID)
	require.Equal(t, "Renamed", updated.Name)

	// The move must land on the row itself, not just the returned value.
	var stored models.Student
	require.NoError(t, db.First(&stored, "id = ?", student.ID).Error)
	require.Equal(t, open.ID, stored.ClassID)

	// Re-sending the same class id does not trip the capacity check.
	_, err = svc.Update(context.Background(), student.ID, UpdateStudentInput{ClassID: &open.ID})
	require.NoError(t, err)
}

func TestStudentServiceDeleteKeepsHistory(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)
	student := createTestStudent(t, db, class.ID)

	require.NoError(t, svc.Delete(context.Background(), student.ID))

	var reloaded models.Student
	require.NoError(t, db.First(&reloaded, "id = ?", student.ID).Error)
	require.False(t, reloaded.IsActive)
	require.Equal(t, class.ID, reloaded.ClassID)

	require.ErrorIs(t, svc.Delete(context.Background(), "missing-id"), ErrStudentNotFound)
}

func TestStudentServiceListFilters(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	classA := createTestClass(t, db, nil, 10)
	classB := createTestClass(t, db, nil, 10)
	createTestStudent(t, db, classA.ID)
	createTestStudent(t, db, classA.ID)
	dropped := createTestStudent(t, db, classB.ID)
	require.NoError(t, svc.Delete(context.Background(), dropped.ID))

	_, total, err := svc.List(context.Background(), ListStudentsOptions{
		Filters: StudentFilters{ClassID: classA.ID},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	_, total, err = svc.List(context.Background(), ListStudentsOptions{
		Filters: StudentFilters{IsActive: ptrBool(false)},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.List(context.Background(), ListStudentsOptions{
		Filters: StudentFilters{Query: dropped.StudentCode},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestStudentServiceListByClass(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewStudentService(db)
	require.NoError(t, err)
	class := createTestClass(t, db, nil, 10)
	createTestStudent(t, db, class.ID)
	gone := createTestStudent(t, db, class.ID)
	require.NoError(t, svc.Delete(context.Background(), gone.ID))

	roster, err := svc.ListByClass(context.Background(), class.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
}
