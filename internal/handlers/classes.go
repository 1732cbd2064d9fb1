package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/services"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// ClassHandler exposes class management and roster operations.
type ClassHandler struct {
	classes  *services.ClassService
	students *services.StudentService
}

func NewClassHandler(classes *services.ClassService, students *services.StudentService) *ClassHandler {
	return &ClassHandler{classes: classes, students: students}
}

// GET /api/classes
func (h *ClassHandler) List(c *gin.Context) {
	page, perPage := paginationFromQuery(c)

	classes, total, err := h.classes.List(requestContext(c), services.ListClassesOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.ClassFilters{
			TeacherID: c.Query("teacher_id"),
			IsActive:  parseBoolQuery(c, "active"),
			Query:     c.Query("q"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, classes, response.NewMeta(len(classes), page, perPage, total))
}

// GET /api/classes/mine lists the classes of the authenticated teacher.
func (h *ClassHandler) ListMine(c *gin.Context) {
	classes, err := h.classes.ListByTeacher(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, classes)
}

// GET /api/classes/:id
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.classes.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, class)
}

type createClassRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description" validate:"omitempty,max=500"`
	TeacherID   string     `json:"teacher_id"`
	Capacity    int        `json:"capacity" validate:"omitempty,min=1,max=200"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// POST /api/classes
func (h *ClassHandler) Create(c *gin.Context) {
	var req createClassRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.CreateClassInput{
		Name:        req.Name,
		Description: req.Description,
		TeacherID:   req.TeacherID,
		Capacity:    req.Capacity,
		EndDate:     req.EndDate,
	}
	if req.StartDate != nil {
		input.StartDate = *req.StartDate
	}

	class, err := h.classes.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, class)
}

type updateClassRequest struct {
	Name        *string    `json:"name" validate:"omitempty,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=1,max=200"`
	IsActive    *bool      `json:"is_active"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// PUT /api/classes/:id
func (h *ClassHandler) Update(c *gin.Context) {
	var req updateClassRequest
	if !bindAndValidate(c, &req) {
		return
	}

	class, err := h.classes.Update(requestContext(c), c.Param("id"), services.UpdateClassInput{
		Name:        req.Name,
		Description: req.Description,
		Capacity:    req.Capacity,
		IsActive:    req.IsActive,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, class)
}

// DELETE /api/classes/:id
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "class deactivated"})
}

type assignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
}

// PUT /api/classes/:id/teacher
func (h *ClassHandler) AssignTeacher(c *gin.Context) {
	var req assignTeacherRequest
	if !bindAndValidate(c, &req) {
		return
	}

	class, err := h.classes.AssignTeacher(requestContext(c), c.Param("id"), req.TeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, class)
}

// DELETE /api/classes/:id/teacher
func (h *ClassHandler) UnassignTeacher(c *gin.Context) {
	class, err := h.classes.UnassignTeacher(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, class)
}

// GET /api/classes/:id/students
func (h *ClassHandler) ListStudents(c *gin.Context) {
	if _, err := h.classes.Get(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	roster, err := h.students.ListByClass(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roster)
}

type rosterRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// POST /api/classes/:id/students
func (h *ClassHandler) AddStudent(c *gin.Context) {
	var req rosterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.classes.AddStudent(requestContext(c), c.Param("id"), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student added"})
}

// DELETE /api/classes/:id/students/:studentId
func (h *ClassHandler) RemoveStudent(c *gin.Context) {
	if err := h.classes.RemoveStudent(requestContext(c), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student removed"})
}
