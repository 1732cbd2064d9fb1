package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/services"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// StudentHandler exposes student enrolment and lookup.
type StudentHandler struct {
	students *services.StudentService
}

func NewStudentHandler(students *services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// GET /api/students
func (h *StudentHandler) List(c *gin.Context) {
	page, perPage := paginationFromQuery(c)

	students, total, err := h.students.List(requestContext(c), services.ListStudentsOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.StudentFilters{
			ClassID:  c.Query("class_id"),
			IsActive: parseBoolQuery(c, "active"),
			Query:    c.Query("q"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, students, response.NewMeta(len(students), page, perPage, total))
}

// GET /api/students/:id
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, student)
}

// GET /api/students/code/:code supports the front-desk badge lookup.
func (h *StudentHandler) GetByCode(c *gin.Context) {
	student, err := h.students.GetByCode(requestContext(c), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, student)
}

type createStudentRequest struct {
	StudentCode string     `json:"student_code" validate:"required,max=32"`
	Name        string     `json:"name" validate:"required,max=100"`
	NameEnglish string     `json:"name_english" validate:"omitempty,max=100"`
	NameArabic  string     `json:"name_arabic" validate:"omitempty,max=100"`
	ClassID     string     `json:"class_id" validate:"required"`
	EnrolledAt  *time.Time `json:"enrolled_at"`
}

// POST /api/students
func (h *StudentHandler) Create(c *gin.Context) {
	var req createStudentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.CreateStudentInput{
		StudentCode: req.StudentCode,
		Name:        req.Name,
		NameEnglish: req.NameEnglish,
		NameArabic:  req.NameArabic,
		ClassID:     req.ClassID,
	}
	if req.EnrolledAt != nil {
		input.EnrolledAt = *req.EnrolledAt
	}

	student, err := h.students.Create(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, student)
}

type updateStudentRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	NameEnglish *string `json:"name_english" validate:"omitempty,max=100"`
	NameArabic  *string `json:"name_arabic" validate:"omitempty,max=100"`
	ClassID     *string `json:"class_id"`
	IsActive    *bool   `json:"is_active"`
}

// PUT /api/students/:id
func (h *StudentHandler) Update(c *gin.Context) {
	var req updateStudentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	student, err := h.students.Update(requestContext(c), c.Param("id"), services.UpdateStudentInput{
		Name:        req.Name,
		NameEnglish: req.NameEnglish,
		NameArabic:  req.NameArabic,
		ClassID:     req.ClassID,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, student)
}

// DELETE /api/students/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student deactivated"})
}
