package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/app/maintenance"
	iauth "github.com/schoolgate/schoolgate/internal/auth"
	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/internal/realtime"
	"github.com/schoolgate/schoolgate/internal/services"
	"github.com/schoolgate/schoolgate/pkg/errors"
	"github.com/schoolgate/schoolgate/pkg/response"
)

// NotificationHandler exposes the request/response workflow, the realtime
// stream and the manual retention trigger.
type NotificationHandler struct {
	notifications *services.NotificationService
	hub           *realtime.Hub
	jwt           *iauth.JWTService
	purger        *maintenance.Purger
}

func NewNotificationHandler(
	notifications *services.NotificationService,
	hub *realtime.Hub,
	jwt *iauth.JWTService,
	purger *maintenance.Purger,
) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		hub:           hub,
		jwt:           jwt,
		purger:        purger,
	}
}

type sendRequestRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Message   string `json:"message" validate:"omitempty,max=500"`
}

// POST /api/notifications/request
func (h *NotificationHandler) SendRequest(c *gin.Context) {
	var req sendRequestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	notification, err := h.notifications.SendRequest(requestContext(c), currentUserID(c), services.SendRequestInput{
		StudentID: req.StudentID,
		Message:   req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, notification)
}

type sendMessageRequest struct {
	ToUserID  string `json:"to_user_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=500"`
}

// POST /api/notifications/message
func (h *NotificationHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	notification, err := h.notifications.SendMessage(requestContext(c), currentUserID(c), services.SendMessageInput{
		ToUserID:  req.ToUserID,
		StudentID: req.StudentID,
		Message:   req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, notification)
}

// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	page, perPage := paginationFromQuery(c)

	unreadOnly := false
	if v := parseBoolQuery(c, "unread"); v != nil {
		unreadOnly = *v
	}

	notifications, total, err := h.notifications.ListForUser(requestContext(c), currentUserID(c), services.ListNotificationsOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.NotificationFilters{
			Status:     c.Query("status"),
			Type:       c.Query("type"),
			UnreadOnly: unreadOnly,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, notifications, response.NewMeta(len(notifications), page, perPage, total))
}

// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notifications.UnreadCount(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread": count})
}

// GET /api/notifications/student/:studentId
func (h *NotificationHandler) ListByStudent(c *gin.Context) {
	page, perPage := paginationFromQuery(c)

	notifications, total, err := h.notifications.ListByStudent(requestContext(c), c.Param("studentId"), services.ListNotificationsOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  services.NotificationFilters{Status: c.Query("status")},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, notifications, response.NewMeta(len(notifications), page, perPage, total))
}

// GET /api/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	notification, err := h.notifications.GetByID(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notification)
}

type respondRequest struct {
	Status          string `json:"status" validate:"omitempty,oneof=approved rejected absent present"`
	ResponseMessage string `json:"response_message" validate:"omitempty,max=500"`
	// Approved survives from the first mobile client: true meant the student
	// is absent, anything else meant present.
	Approved *bool `json:"approved"`
}

// PUT /api/notifications/:id/respond
func (h *NotificationHandler) Respond(c *gin.Context) {
	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}

	status := strings.TrimSpace(req.Status)
	if status == "" && req.Approved != nil {
		if *req.Approved {
			status = models.StatusAbsent
		} else {
			status = models.StatusPresent
		}
	}
	if status == "" {
		response.Error(c, errors.NewBadRequest("status is required"))
		return
	}

	notification, err := h.notifications.Respond(requestContext(c), currentUserID(c), c.Param("id"), services.RespondInput{
		Status:          status,
		ResponseMessage: req.ResponseMessage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notification)
}

// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notification, err := h.notifications.MarkRead(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, notification)
}

// DELETE /api/notifications/cleanup triggers the retention purge on demand.
func (h *NotificationHandler) Cleanup(c *gin.Context) {
	if h.purger == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	removed, err := h.purger.PurgeNotifications(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted_count": removed})
}

// GET /api/notifications/stream upgrades to the realtime WebSocket. Browsers
// cannot set headers on WebSocket dials, so the token also rides the query.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.hub.Serve(claims.UserID, c.Writer, c.Request)
}
