package push

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/pkg/logger"
	"github.com/schoolgate/schoolgate/pkg/metrics"
)

// Outcome reports how a push delivery attempt concluded. A missing device
// token or a disabled provider is a normal outcome, not an error.
type Outcome struct {
	Delivered bool
	Reason    string
	MessageID string
}

const (
	ReasonSent              = "sent"
	ReasonDisabled          = "disabled"
	ReasonNoDeviceToken     = "no_device_token"
	ReasonTokenUnregistered = "token_unregistered"
	ReasonFailed            = "failed"
)

// Service sends push notifications to users by their stored device token and
// self-heals stale tokens reported by the provider.
type Service struct {
	db     *gorm.DB
	client Client
	log    *zap.Logger
}

// NewService constructs a push service. A nil client disables delivery; every
// attempt then reports the disabled outcome.
func NewService(db *gorm.DB, client Client) *Service {
	return &Service{
		db:     db,
		client: client,
		log:    logger.WithModule("push"),
	}
}

// Enabled reports whether a provider client is configured.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// NotifyUser delivers a push notification to the supplied user. Data values
// are coerced to strings before handing the message to the provider.
func (s *Service) NotifyUser(ctx context.Context, userID, title, body string, data map[string]any) (Outcome, error) {
	if s.client == nil {
		metrics.PushDeliveries.WithLabelValues(ReasonDisabled).Inc()
		return Outcome{Reason: ReasonDisabled}, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "device_token").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PushDeliveries.WithLabelValues(ReasonNoDeviceToken).Inc()
			return Outcome{Reason: ReasonNoDeviceToken}, nil
		}
		metrics.PushDeliveries.WithLabelValues(ReasonFailed).Inc()
		return Outcome{Reason: ReasonFailed}, err
	}

	if user.DeviceToken == nil || *user.DeviceToken == "" {
		metrics.PushDeliveries.WithLabelValues(ReasonNoDeviceToken).Inc()
		return Outcome{Reason: ReasonNoDeviceToken}, nil
	}

	msg := Message{
		Token: *user.DeviceToken,
		Title: title,
		Body:  body,
		Data:  StringifyData(data),
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, ErrTokenUnregistered) {
			s.clearToken(ctx, userID)
			metrics.PushDeliveries.WithLabelValues(ReasonFailed).Inc()
			return Outcome{Reason: ReasonTokenUnregistered}, nil
		}
		metrics.PushDeliveries.WithLabelValues(ReasonFailed).Inc()
		return Outcome{Reason: ReasonFailed}, err
	}

	metrics.PushDeliveries.WithLabelValues(ReasonSent).Inc()
	return Outcome{Delivered: true, Reason: ReasonSent, MessageID: id}, nil
}

// clearToken removes a token the provider reported as unregistered so the next
// attempt skips the provider entirely.
func (s *Service) clearToken(ctx context.Context, userID string) {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"device_token":         nil,
			"device_platform":      "",
			"device_registered_at": nil,
		}).Error
	if err != nil {
		s.log.Warn("failed to clear unregistered device token",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	s.log.Info("cleared unregistered device token", zap.String("user_id", userID))
}
