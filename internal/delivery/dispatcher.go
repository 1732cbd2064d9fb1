package delivery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schoolgate/schoolgate/internal/models"
	"github.com/schoolgate/schoolgate/internal/push"
	"github.com/schoolgate/schoolgate/internal/realtime"
	"github.com/schoolgate/schoolgate/pkg/logger"
	"github.com/schoolgate/schoolgate/pkg/metrics"
)

const dispatchTimeout = 10 * time.Second

// Emitter routes realtime events to connected users.
type Emitter interface {
	EmitToUser(userID string, event realtime.Event)
}

// Pusher delivers push notifications to users by stored device token.
type Pusher interface {
	NotifyUser(ctx context.Context, userID, title, body string, data map[string]any) (push.Outcome, error)
}

// Dispatcher fans workflow events out to realtime sessions and push devices.
// Every dispatch runs detached from the request that caused it: delivery
// failures are logged and never surface to the caller.
type Dispatcher struct {
	emitter Emitter
	pusher  Pusher
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher constructs a dispatcher. Either collaborator may be nil; the
// corresponding channel is skipped.
func NewDispatcher(emitter Emitter, pusher Pusher) *Dispatcher {
	return &Dispatcher{
		emitter: emitter,
		pusher:  pusher,
		log:     logger.WithModule("delivery"),
	}
}

// NotificationCreated notifies the recipient of a new pending notification.
func (d *Dispatcher) NotificationCreated(n *models.Notification) {
	if n == nil {
		return
	}
	snapshot := *n
	metrics.NotificationEvents.WithLabelValues("created").Inc()

	title := "New request"
	if snapshot.Type == models.NotificationTypeMessage {
		title = "New message"
	}
	body := snapshot.Message
	if body == "" {
		body = snapshot.Summary()
	}

	d.dispatch(func(ctx context.Context) {
		d.emit(snapshot.ToUserID, realtime.Event{Event: "notification:new", Data: snapshot})
		d.push(ctx, snapshot.ToUserID, title, body, &snapshot)
	})
}

// NotificationResponded notifies the original requester that a response landed.
func (d *Dispatcher) NotificationResponded(n *models.Notification) {
	if n == nil {
		return
	}
	snapshot := *n
	metrics.NotificationEvents.WithLabelValues("responded").Inc()

	body := snapshot.ResponseMessage
	if body == "" {
		body = snapshot.Summary()
	}

	d.dispatch(func(ctx context.Context) {
		d.emit(snapshot.FromUserID, realtime.Event{Event: "notification:updated", Data: snapshot})
		d.push(ctx, snapshot.FromUserID, "Request update", body, &snapshot)
	})
}

// NotificationRead tells the sender their notification was seen. Read
// receipts stay realtime-only; they never page a device.
func (d *Dispatcher) NotificationRead(n *models.Notification) {
	if n == nil {
		return
	}
	snapshot := *n
	metrics.NotificationEvents.WithLabelValues("read").Inc()

	d.dispatch(func(ctx context.Context) {
		d.emit(snapshot.FromUserID, realtime.Event{Event: "notification:read", Data: map[string]any{
			"id":      snapshot.ID,
			"is_read": true,
		}})
	})
}

// Wait blocks until all in-flight dispatches finish. Used during shutdown so
// accepted events drain before the process exits.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (d *Dispatcher) emit(userID string, event realtime.Event) {
	if d.emitter == nil || userID == "" {
		return
	}
	d.emitter.EmitToUser(userID, event)
}

func (d *Dispatcher) push(ctx context.Context, userID, title, body string, n *models.Notification) {
	if d.pusher == nil || userID == "" {
		return
	}

	data := map[string]any{
		"notification_id": n.ID,
		"type":            n.Type,
		"status":          n.Status,
	}
	if n.StudentID != "" {
		data["student_id"] = n.StudentID
	}

	outcome, err := d.pusher.NotifyUser(ctx, userID, title, body, data)
	if err != nil {
		d.log.Warn("push delivery failed",
			zap.String("user_id", userID),
			zap.String("notification_id", n.ID),
			zap.Error(err))
		return
	}
	if !outcome.Delivered && outcome.Reason != push.ReasonDisabled {
		d.log.Debug("push delivery skipped",
			zap.String("user_id", userID),
			zap.String("reason", outcome.Reason))
	}
}
