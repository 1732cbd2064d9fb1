package push

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schoolgate/schoolgate/internal/database/testutil"
	"github.com/schoolgate/schoolgate/internal/models"
)

type fakeClient struct {
	lastMessage *Message
	messageID   string
	err         error
	calls       int
}

func (f *fakeClient) Send(_ context.Context, msg Message) (string, error) {
	f.calls++
	f.lastMessage = &msg
	if f.err != nil {
		return "", f.err
	}
	return f.messageID, nil
}

func strPtr(v string) *string { return &v }

func createPushUser(t *testing.T, svc *Service, token *string) models.User {
	t.Helper()
	user := models.User{
		Name:        "Push Target",
		Email:       "push-target@example.com",
		Password:    "ignored",
		Role:        models.RoleTeacher,
		IsActive:    true,
		DeviceToken: token,
	}
	require.NoError(t, svc.db.Create(&user).Error)
	return user
}

func TestNotifyUserDelivers(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	client := &fakeClient{messageID: "projects/x/messages/1"}
	svc := NewService(db, client)
	user := createPushUser(t, svc, strPtr("token-abc"))

	outcome, err := svc.NotifyUser(context.Background(), user.ID, "New Request", "body text", map[string]any{
		"notification_id": "n-1",
		"unread":          3,
	})
	require.NoError(t, err)
	require.True(t, outcome.Delivered)
	require.Equal(t, ReasonSent, outcome.Reason)
	require.Equal(t, "projects/x/messages/1", outcome.MessageID)

	require.NotNil(t, client.lastMessage)
	require.Equal(t, "token-abc", client.lastMessage.Token)
	require.Equal(t, "New Request", client.lastMessage.Title)
	require.Equal(t, "3", client.lastMessage.Data["unread"])
}

func TestNotifyUserWithoutToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	client := &fakeClient{}
	svc := NewService(db, client)
	user := createPushUser(t, svc, nil)

	outcome, err := svc.NotifyUser(context.Background(), user.ID, "Title", "Body", nil)
	require.NoError(t, err)
	require.False(t, outcome.Delivered)
	require.Equal(t, ReasonNoDeviceToken, outcome.Reason)
	require.Zero(t, client.calls)
}

func TestNotifyUserUnknownUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	client := &fakeClient{}
	svc := NewService(db, client)

	outcome, err := svc.NotifyUser(context.Background(), "00000000-0000-0000-0000-000000000000", "Title", "Body", nil)
	require.NoError(t, err)
	require.Equal(t, ReasonNoDeviceToken, outcome.Reason)
	require.Zero(t, client.calls)
}

func TestNotifyUserDisabled(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc := NewService(db, nil)
	require.False(t, svc.Enabled())

	outcome, err := svc.NotifyUser(context.Background(), "any", "Title", "Body", nil)
	require.NoError(t, err)
	require.False(t, outcome.Delivered)
	require.Equal(t, ReasonDisabled, outcome.Reason)
}

func TestNotifyUserClearsUnregisteredToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	client := &fakeClient{err: ErrTokenUnregistered}
	svc := NewService(db, client)
	user := createPushUser(t, svc, strPtr("stale-token"))

	outcome, err := svc.NotifyUser(context.Background(), user.ID, "Title", "Body", nil)
	require.NoError(t, err)
	require.False(t, outcome.Delivered)
	require.Equal(t, ReasonTokenUnregistered, outcome.Reason)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.Nil(t, reloaded.DeviceToken)

	// The next attempt skips the provider since no token remains.
	outcome, err = svc.NotifyUser(context.Background(), user.ID, "Title", "Body", nil)
	require.NoError(t, err)
	require.Equal(t, ReasonNoDeviceToken, outcome.Reason)
	require.Equal(t, 1, client.calls)
}

func TestNotifyUserProviderFailure(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	client := &fakeClient{err: errors.New("fcm unavailable")}
	svc := NewService(db, client)
	user := createPushUser(t, svc, strPtr("token-abc"))

	outcome, err := svc.NotifyUser(context.Background(), user.ID, "Title", "Body", nil)
	require.Error(t, err)
	require.False(t, outcome.Delivered)
	require.Equal(t, ReasonFailed, outcome.Reason)

	// Transient failures keep the token in place.
	var reloaded models.User
	require.NoError(t, db.First(&reloaded, "id = ?", user.ID).Error)
	require.NotNil(t, reloaded.DeviceToken)
}

func TestStringifyData(t *testing.T) {
	out := StringifyData(map[string]any{
		"str":   "value",
		"int":   42,
		"int64": int64(7),
		"float": 1.5,
		"bool":  true,
		"nil":   nil,
		"map":   map[string]string{"k": "v"},
	})

	require.Equal(t, "value", out["str"])
	require.Equal(t, "42", out["int"])
	require.Equal(t, "7", out["int64"])
	require.Equal(t, "1.5", out["float"])
	require.Equal(t, "true", out["bool"])
	require.Equal(t, "", out["nil"])
	require.JSONEq(t, `{"k":"v"}`, out["map"])

	require.Nil(t, StringifyData(nil))
	require.Nil(t, StringifyData(map[string]any{}))
}
