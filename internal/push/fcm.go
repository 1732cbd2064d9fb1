package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMConfig describes the Firebase Cloud Messaging credentials and defaults.
type FCMConfig struct {
	CredentialsFile  string
	ProjectID        string
	AndroidChannelID string
}

type fcmClient struct {
	messaging *messaging.Client
	channelID string
}

// NewFCMClient initialises a Firebase app from a service-account file and
// returns a Client backed by its messaging service.
func NewFCMClient(ctx context.Context, cfg FCMConfig) (Client, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase messaging: %w", err)
	}

	channelID := cfg.AndroidChannelID
	if channelID == "" {
		channelID = "school_notifications"
	}

	return &fcmClient{messaging: client, channelID: channelID}, nil
}

func (c *fcmClient) Send(ctx context.Context, msg Message) (string, error) {
	payload := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: c.channelID,
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	id, err := c.messaging.Send(ctx, payload)
	if err != nil {
		if messaging.IsUnregistered(err) {
			return "", ErrTokenUnregistered
		}
		return "", err
	}
	return id, nil
}
