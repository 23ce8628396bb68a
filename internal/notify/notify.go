// Package notify is the boundary to the notification delivery service.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/01moynul/creator-commerce/internal/models"
)

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{log: logger.WithField("component", "notify")}
}

func (n *LogNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.log.WithFields(logrus.Fields{
		"user_id": msg.UserID,
		"link":    msg.Link,
	}).Info(msg.Message)
	return nil
}
