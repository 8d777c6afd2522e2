package services

import (
	"fmt"

	"github.com/containrrr/shoutrrr"

	"github.com/staffdeck/staffdeck/internal/logger"
	"github.com/staffdeck/staffdeck/internal/models"
)

// AlertService pushes critical audit entries to operator-configured
// notification destinations (any shoutrrr URL: discord, slack, smtp, ...).
// Delivery is fire-and-forget; failures are logged and never retried.
type AlertService struct {
	urls []string
}

func NewAlertService(urls []string) *AlertService {
	return &AlertService{urls: urls}
}

// Configured reports whether any destination is set.
func (s *AlertService) Configured() bool {
	return len(s.urls) > 0
}

// NotifyCritical sends a summary of a critical entry to every destination.
func (s *AlertService) NotifyCritical(entry models.AuditEntry) {
	if len(s.urls) == 0 {
		return
	}

	actor := "unauthenticated"
	if entry.ActorID != nil {
		actor = fmt.Sprintf("user %d", *entry.ActorID)
	}
	msg := fmt.Sprintf("Critical audit event: %s on %s by %s (%s) at %s",
		entry.Action, entry.Entity, actor, entry.IPAddress,
		entry.Timestamp.Format("2006-01-02 15:04:05"))

	for _, url := range s.urls {
		go func(u string) {
			if err := shoutrrr.Send(u, msg); err != nil {
				logger.Log().WithError(err).Warn("failed to deliver critical audit alert")
			}
		}(url)
	}
}
