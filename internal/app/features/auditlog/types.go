// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/dashhub/internal/app/store/audit"
)

// listItem is one audit event as returned to the client.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"eventType"`
	ActorID       string            `json:"actorId,omitempty"`
	ActorName     string            `json:"actorName,omitempty"` // resolved from ActorID
	UserID        string            `json:"userId,omitempty"`
	UserName      string            `json:"userName,omitempty"` // resolved from UserID
	IP            string            `json:"ip"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failureReason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Items      []listItem `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Total      int64      `json:"total"`
}

var eventTypesByCategory = map[string][]string{
	audit.CategoryAuth: {
		audit.EventLoginSuccess,
		audit.EventLoginFailedInvalidAssertion,
		audit.EventLoginFailedUserInactive,
		audit.EventLoginFailedRateLimit,
	},
	audit.CategoryAdmin: {
		audit.EventUserCreated,
		audit.EventUserUpdated,
		audit.EventUserDisabled,
		audit.EventUserEnabled,
		audit.EventUserDeleted,
	},
}

func validCategory(c string) bool {
	_, ok := eventTypesByCategory[c]
	return ok
}

func validEventType(t string) bool {
	for _, types := range eventTypesByCategory {
		for _, et := range types {
			if et == t {
				return true
			}
		}
	}
	return false
}
