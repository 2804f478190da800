package models

import "time"

// AuditEntry is one row in the append-only audit trail. ActorUserID is
// empty for system-initiated actions such as webhook processing.
type AuditEntry struct {
	ID          string    `json:"id"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Action      string    `json:"action"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id,omitempty"`
	Details     string    `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
