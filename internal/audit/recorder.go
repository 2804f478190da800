// Package audit writes best-effort audit trail entries. Record returns
// the store error instead of swallowing it internally so call sites
// discard it visibly; auditing must never abort the operation it
// accompanies.
package audit

import (
	"context"
	"time"

	"formakit.app/cloud/internal/logger"
	"formakit.app/cloud/models"
	"formakit.app/cloud/storage"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

type Recorder struct {
	storage storage.Storage
	dropped atomic.Int64
}

func New(store storage.Storage) *Recorder {
	return &Recorder{storage: store}
}

// Record persists one audit row. actorUserID and targetID may be empty.
func (r *Recorder) Record(ctx context.Context, actorUserID, action, targetType, targetID, details string) error {
	entry := &models.AuditEntry{
		ID:          uuid.Must(uuid.NewRandom()).String(),
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Details:     details,
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.storage.SaveAuditEntry(ctx, entry); err != nil {
		r.dropped.Inc()
		logger.Warn("Audit write failed", logger.Fields{
			"error":       err.Error(),
			"action":      action,
			"target_type": targetType,
			"target_id":   targetID,
		})
		return err
	}

	return nil
}

// Dropped reports how many audit writes have failed since startup.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}
