package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invest-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationEmitter by appending
// notice records for the delivery collaborator to pick up. The core never
// waits on delivery.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Emit writes a notification record.
func (r *NotificationRepo) Emit(ctx context.Context, userID uuid.UUID, title, message string, priority domain.NotificationPriority, metadata map[string]string) error {
	var meta []byte
	if metadata != nil {
		var err error
		meta, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal notification metadata: %w", err)
		}
	}

	query := `INSERT INTO notifications (id, user_id, title, message, priority, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`

	_, err := r.pool.Exec(ctx, query, uuid.New(), userID, title, message, priority, meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
