package service

import (
	"context"

	"invest-ledger/internal/core/domain"
	"invest-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// emitNotice records a notification best-effort. A failed emit never rolls
// back the financial change that triggered it.
func emitNotice(ctx context.Context, log zerolog.Logger, emitter ports.NotificationEmitter,
	userID uuid.UUID, title, message string, priority domain.NotificationPriority, metadata map[string]string) {
	if err := emitter.Emit(ctx, userID, title, message, priority, metadata); err != nil {
		log.Warn().Err(err).
			Str("user_id", userID.String()).
			Str("title", title).
			Msg("failed to emit notification")
	}
}
