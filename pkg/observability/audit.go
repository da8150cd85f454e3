package observability

import (
	"context"
	"log/slog"

	"github.com/scalux/scalux/pkg/domain"
)

// AuditHooks logs every transition at info level and every rejection at
// warn level.
func AuditHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "mode_transition",
				"session_id", e.SessionID,
				"kind", string(e.Kind),
				"from", string(e.From),
				"mode", string(e.To),
			)
		},
		OnReject: func(ctx context.Context, e *domain.RejectEvent) {
			logger.WarnContext(ctx, "mode_transition_rejected",
				"session_id", e.SessionID,
				"kind", string(e.Kind),
				"mode", string(e.Mode),
				"target", e.Target,
				"reason", Reason(e.Err),
				"err", e.Err,
			)
		},
	}
}
