package domain

import (
	"context"
	"time"
)

// TransitionKind names the operation that moved a session.
type TransitionKind string

const (
	KindStart TransitionKind = "start"
	KindSet   TransitionKind = "set"
	KindMacro TransitionKind = "macro"
	KindSub   TransitionKind = "sub"
	KindUndo  TransitionKind = "undo"
	KindRedo  TransitionKind = "redo"
)

// TransitionEvent is emitted after a session's mode change has been persisted.
type TransitionEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Kind      TransitionKind `json:"kind"`
	From      Mode           `json:"from,omitempty"`
	To        Mode           `json:"to"`
	Diff      *StateDiff     `json:"diff,omitempty"`
}

// RejectEvent is emitted when a requested mode change was refused.
type RejectEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Kind      TransitionKind `json:"kind"`
	Mode      Mode           `json:"mode,omitempty"`
	Target    string         `json:"target,omitempty"`
	Err       error          `json:"-"`
}

// LifecycleHooks defines callbacks for session observability.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnReject     func(context.Context, *RejectEvent)
}

// MergeHooks fans each callback out to every non-nil hook in order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	var onTransition []func(context.Context, *TransitionEvent)
	var onReject []func(context.Context, *RejectEvent)
	for _, h := range hooks {
		if h.OnTransition != nil {
			onTransition = append(onTransition, h.OnTransition)
		}
		if h.OnReject != nil {
			onReject = append(onReject, h.OnReject)
		}
	}
	if len(onTransition) > 0 {
		merged.OnTransition = func(ctx context.Context, e *TransitionEvent) {
			for _, fn := range onTransition {
				fn(ctx, e)
			}
		}
	}
	if len(onReject) > 0 {
		merged.OnReject = func(ctx context.Context, e *RejectEvent) {
			for _, fn := range onReject {
				fn(ctx, e)
			}
		}
	}
	return merged
}
