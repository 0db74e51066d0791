package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/events"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/presentation/task"
)

// statusFor maps the engine's failure taxonomy onto HTTP statuses. Policy
// blocks and validation failures stay distinguishable so the UI can word
// them differently.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, domain.ErrPolicyBlocked):
		return http.StatusForbidden, "policy_blocked"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusBadGateway, "transport_failure"
	}
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

// enqueueMessageChange hands a message row change to the fan-out pipeline.
// Best-effort: the write already succeeded, so a failed enqueue only delays
// other sessions until their next reconciliation.
func enqueueMessageChange(ctx context.Context, q qport.Client, log *slog.Logger, ev pushport.EventType, old, new *domain.Message) {
	if q == nil {
		return
	}
	payload := pushport.Payload{Event: ev, Table: events.TableMessages}
	if b, err := json.Marshal(new); err == nil {
		payload.New = b
	} else {
		log.Error("gateway: encode change payload", "err", err)
		return
	}
	if old != nil {
		if b, err := json.Marshal(old); err == nil {
			payload.Old = b
		}
	}

	t, err := task.NewPublishChangeTask(payload)
	if err != nil {
		log.Error("gateway: build change task", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := q.Enqueue(ctx, t, qport.EnqueueOption{Queue: "sync", MaxRetry: 10}); err != nil {
		log.Warn("gateway: enqueue change failed", "err", err)
	}
}
