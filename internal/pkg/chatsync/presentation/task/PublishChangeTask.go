package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	pushport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/port"
	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/realtime"
)

// PublishChangeTaskType is the queue task carrying one row-change payload
// from a successful write to the fan-out side: the pub/sub channel feeding
// subscribed engines plus the websocket hub feeding browsers.
const PublishChangeTaskType = "sync:publish_change"

// NewPublishChangeTask encodes a change payload as a queue task.
func NewPublishChangeTask(p pushport.Payload) (qport.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return qport.Task{}, err
	}
	return qport.Task{Type: PublishChangeTaskType, Payload: b}, nil
}

// RegisterPublishChangeTask binds the fan-out handler to the worker server.
// The handler is idempotent: re-publishing a change is harmless because
// every consumer de-duplicates by row id.
func RegisterPublishChangeTask(srv qport.Server, pub pushport.Publisher, hub *realtime.Hub, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	srv.Register(PublishChangeTaskType, func(ctx context.Context, t qport.Task) error {
		var p pushport.Payload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payload: retrying cannot help.
			log.Error("publish task: malformed payload", "err", err)
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := pub.Publish(ctx, p); err != nil {
			return err
		}
		if hub != nil {
			hub.Broadcast(p.Table, t.Payload)
		}
		return nil
	})
}
