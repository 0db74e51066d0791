package v1

import (
	"log/slog"

	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/realtime"
	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"
	httpHandler "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/presentation/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, engine *chatsync.Engine, client qport.Client, hub *realtime.Hub, log *slog.Logger) {
	v1 := r.Group("/api/v1")
	// Pass the engine, queue client and websocket hub down to the HTTP layer
	httpHandler.RegisterRoutes(v1, engine, client, hub, log)
}
