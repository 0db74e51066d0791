package http

import (
	"log/slog"

	qport "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/realtime"
	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/presentation/controller"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the sync gateway endpoints under the given router
// group. It constructs per-endpoint controllers and binds them directly to
// routes.
func RegisterRoutes(g *gin.RouterGroup, engine *chatsync.Engine, client qport.Client, hub *realtime.Hub, log *slog.Logger) {
	listCtl := controller.NewConversationListController(engine)
	createCtl := controller.NewCreateConversationController(engine)
	getMsgCtl := controller.NewGetMessagesController(engine)
	sendMsgCtl := controller.NewSendMessageController(engine, client, log)
	markReadCtl := controller.NewMarkReadController(engine, client, log)
	socketCtl := controller.NewSyncSocketController(hub, log)

	// GET /api/v1/conversations -> materialized conversation list
	g.GET("/conversations", listCtl.Handle())

	// POST /api/v1/conversations -> create-or-get a conversation
	g.POST("/conversations", createCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> message log
	g.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	g.POST("/conversations/:conversationId/messages", sendMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/read -> mark incoming as read
	g.POST("/conversations/:conversationId/read", markReadCtl.Handle())

	// GET /api/v1/sync/ws -> websocket change feed
	g.GET("/sync/ws", socketCtl.Handle())
}
