package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telegram_arena/internal/http/handlers"
	"telegram_arena/internal/http/middleware"
	"telegram_arena/internal/ws"
)

// RegisterRoutes собирает все маршруты API. Сам /metrics вешается
// в main, чтобы не тащить prometheus сюда.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, wsHandler *ws.WSHandler) {
	tonHandler := handlers.NewTonHandler(h)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.Version})
	})

	// вход по init_data не требует JWT, но жестко лимитируется
	api := r.Group("/api")
	api.POST("/auth/telegram", middleware.RateLimit(10, time.Minute), h.AuthTelegram)

	authed := api.Group("", middleware.Auth(), middleware.RateLimit(120, time.Minute))
	{
		authed.GET("/me", h.Me)
		authed.GET("/me/transactions", h.MyTransactions)

		authed.GET("/sessions", h.MySessions)
		authed.GET("/sessions/:id", h.Session)
		authed.GET("/limits", h.Limits)
		authed.GET("/leaderboard", h.Leaderboard)

		tonGroup := authed.Group("/ton")
		{
			tonGroup.GET("/config", tonHandler.GetTonConfig)
			tonGroup.GET("/proof-payload", tonHandler.GetProofPayload)
			tonGroup.POST("/wallet", tonHandler.ConnectWallet)
			tonGroup.GET("/wallet", tonHandler.GetWallet)
			tonGroup.DELETE("/wallet", tonHandler.DisconnectWallet)
			tonGroup.GET("/payouts", tonHandler.MyPayouts)
		}
	}

	// websocket авторизуется токеном в query, JWT-мидлварь ему не нужна
	r.GET("/ws", wsHandler.HandleWS())
}
