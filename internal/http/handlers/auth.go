package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telegram_arena/internal/service"
)

type telegramAuthRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// AuthTelegram обменивает init_data мини-приложения Telegram на JWT.
// Подпись проверяется HMAC-ом на токене бота, пользователь создается
// при первом входе.
func (h *Handler) AuthTelegram(c *gin.Context) {
	var req telegramAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	values, ok := service.ValidateTelegramInitData(req.InitData, h.Cfg.BotToken)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
		return
	}

	tgUser, err := service.ParseTelegramUser(values)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.UserRepo.UpsertFromTelegram(ctx, tgUser.ID, tgUser.Username, tgUser.FirstName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if user.IsBanned {
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
		return
	}

	token, err := service.GenerateJWT(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	h.Audit.LogLogin(ctx, user.ID, c.ClientIP(), c.Request.UserAgent())

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":           user.ID,
			"tg_id":        user.TgID,
			"username":     user.Username,
			"first_name":   user.FirstName,
			"balance_nano": user.BalanceNano,
		},
	})
}
