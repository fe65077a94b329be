package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Me возвращает профиль текущего пользователя: баланс, статистику
// и привязанный кошелек, если он есть.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.UserRepo.GetByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	resp := gin.H{
		"id":                user.ID,
		"tg_id":             user.TgID,
		"username":          user.Username,
		"first_name":        user.FirstName,
		"balance_nano":      user.BalanceNano,
		"games_played":      user.GamesPlayed,
		"wins":              user.Wins,
		"losses":            user.Losses,
		"total_won_nano":    user.TotalWonNano,
		"total_staked_nano": user.TotalStakedNano,
		"created_at":        user.CreatedAt,
	}

	// кошелек опционален, его отсутствие не ошибка
	if wallet, err := h.WalletRepo.GetByUserID(ctx, userID); err == nil && wallet != nil {
		resp["wallet"] = gin.H{
			"address":     wallet.Address,
			"is_verified": wallet.IsVerified,
			"linked_at":   wallet.LinkedAt,
		}
	}

	c.JSON(http.StatusOK, resp)
}

// MyTransactions возвращает последние движения по балансу
func (h *Handler) MyTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txs, err := h.Balance.GetTransactionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// Leaderboard возвращает лучших игроков по сумме выигрышей
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := 10
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	users, err := h.UserRepo.Top(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	top := make([]gin.H, 0, len(users))
	for i, u := range users {
		top = append(top, gin.H{
			"rank":           i + 1,
			"username":       u.Username,
			"first_name":     u.FirstName,
			"wins":           u.Wins,
			"games_played":   u.GamesPlayed,
			"total_won_nano": u.TotalWonNano,
		})
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}
