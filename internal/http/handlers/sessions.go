package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"telegram_arena/internal/engine"
)

// Session возвращает партию по id. Живая партия отдается из движка
// срезом глазами запрашивающего, завершенная поднимается из базы
// вместе с расчетом.
func (h *Handler) Session(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	view, err := h.Manager.View(id, userID)
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	if errors.Is(err, engine.ErrNotParticipant) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	// в движке нет - ищем в базе
	ctx := c.Request.Context()
	sess, err := h.SessionRepo.GetByID(ctx, id)
	if err != nil || sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.PlayerA != userID && sess.PlayerB != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	resp := gin.H{"session": sess}
	if st, err := h.SettlementRepo.GetBySessionID(ctx, id); err == nil && st != nil {
		resp["settlement"] = st
	}

	c.JSON(http.StatusOK, resp)
}

// MySessions возвращает историю партий текущего пользователя
func (h *Handler) MySessions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	sessions, err := h.SessionRepo.HistoryByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// Limits отдает границы ставок и список доступных игр
func (h *Handler) Limits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"min_stake_nano": h.Cfg.MinStakeNano,
		"max_stake_nano": h.Cfg.MaxStakeNano,
		"rake_bps":       h.Cfg.RakeBps,
		"games":          []string{"chess", "dice", "coinflip", "rps", "roulette"},
	})
}
