package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/metrics"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/service"
)

// содержит зависимости для обработки WebSocket
type WSHandler struct {
	Hub      *Hub
	UserRepo *repository.UserRepository
	Balance  *service.BalanceService

	MinStakeNano int64
	MaxStakeNano int64
}

func NewWSHandler(hub *Hub, userRepo *repository.UserRepository, balance *service.BalanceService, minStake, maxStake int64) *WSHandler {
	return &WSHandler{
		Hub:          hub,
		UserRepo:     userRepo,
		Balance:      balance,
		MinStakeNano: minStake,
		MaxStakeNano: maxStake,
	}
}

func (h *WSHandler) HandleWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "токен обязателен"})
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный токен"})
			return
		}

		// получаем тип игры из query (по умолчанию: rps)
		gameType := c.Query("game")
		if gameType == "" {
			gameType = string(domain.GameTypeRPS)
		}
		if !domain.GameType(gameType).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "неизвестный тип игры"})
			return
		}

		// ставка в нанотонах из query; 0 означает бесплатную партию
		stakeNano := int64(0)
		if s := c.Query("stake_nano"); s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "неверная ставка"})
				return
			}
			stakeNano = n
		}
		if stakeNano > 0 && (stakeNano < h.MinStakeNano || stakeNano > h.MaxStakeNano) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ставка вне допустимых границ"})
			return
		}

		// bot=1 запускает партию против автомата без очереди
		bot := c.Query("bot") == "1"

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		user, err := h.UserRepo.GetByID(ctx, userID)
		if err != nil || user == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "пользователь не найден"})
			return
		}
		if user.IsBanned {
			c.JSON(http.StatusForbidden, gin.H{"error": "доступ ограничен"})
			return
		}

		// резервируем ставку до апгрейда: клиент без средств в очередь
		// не попадает
		if stakeNano > 0 {
			if _, err := h.Balance.HoldStake(ctx, userID, stakeNano, domain.GameType(gameType)); err != nil {
				if errors.Is(err, service.ErrInsufficientFunds) {
					c.JSON(http.StatusBadRequest, gin.H{"error": "недостаточно средств"})
					return
				}
				log.Printf("HandleWS: не удалось зарезервировать ставку пользователя=%d: %v", userID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "не удалось зарезервировать ставку"})
				return
			}
			metrics.StakesHeldNano.Add(float64(stakeNano))
		}

		allowedOrigin := os.Getenv("ALLOWED_ORIGIN")
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("ошибка обновления ws:", err)
			// возвращаем ставку, если обновление WebSocket не удалось
			if stakeNano > 0 {
				if _, rerr := h.Balance.RefundStake(context.Background(), userID, stakeNano, "upgrade_failed"); rerr != nil {
					log.Printf("HandleWS: возврат ставки пользователю=%d не прошел: %v", userID, rerr)
				}
			}
			return
		}

		// создаем клиента и запускаем его обработчики и матчмейкинг
		client := NewClient(userID, conn, h.Hub, gameType, stakeNano, bot)
		go client.Run()
	}
}
