package middleware

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"telegram_arena/internal/logger"
)

// клиент лимитера; nil означает, что Redis недоступен и лимиты выключены
var limiterClient *redis.Client

// InitRedisRateLimiter поднимает подключение лимитера. Пустой addr
// означает взять REDIS_ADDR из окружения. Без Redis сервис работает,
// но без ограничения частоты запросов.
func InitRedisRateLimiter(addr, password string, db int) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("rate limiter: Redis недоступен, лимиты отключены", "addr", addr, "error", err)
		return
	}

	limiterClient = client
	logger.Info("rate limiter подключен к Redis", "addr", addr)
}

// RateLimit ограничивает число запросов на пользователя (или IP до
// авторизации) в скользящем окне. При сбое Redis пропускает запрос.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiterClient == nil {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if v, ok := c.Get("user_id"); ok {
			if id, ok := v.(int64); ok {
				subject = fmt.Sprintf("u%d", id)
			}
		}
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), subject)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := limiterClient.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			limiterClient.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
