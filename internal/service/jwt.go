package service

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"telegram_arena/internal/logger"
)

// срок жизни токена мини-приложения
const jwtTTL = 24 * time.Hour

var jwtSecret []byte

var (
	ErrTokenInvalid = errors.New("некорректный токен")
	ErrTokenExpired = errors.New("срок действия токена истек")
)

type authClaims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// читает секрет подписи из окружения, вызывается один раз при старте
func InitJWT() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Warn("JWT_SECRET не задан, авторизация по токену работать не будет")
	}
	jwtSecret = []byte(secret)
}

// выпускает токен с id пользователя внутри
func GenerateJWT(userID int64) (string, error) {
	now := time.Now()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(jwtTTL)),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// проверяет подпись и срок действия, возвращает id пользователя
func ParseJWT(tokenString string) (int64, error) {
	var claims authClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if claims.UserID <= 0 {
		return 0, ErrTokenInvalid
	}
	return claims.UserID, nil
}
