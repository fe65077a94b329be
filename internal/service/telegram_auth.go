package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// проверяет HMAC Telegram WebApp init_data и убеждается,
// что auth_date недавний (в течение 1 часа) для предотвращения replay-атак
func ValidateTelegramInitData(initData, botToken string) (url.Values, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, false
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, false
	}
	values.Del("hash")

	var dataCheck []string
	for k, v := range values {
		dataCheck = append(dataCheck, k+"="+strings.Join(v, ""))
	}

	sort.Strings(dataCheck)
	dataString := strings.Join(dataCheck, "\n")

	// Telegram WebApp использует HMAC с ключом "WebAppData"
	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	secret := secretKey.Sum(nil)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataString))

	calculated := h.Sum(nil)
	provided, err := hex.DecodeString(hash)
	if err != nil {
		return nil, false
	}

	if !hmac.Equal(calculated, provided) {
		return nil, false
	}

	// проверка актуальности: требуем auth_date в течение последнего часа
	authDateStr := values.Get("auth_date")
	if authDateStr == "" {
		return nil, false
	}
	authDate, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, false
	}

	now := time.Now().Unix()
	// разрешаем небольшую рассинхронизацию часов, но отклоняем всё старше 1 часа
	if now-authDate > 3600 || authDate-now > 300 {
		return nil, false
	}

	return values, true
}

// данные пользователя из поля user в init_data
type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// извлекает пользователя из уже проверенной init_data
func ParseTelegramUser(values url.Values) (*TelegramUser, error) {
	raw := values.Get("user")
	if raw == "" {
		return nil, errors.New("init_data без поля user")
	}

	var u TelegramUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("разбор поля user: %w", err)
	}
	if u.ID <= 0 {
		return nil, errors.New("некорректный id пользователя в init_data")
	}
	return &u, nil
}