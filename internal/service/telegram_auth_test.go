package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

// создает валидную строку init_data для тестов той же цепочкой HMAC,
// что и ValidateTelegramInitData
func buildInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	dataString := strings.Join(parts, "\n")

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	secret := secretKey.Sum(nil)
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(dataString))
	hash := hex.EncodeToString(h.Sum(nil))

	vals := url.Values{}
	for k, v := range fields {
		vals.Add(k, v)
	}
	vals.Add("hash", hash)
	return vals.Encode()
}

func TestValidateTelegramInitData_Valid(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	}

	initData := buildInitData(t, botToken, fields)

	vals, ok := ValidateTelegramInitData(initData, botToken)
	if !ok {
		t.Fatalf("ожидалась валидная init data")
	}
	if vals.Get("user") == "" {
		t.Fatalf("ожидалось поле user в значениях")
	}
}

func TestValidateTelegramInitData_Tampered(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	}
	initData := buildInitData(t, botToken, fields)

	// изменяем данные, добавляя дополнительное поле (нарушит хэш)
	tampered := initData + "&x=1"

	_, ok := ValidateTelegramInitData(tampered, botToken)
	if ok {
		t.Fatalf("ожидалось, что измененная init data будет невалидной")
	}
}

func TestValidateTelegramInitData_StaleAuthDate(t *testing.T) {
	botToken := "test-bot-token"
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Add(-2*time.Hour).Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	}
	initData := buildInitData(t, botToken, fields)

	_, ok := ValidateTelegramInitData(initData, botToken)
	if ok {
		t.Fatalf("просроченная auth_date должна отклоняться")
	}
}

func TestParseTelegramUser(t *testing.T) {
	vals := url.Values{}
	vals.Set("user", `{"id":99,"username":"arena","first_name":"A"}`)

	u, err := ParseTelegramUser(vals)
	if err != nil {
		t.Fatalf("не удалось разобрать пользователя: %v", err)
	}
	if u.ID != 99 || u.Username != "arena" {
		t.Fatalf("неожиданные данные пользователя: %+v", u)
	}
}

func TestParseTelegramUser_Missing(t *testing.T) {
	if _, err := ParseTelegramUser(url.Values{}); err == nil {
		t.Fatalf("отсутствие поля user должно быть ошибкой")
	}
}

func TestParseTelegramUser_BadID(t *testing.T) {
	vals := url.Values{}
	vals.Set("user", `{"id":0,"username":"x"}`)
	if _, err := ParseTelegramUser(vals); err == nil {
		t.Fatalf("нулевой id должен быть ошибкой")
	}
}
