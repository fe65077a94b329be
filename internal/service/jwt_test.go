package service

import (
	"errors"
	"testing"
)

func TestJWT_RoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	InitJWT()

	token, err := GenerateJWT(42)
	if err != nil {
		t.Fatalf("не удалось выпустить токен: %v", err)
	}

	userID, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("не удалось разобрать токен: %v", err)
	}
	if userID != 42 {
		t.Fatalf("ожидался id 42, получен %d", userID)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-one")
	InitJWT()
	token, err := GenerateJWT(7)
	if err != nil {
		t.Fatalf("не удалось выпустить токен: %v", err)
	}

	t.Setenv("JWT_SECRET", "secret-two")
	InitJWT()
	if _, err := ParseJWT(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("токен с чужой подписью должен отклоняться, получено: %v", err)
	}
}

func TestJWT_Garbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	InitJWT()
	if _, err := ParseJWT("not-a-token"); err == nil {
		t.Fatalf("мусорная строка должна отклоняться")
	}
}
