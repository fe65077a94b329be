package ton

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

const testDomain = "arena.example.com"

func signedProof(t *testing.T, payload string, ts int64) (WalletAccount, ConnectProof) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("генерация ключа: %v", err)
	}

	account := WalletAccount{
		Address:   "0:" + strings.Repeat("ab", 32),
		Chain:     "-239",
		PublicKey: hex.EncodeToString(pub),
	}
	proof := ConnectProof{
		Timestamp: ts,
		Domain:    Domain{LengthBytes: len(testDomain), Value: testDomain},
		Payload:   payload,
	}

	msg, err := buildProofMessage(account.Address, proof)
	if err != nil {
		t.Fatalf("сборка сообщения: %v", err)
	}
	proof.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))

	return account, proof
}

func TestVerifyProof_Valid(t *testing.T) {
	account, proof := signedProof(t, "payload-123", time.Now().Unix())

	if err := VerifyProof(account, proof, testDomain); err != nil {
		t.Fatalf("валидное доказательство отклонено: %v", err)
	}
}

func TestVerifyProof_WrongDomain(t *testing.T) {
	account, proof := signedProof(t, "payload-123", time.Now().Unix())

	if err := VerifyProof(account, proof, "evil.example.com"); err == nil {
		t.Fatal("доказательство для чужого домена принято")
	}
}

func TestVerifyProof_Expired(t *testing.T) {
	account, proof := signedProof(t, "payload-123", time.Now().Add(-time.Hour).Unix())

	if err := VerifyProof(account, proof, testDomain); err == nil {
		t.Fatal("просроченное доказательство принято")
	}
}

func TestVerifyProof_TamperedPayload(t *testing.T) {
	account, proof := signedProof(t, "payload-123", time.Now().Unix())
	proof.Payload = "payload-456"

	if err := VerifyProof(account, proof, testDomain); err == nil {
		t.Fatal("подмененная полезная нагрузка прошла проверку")
	}
}

func TestRawToUserFriendly_RoundTrip(t *testing.T) {
	raw := "0:" + strings.Repeat("1f", 32)

	friendly, err := RawToUserFriendly(raw, false)
	if err != nil {
		t.Fatalf("конвертация в user-friendly: %v", err)
	}
	if len(friendly) != 48 {
		t.Fatalf("неверная длина адреса: %d", len(friendly))
	}

	back, err := NormalizeAddress(friendly)
	if err != nil {
		t.Fatalf("нормализация: %v", err)
	}
	if back != raw {
		t.Fatalf("адрес не совпал после нормализации: %s != %s", back, raw)
	}
}

func TestValidateAddress(t *testing.T) {
	raw := "0:" + strings.Repeat("2c", 32)
	friendly, err := RawToUserFriendly(raw, true)
	if err != nil {
		t.Fatalf("конвертация в user-friendly: %v", err)
	}

	valid := []string{raw, friendly}
	for _, addr := range valid {
		if !ValidateAddress(addr) {
			t.Errorf("валидный адрес отклонен: %s", addr)
		}
	}

	invalid := []string{"", "nonsense", "EQ123", "2:" + strings.Repeat("ff", 3)}
	for _, addr := range invalid {
		if ValidateAddress(addr) {
			t.Errorf("невалидный адрес принят: %s", addr)
		}
	}
}

func TestGeneratePayload_Unique(t *testing.T) {
	a, err := GeneratePayload()
	if err != nil {
		t.Fatalf("генерация payload: %v", err)
	}
	b, err := GeneratePayload()
	if err != nil {
		t.Fatalf("генерация payload: %v", err)
	}
	if a == b {
		t.Fatal("payload повторился")
	}
	if len(a) != 32 {
		t.Fatalf("неверная длина payload: %d", len(a))
	}
}
