package ton

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// верификация доказательства TON Connect
// основано на: https://docs.ton.org/develop/dapps/ton-connect/sign

// представляет доказательство, отправленное TON Connect
type ConnectProof struct {
	Timestamp int64  `json:"timestamp"`
	Domain    Domain `json:"domain"`
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
}

// представляет доменную часть доказательства
type Domain struct {
	LengthBytes int    `json:"lengthBytes"`
	Value       string `json:"value"`
}

// представляет информацию об аккаунте кошелька из TON Connect
type WalletAccount struct {
	Address   string `json:"address"`
	Chain     string `json:"chain"`
	PublicKey string `json:"publicKey"`
}

// проверяет доказательство владения кошельком TON Connect
func VerifyProof(account WalletAccount, proof ConnectProof, allowedDomain string) error {
	// 1. проверяем временную метку (доказательство должно быть свежим)
	proofTime := time.Unix(proof.Timestamp, 0)
	if time.Since(proofTime) > ProofTTL {
		return errors.New("срок действия доказательства истек")
	}

	// 2. проверяем домен
	if proof.Domain.Value != allowedDomain {
		return fmt.Errorf("несоответствие домена: ожидался %s, получен %s", allowedDomain, proof.Domain.Value)
	}

	// 3. декодируем публичный ключ
	pubKeyBytes, err := hex.DecodeString(account.PublicKey)
	if err != nil {
		return fmt.Errorf("неверный формат публичного ключа: %w", err)
	}

	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return errors.New("неверный размер публичного ключа")
	}

	// 4. декодируем подпись
	signatureBytes, err := base64.StdEncoding.DecodeString(proof.Signature)
	if err != nil {
		return fmt.Errorf("неверный формат подписи: %w", err)
	}

	// 5. собираем сообщение для проверки
	message, err := buildProofMessage(account.Address, proof)
	if err != nil {
		return fmt.Errorf("сборка сообщения доказательства: %w", err)
	}

	// 6. проверяем подпись
	if !ed25519.Verify(pubKeyBytes, message, signatureBytes) {
		return errors.New("неверная подпись")
	}

	return nil
}

// собирает сообщение, которое было подписано
func buildProofMessage(addr string, proof ConnectProof) ([]byte, error) {
	// формат сообщения по спецификации ton-proof-item-v2:
	// "ton-proof-item-v2/" + workchain (4 байта BE) + address_hash (32 байта)
	// + domain_len (4 байта LE) + domain + timestamp (8 байт LE) + payload

	workchain, hash, err := splitRawAddress(addr)
	if err != nil {
		return nil, err
	}

	var message []byte
	message = append(message, []byte("ton-proof-item-v2/")...)

	wcBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(wcBytes, uint32(workchain))
	message = append(message, wcBytes...)
	message = append(message, hash...)

	// длина домена (4 байта, little endian)
	domainLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(domainLen, uint32(proof.Domain.LengthBytes))
	message = append(message, domainLen...)
	message = append(message, []byte(proof.Domain.Value)...)

	// временная метка (8 байт, little endian)
	timestamp := make([]byte, 8)
	binary.LittleEndian.PutUint64(timestamp, uint64(proof.Timestamp))
	message = append(message, timestamp...)

	// полезная нагрузка
	message = append(message, []byte(proof.Payload)...)

	// подписывается sha256(0xffff ++ "ton-connect" ++ sha256(message))
	msgHash := sha256.Sum256(message)

	full := []byte{0xff, 0xff}
	full = append(full, []byte("ton-connect")...)
	full = append(full, msgHash[:]...)
	finalHash := sha256.Sum256(full)

	return finalHash[:], nil
}

// разбирает адрес на workchain и 32-байтовый хэш; принимает оба формата
func splitRawAddress(addr string) (int32, []byte, error) {
	raw := addr
	if !strings.Contains(raw, ":") {
		normalized, err := NormalizeAddress(addr)
		if err != nil {
			return 0, nil, err
		}
		raw = normalized
	}

	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, nil, errors.New("неверный формат адреса")
	}

	workchain, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return 0, nil, fmt.Errorf("неверный workchain: %w", err)
	}

	hash, err := hex.DecodeString(parts[1])
	if err != nil {
		return 0, nil, fmt.Errorf("неверный hex хэша: %w", err)
	}
	if len(hash) != 32 {
		return 0, nil, errors.New("неверная длина хэша")
	}

	return int32(workchain), hash, nil
}

// генерирует случайную полезную нагрузку для TON Connect
// должна быть уникальной для каждой попытки привязки для предотвращения replay-атак
func GeneratePayload() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// проверяет, является ли формат TON-адреса валидным
func ValidateAddress(address string) bool {
	// TON-адреса обычно:
	// - raw: 0:hex (workchain:hash)
	// - user-friendly: Base64 кодировка (48 символов с флагом bounceable/non-bounceable)

	if len(address) == 0 {
		return false
	}

	// проверяем raw формат (0:hex или -1:hex)
	if len(address) >= 66 && (address[0:2] == "0:" || address[0:3] == "-1:") {
		return true
	}

	// проверяем user-friendly формат (base64, 48 символов)
	if len(address) == 48 {
		_, err := decodeFriendly(address)
		return err == nil
	}

	return false
}

// декодирует user-friendly адрес; кошельки кодируют и в std, и в url алфавите
func decodeFriendly(address string) ([]byte, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(address, "+", "-"), "/", "_")
	return base64.URLEncoding.DecodeString(cleaned)
}

// нормализует адрес в raw формат
func NormalizeAddress(address string) (string, error) {
	// если уже raw формат, возвращаем как есть
	if len(address) >= 66 && (address[0:2] == "0:" || address[0:3] == "-1:") {
		return address, nil
	}

	// пытаемся декодировать user-friendly формат
	if len(address) == 48 {
		decoded, err := decodeFriendly(address)
		if err != nil {
			return "", fmt.Errorf("неверный формат адреса: %w", err)
		}

		// user-friendly адрес состоит из 36 байт:
		// 1 байт флагов + 1 байт workchain + 32 байта хэша + 2 байта CRC
		if len(decoded) != 36 {
			return "", errors.New("неверная длина адреса")
		}

		workchain := int8(decoded[1])
		hash := decoded[2:34]

		return fmt.Sprintf("%d:%s", workchain, hex.EncodeToString(hash)), nil
	}

	return "", errors.New("неизвестный формат адреса")
}

// преобразует raw адрес (0:xxx) в user-friendly формат (EQ.../UQ...)
// bounceable=true означает, что адрес начинается с EQ (для смарт-контрактов)
// bounceable=false означает, что адрес начинается с UQ (для кошельков)
func RawToUserFriendly(rawAddress string, bounceable bool) (string, error) {
	// парсим raw формат адреса: workchain:hash
	var workchain int8
	var hashHex string

	if len(rawAddress) >= 66 && rawAddress[0:2] == "0:" {
		workchain = 0
		hashHex = rawAddress[2:]
	} else if len(rawAddress) >= 67 && rawAddress[0:3] == "-1:" {
		workchain = -1
		hashHex = rawAddress[3:]
	} else {
		// возможно, это уже user-friendly формат
		if len(rawAddress) == 48 {
			return rawAddress, nil
		}
		return "", errors.New("неверный формат raw адреса")
	}

	// декодируем хэш из hex
	hashBytes, err := hex.DecodeString(hashHex)
	if err != nil {
		return "", fmt.Errorf("неверный hex хэша: %w", err)
	}

	if len(hashBytes) != 32 {
		return "", errors.New("неверная длина хэша")
	}

	// строим user-friendly адрес
	// формат: 1 байт флага + 1 байт workchain + 32 байта хэша + 2 байта CRC16
	data := make([]byte, 34)

	// байт флага: 0x11 для bounceable (EQ), 0x51 для non-bounceable (UQ)
	if bounceable {
		data[0] = 0x11
	} else {
		data[0] = 0x51
	}

	// байт workchain
	data[1] = byte(workchain)

	// копируем хэш
	copy(data[2:], hashBytes)

	// вычисляем CRC16
	crc := crc16(data)

	// строим финальный адрес: данные + CRC
	result := make([]byte, 36)
	copy(result, data)
	result[34] = byte(crc >> 8)
	result[35] = byte(crc & 0xFF)

	// кодируем как стандартный base64 без padding (tonutils-go ожидает такой формат)
	return base64.RawStdEncoding.EncodeToString(result), nil
}

// вычисляет CRC16-XMODEM
func crc16(data []byte) uint16 {
	crc := uint16(0)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
