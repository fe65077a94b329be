package ton

import "time"

const (
	// наименьшая единица TON (1 TON = 10^9 наноTON)
	NanoTON = 1_000_000_000

	// минимальная сумма пересылки выигрыша в сеть: суммы меньше
	// остаются на внутреннем балансе, пересылать их дороже комиссии
	MinForwardNano = 100_000_000 // 0.1 TON

	// сетевая комиссия, закладываемая на один перевод
	ForwardFeeNano = 10_000_000 // 0.01 TON

	// минимальная сумма пополнения: пыль игнорируем
	MinDepositNano = 50_000_000 // 0.05 TON

	// время жизни доказательства TON Connect
	ProofTTL = 15 * time.Minute

	// интервал обработки очереди выплат
	PayoutProcessInterval = 30 * time.Second
)

// представляет тип сети TON
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// конечные точки TON API
const (
	TonAPIMainnet = "https://tonapi.io/v2"
	TonAPITestnet = "https://testnet.tonapi.io/v2"

	TonCenterMainnet = "https://toncenter.com/api/v2"
	TonCenterTestnet = "https://testnet.toncenter.com/api/v2"
)

// конвертирует TON в наноTON
func TONToNano(ton float64) int64 {
	return int64(ton * NanoTON)
}

// конвертирует наноTON в TON
func NanoToTON(nano int64) float64 {
	return float64(nano) / NanoTON
}
