package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"telegram_arena/internal/domain"
	"telegram_arena/internal/ton"
)

// обрабатывает endpoints связанные с TON: привязка кошелька через
// ton-proof и просмотр выплат
type TonHandler struct {
	h *Handler

	// домен, который кошелек подписывает в доказательстве
	AllowedDomain string
}

func NewTonHandler(h *Handler) *TonHandler {
	allowedDomain := os.Getenv("TON_PROOF_DOMAIN")
	if allowedDomain == "" {
		allowedDomain = "localhost"
	}
	return &TonHandler{h: h, AllowedDomain: allowedDomain}
}

func proofKey(userID int64) string {
	return fmt.Sprintf("tonproof:%d", userID)
}

// GetProofPayload выдает одноразовый nonce для ton-proof. Кошелек
// подпишет его вместе с доменом и временной меткой.
func (t *TonHandler) GetProofPayload(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payload, err := ton.GeneratePayload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payload error"})
		return
	}

	if t.h.Redis != nil {
		if err := t.h.Redis.Set(c.Request.Context(), proofKey(userID), payload, ton.ProofTTL).Err(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"payload": payload,
		"ttl_sec": int(ton.ProofTTL / time.Second),
	})
}

type connectWalletRequest struct {
	Account ton.WalletAccount `json:"account" binding:"required"`
	Proof   ton.ConnectProof  `json:"proof" binding:"required"`
}

// ConnectWallet привязывает кошелек после проверки ton-proof: nonce
// должен совпасть с выданным, подпись - сойтись с публичным ключом,
// адрес - соответствовать ключу и state init.
func (t *TonHandler) ConnectWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req connectWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()

	if existing, err := t.h.WalletRepo.GetByUserID(ctx, userID); err == nil && existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "wallet already linked"})
		return
	}

	// nonce одноразовый и живет ProofTTL
	if t.h.Redis != nil {
		stored, err := t.h.Redis.Get(ctx, proofKey(userID)).Result()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "proof payload expired"})
			return
		}
		if stored != req.Proof.Payload {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid proof payload"})
			return
		}
	}

	// DEV_MODE=true пропускает криптопроверку для локальной разработки
	if os.Getenv("DEV_MODE") != "true" {
		if err := ton.VerifyProof(req.Account, req.Proof, t.AllowedDomain); err != nil {
			fmt.Printf("ConnectWallet: проверка доказательства не прошла: %v\n", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid proof"})
			return
		}
	}

	friendly, err := ton.RawToUserFriendly(req.Account.Address, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	wallet := &domain.Wallet{
		UserID:             userID,
		Address:            friendly,
		RawAddress:         req.Account.Address,
		IsVerified:         true,
		LastProofTimestamp: req.Proof.Timestamp,
	}
	if err := t.h.WalletRepo.Upsert(ctx, wallet); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if t.h.Redis != nil {
		t.h.Redis.Del(ctx, proofKey(userID))
	}

	t.h.Audit.Log(ctx, userID, "wallet_linked", "wallet", map[string]interface{}{
		"address": friendly,
	})

	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

// GetWallet возвращает привязанный кошелек
func (t *TonHandler) GetWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	wallet, err := t.h.WalletRepo.GetByUserID(c.Request.Context(), userID)
	if err != nil || wallet == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not linked"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"wallet": wallet})
}

// DisconnectWallet отвязывает кошелек. При незавершенных выплатах
// отвязка запрещена, иначе выигрыш не дойдет.
func (t *TonHandler) DisconnectWallet(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	payouts, err := t.h.PayoutRepo.GetByUserID(ctx, userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	for _, p := range payouts {
		if p.Status == domain.PayoutStatusPending || p.Status == domain.PayoutStatusProcessing {
			c.JSON(http.StatusConflict, gin.H{"error": "pending payouts exist"})
			return
		}
	}

	if err := t.h.WalletRepo.Delete(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	t.h.Audit.Log(ctx, userID, "wallet_unlinked", "wallet", nil)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// MyPayouts возвращает выплаты текущего пользователя
func (t *TonHandler) MyPayouts(c *gin.Context) {
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

	payouts, err := t.h.PayoutRepo.GetByUserID(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payouts": payouts})
}

// GetTonConfig отдает фронту параметры сети и адрес платформы
func (t *TonHandler) GetTonConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"network":          t.h.Cfg.TONNetwork,
		"platform_wallet":  t.h.Cfg.PlatformWallet,
		"min_forward_nano": ton.MinForwardNano,
		"proof_domain":     t.AllowedDomain,
	})
}
