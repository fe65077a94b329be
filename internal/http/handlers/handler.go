package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"telegram_arena/internal/config"
	"telegram_arena/internal/engine"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/service"
)

// Handler держит зависимости всех HTTP-обработчиков
type Handler struct {
	DB      *pgxpool.Pool
	Cfg     *config.Config
	Redis   *redis.Client
	Manager *engine.Manager

	UserRepo       *repository.UserRepository
	SessionRepo    *repository.SessionRepository
	SettlementRepo *repository.SettlementRepository
	WalletRepo     *repository.WalletRepository
	PayoutRepo     *repository.PayoutRepository

	Balance *service.BalanceService
	Audit   *service.AuditService

	Version string
}

func NewHandler(db *pgxpool.Pool, cfg *config.Config, rdb *redis.Client, manager *engine.Manager, version string) *Handler {
	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Redis:   rdb,
		Manager: manager,

		UserRepo:       repository.NewUserRepository(db),
		SessionRepo:    repository.NewSessionRepository(db),
		SettlementRepo: repository.NewSettlementRepository(db),
		WalletRepo:     repository.NewWalletRepository(db),
		PayoutRepo:     repository.NewPayoutRepository(db),

		Balance: service.NewBalanceService(db),
		Audit:   service.NewAuditService(db),

		Version: version,
	}
}

// достает id пользователя, положенный auth-мидлварью
func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
