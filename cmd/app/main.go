package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"telegram_arena/internal/bot"
	"telegram_arena/internal/config"
	"telegram_arena/internal/db"
	"telegram_arena/internal/engine"
	httpServer "telegram_arena/internal/http"
	"telegram_arena/internal/http/handlers"
	"telegram_arena/internal/http/middleware"
	"telegram_arena/internal/logger"
	"telegram_arena/internal/metrics"
	"telegram_arena/internal/repository"
	"telegram_arena/internal/service"
	"telegram_arena/internal/ton"
	"telegram_arena/internal/ws"
)

// Version устанавливается при сборке
var Version = "dev"

func main() {
	cfg := config.Load()

	// Инициализация структурированного логгера
	jsonLogs := os.Getenv("LOG_FORMAT") == "json"
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Init(logLevel, jsonLogs)
	log := logger.Get()

	service.InitJWT()

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()
	db.Migrate(dbPool)

	// Redis хранит одноразовые nonce привязки кошелька; без него
	// работает все, кроме привязки
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis недоступен, привязка кошельков работать не будет", "error", err)
		}
		cancel()
	}

	userRepo := repository.NewUserRepository(dbPool)
	balance := service.NewBalanceService(dbPool)
	settlements := service.NewSettlementService(dbPool)

	// хаб создается раньше движка: движку нужен его обработчик событий
	hub := ws.NewHub(balance, userRepo, cfg.QueueWait)
	manager := engine.NewManager(engine.Config{
		ClockBudget: cfg.ClockBudget,
		RakeBps:     cfg.RakeBps,
	}, settlements, settlements, hub.OnEngineEvent)
	hub.SetManager(manager)
	hub.StartCleanup()

	metrics.RegisterActiveSessions(func() int {
		return len(manager.Sessions())
	})

	r := gin.Default()

	// CORS для прода и связи фронта с бэкендом(разные домены)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandler(dbPool, cfg, rdb, manager, Version)
	wsHandler := ws.NewWSHandler(hub, userRepo, balance, cfg.MinStakeNano, cfg.MaxStakeNano)
	httpServer.RegisterRoutes(r, h, wsHandler)

	// Кошелек платформы для автоматической пересылки выигрышей
	var tonWallet *ton.Wallet
	network := ton.NetworkMainnet
	if cfg.TONNetwork == "testnet" {
		network = ton.NetworkTestnet
	}
	if cfg.PayoutMnemonic != "" {
		w, err := ton.NewWallet(cfg.PayoutMnemonic, network)
		if err != nil {
			log.Error("failed to init TON wallet for payouts", "error", err)
		} else {
			tonWallet = w
			log.Info("TON wallet initialized for payouts", "address", w.GetAddress())
		}
	} else {
		log.Warn("PAYOUT_WALLET_MNEMONIC not set - winnings stay on internal balances")
	}

	payoutWorker := service.NewPayoutWorker(dbPool, tonWallet, ton.PayoutProcessInterval)

	// Запуск админ бота ПЕРЕД HTTP сервером чтобы callbacks были установлены
	var adminBot *bot.AdminBot
	adminService := service.NewAdminService(dbPool)
	if tonWallet != nil {
		adminService.SetWallet(tonWallet)
	}
	if cfg.AdminBotEnabled && len(cfg.AdminTelegramIDs) > 0 {
		var err error
		adminBot, err = bot.NewAdminBot(cfg.BotToken, adminService, cfg.AdminTelegramIDs)
		if err != nil {
			log.Error("failed to start admin bot", "error", err)
		} else {
			go adminBot.Start()
			log.Info("admin bot started", "admin_ids", cfg.AdminTelegramIDs)

			settlements.SetNotifyCallback(adminBot.NotifySettlement)
			payoutWorker.SetNotifyCallback(adminBot.NotifyPayout)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	janitor := service.NewJanitor(dbPool, manager, settlements, cfg.AbandonAfter, cfg.SweepInterval)
	go janitor.Start()

	go payoutWorker.Start()

	// Наблюдатель пополнений опрашивает кошелек платформы
	var depositWatcher *service.DepositWatcher
	if cfg.PlatformWallet != "" {
		tonClient := ton.NewClient(network, cfg.TONAPIKey)
		depositWatcher = service.NewDepositWatcher(dbPool, tonClient, cfg.PlatformWallet, 30*time.Second)
		if adminBot != nil {
			depositWatcher.SetNotifyCallback(adminBot.NotifyDeposit)
		}
		go depositWatcher.Start()
	} else {
		log.Warn("наблюдатель пополнений не запущен: TON_PLATFORM_WALLET не настроен")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	if adminBot != nil {
		adminBot.Stop()
	}
	if depositWatcher != nil {
		depositWatcher.Stop()
	}
	payoutWorker.Stop()
	janitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
