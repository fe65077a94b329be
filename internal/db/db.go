package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"telegram_arena/internal/logger"
)

// Connect открывает пул соединений и проверяет его пингом.
// Без базы приложение не работает, поэтому ошибка фатальна.
func Connect(databaseURL string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("неверная строка подключения к базе", "error", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("не удалось создать пул соединений", "error", err)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("база данных недоступна", "error", err)
	}

	logger.Info("подключение к базе установлено")
	return pool
}

// Migrate применяет схему; все выражения идемпотентны, повторный запуск
// безопасен
func Migrate(pool *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, SchemaSQL); err != nil {
		logger.Fatal("не удалось применить схему базы", "error", err)
	}
	logger.Info("схема базы применена")
}
