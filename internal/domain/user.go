package domain

import "time"

type User struct {
	ID              int64      `db:"id" json:"id"`
	TgID            int64      `db:"tg_id" json:"tg_id"`
	Username        string     `db:"username" json:"username"`
	FirstName       string     `db:"first_name" json:"first_name"`
	BalanceNano     int64      `db:"balance_nano" json:"balance_nano"` // внутренний баланс в нанотонах
	GamesPlayed     int        `db:"games_played" json:"games_played"`
	Wins            int        `db:"wins" json:"wins"`
	Losses          int        `db:"losses" json:"losses"`
	TotalWonNano    int64      `db:"total_won_nano" json:"total_won_nano"`
	TotalStakedNano int64      `db:"total_staked_nano" json:"total_staked_nano"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	LastActiveAt    *time.Time `db:"last_active_at" json:"last_active_at,omitempty"`
	IsBanned        bool       `db:"is_banned" json:"is_banned"`
}

// Валюта ставок
type Currency string

const (
	CurrencyTON Currency = "TON"
)

// Нанотоны в одном TON (9 знаков)
const NanoPerTON int64 = 1_000_000_000
