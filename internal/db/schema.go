package db

// SchemaSQL - полная схема базы. Деньги везде хранятся в нанотонах
// (BIGINT), расчет на сессию один: первичный ключ settlements по
// session_id закрывает двойную выплату на уровне базы.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    tg_id BIGINT UNIQUE NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    balance_nano BIGINT NOT NULL DEFAULT 0,
    games_played INT NOT NULL DEFAULT 0,
    wins INT NOT NULL DEFAULT 0,
    losses INT NOT NULL DEFAULT 0,
    total_won_nano BIGINT NOT NULL DEFAULT 0,
    total_staked_nano BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_active_at TIMESTAMPTZ,
    is_banned BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    game_type TEXT NOT NULL,
    player1_id BIGINT NOT NULL,
    player2_id BIGINT NOT NULL,
    stake_amount_nano BIGINT NOT NULL,
    rake_bps BIGINT NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT 'TON',
    status TEXT NOT NULL,
    result TEXT,
    winner_id BIGINT,
    reason TEXT,
    detail TEXT,
    move_count INT NOT NULL DEFAULT 0,
    game_state_json JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at TIMESTAMPTZ,
    finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_sessions_player1 ON sessions (player1_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_player2 ON sessions (player2_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status);

CREATE TABLE IF NOT EXISTS settlements (
    session_id UUID PRIMARY KEY REFERENCES sessions(id),
    winner_id BIGINT,
    stake_nano BIGINT NOT NULL,
    rake_nano BIGINT NOT NULL,
    payout_nano BIGINT NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    type TEXT NOT NULL,
    amount BIGINT NOT NULL,
    meta JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS wallets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL REFERENCES users(id),
    address TEXT NOT NULL,
    raw_address TEXT,
    linked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    last_proof_timestamp BIGINT
);

CREATE TABLE IF NOT EXISTS payouts (
    id BIGSERIAL PRIMARY KEY,
    session_id UUID NOT NULL REFERENCES sessions(id),
    user_id BIGINT NOT NULL,
    wallet_address TEXT NOT NULL,
    amount_nano BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    tx_hash TEXT,
    tx_lt BIGINT,
    fail_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts (status);
CREATE INDEX IF NOT EXISTS idx_payouts_user ON payouts (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS deposits (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    wallet_address TEXT NOT NULL DEFAULT '',
    amount_nano BIGINT NOT NULL,
    tx_hash TEXT UNIQUE NOT NULL,
    tx_lt BIGINT NOT NULL DEFAULT 0,
    memo TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS audit_logs (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    action TEXT NOT NULL,
    category TEXT NOT NULL,
    details JSONB,
    ip TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_logs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_category ON audit_logs (category, created_at DESC);
`
