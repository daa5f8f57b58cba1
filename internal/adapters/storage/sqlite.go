package storage

// Persistencia del estado del engine en SQLite.
//
// Estrategia:
//   - Cada commit reemplaza el snapshot completo del pool dentro de una sola
//     transacción: stats y parámetros, posiciones, órdenes, lista de escaneo,
//     ring buffer de señales, slot de fee y mapa de surplus.
//   - `events` es append-only: el log de auditoría no se reescribe nunca.
//   - Tiempos en nanosegundos unix (INTEGER); 0 = sin valor.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/rangekeeper/internal/domain"
	"github.com/alejandrodnm/rangekeeper/internal/ports"
	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

const schema = `
-- Stats, parámetros y contadores por pool
CREATE TABLE IF NOT EXISTS pool_state (
    pool_id            TEXT PRIMARY KEY,
    volume             INTEGER NOT NULL DEFAULT 0,
    trades             INTEGER NOT NULL DEFAULT 0,
    last_update        INTEGER NOT NULL DEFAULT 0,
    volatility         REAL    NOT NULL DEFAULT 0,
    current_fee        INTEGER NOT NULL DEFAULT 0,
    last_tick          INTEGER NOT NULL DEFAULT 0,
    paused             INTEGER NOT NULL DEFAULT 0,
    cooldown_ns        INTEGER NOT NULL DEFAULT 0,
    min_confidence     INTEGER NOT NULL DEFAULT 0,
    next_position_id   INTEGER NOT NULL DEFAULT 1,
    next_order_id      INTEGER NOT NULL DEFAULT 1,
    signal_write_index INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS positions (
    pool_id        TEXT    NOT NULL,
    id             INTEGER NOT NULL,
    owner          TEXT    NOT NULL,
    tick_lower     INTEGER NOT NULL,
    tick_upper     INTEGER NOT NULL,
    liquidity      INTEGER NOT NULL,
    auto_rebalance INTEGER NOT NULL DEFAULT 0,
    last_rebalance INTEGER NOT NULL DEFAULT 0,
    salt           TEXT    NOT NULL,
    opened_at      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (pool_id, id)
);

CREATE TABLE IF NOT EXISTS orders (
    pool_id         TEXT    NOT NULL,
    id              INTEGER NOT NULL,
    owner           TEXT    NOT NULL,
    zero_for_one    INTEGER NOT NULL,
    trigger_tick    INTEGER NOT NULL,
    amount_in       INTEGER NOT NULL,
    min_amount_out  INTEGER NOT NULL,
    kind            INTEGER NOT NULL,
    linked_position INTEGER NOT NULL DEFAULT 0,
    executed        INTEGER NOT NULL DEFAULT 0,
    cancelled       INTEGER NOT NULL DEFAULT 0,
    claimed         INTEGER NOT NULL DEFAULT 0,
    claim_currency  TEXT    NOT NULL DEFAULT '',
    claim_amount    INTEGER NOT NULL DEFAULT 0,
    trail_distance  INTEGER NOT NULL DEFAULT 0,
    placed_at       INTEGER NOT NULL DEFAULT 0,
    executed_at     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (pool_id, id)
);

-- Lista de escaneo en su layout actual (sin orden garantizado)
CREATE TABLE IF NOT EXISTS pool_order_ids (
    pool_id  TEXT    NOT NULL,
    slot     INTEGER NOT NULL,
    order_id INTEGER NOT NULL,
    PRIMARY KEY (pool_id, slot)
);

-- Ring buffer de señales, en orden de slot
CREATE TABLE IF NOT EXISTS signals (
    pool_id     TEXT    NOT NULL,
    slot        INTEGER NOT NULL,
    position_id INTEGER NOT NULL,
    tick_lower  INTEGER NOT NULL,
    tick_upper  INTEGER NOT NULL,
    confidence  INTEGER NOT NULL,
    ts          INTEGER NOT NULL,
    PRIMARY KEY (pool_id, slot)
);

CREATE TABLE IF NOT EXISTS fee_recommendations (
    pool_id    TEXT PRIMARY KEY,
    fee        INTEGER NOT NULL,
    confidence INTEGER NOT NULL,
    ts         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS surplus (
    pool_id     TEXT    NOT NULL,
    position_id INTEGER NOT NULL,
    currency    TEXT    NOT NULL,
    amount      INTEGER NOT NULL,
    PRIMARY KEY (pool_id, position_id, currency)
);

-- Log de auditoría, append-only
CREATE TABLE IF NOT EXISTS events (
    id          TEXT PRIMARY KEY,
    pool_id     TEXT    NOT NULL,
    kind        TEXT    NOT NULL,
    at          INTEGER NOT NULL,
    position_id INTEGER NOT NULL DEFAULT 0,
    order_id    INTEGER NOT NULL DEFAULT 0,
    account     TEXT    NOT NULL DEFAULT '',
    currency    TEXT    NOT NULL DEFAULT '',
    amount      INTEGER NOT NULL DEFAULT 0,
    tick_lower  INTEGER NOT NULL DEFAULT 0,
    tick_upper  INTEGER NOT NULL DEFAULT 0,
    old_fee     INTEGER NOT NULL DEFAULT 0,
    new_fee     INTEGER NOT NULL DEFAULT 0,
    reason      TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_events_pool_at ON events(pool_id, at DESC);
CREATE INDEX IF NOT EXISTS idx_events_kind    ON events(kind);
`

// ErrNoState se devuelve cuando el pool no tiene snapshot guardado.
var ErrNoState = errors.New("no persisted state for pool")

// SQLiteStorage implementa ports.StateStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ ports.StateStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveState reemplaza el snapshot del pool en una sola transacción.
func (s *SQLiteStorage) SaveState(ctx context.Context, st domain.EngineState) error {
	pool := st.PoolID.Hex()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveState: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pool_state
			(pool_id, volume, trades, last_update, volatility, current_fee, last_tick,
			 paused, cooldown_ns, min_confidence, next_position_id, next_order_id, signal_write_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pool_id) DO UPDATE SET
			volume             = excluded.volume,
			trades             = excluded.trades,
			last_update        = excluded.last_update,
			volatility         = excluded.volatility,
			current_fee        = excluded.current_fee,
			last_tick          = excluded.last_tick,
			paused             = excluded.paused,
			cooldown_ns        = excluded.cooldown_ns,
			min_confidence     = excluded.min_confidence,
			next_position_id   = excluded.next_position_id,
			next_order_id      = excluded.next_order_id,
			signal_write_index = excluded.signal_write_index`,
		pool, st.Stats.Volume, int64(st.Stats.Trades), nanos(st.Stats.LastUpdate), st.Stats.Volatility,
		st.Stats.CurrentFee, st.Stats.LastTick, boolInt(st.Paused), int64(st.Cooldown), st.MinConfidence,
		int64(st.NextPositionID), int64(st.NextOrderID), int64(st.SignalWriteIndex),
	); err != nil {
		return fmt.Errorf("storage.SaveState: upsert pool state: %w", err)
	}

	for _, table := range []string{"positions", "orders", "pool_order_ids", "signals", "fee_recommendations", "surplus"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE pool_id = ?`, pool); err != nil {
			return fmt.Errorf("storage.SaveState: clear %s: %w", table, err)
		}
	}

	if err := insertPositions(ctx, tx, pool, st.Positions); err != nil {
		return fmt.Errorf("storage.SaveState: %w", err)
	}
	if err := insertOrders(ctx, tx, pool, st.Orders); err != nil {
		return fmt.Errorf("storage.SaveState: %w", err)
	}
	for slot, id := range st.PoolOrderIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pool_order_ids (pool_id, slot, order_id) VALUES (?, ?, ?)`,
			pool, slot, int64(id),
		); err != nil {
			return fmt.Errorf("storage.SaveState: insert scan slot %d: %w", slot, err)
		}
	}
	for slot, sig := range st.Signals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO signals (pool_id, slot, position_id, tick_lower, tick_upper, confidence, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pool, slot, int64(sig.PositionID), sig.TickLower, sig.TickUpper, sig.Confidence, nanos(sig.Timestamp),
		); err != nil {
			return fmt.Errorf("storage.SaveState: insert signal slot %d: %w", slot, err)
		}
	}
	if !st.FeeRec.Timestamp.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fee_recommendations (pool_id, fee, confidence, ts) VALUES (?, ?, ?, ?)`,
			pool, st.FeeRec.Fee, st.FeeRec.Confidence, nanos(st.FeeRec.Timestamp),
		); err != nil {
			return fmt.Errorf("storage.SaveState: insert fee recommendation: %w", err)
		}
	}
	for _, sb := range st.Surplus {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO surplus (pool_id, position_id, currency, amount) VALUES (?, ?, ?, ?)`,
			pool, int64(sb.Position), sb.Currency.Hex(), sb.Amount,
		); err != nil {
			return fmt.Errorf("storage.SaveState: insert surplus: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveState: commit: %w", err)
	}
	return nil
}

func insertPositions(ctx context.Context, tx *sql.Tx, pool string, positions []domain.Position) error {
	if len(positions) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions
			(pool_id, id, owner, tick_lower, tick_upper, liquidity, auto_rebalance, last_rebalance, salt, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare positions: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		if _, err := stmt.ExecContext(ctx,
			pool, int64(p.ID), p.Owner.Hex(), p.TickLower, p.TickUpper, p.Liquidity,
			boolInt(p.AutoRebalance), nanos(p.LastRebalance), p.Salt.Hex(), nanos(p.OpenedAt),
		); err != nil {
			return fmt.Errorf("insert position %d: %w", p.ID, err)
		}
	}
	return nil
}

func insertOrders(ctx context.Context, tx *sql.Tx, pool string, orders []domain.LimitOrder) error {
	if len(orders) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orders
			(pool_id, id, owner, zero_for_one, trigger_tick, amount_in, min_amount_out, kind,
			 linked_position, executed, cancelled, claimed, claim_currency, claim_amount,
			 trail_distance, placed_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare orders: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		claimCurrency := ""
		if o.ClaimCurrency != (common.Address{}) {
			claimCurrency = o.ClaimCurrency.Hex()
		}
		if _, err := stmt.ExecContext(ctx,
			pool, int64(o.ID), o.Owner.Hex(), boolInt(o.ZeroForOne), o.TriggerTick, o.AmountIn, o.MinAmountOut,
			int(o.Kind), int64(o.LinkedPosition), boolInt(o.Executed), boolInt(o.Cancelled), boolInt(o.Claimed),
			claimCurrency, o.ClaimAmount, o.TrailDistance, nanos(o.PlacedAt), nanos(o.ExecutedAt),
		); err != nil {
			return fmt.Errorf("insert order %d: %w", o.ID, err)
		}
	}
	return nil
}

// LoadState devuelve el último snapshot guardado del pool, o ErrNoState.
func (s *SQLiteStorage) LoadState(ctx context.Context, poolID domain.PoolID) (domain.EngineState, error) {
	pool := poolID.Hex()
	st := domain.EngineState{PoolID: poolID}

	var (
		trades, lastUpdate, cooldown, nextPos, nextOrder, writeIndex int64
		paused                                                       int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT volume, trades, last_update, volatility, current_fee, last_tick,
		       paused, cooldown_ns, min_confidence, next_position_id, next_order_id, signal_write_index
		FROM pool_state WHERE pool_id = ?`, pool,
	).Scan(&st.Stats.Volume, &trades, &lastUpdate, &st.Stats.Volatility, &st.Stats.CurrentFee, &st.Stats.LastTick,
		&paused, &cooldown, &st.MinConfidence, &nextPos, &nextOrder, &writeIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: pool %s: %w", pool, ErrNoState)
	}
	if err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: pool state: %w", err)
	}
	st.Stats.Trades = uint64(trades)
	st.Stats.LastUpdate = fromNanos(lastUpdate)
	st.Paused = paused != 0
	st.Cooldown = time.Duration(cooldown)
	st.NextPositionID = domain.PositionID(nextPos)
	st.NextOrderID = domain.OrderID(nextOrder)
	st.SignalWriteIndex = uint64(writeIndex)

	if st.Positions, err = s.loadPositions(ctx, pool); err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: %w", err)
	}
	if st.Orders, err = s.loadOrders(ctx, pool); err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: %w", err)
	}
	if st.PoolOrderIDs, err = s.loadScanList(ctx, pool); err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: %w", err)
	}
	if st.Signals, err = s.loadSignals(ctx, pool); err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: %w", err)
	}
	if st.Surplus, err = s.loadSurplus(ctx, pool); err != nil {
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: %w", err)
	}

	var feeTS int64
	err = s.db.QueryRowContext(ctx,
		`SELECT fee, confidence, ts FROM fee_recommendations WHERE pool_id = ?`, pool,
	).Scan(&st.FeeRec.Fee, &st.FeeRec.Confidence, &feeTS)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return domain.EngineState{}, fmt.Errorf("storage.LoadState: fee recommendation: %w", err)
	default:
		st.FeeRec.Timestamp = fromNanos(feeTS)
	}
	return st, nil
}

func (s *SQLiteStorage) loadPositions(ctx context.Context, pool string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, tick_lower, tick_upper, liquidity, auto_rebalance, last_rebalance, salt, opened_at
		FROM positions WHERE pool_id = ? ORDER BY id`, pool)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var (
			p                   domain.Position
			id, lastReb, opened int64
			owner, salt         string
			auto                int
		)
		if err := rows.Scan(&id, &owner, &p.TickLower, &p.TickUpper, &p.Liquidity, &auto, &lastReb, &salt, &opened); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.ID = domain.PositionID(id)
		p.Owner = common.HexToAddress(owner)
		p.AutoRebalance = auto != 0
		p.LastRebalance = fromNanos(lastReb)
		p.Salt = common.HexToHash(salt)
		p.OpenedAt = fromNanos(opened)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadOrders(ctx context.Context, pool string) ([]domain.LimitOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, zero_for_one, trigger_tick, amount_in, min_amount_out, kind, linked_position,
		       executed, cancelled, claimed, claim_currency, claim_amount, trail_distance, placed_at, executed_at
		FROM orders WHERE pool_id = ? ORDER BY id`, pool)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.LimitOrder
	for rows.Next() {
		var (
			o                                     domain.LimitOrder
			id, linked, placed, executedAt        int64
			owner, claimCurrency                  string
			zeroForOne, kind, exec, canc, claimed int
		)
		if err := rows.Scan(&id, &owner, &zeroForOne, &o.TriggerTick, &o.AmountIn, &o.MinAmountOut, &kind, &linked,
			&exec, &canc, &claimed, &claimCurrency, &o.ClaimAmount, &o.TrailDistance, &placed, &executedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.ID = domain.OrderID(id)
		o.Owner = common.HexToAddress(owner)
		o.ZeroForOne = zeroForOne != 0
		o.Kind = domain.OrderKind(kind)
		o.LinkedPosition = domain.PositionID(linked)
		o.Executed = exec != 0
		o.Cancelled = canc != 0
		o.Claimed = claimed != 0
		if claimCurrency != "" {
			o.ClaimCurrency = common.HexToAddress(claimCurrency)
		}
		o.PlacedAt = fromNanos(placed)
		o.ExecutedAt = fromNanos(executedAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadScanList(ctx context.Context, pool string) ([]domain.OrderID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id FROM pool_order_ids WHERE pool_id = ? ORDER BY slot`, pool)
	if err != nil {
		return nil, fmt.Errorf("query scan list: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		out = append(out, domain.OrderID(id))
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadSignals(ctx context.Context, pool string) ([]domain.RebalanceSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, tick_lower, tick_upper, confidence, ts
		FROM signals WHERE pool_id = ? ORDER BY slot`, pool)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []domain.RebalanceSignal
	for rows.Next() {
		var (
			sig    domain.RebalanceSignal
			id, ts int64
		)
		if err := rows.Scan(&id, &sig.TickLower, &sig.TickUpper, &sig.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.PositionID = domain.PositionID(id)
		sig.Timestamp = fromNanos(ts)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) loadSurplus(ctx context.Context, pool string) ([]domain.SurplusBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, currency, amount
		FROM surplus WHERE pool_id = ? ORDER BY position_id, currency`, pool)
	if err != nil {
		return nil, fmt.Errorf("query surplus: %w", err)
	}
	defer rows.Close()

	var out []domain.SurplusBalance
	for rows.Next() {
		var (
			sb       domain.SurplusBalance
			id       int64
			currency string
		)
		if err := rows.Scan(&id, &currency, &sb.Amount); err != nil {
			return nil, fmt.Errorf("scan surplus: %w", err)
		}
		sb.Position = domain.PositionID(id)
		sb.Currency = common.HexToAddress(currency)
		out = append(out, sb)
	}
	return out, rows.Err()
}

// AppendEvents añade eventos al log de auditoría. Un ID repetido se ignora.
func (s *SQLiteStorage) AppendEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.AppendEvents: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO events
			(id, pool_id, kind, at, position_id, order_id, account, currency, amount,
			 tick_lower, tick_upper, old_fee, new_fee, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.AppendEvents: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.ID, ev.PoolID.Hex(), string(ev.Kind), nanos(ev.At), int64(ev.Position), int64(ev.Order),
			addrText(ev.Account), addrText(ev.Currency), ev.Amount, ev.TickLower, ev.TickUpper,
			ev.OldFee, ev.NewFee, ev.Reason,
		); err != nil {
			return fmt.Errorf("storage.AppendEvents: insert %s: %w", ev.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.AppendEvents: commit: %w", err)
	}
	return nil
}

// RecentEvents devuelve los últimos limit eventos del pool, más reciente primero.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, poolID domain.PoolID, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, at, position_id, order_id, account, currency, amount,
		       tick_lower, tick_upper, old_fee, new_fee, reason
		FROM events WHERE pool_id = ?
		ORDER BY at DESC, rowid DESC
		LIMIT ?`, poolID.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentEvents: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			ev                  domain.Event
			kind                string
			at, position, order int64
			account, currency   string
		)
		if err := rows.Scan(&ev.ID, &kind, &at, &position, &order, &account, &currency, &ev.Amount,
			&ev.TickLower, &ev.TickUpper, &ev.OldFee, &ev.NewFee, &ev.Reason); err != nil {
			return nil, fmt.Errorf("storage.RecentEvents: scan: %w", err)
		}
		ev.PoolID = poolID
		ev.Kind = domain.EventKind(kind)
		ev.At = fromNanos(at)
		ev.Position = domain.PositionID(position)
		ev.Order = domain.OrderID(order)
		if account != "" {
			ev.Account = common.HexToAddress(account)
		}
		if currency != "" {
			ev.Currency = common.HexToAddress(currency)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func addrText(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}
