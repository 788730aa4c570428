package storage

// sqlite.go — ledger durable de apuestas.
//
// Tablas:
//   - `bets`: una fila por fill confirmado. Nace pending y el monitor la
//     liquida exactamente una vez; nunca se borra.
//   - `results`: historial append-only de liquidaciones (auditoría).
//   - `bot_state`: key/value para la señal de parada del circuit breaker,
//     que debe sobrevivir reinicios.
//
// La liquidación es idempotente a nivel SQL: el UPDATE exige
// outcome='pending', así que la segunda liquidación no toca ninguna fila.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polymoly/internal/domain"
	"github.com/alejandrodnm/polymoly/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bets (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    local_id      TEXT NOT NULL,
    sport_id      TEXT NOT NULL,
    game_id       TEXT NOT NULL,
    event_title   TEXT NOT NULL,
    token_id      TEXT NOT NULL,
    buy_label     TEXT NOT NULL,            -- "YES" | "NO"
    favorite_team TEXT NOT NULL,
    book_odds     REAL NOT NULL,
    book_prob     REAL NOT NULL,
    entry_price   REAL NOT NULL,
    gap_size      REAL NOT NULL,
    stake_usdc    REAL NOT NULL,
    order_id      TEXT,
    commence_time TEXT NOT NULL,
    placed_at     TEXT NOT NULL,
    outcome       TEXT NOT NULL DEFAULT 'pending',  -- "win" | "loss" | "pending"
    pnl_usdc      REAL DEFAULT NULL,
    settled_at    TEXT DEFAULT NULL
);

CREATE TABLE IF NOT EXISTS results (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    bet_id     INTEGER NOT NULL REFERENCES bets(id),
    order_id   TEXT,
    outcome    TEXT NOT NULL,
    pnl_usdc   REAL NOT NULL,
    settled_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_outcome ON bets(outcome);
CREATE INDEX IF NOT EXISTS idx_bets_token   ON bets(token_id);
`

const stopFlagKey = "stop_reason"

var _ ports.Ledger = (*SQLiteLedger)(nil)

// SQLiteLedger implementa ports.Ledger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// InsertBet inserta una apuesta pending y devuelve su rowid.
func (s *SQLiteLedger) InsertBet(ctx context.Context, bet domain.Bet) (int64, error) {
	placedAt := bet.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bets
			(local_id, sport_id, game_id, event_title, token_id, buy_label,
			 favorite_team, book_odds, book_prob, entry_price, gap_size,
			 stake_usdc, order_id, commence_time, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		bet.LocalID, bet.SportID, bet.GameID, bet.EventTitle, bet.TokenID,
		bet.BuyLabel, bet.FavoriteTeam, bet.Odds, bet.ImpliedProb,
		bet.EntryPrice, bet.Gap, bet.StakeUSDC, bet.OrderID,
		bet.CommenceTime.UTC().Format(time.RFC3339), placedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertBet: %w", err)
	}
	return res.LastInsertId()
}

// SettleBet escribe outcome y P&L de una apuesta pending.
// Devuelve false si la apuesta ya estaba liquidada (o no existe).
func (s *SQLiteLedger) SettleBet(ctx context.Context, betID int64, outcome domain.BetOutcome, pnlUSDC float64) (bool, error) {
	settledAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("storage.SettleBet: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE bets SET outcome=?, pnl_usdc=?, settled_at=?
		WHERE id=? AND outcome='pending'
	`, string(outcome), pnlUSDC, settledAt, betID)
	if err != nil {
		return false, fmt.Errorf("storage.SettleBet: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.SettleBet: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO results (bet_id, order_id, outcome, pnl_usdc, settled_at)
		SELECT id, order_id, ?, ?, ? FROM bets WHERE id=?
	`, string(outcome), pnlUSDC, settledAt, betID); err != nil {
		return false, fmt.Errorf("storage.SettleBet: insert result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage.SettleBet: commit: %w", err)
	}
	return true, nil
}

const betColumns = `
	id, local_id, sport_id, game_id, event_title, token_id, buy_label,
	favorite_team, book_odds, book_prob, entry_price, gap_size, stake_usdc,
	COALESCE(order_id, ''), commence_time, placed_at, outcome, pnl_usdc, settled_at`

// PendingBets devuelve las apuestas sin liquidar, más antiguas primero.
func (s *SQLiteLedger) PendingBets(ctx context.Context) ([]domain.Bet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE outcome='pending' ORDER BY placed_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.PendingBets: query: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.PendingBets: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// AllBets devuelve el historial completo: pendientes primero, después las
// liquidadas más recientes.
func (s *SQLiteLedger) AllBets(ctx context.Context) ([]domain.Bet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+betColumns+` FROM bets
		 ORDER BY CASE WHEN outcome='pending' THEN 0 ELSE 1 END, settled_at DESC, placed_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.AllBets: query: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.AllBets: %w", err)
		}
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}

// ActiveTokenIDs devuelve los token ids con posición abierta.
func (s *SQLiteLedger) ActiveTokenIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT token_id FROM bets WHERE outcome='pending'`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ActiveTokenIDs: query: %w", err)
	}
	defer rows.Close()

	active := make(map[string]bool)
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, fmt.Errorf("storage.ActiveTokenIDs: scan: %w", err)
		}
		active[tid] = true
	}
	return active, rows.Err()
}

// ConsecutiveLosses cuenta derrotas consecutivas desde la liquidación más
// reciente hacia atrás, parando en la primera victoria. Sin LIMIT: el
// umbral del breaker es configurable y un tope aquí lo dejaría sin efecto.
func (s *SQLiteLedger) ConsecutiveLosses(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome FROM bets
		WHERE outcome IN ('win', 'loss')
		ORDER BY settled_at DESC, id DESC
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.ConsecutiveLosses: query: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var outcome string
		if err := rows.Scan(&outcome); err != nil {
			return 0, fmt.Errorf("storage.ConsecutiveLosses: scan: %w", err)
		}
		if outcome != string(domain.OutcomeLoss) {
			break
		}
		count++
	}
	return count, rows.Err()
}

// Stats devuelve los agregados del ledger.
func (s *SQLiteLedger) Stats(ctx context.Context) (domain.LedgerStats, error) {
	var st domain.LedgerStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN outcome='win'     THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome='loss'    THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome='pending' THEN 1 ELSE 0 END),
			ROUND(SUM(COALESCE(pnl_usdc, 0)), 2)
		FROM bets
	`).Scan(&st.Total,
		&nullInt{&st.Wins}, &nullInt{&st.Losses}, &nullInt{&st.Pending},
		&nullFloat{&st.TotalPnL})
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("storage.Stats: %w", err)
	}
	return st, nil
}

// SetStopFlag persiste la señal de parada del circuit breaker.
func (s *SQLiteLedger) SetStopFlag(ctx context.Context, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
	`, stopFlagKey, reason, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storage.SetStopFlag: %w", err)
	}
	return nil
}

// StopFlag devuelve la señal de parada persistida, si existe.
func (s *SQLiteLedger) StopFlag(ctx context.Context) (bool, string, error) {
	var reason string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM bot_state WHERE key=?`, stopFlagKey,
	).Scan(&reason)
	switch {
	case err == sql.ErrNoRows:
		return false, "", nil
	case err != nil:
		return false, "", fmt.Errorf("storage.StopFlag: %w", err)
	}
	return true, reason, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// scanBet lee una fila con betColumns en un domain.Bet.
func scanBet(rows *sql.Rows) (domain.Bet, error) {
	var bet domain.Bet
	var commence, placed string
	var pnl sql.NullFloat64
	var settled sql.NullString

	if err := rows.Scan(
		&bet.ID, &bet.LocalID, &bet.SportID, &bet.GameID, &bet.EventTitle,
		&bet.TokenID, &bet.BuyLabel, &bet.FavoriteTeam, &bet.Odds,
		&bet.ImpliedProb, &bet.EntryPrice, &bet.Gap, &bet.StakeUSDC,
		&bet.OrderID, &commence, &placed, (*string)(&bet.Outcome),
		&pnl, &settled,
	); err != nil {
		return domain.Bet{}, fmt.Errorf("scan bet: %w", err)
	}

	bet.CommenceTime, _ = time.Parse(time.RFC3339, commence)
	bet.PlacedAt, _ = time.Parse(time.RFC3339, placed)
	if pnl.Valid {
		v := pnl.Float64
		bet.PnLUSDC = &v
	}
	if settled.Valid {
		if t, err := time.Parse(time.RFC3339, settled.String); err == nil {
			bet.SettledAt = &t
		}
	}
	return bet, nil
}

// nullInt y nullFloat mapean agregados SUM(), que son NULL con cero filas.
type nullInt struct{ dst *int }

func (n *nullInt) Scan(v any) error {
	var ni sql.NullInt64
	if err := ni.Scan(v); err != nil {
		return err
	}
	*n.dst = int(ni.Int64)
	return nil
}

type nullFloat struct{ dst *float64 }

func (n *nullFloat) Scan(v any) error {
	var nf sql.NullFloat64
	if err := nf.Scan(v); err != nil {
		return err
	}
	*n.dst = nf.Float64
	return nil
}
