// package store persists markets in sqlite and implements the repository
// the transaction engine commits through.

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lithammer/shortuuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/awilliams/predmarket/pkg/market"
)

var (
	ErrDuplicateMarket = errors.New("a market with that name already exists")
	ErrNoActiveMarket  = errors.New("no active market is set")
)

type SqliteStore struct {
	db *sql.DB
}

var _ market.Repository = (*SqliteStore)(nil)

func now() string {
	return time.Now().Format(time.RFC3339)
}

func NewSqliteStore(dbName string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", dbName)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// MarketListing is one row of a tenant's market catalogue.
type MarketListing struct {
	Name        string
	Description string
}

// CreateMarket registers a new market for the tenant. Market names are
// unique per tenant, case-insensitively; a clash returns ErrDuplicateMarket.
func (s *SqliteStore) CreateMarket(ctx context.Context, tenant, name, description string,
	seedMoney, liquidity float64) (string, error) {

	var existing int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM markets
		WHERE tenant = ? AND name = ? COLLATE NOCASE`,
		tenant, name).Scan(&existing)
	if err != nil {
		return "", err
	}
	if existing > 0 {
		return "", ErrDuplicateMarket
	}

	id := shortuuid.New()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO markets (id, tenant, name, description, seed_money, liquidity, is_running, date_created)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		id, tenant, name, description, seedMoney, liquidity, now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarketID resolves a tenant's market by name, case-insensitively.
func (s *SqliteStore) MarketID(ctx context.Context, tenant, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM markets
		WHERE tenant = ? AND name = ? COLLATE NOCASE`,
		tenant, name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", market.ErrMarketNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SqliteStore) ListMarkets(ctx context.Context, tenant string) ([]MarketListing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description FROM markets
		WHERE tenant = ?
		ORDER BY rowid`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []MarketListing{}
	for rows.Next() {
		var l MarketListing
		if err := rows.Scan(&l.Name, &l.Description); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// SetActiveMarket points the tenant at the named market. Returns false when
// no market by that name exists for the tenant.
func (s *SqliteStore) SetActiveMarket(ctx context.Context, tenant, name string) (bool, error) {
	id, err := s.MarketID(ctx, tenant, name)
	if err == market.ErrMarketNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO active_markets (tenant, market_id)
		VALUES (?, ?)
		ON CONFLICT (tenant) DO UPDATE SET market_id = excluded.market_id`,
		tenant, id)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SqliteStore) ActiveMarketID(ctx context.Context, tenant string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT market_id FROM active_markets WHERE tenant = ?`, tenant).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNoActiveMarket
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadMarket materializes the whole aggregate in one consistent read: the
// market row, every stock, every player and every share. Stocks and players
// come back in insertion order so the holdings vector is stable across
// loads.
func (s *SqliteStore) LoadMarket(ctx context.Context, id string) (*market.Market, error) {
	m := &market.Market{ID: id}
	var isRunning int
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant, name, description, seed_money, liquidity, is_running
		FROM markets WHERE id = ?`, id).
		Scan(&m.Tenant, &m.Name, &m.Description, &m.SeedMoney, &m.Liquidity, &isRunning)
	if err == sql.ErrNoRows {
		return nil, market.ErrMarketNotFound
	}
	if err != nil {
		return nil, err
	}
	m.IsRunning = isRunning != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM stocks WHERE market_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		stock := &market.Stock{}
		if err := rows.Scan(&stock.ID, &stock.Name); err != nil {
			return nil, err
		}
		m.Stocks = append(m.Stocks, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	players := map[string]*market.Player{}
	prows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, name, money FROM players
		WHERE market_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		player := &market.Player{Shares: map[string]int{}}
		if err := prows.Scan(&player.ID, &player.ExternalID, &player.Name, &player.Money); err != nil {
			return nil, err
		}
		players[player.ID] = player
		m.Players = append(m.Players, player)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	srows, err := s.db.QueryContext(ctx, `
		SELECT shares.player_id, shares.stock_id, shares.amount
		FROM shares
		JOIN players ON shares.player_id = players.id
		WHERE players.market_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var playerID, stockID string
		var amount int
		if err := srows.Scan(&playerID, &stockID, &amount); err != nil {
			return nil, err
		}
		if player, ok := players[playerID]; ok {
			player.Shares[stockID] = amount
		}
	}
	return m, srows.Err()
}

func (s *SqliteStore) InsertStock(ctx context.Context, marketID string, stock *market.Stock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stocks (id, market_id, name) VALUES (?, ?, ?)`,
		stock.ID, marketID, stock.Name)
	return err
}

func (s *SqliteStore) InsertPlayer(ctx context.Context, marketID string, player *market.Player) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (id, market_id, external_id, name, money)
		VALUES (?, ?, ?, ?, ?)`,
		player.ID, marketID, player.ExternalID, player.Name, player.Money)
	return err
}

func (s *SqliteStore) SetRunning(ctx context.Context, marketID string, running bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE markets SET is_running = ? WHERE id = ?`, running, marketID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return market.ErrMarketNotFound
	}
	return nil
}

// CommitTrade applies one accepted trade: the new share amount and the new
// player balance land in a single transaction, both or neither.
func (s *SqliteStore) CommitTrade(ctx context.Context, marketID string, commit market.TradeCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shares (player_id, stock_id, amount)
		VALUES (?, ?, ?)
		ON CONFLICT (player_id, stock_id) DO UPDATE SET amount = excluded.amount`,
		commit.PlayerID, commit.StockID, commit.ShareAmount)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE players SET money = ? WHERE id = ?`,
		commit.PlayerMoney, commit.PlayerID)
	if err != nil {
		return err
	}
	log.Debug().Str("marketID", marketID).Str("playerID", commit.PlayerID).
		Str("stockID", commit.StockID).Int("shareAmount", commit.ShareAmount).
		Msg("committing-trade")
	return tx.Commit()
}
