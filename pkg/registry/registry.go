// package registry maps tenants to their markets and hands out sessions,
// the linearization point for everything that mutates one market.

package registry

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/awilliams/predmarket/pkg/lmsr"
	"github.com/awilliams/predmarket/pkg/market"
	"github.com/awilliams/predmarket/pkg/store"
)

// ErrInvalidSeedMoney rejects markets that would seed joining players with a
// negative balance; player money must never go below zero.
var ErrInvalidSeedMoney = errors.New("seed money can't be negative")

// Manager is the per-tenant market catalogue. It caches one Session per
// market id, so every command against a given market shares the same lock
// while different markets trade concurrently.
type Manager struct {
	store *store.SqliteStore
	rule  lmsr.ScoringRule

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(st *store.SqliteStore) *Manager {
	return &Manager{
		store:    st,
		rule:     lmsr.Logarithmic{},
		sessions: map[string]*Session{},
	}
}

// CreateMarket registers a market for the tenant. Returns false when a
// market by that name already exists (case-insensitively) for the tenant.
func (mgr *Manager) CreateMarket(ctx context.Context, tenant, name, description string,
	seedMoney, liquidity float64) (bool, error) {

	if liquidity <= 0 {
		return false, lmsr.ErrInvalidLiquidity
	}
	if seedMoney < 0 {
		return false, ErrInvalidSeedMoney
	}
	_, err := mgr.store.CreateMarket(ctx, tenant, name, description, seedMoney, liquidity)
	if err == store.ErrDuplicateMarket {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	log.Info().Str("tenant", tenant).Str("name", name).
		Float64("liquidity", liquidity).Msg("market-created")
	return true, nil
}

// SetActiveMarket points the tenant at the named market. Returns false when
// no such market exists for the tenant.
func (mgr *Manager) SetActiveMarket(ctx context.Context, tenant, name string) (bool, error) {
	return mgr.store.SetActiveMarket(ctx, tenant, name)
}

func (mgr *Manager) ListMarkets(ctx context.Context, tenant string) ([]store.MarketListing, error) {
	return mgr.store.ListMarkets(ctx, tenant)
}

// ActiveMarket resolves the tenant's active market to a Session, loading the
// aggregate on first use. Returns store.ErrNoActiveMarket when the tenant
// has no active market set.
func (mgr *Manager) ActiveMarket(ctx context.Context, tenant string) (*Session, error) {
	id, err := mgr.store.ActiveMarketID(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return mgr.session(ctx, id)
}

func (mgr *Manager) session(ctx context.Context, marketID string) (*Session, error) {
	mgr.mu.Lock()
	sess, ok := mgr.sessions[marketID]
	mgr.mu.Unlock()
	if ok {
		return sess, nil
	}

	// Load outside the manager lock so a slow first load of one market
	// never blocks session resolution for other markets.
	m, err := mgr.store.LoadMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if existing, ok := mgr.sessions[marketID]; ok {
		// another caller loaded the same market first; only one session
		// (and one lock) may exist per market
		return existing, nil
	}
	sess = &Session{
		market: m,
		engine: market.NewEngine(mgr.rule, mgr.store),
	}
	mgr.sessions[marketID] = sess
	return sess, nil
}

// Session binds one loaded market aggregate to the transaction engine. Its
// mutex serializes every read-then-write against the aggregate, which keeps
// two concurrent trades from pricing against the same stale holdings.
type Session struct {
	mu     sync.Mutex
	market *market.Market
	engine *market.Engine
}

// Info returns the market's name and description.
func (s *Session) Info() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.market.Name, s.market.Description
}

func (s *Session) Open(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Open(ctx, s.market)
}

func (s *Session) Close(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Close(ctx, s.market)
}

func (s *Session) AddStock(ctx context.Context, name string) (market.StockView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AddStock(ctx, s.market, name)
}

func (s *Session) AddPlayer(ctx context.Context, externalID, name string) (market.PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AddPlayer(ctx, s.market, externalID, name)
}

func (s *Session) Buy(ctx context.Context, playerExternalID, stockID string, amount int) (market.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Buy(ctx, s.market, playerExternalID, stockID, amount)
}

func (s *Session) Sell(ctx context.Context, playerExternalID, stockID string, amount int) (market.TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Sell(ctx, s.market, playerExternalID, stockID, amount)
}

func (s *Session) ListStocks() ([]market.StockView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ListStocks(s.market)
}

func (s *Session) ListPlayers() []market.PlayerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ListPlayers(s.market)
}

func (s *Session) GetPlayer(idOrName string) (market.PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.GetPlayer(s.market, idOrName)
}

// StockByName resolves a stock id from a case-insensitive name, for callers
// that take stock names on the wire.
func (s *Session) StockByName(name string) (market.StockView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stock := s.market.StockByName(name)
	if stock == nil {
		return market.StockView{}, false
	}
	return market.StockView{ID: stock.ID, Name: stock.Name}, true
}

// Holding returns how many units of the stock the player currently holds,
// so callers can derive "sell all" before invoking Sell.
func (s *Session) Holding(playerExternalID, stockID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	player := s.market.PlayerByExternalID(playerExternalID)
	if player == nil {
		return 0
	}
	return player.Shares[stockID]
}

func (s *Session) Predict() (string, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Predict(s.market)
}
