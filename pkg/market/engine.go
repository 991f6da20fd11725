package market

import (
	"context"
	"fmt"

	"github.com/lithammer/shortuuid"
	"github.com/rs/zerolog/log"

	"github.com/awilliams/predmarket/pkg/lmsr"
)

// Repository persists market state. Implementations must apply CommitTrade
// atomically: the share amount and the player balance change together or not
// at all. The engine performs no retries; a failed commit surfaces as an
// error with the in-memory aggregate left untouched.
type Repository interface {
	LoadMarket(ctx context.Context, id string) (*Market, error)
	InsertStock(ctx context.Context, marketID string, stock *Stock) error
	InsertPlayer(ctx context.Context, marketID string, player *Player) error
	SetRunning(ctx context.Context, marketID string, running bool) error
	CommitTrade(ctx context.Context, marketID string, commit TradeCommit) error
}

// TradeCommit is the atomic change set of one accepted trade. Amounts are
// absolute new values, not deltas.
type TradeCommit struct {
	PlayerID    string
	StockID     string
	ShareAmount int
	PlayerMoney float64
}

// Engine executes state transitions against one market aggregate, pricing
// trades with a scoring rule and persisting through a repository. Callers
// must linearize operations on a single market; see registry.Session.
type Engine struct {
	rule lmsr.ScoringRule
	repo Repository
}

func NewEngine(rule lmsr.ScoringRule, repo Repository) *Engine {
	return &Engine{rule: rule, repo: repo}
}

// Open starts trading on the market. Returns whether the state changed.
func (e *Engine) Open(ctx context.Context, m *Market) (bool, error) {
	if m.IsRunning {
		return false, nil
	}
	if err := e.repo.SetRunning(ctx, m.ID, true); err != nil {
		return false, err
	}
	return m.Start(), nil
}

// Close stops trading on the market. Returns whether the state changed.
func (e *Engine) Close(ctx context.Context, m *Market) (bool, error) {
	if !m.IsRunning {
		return false, nil
	}
	if err := e.repo.SetRunning(ctx, m.ID, false); err != nil {
		return false, err
	}
	return m.Stop(), nil
}

// AddStock adds a new outcome to a closed market. Adding a name that already
// exists (case-insensitively) is idempotent and returns the existing stock.
// Once a market has been opened its stock set is frozen for good; closing
// and reopening does not unfreeze it.
func (e *Engine) AddStock(ctx context.Context, m *Market, name string) (StockView, error) {
	if m.IsRunning {
		return StockView{}, ErrMarketOpen
	}
	if existing := m.StockByName(name); existing != nil {
		return StockView{ID: existing.ID, Name: existing.Name}, nil
	}
	stock := &Stock{ID: shortuuid.New(), Name: name}
	if err := e.repo.InsertStock(ctx, m.ID, stock); err != nil {
		return StockView{}, err
	}
	m.Stocks = append(m.Stocks, stock)
	return StockView{ID: stock.ID, Name: stock.Name}, nil
}

// AddPlayer registers a participant, seeding their balance from the market's
// seed money. The external id must be unique within the market.
func (e *Engine) AddPlayer(ctx context.Context, m *Market, externalID, name string) (PlayerView, error) {
	if m.PlayerByExternalID(externalID) != nil {
		return PlayerView{}, ErrDuplicatePlayer
	}
	player := &Player{
		ID:         shortuuid.New(),
		ExternalID: externalID,
		Name:       name,
		Money:      m.SeedMoney,
		Shares:     map[string]int{},
	}
	if err := e.repo.InsertPlayer(ctx, m.ID, player); err != nil {
		return PlayerView{}, err
	}
	m.Players = append(m.Players, player)
	return e.playerView(m, player), nil
}

// Buy purchases amount units of the stock for the player.
func (e *Engine) Buy(ctx context.Context, m *Market, playerExternalID, stockID string, amount int) (TradeResult, error) {
	return e.trade(ctx, m, playerExternalID, stockID, amount)
}

// Sell disposes of amount units of the stock for the player.
func (e *Engine) Sell(ctx context.Context, m *Market, playerExternalID, stockID string, amount int) (TradeResult, error) {
	return e.trade(ctx, m, playerExternalID, stockID, -amount)
}

// trade executes one signed trade: positive amount buys, negative sells.
// Preconditions are checked in a fixed order and each rejection happens
// before any state is read or written for the trade proper.
func (e *Engine) trade(ctx context.Context, m *Market, playerExternalID, stockID string, amount int) (TradeResult, error) {
	if !m.IsRunning {
		return TradeResult{
			Failure: FailMarketClosed,
			Message: "the market must be running to buy or sell stocks",
		}, nil
	}

	player := m.PlayerByExternalID(playerExternalID)
	if player == nil {
		return TradeResult{
			Failure: FailPlayerNotFound,
			Message: fmt.Sprintf("no player found with id %v", playerExternalID),
		}, nil
	}

	stock := m.StockByID(stockID)
	if stock == nil {
		return TradeResult{
			Failure: FailStockNotFound,
			Message: fmt.Sprintf("no stock found with id %v", stockID),
			Player:  player.Name,
		}, nil
	}

	result := TradeResult{Player: player.Name, Stock: stock.Name}

	if amount == 0 {
		result.Failure = FailZeroAmount
		result.Message = "amount to buy or sell can't be zero"
		return result, nil
	}

	starting := m.Holdings()
	ending := make([]int, len(starting))
	copy(ending, starting)
	for i, s := range m.Stocks {
		if s.ID == stock.ID {
			ending[i] += amount
		}
	}

	cost, err := e.rule.CalculateChange(starting, ending, m.Liquidity)
	if err != nil {
		return result, err
	}

	if player.Money < cost {
		result.Failure = FailInsufficientFunds
		result.Message = fmt.Sprintf("not enough money to buy shares. cost: %.2f", cost)
		return result, nil
	}

	newShareAmount := player.Shares[stock.ID] + amount
	if newShareAmount < 0 {
		result.Failure = FailInsufficientShares
		result.Message = fmt.Sprintf("not enough shares held to sell %v", -amount)
		return result, nil
	}

	commit := TradeCommit{
		PlayerID:    player.ID,
		StockID:     stock.ID,
		ShareAmount: newShareAmount,
		PlayerMoney: player.Money - cost,
	}
	if err := e.repo.CommitTrade(ctx, m.ID, commit); err != nil {
		return result, err
	}

	player.Shares[stock.ID] = newShareAmount
	player.Money = commit.PlayerMoney

	log.Debug().Str("market", m.ID).Str("player", player.Name).Str("stock", stock.Name).
		Int("amount", amount).Float64("cost", cost).Msg("trade-committed")

	result.Success = true
	result.Cost = cost
	return result, nil
}

// ListStocks returns every stock with its price and probability, all derived
// from one holdings snapshot.
func (e *Engine) ListStocks(m *Market) ([]StockView, error) {
	if len(m.Stocks) == 0 {
		return []StockView{}, nil
	}
	holdings := m.Holdings()
	prices, err := e.rule.CurrentPrices(holdings, m.Liquidity)
	if err != nil {
		return nil, err
	}
	probs, err := e.rule.Probabilities(holdings, m.Liquidity)
	if err != nil {
		return nil, err
	}
	views := make([]StockView, len(m.Stocks))
	for i, s := range m.Stocks {
		views[i] = StockView{
			ID:                 s.ID,
			Name:               s.Name,
			NumberSold:         holdings[i],
			CurrentPrice:       prices[i],
			CurrentProbability: probs[i],
		}
	}
	return views, nil
}

// ListPlayers returns every player with their share ledger.
func (e *Engine) ListPlayers(m *Market) []PlayerView {
	views := make([]PlayerView, len(m.Players))
	for i, p := range m.Players {
		views[i] = e.playerView(m, p)
	}
	return views
}

// GetPlayer resolves a player by external id first, then by display name.
func (e *Engine) GetPlayer(m *Market, idOrName string) (PlayerView, bool) {
	player := m.PlayerByExternalID(idOrName)
	if player == nil {
		player = m.PlayerByName(idOrName)
	}
	if player == nil {
		return PlayerView{}, false
	}
	return e.playerView(m, player), true
}

// Predict returns the name and probability of the currently most likely
// outcome.
func (e *Engine) Predict(m *Market) (string, float64, error) {
	if len(m.Stocks) == 0 {
		return "", 0, ErrNoStocks
	}
	probs, err := e.rule.Probabilities(m.Holdings(), m.Liquidity)
	if err != nil {
		return "", 0, err
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return m.Stocks[best].Name, probs[best], nil
}

func (e *Engine) playerView(m *Market, p *Player) PlayerView {
	shares := map[string]int{}
	for stockID, amount := range p.Shares {
		if amount == 0 {
			continue
		}
		if s := m.StockByID(stockID); s != nil {
			shares[s.Name] = amount
		}
	}
	return PlayerView{ID: p.ID, Name: p.Name, Money: p.Money, Shares: shares}
}
