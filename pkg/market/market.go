// package market holds the in-memory market aggregate (a market plus its
// stocks, players and share ledger, one consistency boundary) and the
// transaction engine that executes priced trades against it.

package market

import (
	"errors"
	"strings"
)

var (
	ErrMarketNotFound  = errors.New("no market found with that id")
	ErrMarketOpen      = errors.New("can't add stocks once the market is running")
	ErrDuplicatePlayer = errors.New("a player with that id already exists in this market")
	ErrNoStocks        = errors.New("the market has no stocks")
)

// Market is the canonical state of one market, fully materialized: every
// stock, player and share is loaded before any mutation, so the engine never
// computes against a partial view. Stocks keeps insertion order; the holdings
// vector is always laid out in that order.
type Market struct {
	ID          string
	Tenant      string
	Name        string
	Description string
	SeedMoney   float64
	Liquidity   float64
	IsRunning   bool
	Stocks      []*Stock
	Players     []*Player
}

// Stock is one tradeable outcome. Its price and probability are derived from
// the full holdings vector on demand, never stored.
type Stock struct {
	ID   string
	Name string
}

// Player is one participant. Shares maps stock id to the number of units
// held; entries are created lazily on first trade.
type Player struct {
	ID         string
	ExternalID string
	Name       string
	Money      float64
	Shares     map[string]int
}

// Start opens the market for trading. Returns false if it was already open.
func (m *Market) Start() bool {
	if m.IsRunning {
		return false
	}
	m.IsRunning = true
	return true
}

// Stop closes the market. Returns false if it was already closed.
func (m *Market) Stop() bool {
	if !m.IsRunning {
		return false
	}
	m.IsRunning = false
	return true
}

func (m *Market) StockByID(id string) *Stock {
	for _, s := range m.Stocks {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Market) StockByName(name string) *Stock {
	for _, s := range m.Stocks {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}
	return nil
}

func (m *Market) PlayerByExternalID(externalID string) *Player {
	for _, p := range m.Players {
		if p.ExternalID == externalID {
			return p
		}
	}
	return nil
}

func (m *Market) PlayerByName(name string) *Player {
	for _, p := range m.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// NumberSold is the total units of the given stock held across all players.
func (m *Market) NumberSold(stockID string) int {
	total := 0
	for _, p := range m.Players {
		total += p.Shares[stockID]
	}
	return total
}

// Holdings returns the market's holdings vector, one entry per stock in
// stock order.
func (m *Market) Holdings() []int {
	holdings := make([]int, len(m.Stocks))
	for i, s := range m.Stocks {
		holdings[i] = m.NumberSold(s.ID)
	}
	return holdings
}
