package market

// Failure classifies the expected business outcomes of a trade. These are
// normal results of user action, not errors; infrastructure and validation
// problems are returned as errors instead.
type Failure int

const (
	FailureNone Failure = iota
	FailMarketClosed
	FailPlayerNotFound
	FailStockNotFound
	FailZeroAmount
	FailInsufficientFunds
	FailInsufficientShares
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailMarketClosed:
		return "market-closed"
	case FailPlayerNotFound:
		return "player-not-found"
	case FailStockNotFound:
		return "stock-not-found"
	case FailZeroAmount:
		return "zero-amount"
	case FailInsufficientFunds:
		return "insufficient-funds"
	case FailInsufficientShares:
		return "insufficient-shares"
	}
	return "unknown"
}

// TradeResult is the outcome of one buy or sell. Cost is signed: positive
// was charged to the player, negative refunded. Callers display the absolute
// value. Message carries the human-readable reason when Success is false.
type TradeResult struct {
	Success bool
	Failure Failure
	Message string
	Cost    float64
	Player  string
	Stock   string
}

// StockView is a read-only snapshot of one stock with its derived price and
// probability, both computed from the same holdings vector.
type StockView struct {
	ID                 string
	Name               string
	NumberSold         int
	CurrentPrice       float64
	CurrentProbability float64
}

// PlayerView is a read-only snapshot of one player. Shares maps stock name
// to units held; zero positions are omitted.
type PlayerView struct {
	ID     string
	Name   string
	Money  float64
	Shares map[string]int
}
