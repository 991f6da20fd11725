// package lmsr implements market scoring rules for an automated market maker,
// chiefly Hanson's Logarithmic Market Scoring Rule.

package lmsr

import (
	"errors"
	"math"
)

// DefaultLiquidity is a reasonable spread parameter for small markets.
const DefaultLiquidity = float64(100.0)

var (
	ErrInvalidLiquidity = errors.New("liquidity must be greater than zero")
	ErrInvalidHoldings  = errors.New("holdings must be non-empty and non-negative")
	ErrHoldingsMismatch = errors.New("beginning and ending holdings must be the same length")
)

// ScoringRule prices a market from its holdings vector (units sold per
// outcome so far) and a liquidity constant b. Implementations must be pure;
// prices and probabilities derive from the same cost function so a single
// holdings snapshot always yields mutually consistent numbers.
type ScoringRule interface {
	// Cost is the total payment the market maker has collected to reach
	// the given holdings vector from zero.
	Cost(holdings []int, liquidity float64) (float64, error)
	// CalculateChange is the signed payment for moving the market from one
	// holdings vector to another: positive is charged, negative refunded.
	CalculateChange(beginning, ending []int, liquidity float64) (float64, error)
	// CurrentPrices returns the marginal price of one more unit of each
	// outcome, parallel to holdings.
	CurrentPrices(holdings []int, liquidity float64) ([]float64, error)
	// Probabilities returns the market's implied probability per outcome,
	// summing to 1.
	Probabilities(holdings []int, liquidity float64) ([]float64, error)
}

// Logarithmic is the LMSR: C(q) = b * ln(Σ exp(q_i / b)).
type Logarithmic struct{}

var _ ScoringRule = Logarithmic{}

func validate(holdings []int, liquidity float64) error {
	if liquidity <= 0 {
		return ErrInvalidLiquidity
	}
	if len(holdings) == 0 {
		return ErrInvalidHoldings
	}
	for _, q := range holdings {
		if q < 0 {
			return ErrInvalidHoldings
		}
	}
	return nil
}

// cost computes b * ln(Σ exp(q_i/b)) shifted by max(q_i)/b, so holdings that
// are large relative to b don't overflow the exponentials. Assumes holdings
// were already validated.
func cost(holdings []int, b float64) float64 {
	maxq := holdings[0]
	for _, q := range holdings[1:] {
		if q > maxq {
			maxq = q
		}
	}
	shift := float64(maxq) / b
	sum := float64(0)
	for _, q := range holdings {
		sum += math.Exp(float64(q)/b - shift)
	}
	return b * (shift + math.Log(sum))
}

func (Logarithmic) Cost(holdings []int, liquidity float64) (float64, error) {
	if err := validate(holdings, liquidity); err != nil {
		return 0, err
	}
	return cost(holdings, liquidity), nil
}

func (Logarithmic) CalculateChange(beginning, ending []int, liquidity float64) (float64, error) {
	if err := validate(beginning, liquidity); err != nil {
		return 0, err
	}
	if err := validate(ending, liquidity); err != nil {
		return 0, err
	}
	if len(beginning) != len(ending) {
		return 0, ErrHoldingsMismatch
	}
	return cost(ending, liquidity) - cost(beginning, liquidity), nil
}

func (Logarithmic) CurrentPrices(holdings []int, liquidity float64) ([]float64, error) {
	if err := validate(holdings, liquidity); err != nil {
		return nil, err
	}
	base := cost(holdings, liquidity)
	bumped := make([]int, len(holdings))
	copy(bumped, holdings)

	prices := make([]float64, len(holdings))
	for i := range holdings {
		bumped[i]++
		prices[i] = cost(bumped, liquidity) - base
		bumped[i]--
	}
	return prices, nil
}

func (Logarithmic) Probabilities(holdings []int, liquidity float64) ([]float64, error) {
	if err := validate(holdings, liquidity); err != nil {
		return nil, err
	}
	maxq := holdings[0]
	for _, q := range holdings[1:] {
		if q > maxq {
			maxq = q
		}
	}
	shift := float64(maxq) / liquidity

	probs := make([]float64, len(holdings))
	denom := float64(0)
	for i, q := range holdings {
		e := math.Exp(float64(q)/liquidity - shift)
		probs[i] = e
		denom += e
	}
	for i := range probs {
		probs[i] /= denom
	}
	return probs, nil
}
