package lmsr

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

const Epsilon = 1e-2

func withinEpsilon(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

func TestCost(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	// ln(e^(20/100) + e^(10/100)) * 100
	c, err := rule.Cost([]int{20, 10}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(c, 84.44))

	// ln(e^(20/100) + e^(10/100) + e^(0/100)) * 100
	c, err = rule.Cost([]int{20, 10, 0}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(c, 120.19))

	// ln(e^(200/100) + e^(50/100) + e^(300/100) + e^(75/100) + e^(90/100)) * 100
	c, err = rule.Cost([]int{200, 50, 300, 75, 90}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(c, 351.75))

	// ln(e^(20/50) + e^(10/50)) * 50
	c, err = rule.Cost([]int{20, 10}, 50)
	is.NoErr(err)
	is.True(withinEpsilon(c, 49.90))

	// ln(e^(20/200) + e^(10/200)) * 200
	c, err = rule.Cost([]int{20, 10}, 200)
	is.NoErr(err)
	is.True(withinEpsilon(c, 153.69))
}

func TestCostEmptyMarket(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	c, err := rule.Cost([]int{0, 0}, 100)
	is.NoErr(err)
	is.True(math.Abs(c-100*math.Log(2)) < 1e-9)
}

func TestCostValidation(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	_, err := rule.Cost(nil, 100)
	is.Equal(err, ErrInvalidHoldings)
	_, err = rule.Cost([]int{}, 100)
	is.Equal(err, ErrInvalidHoldings)
	_, err = rule.Cost([]int{20, -10}, 100)
	is.Equal(err, ErrInvalidHoldings)
	_, err = rule.Cost([]int{20, 10}, 0)
	is.Equal(err, ErrInvalidLiquidity)
	_, err = rule.Cost([]int{20, 10}, -100)
	is.Equal(err, ErrInvalidLiquidity)
}

func TestCostMonotonic(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	prev, err := rule.Cost([]int{5, 40, 12}, 100)
	is.NoErr(err)
	for q := 6; q < 60; q += 3 {
		c, err := rule.Cost([]int{q, 40, 12}, 100)
		is.NoErr(err)
		is.True(c > prev)
		prev = c
	}
}

// Holdings far larger than b must not overflow the exponentials.
func TestCostLargeHoldings(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	c, err := rule.Cost([]int{1000000, 500000, 250}, 100)
	is.NoErr(err)
	is.True(!math.IsInf(c, 0))
	is.True(!math.IsNaN(c))
	// dominated entirely by the largest holding
	is.True(withinEpsilon(c, 1000000))

	probs, err := rule.Probabilities([]int{1000000, 500000, 250}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(probs[0], 1.0))
}

func TestCalculateChange(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	// ln(e^0.2 + e^0.1)*100 - ln(2)*100
	change, err := rule.CalculateChange([]int{0, 0}, []int{20, 10}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(change, 15.12))

	change, err = rule.CalculateChange([]int{0, 0}, []int{0, 0}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(change, 0))
}

func TestCalculateChangeAntisymmetric(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	a := []int{14, 3, 77, 0}
	b := []int{20, 3, 50, 9}
	fwd, err := rule.CalculateChange(a, b, 100)
	is.NoErr(err)
	back, err := rule.CalculateChange(b, a, 100)
	is.NoErr(err)
	is.True(math.Abs(fwd+back) < 1e-9)
}

func TestCalculateChangeValidation(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	valid := []int{10, 20}
	_, err := rule.CalculateChange(nil, valid, 100)
	is.Equal(err, ErrInvalidHoldings)
	_, err = rule.CalculateChange(valid, []int{}, 100)
	is.Equal(err, ErrInvalidHoldings)
	_, err = rule.CalculateChange(valid, valid, 0)
	is.Equal(err, ErrInvalidLiquidity)
	_, err = rule.CalculateChange(valid, []int{10, 20, 30}, 100)
	is.Equal(err, ErrHoldingsMismatch)
}

func TestCurrentPrices(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	prices, err := rule.CurrentPrices([]int{0, 0}, 100)
	is.NoErr(err)
	is.Equal(len(prices), 2)
	is.True(withinEpsilon(prices[0], 0.50))
	is.True(withinEpsilon(prices[1], 0.50))

	prices, err = rule.CurrentPrices([]int{500, 0}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(prices[0], 0.99))
	is.True(withinEpsilon(prices[1], 0.01))

	prices, err = rule.CurrentPrices([]int{0, 500}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(prices[0], 0.01))
	is.True(withinEpsilon(prices[1], 0.99))
}

func TestProbabilities(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	probs, err := rule.Probabilities([]int{20, 10}, 100)
	is.NoErr(err)
	is.True(withinEpsilon(probs[0], 0.52))
	is.True(withinEpsilon(probs[1], 0.48))

	probs, err = rule.Probabilities([]int{0, 0}, 100)
	is.NoErr(err)
	is.Equal(probs, []float64{0.5, 0.5})
}

func TestProbabilitiesSumToOne(t *testing.T) {
	is := is.New(t)
	rule := Logarithmic{}

	for _, holdings := range [][]int{
		{0, 0},
		{20, 10},
		{200, 50, 300, 75, 90},
		{1, 1, 1, 1, 1, 1, 1},
		{5000, 0, 12},
	} {
		probs, err := rule.Probabilities(holdings, 100)
		is.NoErr(err)
		sum := float64(0)
		for _, p := range probs {
			sum += p
		}
		is.True(math.Abs(sum-1) < 1e-9)
	}
}
