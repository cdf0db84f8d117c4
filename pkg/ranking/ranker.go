// Package ranking turns a set of heterogeneous quotes into a single
// deterministic ordering.
//
// Every factor is normalized against the best value observed within the
// current quote set, never against a global constant, so scores are only
// meaningful relative to one ranking call. A singleton set trivially scores
// 100 on every axis.
package ranking

import (
	"sort"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

const maxFactorScore = 100.0

// Rank scores each quote independently with the given weights and returns
// the quotes ordered best-first. The input slice is not modified. Ties are
// broken by provider name ascending so the ordering is stable across runs.
func Rank(quotes []quote.Quote, w quote.Weights) []quote.Scored {
	if len(quotes) == 0 {
		return nil
	}

	w = normalizeWeights(w)

	minCost := quotes[0].TotalCostUSD.InexactFloat64()
	minTime := float64(quotes[0].EstimatedTimeSeconds)
	maxRel := quotes[0].SuccessRate
	maxLiq := quotes[0].LiquidityScore
	for _, q := range quotes[1:] {
		if c := q.TotalCostUSD.InexactFloat64(); c < minCost {
			minCost = c
		}
		if t := float64(q.EstimatedTimeSeconds); t < minTime {
			minTime = t
		}
		if q.SuccessRate > maxRel {
			maxRel = q.SuccessRate
		}
		if q.LiquidityScore > maxLiq {
			maxLiq = q.LiquidityScore
		}
	}

	scored := make([]quote.Scored, len(quotes))
	for i, q := range quotes {
		costScore := ratioScore(minCost, q.TotalCostUSD.InexactFloat64())
		speedScore := ratioScore(minTime, float64(q.EstimatedTimeSeconds))
		relScore := ratioScore(q.SuccessRate, maxRel)
		liqScore := ratioScore(q.LiquidityScore, maxLiq)

		scored[i] = quote.Scored{
			Quote: q,
			Score: costScore*w.Cost +
				speedScore*w.Speed +
				relScore*w.Reliability +
				liqScore*w.Liquidity,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Provider < scored[j].Provider
	})

	return scored
}

// ratioScore maps a factor onto [0,100] relative to the best value in the
// set. For lower-is-better factors pass (best, value); for higher-is-better
// factors pass (value, best).
func ratioScore(numerator, denominator float64) float64 {
	if denominator <= 0 {
		return maxFactorScore
	}
	s := maxFactorScore * numerator / denominator
	if s > maxFactorScore {
		return maxFactorScore
	}
	if s < 0 {
		return 0
	}
	return s
}

// normalizeWeights scales the weights so they sum to 1. Negative weights
// are clamped to zero so no factor axis can invert; zero weights fall back
// to the defaults.
func normalizeWeights(w quote.Weights) quote.Weights {
	if w.IsZero() {
		w = quote.DefaultWeights()
	}
	w.Cost = max(w.Cost, 0)
	w.Speed = max(w.Speed, 0)
	w.Reliability = max(w.Reliability, 0)
	w.Liquidity = max(w.Liquidity, 0)
	sum := w.Cost + w.Speed + w.Reliability + w.Liquidity
	if sum <= 0 {
		return quote.DefaultWeights()
	}
	return quote.Weights{
		Cost:        w.Cost / sum,
		Speed:       w.Speed / sum,
		Reliability: w.Reliability / sum,
		Liquidity:   w.Liquidity / sum,
	}
}
