// Package apportion splits integer-cent totals across weighted shares with
// an exact sum, using the largest-remainder (Hare–Niemeyer) method. All
// arithmetic is int64; floating point never enters the computation, so the
// exact-sum guarantee cannot drift.
package apportion

import (
	"errors"
	"sort"
)

var (
	ErrNegativeTotal  = errors.New("apportion: negative total")
	ErrNegativeWeight = errors.New("apportion: negative weight")
)

// Split distributes totalCents across len(weights) shares proportionally to
// the weights, returning integer cents that sum to exactly totalCents.
//
// Each share first receives the floor of its exact proportional amount; the
// leftover cents go one each to the shares with the largest fractional
// remainder, earlier shares winning ties. If every weight is zero the split
// falls back to equal weighting. Zero shares is a no-op.
//
// Totals and weights are expected to stay well inside int64 so the
// cross product totalCents*weight cannot overflow.
func Split(totalCents int64, weights []int64) ([]int64, error) {
	if totalCents < 0 {
		return nil, ErrNegativeTotal
	}
	n := len(weights)
	if n == 0 {
		return []int64{}, nil
	}

	var sumW int64
	for _, w := range weights {
		if w < 0 {
			return nil, ErrNegativeWeight
		}
		sumW += w
	}
	if sumW == 0 {
		weights = make([]int64, n)
		for i := range weights {
			weights[i] = 1
		}
		sumW = int64(n)
	}

	shares := make([]int64, n)
	remainders := make([]int64, n)
	var distributed int64
	for i, w := range weights {
		product := totalCents * w
		shares[i] = product / sumW
		remainders[i] = product % sumW
		distributed += shares[i]
	}

	shortfall := totalCents - distributed
	if shortfall > 0 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return remainders[order[a]] > remainders[order[b]]
		})
		for i := int64(0); i < shortfall; i++ {
			shares[order[i]]++
		}
	}

	return shares, nil
}

// Share is one member of a rebalanced total. A corrected share keeps its
// human-fixed amount; uncorrected shares absorb whatever remains of the
// total, weighted by their base amounts.
type Share struct {
	BaseCents      int64
	Corrected      bool
	CorrectedCents int64
}

// Rebalance distributes totalCents across the shares. Corrected amounts are
// authoritative and copied through untouched; the remainder
// (totalCents - sum of corrected) is split across the uncorrected shares by
// Split, weighted by the magnitude of each base amount.
//
// When every share is corrected the corrected values are returned even if
// they do not sum to totalCents: the discrepancy is the operator's call.
// A negative remainder is apportioned by magnitude and negated, keeping the
// sum exact.
func Rebalance(totalCents int64, shares []Share) ([]int64, error) {
	if len(shares) == 0 {
		return []int64{}, nil
	}

	remaining := totalCents
	var open []int
	weights := make([]int64, 0, len(shares))
	for i, s := range shares {
		if s.Corrected {
			remaining -= s.CorrectedCents
			continue
		}
		open = append(open, i)
		w := s.BaseCents
		if w < 0 {
			w = -w
		}
		weights = append(weights, w)
	}

	out := make([]int64, len(shares))
	for i, s := range shares {
		if s.Corrected {
			out[i] = s.CorrectedCents
		}
	}
	if len(open) == 0 {
		return out, nil
	}

	parts, err := splitSigned(remaining, weights)
	if err != nil {
		return nil, err
	}
	for i, idx := range open {
		out[idx] = parts[i]
	}
	return out, nil
}

func splitSigned(total int64, weights []int64) ([]int64, error) {
	if total >= 0 {
		return Split(total, weights)
	}
	parts, err := Split(-total, weights)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		parts[i] = -parts[i]
	}
	return parts, nil
}
