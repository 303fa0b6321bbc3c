package apportion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sum(xs []int64) int64 {
	var s int64
	for _, x := range xs {
		s += x
	}
	return s
}

func TestSplit_ThreeEqualWeights(t *testing.T) {
	shares, err := Split(1000, []int64{1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{334, 333, 333}, shares)
	require.EqualValues(t, 1000, sum(shares))
}

func TestSplit_ExactSum(t *testing.T) {
	cases := []struct {
		total   int64
		weights []int64
	}{
		{1, []int64{1, 1, 1, 1, 1, 1, 1}},
		{99, []int64{3, 7}},
		{100, []int64{1, 2, 3}},
		{12345, []int64{999, 1, 1}},
		{7, []int64{0, 0, 0}},
		{1000000, []int64{17, 31, 5, 111, 2}},
		{0, []int64{5, 5}},
	}
	for _, tc := range cases {
		shares, err := Split(tc.total, tc.weights)
		require.NoError(t, err)
		require.Len(t, shares, len(tc.weights))
		require.EqualValues(t, tc.total, sum(shares), "total=%d weights=%v", tc.total, tc.weights)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	a, err := Split(101, []int64{1, 1, 1, 1})
	require.NoError(t, err)
	b, err := Split(101, []int64{1, 1, 1, 1})
	require.NoError(t, err)
	require.Equal(t, a, b)

	// Tie on remainders: the extra cent lands on the earliest share.
	require.Equal(t, []int64{26, 25, 25, 25}, a)
}

func TestSplit_ZeroShares(t *testing.T) {
	shares, err := Split(500, nil)
	require.NoError(t, err)
	require.Empty(t, shares)
}

func TestSplit_ZeroTotal(t *testing.T) {
	shares, err := Split(0, []int64{4, 2, 9})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0, 0}, shares)
}

func TestSplit_RejectsBadInput(t *testing.T) {
	_, err := Split(-1, []int64{1})
	require.ErrorIs(t, err, ErrNegativeTotal)

	_, err = Split(10, []int64{1, -2})
	require.ErrorIs(t, err, ErrNegativeWeight)
}

func TestSplit_ProportionalToWeights(t *testing.T) {
	shares, err := Split(600, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, []int64{100, 200, 300}, shares)
}

func TestRebalance_NoCorrections(t *testing.T) {
	got, err := Rebalance(1000, []Share{
		{BaseCents: 300},
		{BaseCents: 300},
		{BaseCents: 400},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1000, sum(got))
	require.Equal(t, []int64{300, 300, 400}, got)
}

func TestRebalance_CorrectionPinsShare(t *testing.T) {
	got, err := Rebalance(1000, []Share{
		{BaseCents: 334, Corrected: true, CorrectedCents: 500},
		{BaseCents: 333},
		{BaseCents: 333},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1000, sum(got))
	require.EqualValues(t, 500, got[0])
	require.Equal(t, []int64{250, 250}, got[1:])
}

func TestRebalance_AllCorrectedKeepsDiscrepancy(t *testing.T) {
	got, err := Rebalance(1000, []Share{
		{Corrected: true, CorrectedCents: 700},
		{Corrected: true, CorrectedCents: 700},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{700, 700}, got, "corrected values are authoritative")
}

func TestRebalance_OvercommittedCorrections(t *testing.T) {
	// Corrections exceed the target; the rest must absorb a negative
	// remainder and the sum still lands exactly on the target.
	got, err := Rebalance(1000, []Share{
		{Corrected: true, CorrectedCents: 1200},
		{BaseCents: 100},
		{BaseCents: 100},
	})
	require.NoError(t, err)
	require.EqualValues(t, 1000, sum(got))
	require.Equal(t, []int64{-100, -100}, got[1:])
}

func TestRebalance_ZeroTotal(t *testing.T) {
	got, err := Rebalance(0, []Share{{BaseCents: 10}, {BaseCents: 20}})
	require.NoError(t, err)
	require.Equal(t, []int64{0, 0}, got)
}

func TestRebalance_Empty(t *testing.T) {
	got, err := Rebalance(100, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
