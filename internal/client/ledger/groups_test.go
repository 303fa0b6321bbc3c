package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallybook/tallybook/internal/models"
)

func seedTransactions(t *testing.T, l *Ledger, amounts ...int64) []string {
	t.Helper()
	ids := make([]string, len(amounts))
	for i, a := range amounts {
		tx, err := l.PutTransaction(context.Background(), models.Transaction{
			AmountCents: a,
			Description: "item",
			Date:        "2026-05-01",
		})
		require.NoError(t, err)
		ids[i] = tx.ID
	}
	return ids
}

func groupSum(t *testing.T, l *Ledger, groupID string) int64 {
	t.Helper()
	var s int64
	for _, tx := range l.Snapshot().LiveTransactions() {
		if tx.GroupID == groupID {
			s += tx.AmountCents
		}
	}
	return s
}

func TestCreateTransactionGroup_MembersSumToTarget(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ids := seedTransactions(t, l, 100, 100, 100)

	g, err := l.CreateTransactionGroup(context.Background(), 1000, ids)
	require.NoError(t, err)
	require.EqualValues(t, 1000, groupSum(t, l, g.ID))
}

func TestCorrectAndReset_KeepInvariant(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()
	ids := seedTransactions(t, l, 100, 100, 100)

	g, err := l.CreateTransactionGroup(ctx, 999, ids)
	require.NoError(t, err)

	require.NoError(t, l.CorrectGroupMember(ctx, g.ID, ids[0], 500))
	require.EqualValues(t, 999, groupSum(t, l, g.ID))

	require.NoError(t, l.ResetGroupMember(ctx, g.ID, ids[0]))
	require.EqualValues(t, 999, groupSum(t, l, g.ID))
}

func TestAddAndRemoveMember_KeepInvariant(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()
	ids := seedTransactions(t, l, 200, 200, 600)

	g, err := l.CreateTransactionGroup(ctx, 1000, ids[:2])
	require.NoError(t, err)

	require.NoError(t, l.AddGroupMember(ctx, g.ID, ids[2]))
	require.EqualValues(t, 1000, groupSum(t, l, g.ID))

	require.NoError(t, l.RemoveGroupMember(ctx, g.ID, ids[2]))
	require.EqualValues(t, 1000, groupSum(t, l, g.ID))
}

func TestRemoveMember_DissolvesSmallGroup(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()
	ids := seedTransactions(t, l, 100, 100)

	g, err := l.CreateTransactionGroup(ctx, 1000, ids)
	require.NoError(t, err)

	require.NoError(t, l.RemoveGroupMember(ctx, g.ID, ids[0]))

	snap := l.Snapshot()
	for _, tx := range snap.LiveTransactions() {
		require.Empty(t, tx.GroupID)
	}
	require.True(t, snap.TransactionGroups[0].Deleted, "dissolved group is tombstoned, not removed")
}

func TestSetGroupTarget_Rebalances(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()
	ids := seedTransactions(t, l, 100, 300)

	g, err := l.CreateTransactionGroup(ctx, 400, ids)
	require.NoError(t, err)

	require.NoError(t, l.SetGroupTarget(ctx, g.ID, 800))
	require.EqualValues(t, 800, groupSum(t, l, g.ID))
}

func TestGroupOps_SkipUnchangedMembers(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()
	ids := seedTransactions(t, l, 500, 500)

	g, err := l.CreateTransactionGroup(ctx, 1000, ids)
	require.NoError(t, err)

	before := map[string]int64{}
	for _, tx := range l.Snapshot().LiveTransactions() {
		before[tx.ID] = tx.Version
	}

	// Amounts already match the split; a second rebalance must not bump
	// anyone.
	require.NoError(t, l.SetGroupTarget(ctx, g.ID, 1000))
	for _, tx := range l.Snapshot().LiveTransactions() {
		require.Equal(t, before[tx.ID], tx.Version, "unchanged member %s re-versioned", tx.ID)
	}
}

func TestApportionCategoryBudget(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()

	cg, err := l.PutCategoryGroup(ctx, models.CategoryGroup{Name: "home", BudgetCents: 1000})
	require.NoError(t, err)
	for _, w := range []int64{1, 1, 1} {
		_, err := l.PutCategory(ctx, models.Category{Name: "c", GroupID: cg.ID, BudgetCents: w})
		require.NoError(t, err)
	}

	require.NoError(t, l.ApportionCategoryBudget(ctx, cg.ID))

	var total int64
	for _, c := range l.Snapshot().Categories {
		total += c.BudgetCents
	}
	require.EqualValues(t, 1000, total)
}
