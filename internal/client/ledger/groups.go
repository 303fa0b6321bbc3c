package ledger

import (
	"context"

	"github.com/tallybook/tallybook/internal/apportion"
	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/groups"
	"github.com/tallybook/tallybook/internal/models"
)

// Group operations. Each one runs the pure groups engine over the current
// state and routes the outcome through the mutation path as a single
// persisted step. Members whose values did not move are not re-versioned.

func (l *Ledger) groupIndex(groupID string) int {
	return findIndex[models.TransactionGroup](l.data.TransactionGroups, groupID)
}

func (l *Ledger) liveMembers(groupID string) []models.Transaction {
	var out []models.Transaction
	for _, t := range l.data.Transactions {
		if t.GroupID == groupID && !t.Deleted {
			out = append(out, t)
		}
	}
	return out
}

func (l *Ledger) applyMembers(updated []models.Transaction) error {
	for _, m := range updated {
		idx := findIndex[models.Transaction](l.data.Transactions, m.ID)
		if idx >= 0 && samePayload(l.data.Transactions[idx], m) {
			continue
		}
		if _, err := putRecord[models.Transaction](l, &l.data.Transactions, m); err != nil {
			return err
		}
	}
	return nil
}

// CreateTransactionGroup groups existing transactions under a fixed target
// amount and apportions the target across them.
func (l *Ledger) CreateTransactionGroup(ctx context.Context, targetCents int64, memberIDs []string) (models.TransactionGroup, error) {
	var created models.TransactionGroup
	err := l.mutate(ctx, Change{}, func() error {
		members := make([]models.Transaction, 0, len(memberIDs))
		for _, id := range memberIDs {
			idx := findIndex[models.Transaction](l.data.Transactions, id)
			if idx < 0 || l.data.Transactions[idx].Deleted {
				return common.ErrNotFound
			}
			members = append(members, l.data.Transactions[idx])
		}

		g, updated, err := groups.New(targetCents, members, l.now())
		if err != nil {
			return err
		}
		if created, err = putRecord[models.TransactionGroup](l, &l.data.TransactionGroups, g); err != nil {
			return err
		}
		return l.applyMembers(updated)
	})
	return created, err
}

// SetGroupTarget changes a group's fixed total and rebalances its members.
func (l *Ledger) SetGroupTarget(ctx context.Context, groupID string, targetCents int64) error {
	return l.mutate(ctx, Change{}, func() error {
		idx := l.groupIndex(groupID)
		if idx < 0 || l.data.TransactionGroups[idx].Deleted {
			return common.ErrNotFound
		}
		g := l.data.TransactionGroups[idx]
		g.TargetCents = targetCents

		updated, err := groups.Rebalance(g, l.liveMembers(groupID))
		if err != nil {
			return err
		}
		if _, err := putRecord[models.TransactionGroup](l, &l.data.TransactionGroups, g); err != nil {
			return err
		}
		return l.applyMembers(updated)
	})
}

// CorrectGroupMember pins one member's amount by hand and rebalances the
// rest of the group against the remainder.
func (l *Ledger) CorrectGroupMember(ctx context.Context, groupID, memberID string, amountCents int64) error {
	return l.withGroup(ctx, groupID, func(g models.TransactionGroup, members []models.Transaction) ([]models.Transaction, error) {
		return groups.Correct(g, members, memberID, amountCents)
	})
}

// ResetGroupMember removes a manual correction and rebalances the group.
func (l *Ledger) ResetGroupMember(ctx context.Context, groupID, memberID string) error {
	return l.withGroup(ctx, groupID, func(g models.TransactionGroup, members []models.Transaction) ([]models.Transaction, error) {
		return groups.Reset(g, members, memberID)
	})
}

// AddGroupMember pulls an ungrouped transaction into the group.
func (l *Ledger) AddGroupMember(ctx context.Context, groupID, transactionID string) error {
	return l.withGroup(ctx, groupID, func(g models.TransactionGroup, members []models.Transaction) ([]models.Transaction, error) {
		idx := findIndex[models.Transaction](l.data.Transactions, transactionID)
		if idx < 0 || l.data.Transactions[idx].Deleted {
			return nil, common.ErrNotFound
		}
		return groups.Add(g, members, l.data.Transactions[idx])
	})
}

func (l *Ledger) withGroup(ctx context.Context, groupID string, op func(models.TransactionGroup, []models.Transaction) ([]models.Transaction, error)) error {
	return l.mutate(ctx, Change{}, func() error {
		idx := l.groupIndex(groupID)
		if idx < 0 || l.data.TransactionGroups[idx].Deleted {
			return common.ErrNotFound
		}
		updated, err := op(l.data.TransactionGroups[idx], l.liveMembers(groupID))
		if err != nil {
			return err
		}
		return l.applyMembers(updated)
	})
}

// RemoveGroupMember detaches a member. A group left with fewer than two
// live members dissolves: every survivor is detached and the group record
// is tombstoned.
func (l *Ledger) RemoveGroupMember(ctx context.Context, groupID, memberID string) error {
	return l.mutate(ctx, Change{}, func() error {
		idx := l.groupIndex(groupID)
		if idx < 0 || l.data.TransactionGroups[idx].Deleted {
			return common.ErrNotFound
		}
		out, err := groups.Remove(l.data.TransactionGroups[idx], l.liveMembers(groupID), memberID)
		if err != nil {
			return err
		}
		if err := l.applyMembers(out.Kept); err != nil {
			return err
		}
		if err := l.applyMembers(out.Cleared); err != nil {
			return err
		}
		if out.Dissolved {
			return deleteRecord[models.TransactionGroup](l, l.data.TransactionGroups, groupID)
		}
		return nil
	})
}

// ApportionCategoryBudget splits a category group's monthly budget across
// its member categories, weighted by their current budgets, so the members
// sum exactly to the group budget.
func (l *Ledger) ApportionCategoryBudget(ctx context.Context, categoryGroupID string) error {
	return l.mutate(ctx, Change{}, func() error {
		gIdx := findIndex[models.CategoryGroup](l.data.CategoryGroups, categoryGroupID)
		if gIdx < 0 || l.data.CategoryGroups[gIdx].Deleted {
			return common.ErrNotFound
		}

		var memberIdx []int
		var weights []int64
		for i, c := range l.data.Categories {
			if c.GroupID == categoryGroupID && !c.Deleted {
				memberIdx = append(memberIdx, i)
				weights = append(weights, c.BudgetCents)
			}
		}
		if len(memberIdx) == 0 {
			return nil
		}

		shares, err := apportion.Split(l.data.CategoryGroups[gIdx].BudgetCents, weights)
		if err != nil {
			return err
		}
		for i, idx := range memberIdx {
			if l.data.Categories[idx].BudgetCents == shares[i] {
				continue
			}
			c := l.data.Categories[idx]
			c.BudgetCents = shares[i]
			if _, err := putRecord[models.Category](l, &l.data.Categories, c); err != nil {
				return err
			}
		}
		return nil
	})
}
