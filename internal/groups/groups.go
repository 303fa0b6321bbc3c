// Package groups maintains the transaction-group invariant: the live
// members of a group always sum to the group's target amount, with manually
// corrected members pinned and the rest rebalanced by the apportionment
// engine.
//
// Functions are pure over value copies; callers apply the returned records
// through the record-model mutation path.
package groups

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tallybook/tallybook/internal/apportion"
	"github.com/tallybook/tallybook/internal/models"
)

var (
	ErrMemberNotFound = errors.New("groups: member not found")
	ErrTooFewMembers  = errors.New("groups: a group needs at least 2 members")
)

// New forms a group over the given transactions with a fixed target amount.
// Each member's current amount becomes its proportional base, and the target
// is immediately apportioned across the members.
func New(targetCents int64, members []models.Transaction, now time.Time) (models.TransactionGroup, []models.Transaction, error) {
	if len(members) < 2 {
		return models.TransactionGroup{}, nil, ErrTooFewMembers
	}

	g := models.TransactionGroup{
		Meta:        models.Meta{ID: uuid.NewString()},
		TargetCents: targetCents,
		CreatedAt:   now,
	}

	out := make([]models.Transaction, len(members))
	for i, m := range members {
		m.GroupID = g.ID
		m.GroupBaseCents = m.AmountCents
		m.Corrected = false
		out[i] = m
	}

	out, err := Rebalance(g, out)
	if err != nil {
		return models.TransactionGroup{}, nil, err
	}
	return g, out, nil
}

// Rebalance recomputes the amounts of the group's live members so they sum
// to the target. Corrected members keep their amounts; the rest share the
// remainder in proportion to their base amounts. Tombstoned members pass
// through untouched.
func Rebalance(g models.TransactionGroup, members []models.Transaction) ([]models.Transaction, error) {
	live := make([]int, 0, len(members))
	shares := make([]apportion.Share, 0, len(members))
	for i, m := range members {
		if m.Deleted {
			continue
		}
		live = append(live, i)
		shares = append(shares, apportion.Share{
			BaseCents:      m.GroupBaseCents,
			Corrected:      m.Corrected,
			CorrectedCents: m.AmountCents,
		})
	}

	amounts, err := apportion.Rebalance(g.TargetCents, shares)
	if err != nil {
		return nil, err
	}

	out := make([]models.Transaction, len(members))
	copy(out, members)
	for i, idx := range live {
		out[idx].AmountCents = amounts[i]
	}
	return out, nil
}

// Correct pins one member to a hand-entered amount and rebalances the rest.
func Correct(g models.TransactionGroup, members []models.Transaction, memberID string, amountCents int64) ([]models.Transaction, error) {
	out, found := make([]models.Transaction, len(members)), false
	copy(out, members)
	for i := range out {
		if out[i].ID == memberID && !out[i].Deleted {
			out[i].Corrected = true
			out[i].AmountCents = amountCents
			found = true
		}
	}
	if !found {
		return nil, ErrMemberNotFound
	}
	return Rebalance(g, out)
}

// Reset drops a member's correction so it participates in redistribution
// again, and rebalances the whole group.
func Reset(g models.TransactionGroup, members []models.Transaction, memberID string) ([]models.Transaction, error) {
	out, found := make([]models.Transaction, len(members)), false
	copy(out, members)
	for i := range out {
		if out[i].ID == memberID && !out[i].Deleted {
			out[i].Corrected = false
			found = true
		}
	}
	if !found {
		return nil, ErrMemberNotFound
	}
	return Rebalance(g, out)
}

// Add brings a transaction into the group, using its current amount as the
// proportional base, and rebalances.
func Add(g models.TransactionGroup, members []models.Transaction, tx models.Transaction) ([]models.Transaction, error) {
	tx.GroupID = g.ID
	tx.GroupBaseCents = tx.AmountCents
	tx.Corrected = false
	return Rebalance(g, append(append([]models.Transaction{}, members...), tx))
}

// Removal is how groups shrink; a group left with fewer than two live
// members is dissolved.
type RemoveOutcome struct {
	// Kept holds the remaining members, rebalanced (empty when dissolved).
	Kept []models.Transaction
	// Cleared holds every transaction whose group fields were stripped:
	// the removed member, plus all remaining members on dissolution.
	Cleared []models.Transaction
	// Dissolved reports that the group itself should be tombstoned.
	Dissolved bool
}

// Remove detaches a member from the group. The detached transaction keeps
// its current amount but loses its group fields. If fewer than two live
// members remain the group dissolves and every survivor is detached too.
func Remove(g models.TransactionGroup, members []models.Transaction, memberID string) (RemoveOutcome, error) {
	var removed *models.Transaction
	rest := make([]models.Transaction, 0, len(members))
	for _, m := range members {
		if m.ID == memberID {
			mm := m
			removed = &mm
			continue
		}
		rest = append(rest, m)
	}
	if removed == nil {
		return RemoveOutcome{}, ErrMemberNotFound
	}
	detach(removed)

	liveCount := 0
	for _, m := range rest {
		if !m.Deleted {
			liveCount++
		}
	}

	if liveCount < 2 {
		cleared := []models.Transaction{*removed}
		for i := range rest {
			detach(&rest[i])
			cleared = append(cleared, rest[i])
		}
		return RemoveOutcome{Cleared: cleared, Dissolved: true}, nil
	}

	kept, err := Rebalance(g, rest)
	if err != nil {
		return RemoveOutcome{}, err
	}
	return RemoveOutcome{Kept: kept, Cleared: []models.Transaction{*removed}}, nil
}

func detach(t *models.Transaction) {
	t.GroupID = ""
	t.GroupBaseCents = 0
	t.Corrected = false
}
