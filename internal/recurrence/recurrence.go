// Package recurrence expands recurring-payment rules into concrete dated
// transactions, exactly once per elapsed occurrence.
//
// The engine is pure: it reads rules and existing transactions and returns
// the transactions to create plus the advanced rule checkpoints. Routing the
// results through the record-model mutation path is the caller's job, which
// keeps version and timestamp invariants in one place.
package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallybook/tallybook/internal/models"
)

// DefaultMaxOccurrences bounds how many occurrences a single rule may
// advance in one pass. It exists purely to guarantee termination on corrupt
// rule data.
const DefaultMaxOccurrences = 1000

// Options tune an expansion pass.
type Options struct {
	// MaxOccurrences caps the per-rule iteration count. Zero means
	// DefaultMaxOccurrences.
	MaxOccurrences int

	// NewID mints transaction ids. Defaults to uuid.NewString. Injected so
	// tests can produce stable output.
	NewID func() string
}

func (o Options) maxOccurrences() int {
	if o.MaxOccurrences > 0 {
		return o.MaxOccurrences
	}
	return DefaultMaxOccurrences
}

func (o Options) newID() func() string {
	if o.NewID != nil {
		return o.NewID
	}
	return uuid.NewString
}

// SkippedRule records a rule excluded from a pass and why. Skips are
// per-rule: one corrupt rule never aborts the others.
type SkippedRule struct {
	RuleID string
	Reason error
}

// Result is the outcome of one expansion pass.
//
// NewTransactions carry no version or timestamp; the record model assigns
// those when they are applied. AdvancedRules are value copies of only the
// rules whose checkpoint actually moved, so applying a Result from an
// already-caught-up pass is a no-op.
type Result struct {
	NewTransactions []models.Transaction
	AdvancedRules   []models.RecurringTransaction
	Skipped         []SkippedRule
}

// Expand walks every live rule from its checkpoint (or start date, if never
// processed) to asOf, synthesizing one transaction per occurrence that does
// not already have a live transaction for that rule and day. The checkpoint
// advances over occurrences that already had a transaction too, which makes
// re-running the expansion idempotent.
func Expand(rules []models.RecurringTransaction, existing []models.Transaction, asOf time.Time, opts Options) Result {
	var res Result

	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		if t.RecurringID == "" || t.Deleted {
			continue
		}
		seen[t.RecurringID+"|"+t.Date] = struct{}{}
	}

	newID := opts.newID()
	maxOcc := opts.maxOccurrences()

	for _, rule := range rules {
		if rule.Deleted {
			continue
		}

		step, ok := rule.Frequency.MonthStep()
		if !ok {
			res.Skipped = append(res.Skipped, SkippedRule{
				RuleID: rule.ID,
				Reason: fmt.Errorf("unknown frequency %q", rule.Frequency),
			})
			continue
		}

		start, err := models.ParseDate(rule.StartDate)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRule{
				RuleID: rule.ID,
				Reason: fmt.Errorf("start date: %w", err),
			})
			continue
		}

		cursor := start
		unprocessed := rule.LastProcessedDate == ""
		if !unprocessed {
			cursor, err = models.ParseDate(rule.LastProcessedDate)
			if err != nil {
				res.Skipped = append(res.Skipped, SkippedRule{
					RuleID: rule.ID,
					Reason: fmt.Errorf("last processed date: %w", err),
				})
				continue
			}
		}

		advanced := false
		for i := 0; i < maxOcc; i++ {
			next := cursor.AddDate(0, step, 0)
			if unprocessed {
				// A never-processed rule owes an occurrence on its start
				// date itself.
				next = cursor
				unprocessed = false
			}
			if next.After(asOf) {
				break
			}

			if !next.Before(start) {
				day := models.FormatDate(next)
				key := rule.ID + "|" + day
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					res.NewTransactions = append(res.NewTransactions, models.Transaction{
						Meta:        models.Meta{ID: newID()},
						AmountCents: rule.AmountCents,
						Description: rule.Description,
						CategoryID:  rule.CategoryID,
						Date:        day,
						RecurringID: rule.ID,
						OwnerID:     rule.OwnerID,
					})
				}
			}

			cursor = next
			advanced = true
		}

		if advanced {
			checkpoint := models.FormatDate(cursor)
			if checkpoint != rule.LastProcessedDate {
				adv := rule
				adv.LastProcessedDate = checkpoint
				res.AdvancedRules = append(res.AdvancedRules, adv)
			}
		}
	}

	return res
}
