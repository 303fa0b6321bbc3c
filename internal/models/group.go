package models

import "time"

// TransactionGroup constrains a set of transactions to sum to a fixed target.
//
// Membership lives on the transactions themselves (Transaction.GroupID); the
// group only carries the invariant target. A group with fewer than two live
// members is dissolved.
type TransactionGroup struct {
	Meta

	TargetCents int64     `json:"targetAmountCents"`
	CreatedAt   time.Time `json:"createdAt"`
}
