package models

// Transaction is a single dated expense or income entry.
//
// Amounts are integer cents throughout; the UI layer is responsible for
// formatting. A transaction created by recurrence expansion carries the
// originating rule's id in RecurringID. The Group* fields tie a transaction
// to a TransactionGroup (see group.go): GroupBaseCents is the proportional
// basis used when the group's target amount is redistributed, and Corrected
// marks a member whose amount was fixed by hand and must not be rebalanced.
type Transaction struct {
	Meta

	AmountCents    int64    `json:"amountCents"`
	Description    string   `json:"description"`
	CategoryID     string   `json:"categoryId"`
	Date           string   `json:"date"`
	TagIDs         []string `json:"tagIds,omitempty"`
	RecurringID    string   `json:"recurringId,omitempty"`
	GroupID        string   `json:"transactionGroupId,omitempty"`
	GroupBaseCents int64    `json:"groupBaseAmountCents,omitempty"`
	Corrected      bool     `json:"isCorrected,omitempty"`
	OwnerID        string   `json:"ownerId"`
}

// InGroup reports whether the transaction is a live member of a group.
func (t Transaction) InGroup() bool {
	return t.GroupID != "" && !t.Deleted
}
