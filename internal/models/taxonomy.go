package models

// Tag is a free-form label attachable to transactions.
type Tag struct {
	Meta

	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// Category classifies transactions and optionally belongs to a CategoryGroup.
// BudgetCents is this category's share of its group's monthly budget.
type Category struct {
	Meta

	Name        string `json:"name"`
	GroupID     string `json:"categoryGroupId,omitempty"`
	BudgetCents int64  `json:"budgetCents"`
}

// CategoryGroup bundles categories under a shared monthly budget that is
// apportioned across its member categories.
type CategoryGroup struct {
	Meta

	Name        string `json:"name"`
	BudgetCents int64  `json:"budgetCents"`
}
