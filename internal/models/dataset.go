package models

import (
	"fmt"

	"github.com/tallybook/tallybook/internal/common"
)

// EntityType names one synchronized collection. The values double as wire
// field names and storage keys.
type EntityType string

const (
	EntityTransactions      EntityType = "transactions"
	EntityRecurring         EntityType = "recurringTransactions"
	EntityTransactionGroups EntityType = "transactionGroups"
	EntityTags              EntityType = "tags"
	EntityCategories        EntityType = "categories"
	EntityCategoryGroups    EntityType = "categoryGroups"
	EntityUsers             EntityType = "users"
	EntityUserSettings      EntityType = "userSettings"
)

// EntityTypes lists every synchronized collection in a fixed order.
var EntityTypes = []EntityType{
	EntityTransactions,
	EntityRecurring,
	EntityTransactionGroups,
	EntityTags,
	EntityCategories,
	EntityCategoryGroups,
	EntityUsers,
	EntityUserSettings,
}

// Dataset is the full record set exchanged with the remote store: one slice
// per entity type, live and tombstoned records alike.
type Dataset struct {
	Transactions          []Transaction          `json:"transactions"`
	RecurringTransactions []RecurringTransaction `json:"recurringTransactions"`
	TransactionGroups     []TransactionGroup     `json:"transactionGroups"`
	Tags                  []Tag                  `json:"tags"`
	Categories            []Category             `json:"categories"`
	CategoryGroups        []CategoryGroup        `json:"categoryGroups"`
	Users                 []User                 `json:"users"`
	UserSettings          []UserSetting          `json:"userSettings"`
}

// RecordCount returns the total number of records across all types.
func (d Dataset) RecordCount() int {
	return len(d.Transactions) + len(d.RecurringTransactions) +
		len(d.TransactionGroups) + len(d.Tags) + len(d.Categories) +
		len(d.CategoryGroups) + len(d.Users) + len(d.UserSettings)
}

// Empty reports whether the dataset holds no records at all.
func (d Dataset) Empty() bool { return d.RecordCount() == 0 }

// recordPtr ties an entity value type to its pointer method set.
type recordPtr[T any] interface {
	*T
	Key() (string, error)
	MetaRef() *Meta
}

func validateRecords[T any, PT recordPtr[T]](kind EntityType, recs []T) error {
	for i := range recs {
		p := PT(&recs[i])
		k, err := p.Key()
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		if p.MetaRef().Version < 1 {
			return fmt.Errorf("%s %q: version %d: %w",
				kind, k, p.MetaRef().Version, common.ErrMalformedRecord)
		}
	}
	return nil
}

// Validate checks that every record is well-formed: a derivable logical key
// and a version of at least 1. A pulled dataset must pass before it may
// replace local state.
func (d Dataset) Validate() error {
	if err := validateRecords[Transaction](EntityTransactions, d.Transactions); err != nil {
		return err
	}
	if err := validateRecords[RecurringTransaction](EntityRecurring, d.RecurringTransactions); err != nil {
		return err
	}
	if err := validateRecords[TransactionGroup](EntityTransactionGroups, d.TransactionGroups); err != nil {
		return err
	}
	if err := validateRecords[Tag](EntityTags, d.Tags); err != nil {
		return err
	}
	if err := validateRecords[Category](EntityCategories, d.Categories); err != nil {
		return err
	}
	if err := validateRecords[CategoryGroup](EntityCategoryGroups, d.CategoryGroups); err != nil {
		return err
	}
	if err := validateRecords[User](EntityUsers, d.Users); err != nil {
		return err
	}
	return validateRecords[UserSetting](EntityUserSettings, d.UserSettings)
}

// TypeValidators returns one independent validation func per entity type so
// callers can fan validation out over a worker pool. Each func checks the
// same contract as Validate for its own slice only.
func (d Dataset) TypeValidators() map[EntityType]func() error {
	return map[EntityType]func() error{
		EntityTransactions: func() error {
			return validateRecords[Transaction](EntityTransactions, d.Transactions)
		},
		EntityRecurring: func() error {
			return validateRecords[RecurringTransaction](EntityRecurring, d.RecurringTransactions)
		},
		EntityTransactionGroups: func() error {
			return validateRecords[TransactionGroup](EntityTransactionGroups, d.TransactionGroups)
		},
		EntityTags: func() error {
			return validateRecords[Tag](EntityTags, d.Tags)
		},
		EntityCategories: func() error {
			return validateRecords[Category](EntityCategories, d.Categories)
		},
		EntityCategoryGroups: func() error {
			return validateRecords[CategoryGroup](EntityCategoryGroups, d.CategoryGroups)
		},
		EntityUsers: func() error {
			return validateRecords[User](EntityUsers, d.Users)
		},
		EntityUserSettings: func() error {
			return validateRecords[UserSetting](EntityUserSettings, d.UserSettings)
		},
	}
}

// LiveTransactions returns the non-deleted transactions.
func (d Dataset) LiveTransactions() []Transaction {
	out := make([]Transaction, 0, len(d.Transactions))
	for _, t := range d.Transactions {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	return out
}
