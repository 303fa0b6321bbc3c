// Package merge reconciles record sets from different origins into one,
// using the record version as the sole source of truth for precedence.
// Wall-clock time never participates in ordering: client clocks are not
// trusted.
package merge

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/tallybook/tallybook/internal/models"
)

// record ties an entity value type to the pointer method set the resolver
// needs. Every type in models satisfies it through the embedded Meta.
type record[T any] interface {
	*T
	Key() (string, error)
	MetaRef() *models.Meta
}

// Records reconciles three sets of the same entity type: local state, the
// remote store's state, and conflicting records a rejected push reported.
//
// Sets are processed conflicting first, then remote, then local. A record
// replaces the entry under its key only when its version is strictly higher,
// so on a version tie the earlier-processed origin wins: conflicting over
// remote over local. After the pass, a winner whose version equals a
// same-key conflicting record's version is flagged Conflicted for human
// review; every other winner has any stale flag cleared.
//
// The inputs are never mutated and versions are never changed; the resolver
// only selects. A record whose key cannot be derived fails the whole batch.
func Records[T any, PT record[T]](local, remote, conflicting []T) ([]T, error) {
	winners := make(map[string]T)
	// Highest version seen per key among the conflicting set. The eventual
	// winner's version is >= this by construction, so an equality check is
	// enough to detect a tie with the conflicting origin.
	conflictVersion := make(map[string]int64)

	absorb := func(origin string, recs []T) error {
		for i := range recs {
			rec := recs[i]
			p := PT(&rec)
			key, err := p.Key()
			if err != nil {
				return fmt.Errorf("%s record %d: %w", origin, i, err)
			}
			existing, ok := winners[key]
			if !ok || p.MetaRef().Version > PT(&existing).MetaRef().Version {
				winners[key] = rec
			}
			if origin == "conflicting" && p.MetaRef().Version > conflictVersion[key] {
				conflictVersion[key] = p.MetaRef().Version
			}
		}
		return nil
	}

	if err := absorb("conflicting", conflicting); err != nil {
		return nil, err
	}
	if err := absorb("remote", remote); err != nil {
		return nil, err
	}
	if err := absorb("local", local); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(winners))
	for _, k := range keys {
		rec := winners[k]
		cv, tied := conflictVersion[k]
		PT(&rec).MetaRef().Conflicted = tied && PT(&rec).MetaRef().Version == cv
		out = append(out, rec)
	}
	return out, nil
}

// Datasets applies Records per entity type. A type whose batch fails keeps
// the local records untouched; failures are aggregated so one bad type never
// aborts the others.
func Datasets(local, remote, conflicting models.Dataset) (models.Dataset, error) {
	var out models.Dataset
	var errs error

	perType := func(kind models.EntityType, err error) error {
		if err != nil {
			return fmt.Errorf("merge %s: %w", kind, err)
		}
		return nil
	}

	var err error
	if out.Transactions, err = Records(local.Transactions, remote.Transactions, conflicting.Transactions); err != nil {
		out.Transactions = local.Transactions
		errs = multierr.Append(errs, perType(models.EntityTransactions, err))
	}
	if out.RecurringTransactions, err = Records(local.RecurringTransactions, remote.RecurringTransactions, conflicting.RecurringTransactions); err != nil {
		out.RecurringTransactions = local.RecurringTransactions
		errs = multierr.Append(errs, perType(models.EntityRecurring, err))
	}
	if out.TransactionGroups, err = Records(local.TransactionGroups, remote.TransactionGroups, conflicting.TransactionGroups); err != nil {
		out.TransactionGroups = local.TransactionGroups
		errs = multierr.Append(errs, perType(models.EntityTransactionGroups, err))
	}
	if out.Tags, err = Records(local.Tags, remote.Tags, conflicting.Tags); err != nil {
		out.Tags = local.Tags
		errs = multierr.Append(errs, perType(models.EntityTags, err))
	}
	if out.Categories, err = Records(local.Categories, remote.Categories, conflicting.Categories); err != nil {
		out.Categories = local.Categories
		errs = multierr.Append(errs, perType(models.EntityCategories, err))
	}
	if out.CategoryGroups, err = Records(local.CategoryGroups, remote.CategoryGroups, conflicting.CategoryGroups); err != nil {
		out.CategoryGroups = local.CategoryGroups
		errs = multierr.Append(errs, perType(models.EntityCategoryGroups, err))
	}
	if out.Users, err = Records(local.Users, remote.Users, conflicting.Users); err != nil {
		out.Users = local.Users
		errs = multierr.Append(errs, perType(models.EntityUsers, err))
	}
	if out.UserSettings, err = Records(local.UserSettings, remote.UserSettings, conflicting.UserSettings); err != nil {
		out.UserSettings = local.UserSettings
		errs = multierr.Append(errs, perType(models.EntityUserSettings, err))
	}

	return out, errs
}
