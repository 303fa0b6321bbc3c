// Package ledger is the record model: the authoritative in-memory copy of
// every synchronized collection, with the single mutation path that upholds
// the versioning contract.
//
// Every mutation bumps the record's version by exactly 1, stamps
// LastModified from the injected clock, and clears any transient conflict
// flag. Deletion is soft: a tombstone mutation, never a removal, so merges
// across devices that saw the deletion at different times still converge.
// The full dataset is mirrored to the persistence port on every change, and
// a change notification fires so the sync layer can schedule a push.
package ledger

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/logging"
	"github.com/tallybook/tallybook/internal/models"
	"github.com/tallybook/tallybook/internal/recurrence"
)

// Store is the local persistence collaborator: synchronous key-value
// storage for the full dataset, read once at startup and written on every
// state change.
type Store interface {
	LoadAll(ctx context.Context) (models.Dataset, error)
	SaveAll(ctx context.Context, ds models.Dataset) error
}

// Change describes a state transition for observers. FromSync marks changes
// produced by applying a pull or merge result; the auto-sync debouncer must
// not re-arm on those, or every sync would schedule the next one.
type Change struct {
	FromSync bool
}

// Options configure a Ledger. Zero values fall back to the wall clock,
// random UUIDs, a nop logger and no change listener.
type Options struct {
	Clock    func() time.Time
	NewID    func() string
	Logger   logging.Logger
	OnChange func(Change)
}

// Ledger owns the in-memory dataset. The remote store is a peer, never a
// master: merged sync results re-enter through ReplaceAll, not through any
// private side door, so the versioning invariants hold uniformly.
type Ledger struct {
	mu       sync.Mutex
	data     models.Dataset
	store    Store
	now      func() time.Time
	newID    func() string
	onChange func(Change)
	log      logging.Logger
}

// Open loads the persisted dataset and returns a ready ledger.
func Open(ctx context.Context, store Store, opts Options) (*Ledger, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	data, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	return &Ledger{
		data:     data,
		store:    store,
		now:      opts.Clock,
		newID:    opts.NewID,
		onChange: opts.OnChange,
		log:      opts.Logger,
	}, nil
}

// Snapshot returns a copy of the current dataset, tombstones included.
func (l *Ledger) Snapshot() models.Dataset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneDataset(l.data)
}

// ReplaceAll swaps in a dataset produced by sync (pull result or merge
// output), persists it, and notifies observers with FromSync set.
func (l *Ledger) ReplaceAll(ctx context.Context, ds models.Dataset) error {
	return l.mutate(ctx, Change{FromSync: true}, func() error {
		l.data = cloneDataset(ds)
		return nil
	})
}

// mutable ties an entity value type to its pointer method set.
type mutable[T any] interface {
	*T
	Key() (string, error)
	MetaRef() *models.Meta
}

// mutate runs fn under the lock, persists the resulting dataset, and fires
// the change notification. fn failures leave the in-memory state untouched
// only if fn itself made no changes; mutation helpers therefore validate
// before writing.
func (l *Ledger) mutate(ctx context.Context, ch Change, fn func() error) error {
	l.mu.Lock()
	if err := fn(); err != nil {
		l.mu.Unlock()
		return err
	}
	err := l.store.SaveAll(ctx, l.data)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persist dataset: %w", err)
	}
	if l.onChange != nil {
		l.onChange(ch)
	}
	return nil
}

func findIndex[T any, PT mutable[T]](list []T, key string) int {
	for i := range list {
		k, err := PT(&list[i]).Key()
		if err == nil && k == key {
			return i
		}
	}
	return -1
}

// putRecord applies a create-or-update mutation. The stored version, not
// the caller's copy, is the base for the bump: an existing record always
// moves to existing.Version+1, a new one starts at 1.
func putRecord[T any, PT mutable[T]](l *Ledger, list *[]T, rec T) (T, error) {
	p := PT(&rec)
	m := p.MetaRef()
	if m.ID == "" {
		m.ID = l.newID()
	}
	key, err := p.Key()
	if err != nil {
		return rec, err
	}

	idx := findIndex[T, PT](*list, key)
	if idx >= 0 {
		m.Version = PT(&(*list)[idx]).MetaRef().Version + 1
	} else {
		m.Version = 1
	}
	m.LastModified = l.now()
	m.Conflicted = false

	if idx >= 0 {
		(*list)[idx] = rec
	} else {
		*list = append(*list, rec)
	}
	return rec, nil
}

// deleteRecord applies a tombstone mutation.
func deleteRecord[T any, PT mutable[T]](l *Ledger, list []T, key string) error {
	idx := findIndex[T, PT](list, key)
	if idx < 0 {
		return common.ErrNotFound
	}
	m := PT(&list[idx]).MetaRef()
	if m.Deleted {
		return nil
	}
	m.Deleted = true
	m.Version++
	m.LastModified = l.now()
	m.Conflicted = false
	return nil
}

func (l *Ledger) PutTransaction(ctx context.Context, rec models.Transaction) (models.Transaction, error) {
	var out models.Transaction
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.Transaction](l, &l.data.Transactions, rec)
		return err
	})
	return out, err
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	return l.mutate(ctx, Change{}, func() error {
		return deleteRecord[models.Transaction](l, l.data.Transactions, id)
	})
}

func (l *Ledger) PutRecurringTransaction(ctx context.Context, rec models.RecurringTransaction) (models.RecurringTransaction, error) {
	var out models.RecurringTransaction
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.RecurringTransaction](l, &l.data.RecurringTransactions, rec)
		return err
	})
	return out, err
}

func (l *Ledger) DeleteRecurringTransaction(ctx context.Context, id string) error {
	return l.mutate(ctx, Change{}, func() error {
		return deleteRecord[models.RecurringTransaction](l, l.data.RecurringTransactions, id)
	})
}

func (l *Ledger) PutTag(ctx context.Context, rec models.Tag) (models.Tag, error) {
	var out models.Tag
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.Tag](l, &l.data.Tags, rec)
		return err
	})
	return out, err
}

func (l *Ledger) DeleteTag(ctx context.Context, id string) error {
	return l.mutate(ctx, Change{}, func() error {
		return deleteRecord[models.Tag](l, l.data.Tags, id)
	})
}

func (l *Ledger) PutCategory(ctx context.Context, rec models.Category) (models.Category, error) {
	var out models.Category
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.Category](l, &l.data.Categories, rec)
		return err
	})
	return out, err
}

func (l *Ledger) DeleteCategory(ctx context.Context, id string) error {
	return l.mutate(ctx, Change{}, func() error {
		return deleteRecord[models.Category](l, l.data.Categories, id)
	})
}

func (l *Ledger) PutCategoryGroup(ctx context.Context, rec models.CategoryGroup) (models.CategoryGroup, error) {
	var out models.CategoryGroup
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.CategoryGroup](l, &l.data.CategoryGroups, rec)
		return err
	})
	return out, err
}

func (l *Ledger) DeleteCategoryGroup(ctx context.Context, id string) error {
	return l.mutate(ctx, Change{}, func() error {
		return deleteRecord[models.CategoryGroup](l, l.data.CategoryGroups, id)
	})
}

func (l *Ledger) PutUser(ctx context.Context, rec models.User) (models.User, error) {
	var out models.User
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.User](l, &l.data.Users, rec)
		return err
	})
	return out, err
}

func (l *Ledger) PutUserSetting(ctx context.Context, rec models.UserSetting) (models.UserSetting, error) {
	var out models.UserSetting
	err := l.mutate(ctx, Change{}, func() (err error) {
		out, err = putRecord[models.UserSetting](l, &l.data.UserSettings, rec)
		return err
	})
	return out, err
}

// ExpandRecurring runs the recurrence engine against the current state and
// routes everything it produced through the mutation path in one persisted
// step. Skipped rules are logged and reported, never fatal.
func (l *Ledger) ExpandRecurring(ctx context.Context, asOf time.Time) (recurrence.Result, error) {
	var res recurrence.Result
	err := l.mutate(ctx, Change{}, func() error {
		res = recurrence.Expand(l.data.RecurringTransactions, l.data.Transactions, asOf, recurrence.Options{
			NewID: l.newID,
		})
		for _, tx := range res.NewTransactions {
			if _, err := putRecord[models.Transaction](l, &l.data.Transactions, tx); err != nil {
				return err
			}
		}
		for _, rule := range res.AdvancedRules {
			if _, err := putRecord[models.RecurringTransaction](l, &l.data.RecurringTransactions, rule); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return recurrence.Result{}, err
	}
	for _, s := range res.Skipped {
		l.log.Warn(ctx, "recurrence rule skipped", "rule", s.RuleID, "reason", s.Reason)
	}
	return res, nil
}

func cloneDataset(ds models.Dataset) models.Dataset {
	out := ds
	out.Transactions = append([]models.Transaction(nil), ds.Transactions...)
	out.RecurringTransactions = append([]models.RecurringTransaction(nil), ds.RecurringTransactions...)
	out.TransactionGroups = append([]models.TransactionGroup(nil), ds.TransactionGroups...)
	out.Tags = append([]models.Tag(nil), ds.Tags...)
	out.Categories = append([]models.Category(nil), ds.Categories...)
	out.CategoryGroups = append([]models.CategoryGroup(nil), ds.CategoryGroups...)
	out.Users = append([]models.User(nil), ds.Users...)
	out.UserSettings = append([]models.UserSetting(nil), ds.UserSettings...)
	return out
}

// samePayload compares two transactions ignoring their envelopes, so group
// operations can avoid version churn on members whose values did not move.
func samePayload(a, b models.Transaction) bool {
	a.Meta, b.Meta = models.Meta{}, models.Meta{}
	return reflect.DeepEqual(a, b)
}
