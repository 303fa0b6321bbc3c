package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

// memStore keeps the dataset in memory and counts writes.
type memStore struct {
	data  models.Dataset
	saves int
}

func (m *memStore) LoadAll(ctx context.Context) (models.Dataset, error) { return m.data, nil }
func (m *memStore) SaveAll(ctx context.Context, ds models.Dataset) error {
	m.data = ds
	m.saves++
	return nil
}

func testClock() func() time.Time {
	t := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openLedger(t *testing.T, st *memStore, changes *[]Change) *Ledger {
	t.Helper()
	opts := Options{Clock: testClock()}
	if changes != nil {
		opts.OnChange = func(c Change) { *changes = append(*changes, c) }
	}
	l, err := Open(context.Background(), st, opts)
	require.NoError(t, err)
	return l
}

func TestPut_NewRecordStartsAtVersion1(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)

	out, err := l.PutTransaction(context.Background(), models.Transaction{
		AmountCents: -500,
		Description: "lunch",
		Date:        "2026-05-01",
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID, "ids are minted, never positional")
	require.EqualValues(t, 1, out.Version)
	require.False(t, out.LastModified.IsZero())
}

func TestPut_EveryMutationBumpsByExactlyOne(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()

	rec, err := l.PutTransaction(ctx, models.Transaction{Description: "a"})
	require.NoError(t, err)

	for want := int64(2); want <= 5; want++ {
		rec.Description = "edit"
		rec, err = l.PutTransaction(ctx, rec)
		require.NoError(t, err)
		require.EqualValues(t, want, rec.Version)
	}
}

func TestPut_StaleCallerVersionIsIgnored(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()

	rec, err := l.PutTransaction(ctx, models.Transaction{Description: "a"})
	require.NoError(t, err)
	rec, err = l.PutTransaction(ctx, rec)
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.Version)

	// A copy holding an old version still lands on stored+1.
	stale := rec
	stale.Version = 1
	out, err := l.PutTransaction(ctx, stale)
	require.NoError(t, err)
	require.EqualValues(t, 3, out.Version)
}

func TestDelete_IsATombstoneMutation(t *testing.T) {
	st := &memStore{}
	l := openLedger(t, st, nil)
	ctx := context.Background()

	rec, err := l.PutTransaction(ctx, models.Transaction{Description: "a"})
	require.NoError(t, err)

	require.NoError(t, l.DeleteTransaction(ctx, rec.ID))

	snap := l.Snapshot()
	require.Len(t, snap.Transactions, 1, "no hard deletes")
	require.True(t, snap.Transactions[0].Deleted)
	require.EqualValues(t, 2, snap.Transactions[0].Version)
	require.Empty(t, snap.LiveTransactions())
}

func TestDelete_MissingRecord(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	err := l.DeleteTransaction(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPut_ClearsConflictFlag(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()

	rec, err := l.PutTransaction(ctx, models.Transaction{Description: "a"})
	require.NoError(t, err)
	rec.Conflicted = true

	out, err := l.PutTransaction(ctx, rec)
	require.NoError(t, err)
	require.False(t, out.Conflicted, "a clean mutation sheds the conflict mark")
}

func TestMutations_PersistAndNotify(t *testing.T) {
	st := &memStore{}
	var changes []Change
	l := openLedger(t, st, &changes)
	ctx := context.Background()

	_, err := l.PutTag(ctx, models.Tag{Name: "food"})
	require.NoError(t, err)
	require.Equal(t, 1, st.saves)
	require.Len(t, changes, 1)
	require.False(t, changes[0].FromSync)

	require.Len(t, st.data.Tags, 1)
}

func TestReplaceAll_MarksChangeFromSync(t *testing.T) {
	st := &memStore{}
	var changes []Change
	l := openLedger(t, st, &changes)

	err := l.ReplaceAll(context.Background(), models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t", Version: 4}, Name: "x"}},
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.True(t, changes[0].FromSync)

	snap := l.Snapshot()
	require.EqualValues(t, 4, snap.Tags[0].Version, "sync results keep their versions")
}

func TestPutUserSetting_CompositeKeyUpsert(t *testing.T) {
	l := openLedger(t, &memStore{}, nil)
	ctx := context.Background()

	s1, err := l.PutUserSetting(ctx, models.UserSetting{
		Meta: models.Meta{ID: "s1"}, OwnerID: "u1", SettingKey: "theme", Value: "dark",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, s1.Version)

	// Same (owner, key) is an update, even with a different id minted by
	// another device.
	s2, err := l.PutUserSetting(ctx, models.UserSetting{
		Meta: models.Meta{ID: "s1"}, OwnerID: "u1", SettingKey: "theme", Value: "light",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, s2.Version)

	require.Len(t, l.Snapshot().UserSettings, 1)
}

func TestExpandRecurring_RoutesThroughMutationPath(t *testing.T) {
	st := &memStore{}
	l := openLedger(t, st, nil)
	ctx := context.Background()

	rule, err := l.PutRecurringTransaction(ctx, models.RecurringTransaction{
		AmountCents: -2000,
		Description: "rent",
		Frequency:   models.FrequencyMonthly,
		StartDate:   "2026-02-01",
	})
	require.NoError(t, err)

	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	res, err := l.ExpandRecurring(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, res.NewTransactions, 3)

	snap := l.Snapshot()
	require.Len(t, snap.Transactions, 3)
	for _, tx := range snap.Transactions {
		require.EqualValues(t, 1, tx.Version, "synthesized transactions are ordinary creations")
		require.Equal(t, rule.ID, tx.RecurringID)
	}

	// Rule checkpoint advanced through the same path.
	require.Len(t, snap.RecurringTransactions, 1)
	require.Equal(t, "2026-04-01", snap.RecurringTransactions[0].LastProcessedDate)
	require.EqualValues(t, 2, snap.RecurringTransactions[0].Version)

	// Second pass: nothing due, nothing written.
	saves := st.saves
	res, err = l.ExpandRecurring(ctx, asOf)
	require.NoError(t, err)
	require.Empty(t, res.NewTransactions)
	require.Equal(t, saves+1, st.saves, "the pass itself persists once")
	require.Equal(t, "2026-04-01", l.Snapshot().RecurringTransactions[0].LastProcessedDate)
}
