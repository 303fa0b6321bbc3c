package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tallybook/tallybook/internal/client/ledger"
	"github.com/tallybook/tallybook/internal/models"
)

// setupAuto wires ledger -> autosync -> orchestrator the way the client
// binary does, with test-sized windows.
func setupAuto(t *testing.T, opts Options) (*ledger.Ledger, *AutoSync, *fakeRemote) {
	t.Helper()
	rm := &fakeRemote{}

	var auto *AutoSync
	l := newTestLedger(t, models.Dataset{}, func(ch ledger.Change) {
		auto.Notify(ch.FromSync)
	})
	o := New(rm, l, nil, opts, nil)
	auto = NewAutoSync(o)
	t.Cleanup(auto.Stop)
	return l, auto, rm
}

func TestAutoSync_DebouncesBursts(t *testing.T) {
	l, _, rm := setupAuto(t, testOptions())

	for _, name := range []string{"food", "rent", "fuel"} {
		_, err := l.PutTag(context.Background(), models.Tag{Name: name})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return rm.writeCount() == 1 },
		time.Second, 5*time.Millisecond)

	// The burst collapses to one push; nothing else fires afterwards.
	time.Sleep(3 * testOptions().DebounceDelay)
	require.Equal(t, 1, rm.writeCount())
	require.Len(t, rm.lastWrite.Tags, 3)
}

func TestAutoSync_IgnoresSyncOriginatedChanges(t *testing.T) {
	l, _, rm := setupAuto(t, testOptions())

	err := l.ReplaceAll(context.Background(), models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 4}}},
	})
	require.NoError(t, err)

	time.Sleep(3 * testOptions().DebounceDelay)
	require.Equal(t, 0, rm.writeCount())
}

func TestAutoSync_SuppressedDuringPostSyncQuiet(t *testing.T) {
	opts := testOptions()
	opts.PostSyncQuiet = time.Hour
	l, _, rm := setupAuto(t, opts)

	_, err := l.PutTag(context.Background(), models.Tag{Name: "food"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rm.writeCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Inside the quiet window the debounce fires but the push is dropped.
	_, err = l.PutTag(context.Background(), models.Tag{Name: "rent"})
	require.NoError(t, err)

	time.Sleep(3 * opts.DebounceDelay)
	require.Equal(t, 1, rm.writeCount())
}

func TestAutoSync_StopDropsPendingFire(t *testing.T) {
	l, auto, rm := setupAuto(t, testOptions())

	_, err := l.PutTag(context.Background(), models.Tag{Name: "food"})
	require.NoError(t, err)
	auto.Stop()

	time.Sleep(3 * testOptions().DebounceDelay)
	require.Equal(t, 0, rm.writeCount())
}

func TestAutoSync_DisabledNeverArms(t *testing.T) {
	opts := testOptions()
	opts.AutoSync = false
	l, _, rm := setupAuto(t, opts)

	_, err := l.PutTag(context.Background(), models.Tag{Name: "food"})
	require.NoError(t, err)

	time.Sleep(3 * opts.DebounceDelay)
	require.Equal(t, 0, rm.writeCount())
}
