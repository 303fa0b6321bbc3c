package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

func TestMemory_Users(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, User{ID: "u1", Username: "Alice"}))

	// Lookup is case-insensitive, as is the uniqueness check.
	u, err := m.UserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	require.ErrorIs(t, m.CreateUser(ctx, User{ID: "u2", Username: "ALICE"}), ErrUsernameTaken)

	_, err = m.UserByUsername(ctx, "bob")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemory_DatasetIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ds := models.Dataset{
		Tags: []models.Tag{{Meta: models.Meta{ID: "t1", Version: 1}, Name: "food"}},
	}
	require.NoError(t, m.ReplaceDataset(ctx, "u1", ds))

	got, err := m.Dataset(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, ds, got)

	// Mutating the returned copy must not touch stored state.
	got.Tags[0].Name = "changed"
	again, err := m.Dataset(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "food", again.Tags[0].Name)

	other, err := m.Dataset(ctx, "u2")
	require.NoError(t, err)
	require.True(t, other.Empty())
}
