// Package storage persists server-side users and per-user datasets. The
// dataset is stored whole: the API replaces it atomically on every accepted
// write, so record-level rows buy nothing here.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tallybook/tallybook/internal/models"
)

// ErrUsernameTaken reports a registration against an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// User is a server-side account.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Storage is the persistence contract behind the HTTP API.
type Storage interface {
	CreateUser(ctx context.Context, u User) error
	UserByUsername(ctx context.Context, username string) (User, error)

	// Dataset returns the user's stored dataset; a user with no stored
	// data gets an empty one, not an error.
	Dataset(ctx context.Context, ownerID string) (models.Dataset, error)
	ReplaceDataset(ctx context.Context, ownerID string, ds models.Dataset) error

	Close() error
}
