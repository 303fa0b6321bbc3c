package storage

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/models"
)

// Memory is the in-memory backend: the default for development and tests.
// Datasets are stored as JSON blobs so reads hand out copies, same as the
// postgres backend.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]User // keyed by lowercase username
	datasets map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]User),
		datasets: make(map[string][]byte),
	}
}

func (m *Memory) CreateUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := m.users[key]; ok {
		return ErrUsernameTaken
	}
	m.users[key] = u
	return nil
}

func (m *Memory) UserByUsername(ctx context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.ToLower(username)]
	if !ok {
		return User{}, common.ErrNotFound
	}
	return u, nil
}

func (m *Memory) Dataset(ctx context.Context, ownerID string) (models.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.datasets[ownerID]
	if !ok {
		return models.Dataset{}, nil
	}
	var ds models.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return models.Dataset{}, err
	}
	return ds, nil
}

func (m *Memory) ReplaceDataset(ctx context.Context, ownerID string, ds models.Dataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ownerID] = raw
	return nil
}

func (m *Memory) Close() error { return nil }
