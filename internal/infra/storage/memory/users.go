package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"convo/internal/domain/user"
)

// UserDirectory stores the projected user records in memory.
type UserDirectory struct {
	mu       sync.RWMutex
	byID     map[user.ID]user.User
	byHandle map[string]user.ID
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:     make(map[user.ID]user.User),
		byHandle: make(map[string]user.ID),
	}
}

func (d *UserDirectory) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (d *UserDirectory) ByHandle(ctx context.Context, handle string) (*user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byHandle[user.NormalizeHandle(handle)]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := d.byID[id]
	return &u, nil
}

func (d *UserDirectory) ByIDs(ctx context.Context, ids []user.ID) (map[user.ID]user.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[user.ID]user.User, len(ids))
	for _, id := range ids {
		if u, ok := d.byID[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *UserDirectory) Upsert(ctx context.Context, u user.User) error {
	if u.ID == "" {
		return user.ErrIDRequired
	}
	handle := user.NormalizeHandle(u.Handle)
	d.mu.Lock()
	defer d.mu.Unlock()
	if handle != "" {
		if owner, ok := d.byHandle[handle]; ok && owner != u.ID {
			return user.ErrHandleUsed
		}
	}
	if prev, ok := d.byID[u.ID]; ok && prev.Handle != "" && prev.Handle != handle {
		delete(d.byHandle, prev.Handle)
	}
	u.Handle = handle
	d.byID[u.ID] = u
	if handle != "" {
		d.byHandle[handle] = u.ID
	}
	return nil
}

type userFixture struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// LoadUserFixtures seeds store from a JSON array of users and returns how many were loaded.
func LoadUserFixtures(ctx context.Context, store user.Store, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var fixtures []userFixture
	if err := json.Unmarshal(raw, &fixtures); err != nil {
		return 0, fmt.Errorf("memory: decode user fixtures: %w", err)
	}
	now := time.Now().UTC()
	for _, f := range fixtures {
		u, err := user.New(user.UpsertParams{ID: f.ID, Handle: f.Handle, DisplayName: f.DisplayName, AvatarURL: f.AvatarURL, UpdatedAt: now})
		if err != nil {
			return 0, err
		}
		if err := store.Upsert(ctx, u); err != nil {
			return 0, fmt.Errorf("memory: seed user %s: %w", u.ID, err)
		}
	}
	return len(fixtures), nil
}

var _ user.Store = (*UserDirectory)(nil)
