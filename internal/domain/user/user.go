package user

import (
	"context"
	"strings"
	"time"

	"convo/internal/domain/shared/fault"
)

var (
	ErrIDRequired = fault.Invalid("user: id is required")
	ErrNotFound   = fault.New(fault.NotFound, "user: not found")
	ErrHandleUsed = fault.New(fault.Conflict, "user: handle already used")
)

type ID string

// User is the read-only projection of an account owned by the identity service.
type User struct {
	ID          ID
	Handle      string
	DisplayName string
	AvatarURL   string
	UpdatedAt   time.Time
}

// Label is the name shown in notices and conversation titles.
func (u User) Label() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if handle := strings.TrimSpace(u.Handle); handle != "" {
		return handle
	}
	return string(u.ID)
}

// Directory resolves identifiers to users. Implementations never fail with ErrNotFound
// from ByIDs; missing ids are simply absent from the result.
type Directory interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByHandle(ctx context.Context, handle string) (*User, error)
	ByIDs(ctx context.Context, ids []ID) (map[ID]User, error)
}

// Store is the writable side of the directory, fed by the identity service events.
type Store interface {
	Directory
	Upsert(ctx context.Context, u User) error
}

type UpsertParams struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	UpdatedAt   time.Time
}

func New(params UpsertParams) (User, error) {
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return User{}, ErrIDRequired
	}
	updated := params.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return User{
		ID:          ID(id),
		Handle:      NormalizeHandle(params.Handle),
		DisplayName: strings.TrimSpace(params.DisplayName),
		AvatarURL:   strings.TrimSpace(params.AvatarURL),
		UpdatedAt:   updated.UTC(),
	}, nil
}

// NormalizeHandle lowercases a handle and strips a leading "@".
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}
