package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"convo/internal/domain/conversation"
	"convo/internal/domain/user"
)

// ResolveRecipients maps ids or handles onto canonical user ids. Identifiers are tried as
// ids first, then as handles. Anything the directory cannot resolve is dropped, as are
// the caller and duplicates.
func ResolveRecipients(ctx context.Context, dir user.Directory, caller user.ID, raw []string) ([]user.ID, error) {
	return resolve(ctx, dir, caller, raw, false)
}

// ResolveIdentifiers resolves like ResolveRecipients but keeps unknown id-like strings so
// that RequireUsers can report them. Only an "@handle" nobody owns is dropped.
func ResolveIdentifiers(ctx context.Context, dir user.Directory, caller user.ID, raw []string) ([]user.ID, error) {
	return resolve(ctx, dir, caller, raw, true)
}

func resolve(ctx context.Context, dir user.Directory, caller user.ID, raw []string, keepUnknown bool) ([]user.ID, error) {
	if dir == nil {
		return nil, errors.New("support: user directory not configured")
	}
	trimmed := make([]string, 0, len(raw))
	candidates := make([]user.ID, 0, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		trimmed = append(trimmed, value)
		if !strings.HasPrefix(value, "@") {
			candidates = append(candidates, user.ID(value))
		}
	}
	known, err := dir.ByIDs(ctx, candidates)
	if err != nil {
		return nil, err
	}

	resolved := make([]user.ID, 0, len(trimmed))
	for _, value := range trimmed {
		if _, ok := known[user.ID(value)]; ok {
			resolved = append(resolved, user.ID(value))
			continue
		}
		found, err := dir.ByHandle(ctx, user.NormalizeHandle(value))
		switch {
		case err == nil && found != nil:
			resolved = append(resolved, found.ID)
		case err != nil && !errors.Is(err, user.ErrNotFound):
			return nil, err
		case keepUnknown && !strings.HasPrefix(value, "@"):
			resolved = append(resolved, user.ID(value))
		}
	}

	out := make([]user.ID, 0, len(resolved))
	for _, id := range conversation.MemberSet(resolved) {
		if id != caller {
			out = append(out, id)
		}
	}
	return out, nil
}

// RequireUsers loads every id from the directory and fails with a NotFound fault naming
// the ids it could not find.
func RequireUsers(ctx context.Context, dir user.Directory, ids []user.ID) (map[user.ID]user.User, error) {
	found, err := dir.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", user.ErrNotFound, strings.Join(missing, ", "))
	}
	return found, nil
}
