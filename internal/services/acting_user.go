package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

type userGetter interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
}

// ResolveActingUser decides once per request whose data an operation acts on.
// An empty override means the caller acts for themselves. A non-empty one
// names another user by id; whether the caller may do so is the concern of
// the identity layer.
func ResolveActingUser(ctx context.Context, users userGetter, callerID int64, override string) (core.ActingUser, error) {
	override = strings.TrimSpace(override)
	if override == "" {
		u, err := users.GetUser(ctx, callerID)
		if err != nil {
			return core.ActingUser{}, fmt.Errorf("resolve caller %d: %w", callerID, err)
		}
		return core.ActingUser{ID: u.ID, Username: u.Username, CallerID: callerID}, nil
	}

	id, err := strconv.ParseInt(override, 10, 64)
	if err != nil || id <= 0 {
		return core.ActingUser{}, core.FieldError("user_id", "A valid integer is required.")
	}
	u, err := users.GetUser(ctx, id)
	if errors.Is(err, core.ErrUserNotFound) {
		return core.ActingUser{}, core.FieldError("user_id", "User with this ID does not exist")
	}
	if err != nil {
		return core.ActingUser{}, fmt.Errorf("resolve acting user %d: %w", id, err)
	}
	return core.ActingUser{ID: u.ID, Username: u.Username, CallerID: callerID}, nil
}
