package model

import (
	"context"
	"errors"
)

// ChatRole is the author of a transcript turn
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one entry of a per-document Q&A transcript
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Identity is the authenticated caller as known to this service
type Identity struct {
	UserID string
	// Token is the bearer credential forwarded to the query endpoint
	Token string
}

// ErrUnauthenticated is returned when an operation needs a signed-in caller
// and the IdentityProvider has none.
var ErrUnauthenticated = errors.New("user not authenticated")

// IdentityProvider resolves the current caller. ok is false when nobody is
// signed in.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (Identity, bool)
}

// IdentityFunc adapts a function to IdentityProvider
type IdentityFunc func(ctx context.Context) (Identity, bool)

func (f IdentityFunc) CurrentIdentity(ctx context.Context) (Identity, bool) {
	return f(ctx)
}
