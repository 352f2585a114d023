package identity

import (
	"context"
	"strconv"
)

// Role values carried in authentication tokens.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Kind distinguishes authenticated users from anonymous sessions.
type Kind uint8

const (
	KindSession Kind = iota + 1
	KindUser
)

// Identity is the owner of a request: either an authenticated user or an
// anonymous session. Exactly one of UserID and SessionID is meaningful.
type Identity struct {
	Kind      Kind
	UserID    int64
	Role      string
	SessionID string
}

// User returns an authenticated identity.
func User(id int64, role string) Identity {
	return Identity{Kind: KindUser, UserID: id, Role: role}
}

// Session returns an anonymous identity.
func Session(id string) Identity {
	return Identity{Kind: KindSession, SessionID: id}
}

// IsAuthenticated reports whether the identity belongs to a signed-in user.
func (i Identity) IsAuthenticated() bool {
	return i.Kind == KindUser
}

// IsAdmin reports whether the identity is an authenticated administrator.
func (i Identity) IsAdmin() bool {
	return i.Kind == KindUser && i.Role == RoleAdmin
}

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool {
	return i.Kind == 0
}

func (i Identity) String() string {
	switch i.Kind {
	case KindUser:
		return "user:" + strconv.FormatInt(i.UserID, 10)
	case KindSession:
		return "session:" + i.SessionID
	default:
		return "anonymous"
	}
}

type ctxKey struct{}

// WithContext stores the identity in ctx.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx and whether one was present.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
