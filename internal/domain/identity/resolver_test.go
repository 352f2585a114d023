package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, userID int64, role string, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	s, err := tok.SignedString(secret)
	require.NoError(t, err)
	return s
}

func newTestResolver() *Resolver {
	r := NewResolver(testSecret)
	r.newSessID = func() string { return "fresh-session" }
	return r
}

func TestResolve(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name     string
		evidence func(t *testing.T) Evidence
		want     Resolution
	}{
		{
			name:     "nothing presented allocates a session",
			evidence: func(*testing.T) Evidence { return Evidence{} },
			want:     Resolution{Identity: Session("fresh-session"), NewSession: true},
		},
		{
			name:     "existing session is reused",
			evidence: func(*testing.T) Evidence { return Evidence{SessionID: "abc"} },
			want:     Resolution{Identity: Session("abc")},
		},
		{
			name: "valid token wins over session",
			evidence: func(t *testing.T) Evidence {
				return Evidence{Token: signToken(t, testSecret, 7, RoleAdmin, future), SessionID: "abc"}
			},
			want: Resolution{Identity: User(7, RoleAdmin), StaleSession: "abc"},
		},
		{
			name: "valid token without session",
			evidence: func(t *testing.T) Evidence {
				return Evidence{Token: signToken(t, testSecret, 9, RoleUser, future)}
			},
			want: Resolution{Identity: User(9, RoleUser)},
		},
		{
			name: "expired token falls back to session",
			evidence: func(t *testing.T) Evidence {
				return Evidence{Token: signToken(t, testSecret, 7, RoleUser, past), SessionID: "abc"}
			},
			want: Resolution{Identity: Session("abc")},
		},
		{
			name: "token signed with another key falls back to new session",
			evidence: func(t *testing.T) Evidence {
				return Evidence{Token: signToken(t, []byte("other"), 7, RoleUser, future)}
			},
			want: Resolution{Identity: Session("fresh-session"), NewSession: true},
		},
		{
			name:     "malformed token is ignored",
			evidence: func(*testing.T) Evidence { return Evidence{Token: "not-a-jwt", SessionID: "abc"} },
			want:     Resolution{Identity: Session("abc")},
		},
		{
			name:     "session id with a space is replaced",
			evidence: func(*testing.T) Evidence { return Evidence{SessionID: "bad id"} },
			want:     Resolution{Identity: Session("fresh-session"), NewSession: true},
		},
		{
			name:     "session id with control characters is replaced",
			evidence: func(*testing.T) Evidence { return Evidence{SessionID: "bad\nid"} },
			want:     Resolution{Identity: Session("fresh-session"), NewSession: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver()
			got := r.Resolve(tt.evidence(t))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_DefaultsRoleToUser(t *testing.T) {
	r := newTestResolver()
	tok := signToken(t, testSecret, 3, "", time.Now().Add(time.Hour))

	got := r.Resolve(Evidence{Token: tok})

	assert.Equal(t, User(3, RoleUser), got.Identity)
}

func TestResolve_RejectsTokenWithoutExpiry(t *testing.T) {
	r := newTestResolver()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 3, Role: RoleUser}).SignedString(testSecret)
	require.NoError(t, err)

	got := r.Resolve(Evidence{Token: tok})

	assert.True(t, got.NewSession)
	assert.False(t, got.Identity.IsAuthenticated())
}

func TestResolve_NoSecretDisablesTokens(t *testing.T) {
	r := NewResolver(nil)
	tok := signToken(t, testSecret, 3, RoleUser, time.Now().Add(time.Hour))

	got := r.Resolve(Evidence{Token: tok, SessionID: "abc"})

	assert.Equal(t, Session("abc"), got.Identity)
}

func TestNewResolver_SessionIDsAreUnique(t *testing.T) {
	r := NewResolver(testSecret)

	a := r.Resolve(Evidence{})
	b := r.Resolve(Evidence{})

	assert.True(t, a.NewSession)
	assert.NotEqual(t, a.Identity.SessionID, b.Identity.SessionID)
	assert.Len(t, a.Identity.SessionID, 36)
}

func TestIdentity_Roles(t *testing.T) {
	assert.True(t, User(1, RoleAdmin).IsAdmin())
	assert.False(t, User(1, RoleUser).IsAdmin())
	assert.False(t, Session("x").IsAdmin())
	assert.False(t, Session("x").IsAuthenticated())
	assert.Equal(t, "user:1", User(1, RoleUser).String())
	assert.Equal(t, "session:x", Session("x").String())
}

func TestIssue_RoundTrip(t *testing.T) {
	r := NewResolver(testSecret)

	tok, err := r.Issue(5, RoleAdmin, time.Hour)
	require.NoError(t, err)

	c, err := r.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.UserID)
	assert.Equal(t, RoleAdmin, c.Role)

	_, err = NewResolver(nil).Issue(5, RoleAdmin, time.Hour)
	require.Error(t, err)
}
