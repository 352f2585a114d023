// Package identity resolves the owner of a request from its credentials.
package identity

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionLifetime is how long clients keep an anonymous session token.
const SessionLifetime = 30 * 24 * time.Hour

// Claims is the payload of an authentication token.
type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Evidence is the raw credential material presented by a request.
type Evidence struct {
	Token     string
	SessionID string
}

// Resolution is the outcome of resolving a request identity.
type Resolution struct {
	Identity Identity
	// NewSession is set when a session id was allocated and must be persisted
	// by the client.
	NewSession bool
	// StaleSession holds the session id presented alongside a valid token.
	// Its cart should be merged into the user's cart.
	StaleSession string
}

// Resolver turns request evidence into exactly one Identity.
type Resolver struct {
	secret    []byte
	now       func() time.Time
	newSessID func() string
}

// NewResolver creates a Resolver that verifies HS256 tokens signed with secret.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{
		secret:    secret,
		now:       time.Now,
		newSessID: func() string { return uuid.New().String() },
	}
}

// Resolve never fails: unusable tokens are treated as absent and a fresh
// session is allocated when nothing else identifies the caller.
func (r *Resolver) Resolve(ev Evidence) Resolution {
	session := ""
	if validSessionID(ev.SessionID) {
		session = ev.SessionID
	}

	if ev.Token != "" {
		if c, err := r.Verify(ev.Token); err == nil {
			return Resolution{
				Identity:     User(c.UserID, c.Role),
				StaleSession: session,
			}
		}
	}

	if session != "" {
		return Resolution{Identity: Session(session)}
	}
	return Resolution{Identity: Session(r.newSessID()), NewSession: true}
}

// Verify parses and validates an authentication token.
func (r *Resolver) Verify(token string) (*Claims, error) {
	if len(r.secret) == 0 {
		return nil, errors.New("token verification disabled")
	}
	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if c.UserID <= 0 {
		return nil, errors.New("token has no user")
	}
	if c.Role == "" {
		c.Role = RoleUser
	}
	return &c, nil
}

// Issue signs a token for userID valid for ttl.
func (r *Resolver) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	if len(r.secret) == 0 {
		return "", errors.New("token signing disabled")
	}
	now := r.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// validSessionID accepts at most 128 bytes of printable ASCII without spaces.
// The id travels as a cookie value, and RFC 6265 cookie-octets exclude
// space; request ids (httpmiddleware.RequestID) are header values and may
// contain it.
func validSessionID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x21 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
