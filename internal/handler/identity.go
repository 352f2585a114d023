package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/phoneplace/internal/domain/identity"
)

// Identify resolves the caller from the auth token (cookie or bearer header)
// and the session cookie, issues a session cookie to new anonymous callers,
// and folds a leftover session cart into the user's cart after login.
func (h *Handler) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ev := identity.Evidence{Token: bearerToken(r)}
		if ev.Token == "" {
			if c, err := r.Cookie(h.cfg.AuthCookie); err == nil {
				ev.Token = c.Value
			}
		}
		if c, err := r.Cookie(h.cfg.SessionCookie); err == nil {
			ev.SessionID = c.Value
		}

		res := h.resolver.Resolve(ev)
		ctx := r.Context()
		id := res.Identity

		switch {
		case res.NewSession:
			http.SetCookie(w, h.sessionCookie(id.SessionID, int(h.cfg.SessionLifetime.Seconds())))
		case res.StaleSession != "":
			if _, err := h.carts.MergeSessionCart(ctx, res.StaleSession, id.UserID); err != nil {
				// The session cookie is kept so the merge is retried next time.
				zctx.From(ctx).Warn("Session cart merge failed",
					zap.Stringer("identity", id),
					zap.Error(err),
				)
				break
			}
			http.SetCookie(w, h.sessionCookie("", -1))
		}

		next.ServeHTTP(w, r.WithContext(identity.WithContext(ctx, id)))
	})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requestIdentity returns the identity stored by Identify.
func requestIdentity(r *http.Request) identity.Identity {
	id, _ := identity.FromContext(r.Context())
	return id
}

// Me reports who the caller is.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := requestIdentity(r)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("authenticated")
		e.Bool(id.IsAuthenticated())
		if id.IsAuthenticated() {
			e.FieldStart("userId")
			e.Int64(id.UserID)
			e.FieldStart("role")
			e.Str(id.Role)
		} else {
			e.FieldStart("sessionId")
			e.Str(id.SessionID)
		}
		e.ObjEnd()
	})
}
