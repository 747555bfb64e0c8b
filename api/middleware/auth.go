package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	pkgAuth "github.com/angelmondragon/mealshare-backend/pkg/auth"
	"github.com/angelmondragon/mealshare-backend/pkg/auth/session"
	"github.com/angelmondragon/mealshare-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

// websocket handshakes from browsers cannot carry an Authorization header
const accessTokenQueryParam = "access_token"

// Auth admits requests carrying a valid access token whose session is still
// live, and stores the caller's id and username on the context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r, cfg, verifier)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithUsername(WithUserID(r.Context(), claims.UserID.String()), claims.Username)
			ctx = logg.WithUserID(ctx, claims.UserID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, verifier session.AccessSessionChecker) (*pkgAuth.AccessTokenClaims, error) {
	token := presentedToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := checkSession(r.Context(), verifier, claims.ID); err != nil {
		return nil, err
	}
	return claims, nil
}

// checkSession rejects tokens whose refresh session was revoked by logout,
// logout-all or rotation, even though the JWT itself has not expired.
func checkSession(ctx context.Context, verifier session.AccessSessionChecker, accessID string) error {
	if verifier == nil {
		return nil
	}
	ok, err := verifier.HasSession(ctx, accessID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked")
	}
	return nil
}

func presentedToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			return ""
		}
		return strings.TrimSpace(r.URL.Query().Get(accessTokenQueryParam))
	}
	if scheme, token, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return raw
}
