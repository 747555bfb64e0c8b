package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/mealshare-backend/api/responses"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
	"github.com/angelmondragon/mealshare-backend/pkg/logger"
)

// credential bodies are tiny; anything larger is not a login or register
const maxCredentialBody = 16 << 10

// AuthRateLimitPolicy throttles one credential endpoint by client IP and by
// the account identity named in the request body.
type AuthRateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	identityLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, identityLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, identityLimit: identityLimit}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.identityLimit > 0)
}

func (p AuthRateLimitPolicy) scope(kind, value string) string {
	return "auth:" + p.name + ":" + kind + ":" + value
}

// AuthRateLimit counts attempts per client IP, then per hashed identity;
// the first counter over its limit answers 429. Behind a proxy, client IPs
// are only meaningful once chi's RealIP has rewritten RemoteAddr.
func AuthRateLimit(policy AuthRateLimitPolicy, limiter windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.ipLimit > 0 {
				if ip := remoteIP(r); ip != "" &&
					!allowHit(w, r, logg, limiter, policy.scope("ip", ip), policy.ipLimit, policy.window, "auth.rate_limit.blocked") {
					return
				}
			}

			if policy.identityLimit > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody+1))
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
					return
				}
				if len(body) > maxCredentialBody {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				if identity := credentialIdentity(body); identity != "" &&
					!allowHit(w, r, logg, limiter, policy.scope("identity", identity), policy.identityLimit, policy.window, "auth.rate_limit.blocked") {
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// credentialIdentity hashes the email, else the username, lowercased so
// casing cannot dodge the counter and raw addresses never reach Redis.
func credentialIdentity(payload []byte) string {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	identity := strings.ToLower(strings.TrimSpace(body.Email))
	if identity == "" {
		identity = strings.ToLower(strings.TrimSpace(body.Username))
	}
	if identity == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:16])
}
