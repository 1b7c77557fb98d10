package muxhandlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vitalvas/routeprobe/mux"
)

// ErrNoKeySource is returned when BearerAuthConfig has neither Key nor
// KeyFunc configured.
var ErrNoKeySource = errors.New("bearer auth: one of Key or KeyFunc must be set")

type bearerClaimsKey struct{}

// BearerClaims returns the verified claims stored by BearerAuthMiddleware.
func BearerClaims(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(bearerClaimsKey{}).(jwt.MapClaims)
	return claims, ok
}

// BearerAuthConfig configures the bearer token middleware.
//
// See https://www.rfc-editor.org/rfc/rfc6750
type BearerAuthConfig struct {
	// Key verifies token signatures, e.g. a []byte HMAC secret or an
	// *rsa.PublicKey.
	Key any

	// KeyFunc resolves the verification key per token. Takes priority over
	// Key when both are set.
	KeyFunc jwt.Keyfunc

	// Algorithms restricts accepted signing methods. Defaults to HS256.
	Algorithms []string

	// Issuer, when set, must match the "iss" claim.
	Issuer string

	// Audience, when set, must be present in the "aud" claim.
	Audience string

	// Leeway tolerates clock skew when checking time based claims.
	Leeway time.Duration
}

// BearerAuthMiddleware returns a middleware that verifies a JWT carried in
// the Authorization header. Rejected requests are answered with 401 and
// reported as a FilterBearerAuth rejection. Verified claims are available
// downstream through BearerClaims.
func BearerAuthMiddleware(cfg BearerAuthConfig) (mux.MiddlewareFunc, error) {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		if cfg.Key == nil {
			return nil, ErrNoKeySource
		}
		key := cfg.Key
		keyFunc = func(*jwt.Token) (any, error) { return key, nil }
	}

	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{jwt.SigningMethodHS256.Alg()}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(algorithms),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				reject(w, r, FilterBearerAuth, http.StatusUnauthorized, "missing authorization header")
				return
			}

			scheme, token, found := strings.Cut(auth, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				reject(w, r, FilterBearerAuth, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(token, claims, keyFunc); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				reject(w, r, FilterBearerAuth, http.StatusUnauthorized, classifyTokenError(err))
				return
			}

			ctx := context.WithValue(r.Context(), bearerClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func classifyTokenError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "invalid token issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "invalid token audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "invalid token signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable token"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	default:
		return "invalid token"
	}
}
