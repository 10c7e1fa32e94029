package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/sales-engine/generic"
)

// =============================================================================
// PRINCIPAL
// =============================================================================

// Principal is the authenticated caller.
type Principal struct {
	UID  generic.UserID
	Role generic.Role
}

func (p Principal) IsAdmin() bool { return p.Role == generic.RoleAdmin }

// CanSeeTeam reports whether p may read other users' data.
func (p Principal) CanSeeTeam() bool {
	return p.Role == generic.RoleAdmin || p.Role == generic.RoleCoordinator
}

type ctxKey string

const principalKey ctxKey = "principal"

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// =============================================================================
// TOKENS
// =============================================================================

// Claims are issued by the identity provider: sub is the uid, role one of
// admin, coordenadora, vendedora.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errBadToken = errors.New("invalid or expired token")

// Authenticator verifies HS256 bearer tokens. A nil Authenticator (no
// secret configured) trusts the X-User-Id and X-User-Role headers instead,
// for local runs only.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret)}
}

// Sign issues a token for uid. Used by tests and the local token helper.
func (a *Authenticator) Sign(uid generic.UserID, role generic.Role, ttl time.Duration) (string, error) {
	claims := &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(uid),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a raw token and returns its principal.
func (a *Authenticator) Parse(raw string) (Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", errBadToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", errBadToken)
	}
	return Principal{UID: generic.UserID(claims.Subject), Role: generic.ParseRole(claims.Role)}, nil
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Middleware puts the caller's Principal in the request context, or answers
// 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if a == nil {
			p := Principal{
				UID:  generic.UserID(r.Header.Get("X-User-Id")),
				Role: generic.ParseRole(r.Header.Get("X-User-Role")),
			}
			if p.UID == "" {
				p.UID = "local"
			}
			if p.Role == generic.RoleNone {
				p.Role = generic.RoleAdmin
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
			return
		}

		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		p, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// RequireRole answers 403 unless the caller holds one of roles.
func RequireRole(roles ...generic.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden", nil)
		})
	}
}
