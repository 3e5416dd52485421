package httputil

import (
	"context"
	"net/http"
	"strings"

	"github.com/bkotelnikov/shopadmin/internal/domain"
	"github.com/bkotelnikov/shopadmin/internal/policy"
)

// Cookie names shared by handlers and guards.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

const actorKey contextKey = "actor"

// TokenValidator validates access tokens.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (userID string, role domain.Role, err error)
}

// ActorResolver loads the user profile behind a validated token.
type ActorResolver interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ReadinessWaiter blocks until session state is known or a bounded
// timeout elapses. Guards consult it before every decision so the same
// policy applies while the identity backend is still initializing.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context)
}

// AuthMiddleware is the authenticated gate. Requests without a valid
// session are rejected with a redirect to the login view. The actor is
// resolved once and stored in the request context as an immutable
// snapshot; a blocked actor is rejected even with a valid token.
func AuthMiddleware(tracker ReadinessWaiter, validator TokenValidator, resolver ActorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.WaitReady(r.Context())

			token := extractToken(r)
			if token == "" {
				Redirect(w, policy.TargetLogin)
				return
			}

			userID, _, err := validator.ValidateAccessToken(r.Context(), token)
			if err != nil {
				Redirect(w, policy.TargetLogin)
				return
			}

			actor, err := resolver.GetUserByID(r.Context(), userID)
			if err != nil || actor == nil {
				Redirect(w, policy.TargetLogin)
				return
			}
			if actor.Blocked {
				Error(w, http.StatusForbidden, "account is blocked")
				return
			}

			snapshot := *actor
			ctx := context.WithValue(r.Context(), actorKey, &snapshot)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AnonymousOnly is the anonymous-only gate: requests carrying a valid
// session are redirected to the catalog.
func AnonymousOnly(tracker ReadinessWaiter, validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracker.WaitReady(r.Context())

			if token := extractToken(r); token != "" {
				if _, _, err := validator.ValidateAccessToken(r.Context(), token); err == nil {
					Redirect(w, policy.TargetProducts)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole creates RBAC middleware rejecting actors below minRole.
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := Actor(r.Context())
			if actor == nil {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			if !actor.Role.HasPermission(minRole) {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PolicyGuard is the role gate: it consults policy.Decide for the given
// view target and redirects denied actors.
func PolicyGuard(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := Actor(r.Context())
			var role domain.Role
			if actor != nil {
				role = actor.Role
			}

			decision := policy.Decide(role, target)
			if !decision.Allowed {
				Redirect(w, decision.RedirectTo)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Actor extracts the authenticated user snapshot from context.
func Actor(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(actorKey).(*domain.User); ok {
		return u
	}
	return nil
}

// WithActor returns a context carrying the given actor snapshot.
// Used by tests and internal callers.
func WithActor(ctx context.Context, actor *domain.User) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// extractToken pulls the access token from the Authorization header or,
// failing that, the access token cookie.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
