package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

// TokenCookieName is the cookie that carries the JWT for browser clients.
const TokenCookieName = "token"

// ErrAccountUnavailable is returned by Accounts when a token's subject no
// longer exists or has been deactivated.
var ErrAccountUnavailable = errors.New("account not found or inactive")

// Principal is the authenticated account behind a request, loaded fresh from
// storage so role and permission changes apply to tokens already issued.
type Principal struct {
	ID          string
	Type        string
	Email       string
	Name        string
	Role        auth.Role
	Permissions auth.Permissions
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Type == auth.TypeAdmin
}

func (p *Principal) IsOwner() bool {
	return p.IsAdmin() && p.Role == auth.RoleOwner
}

// Accounts resolves validated claims to an active account.
type Accounts interface {
	Resolve(ctx context.Context, claims *auth.Claims) (*Principal, error)
}

// AccountsFunc adapts a function to Accounts.
type AccountsFunc func(ctx context.Context, claims *auth.Claims) (*Principal, error)

func (f AccountsFunc) Resolve(ctx context.Context, claims *auth.Claims) (*Principal, error) {
	return f(ctx, claims)
}

type authContextKey string

const (
	claimsKey    authContextKey = "claims"
	principalKey authContextKey = "principal"
)

// Authenticator builds the route guards.
type Authenticator struct {
	tokens     *auth.JWTManager
	accounts   Accounts
	showDetail bool
}

func NewAuthenticator(tokens *auth.JWTManager, accounts Accounts, showDetail bool) *Authenticator {
	return &Authenticator{tokens: tokens, accounts: accounts, showDetail: showDetail}
}

// Protect requires a valid token, from the Authorization header or the token
// cookie, whose account still exists and is active.
func (a *Authenticator) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			response.Fail(w, r, http.StatusUnauthorized, "Not authorized, no token", nil, a.showDetail)
			return
		}
		ctx, err := a.authenticate(r.Context(), token)
		if err != nil {
			msg := "Not authorized, token failed"
			if errors.Is(err, ErrAccountUnavailable) {
				msg = "Not authorized, account not found or inactive"
			} else if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Not authorized, token expired"
			}
			status := http.StatusUnauthorized
			if !isAuthError(err) {
				status = http.StatusInternalServerError
			}
			response.Fail(w, r, status, msg, err, a.showDetail)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional attaches the principal when a usable token is present and
// otherwise continues anonymously. It never rejects a request.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := tokenFromRequest(r); token != "" {
			if ctx, err := a.authenticate(r.Context(), token); err == nil {
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// User admits any authenticated account. Admins pass as well.
func (a *Authenticator) User(next http.Handler) http.Handler {
	return a.Protect(next)
}

// UserAccount admits user accounts only. Routes that record the caller as an
// organizer, attendee or connection need a row in users.
func (a *Authenticator) UserAccount(next http.Handler) http.Handler {
	return a.Protect(a.require(func(p *Principal) bool { return !p.IsAdmin() }, "User account required", next))
}

// Admin admits admin accounts only.
func (a *Authenticator) Admin(next http.Handler) http.Handler {
	return a.Protect(a.require(func(p *Principal) bool { return p.IsAdmin() }, "Admin access required", next))
}

// Owner admits admins with the owner role.
func (a *Authenticator) Owner(next http.Handler) http.Handler {
	return a.Protect(a.require(func(p *Principal) bool { return p.IsOwner() }, "Owner access required", next))
}

// Permission admits admins granted perm.
func (a *Authenticator) Permission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return a.Protect(a.require(func(p *Principal) bool {
			return p.IsAdmin() && p.Permissions.Has(perm)
		}, "Insufficient permissions", next))
	}
}

func (a *Authenticator) require(allow func(*Principal) bool, message string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allow(PrincipalFrom(r)) {
			response.Fail(w, r, http.StatusForbidden, message, nil, a.showDetail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(ctx context.Context, token string) (context.Context, error) {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return ctx, err
	}
	principal, err := a.accounts.Resolve(ctx, claims)
	if err != nil {
		return ctx, err
	}
	ctx = context.WithValue(ctx, claimsKey, claims)
	ctx = context.WithValue(ctx, principalKey, principal)
	return ctx, nil
}

func isAuthError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrMissingToken) ||
		errors.Is(err, ErrAccountUnavailable)
}

func tokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		token, err := auth.TokenFromHeader(header)
		if err == nil {
			return token
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// WithPrincipal returns ctx carrying p and its claims. Tests use it to skip
// token handling.
func WithPrincipal(ctx context.Context, p *Principal, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

// PrincipalFrom returns the authenticated account, or nil.
func PrincipalFrom(r *http.Request) *Principal {
	if r == nil {
		return nil
	}
	p, _ := r.Context().Value(principalKey).(*Principal)
	return p
}

// ClaimsFrom returns the validated token claims, or nil.
func ClaimsFrom(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	c, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return c
}
