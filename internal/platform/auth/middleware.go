package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/platform/httpx"
	"github.com/memorial-heritage/api/internal/platform/requestctx"
)

const (
	defaultRoleClaim     = "role"
	defaultAdminClaim    = "admin"
	defaultVerifyTimeout = 5 * time.Second
)

// ErrTokenExpired signals that the provided Firebase ID token has expired.
var ErrTokenExpired = errors.New("auth: firebase id token expired")

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator guards internal routes with Firebase ID tokens.
type Authenticator struct {
	verifier    TokenVerifier
	roleClaim   string
	adminClaim  string
	adminEmails map[string]struct{}
	timeout     time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim holding the role list.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithAdminClaim sets the boolean custom claim that marks administrators.
func WithAdminClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.adminClaim = claim
		}
	}
}

// WithAdminEmails grants admin access to the listed verified email addresses.
func WithAdminEmails(emails ...string) Option {
	return func(a *Authenticator) {
		for _, email := range emails {
			if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
				a.adminEmails[email] = struct{}{}
			}
		}
	}
}

// WithVerificationTimeout bounds token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:    verifier,
		roleClaim:   defaultRoleClaim,
		adminClaim:  defaultAdminClaim,
		adminEmails: make(map[string]struct{}),
		timeout:     defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAdmin rejects requests that do not carry a valid ID token belonging to an administrator.
// Missing or invalid tokens yield 401; valid tokens without admin rights yield 403.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization header missing or invalid", http.StatusUnauthorized))
				return
			}
			if a == nil || a.verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authorization service unavailable", http.StatusUnauthorized))
				return
			}

			identity, err := a.verify(ctx, tokenStr)
			if err != nil {
				writeVerificationError(ctx, w, err)
				return
			}
			if !identity.Admin {
				httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "administrator access required", http.StatusForbidden))
				return
			}
			logger := requestctx.Logger(ctx).With(zap.String("user_id", identity.UID))
			ctx = requestctx.WithLogger(WithIdentity(ctx, identity), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) verify(ctx context.Context, tokenStr string) (*Identity, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		UID:           token.UID,
		Email:         claimAsString(token.Claims, "email"),
		EmailVerified: claimAsBool(token.Claims, "email_verified"),
		Roles:         rolesFromClaims(token.Claims, a.roleClaim),
	}
	identity.Admin = claimAsBool(token.Claims, a.adminClaim) || identity.HasRole(RoleAdmin)
	if !identity.Admin && identity.EmailVerified {
		_, identity.Admin = a.adminEmails[strings.ToLower(identity.Email)]
	}
	return identity, nil
}

func rolesFromClaims(claims map[string]interface{}, key string) []string {
	var raw []string
	switch v := claims[key].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case map[string]interface{}:
		for role, enabled := range v {
			if b, ok := enabled.(bool); ok && b {
				raw = append(raw, role)
			}
		}
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, role := range raw {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func claimAsString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func claimAsBool(claims map[string]interface{}, key string) bool {
	v, ok := claims[key].(bool)
	return ok && v
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeVerificationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		httpx.WriteError(ctx, w, httpx.NewError("token_expired", "firebase id token expired", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "firebase id token invalid", http.StatusUnauthorized))
	}
}
