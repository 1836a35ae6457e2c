package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func serve(t *testing.T, authn *Authenticator, header string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	if next == nil {
		next = func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("handler should not execute")
		}
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/internal/cache", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	authn.RequireAdmin()(next).ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireAdmin_AllowsAdminClaim(t *testing.T) {
	verifier := &stubTokenVerifier{
		token: &firebaseauth.Token{
			UID:    "uid-123",
			Claims: map[string]interface{}{"admin": true, "email": "editor@example.org"},
		},
	}
	authn := NewAuthenticator(verifier)

	called := false
	rr := serve(t, authn, "Bearer token-value", func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.UID != "uid-123" || identity.Email != "editor@example.org" || !identity.Admin {
			t.Fatalf("unexpected identity %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if rr.Code != http.StatusNoContent || !called {
		t.Fatalf("expected handler to run, got status %d", rr.Code)
	}
	if verifier.received != "token-value" {
		t.Fatalf("expected verifier to receive token-value, got %s", verifier.received)
	}
}

func TestRequireAdmin_AllowsRoleClaimAndCustomAdminClaim(t *testing.T) {
	roleVerifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    "uid-role",
		Claims: map[string]interface{}{"role": []interface{}{"Editor", "ADMIN"}},
	}}
	if rr := serve(t, NewAuthenticator(roleVerifier), "Bearer t", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}); rr.Code != http.StatusNoContent {
		t.Fatalf("expected role claim to grant access, got %d", rr.Code)
	}

	claimVerifier := &stubTokenVerifier{token: &firebaseauth.Token{
		UID:    "uid-claim",
		Claims: map[string]interface{}{"archiveAdmin": true},
	}}
	if rr := serve(t, NewAuthenticator(claimVerifier, WithAdminClaim("archiveAdmin")), "Bearer t", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}); rr.Code != http.StatusNoContent {
		t.Fatalf("expected custom admin claim to grant access, got %d", rr.Code)
	}
}

func TestRequireAdmin_EmailAllowlistRequiresVerifiedEmail(t *testing.T) {
	claims := map[string]interface{}{"email": "Ops@Example.org", "email_verified": false}
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-ops", Claims: claims}}
	authn := NewAuthenticator(verifier, WithAdminEmails("ops@example.org"))

	rr := serve(t, authn, "Bearer t", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unverified email, got %d", rr.Code)
	}

	claims["email_verified"] = true
	rr = serve(t, authn, "Bearer t", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected verified allowlisted email to pass, got %d", rr.Code)
	}
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-456", Claims: map[string]interface{}{}}}
	rr := serve(t, NewAuthenticator(verifier), "Bearer t", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "insufficient_role" {
		t.Fatalf("expected insufficient_role, got %s", code)
	}
}

func TestRequireAdmin_TokenErrors(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		code   string
	}{
		{name: "missing header", header: "", code: "unauthenticated"},
		{name: "wrong scheme", header: "Basic abc", code: "unauthenticated"},
		{name: "expired", header: "Bearer expired", err: ErrTokenExpired, code: "token_expired"},
		{name: "invalid", header: "Bearer bad", err: errors.New("signature mismatch"), code: "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &stubTokenVerifier{err: tc.err}
			rr := serve(t, NewAuthenticator(verifier), tc.header, nil)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if code := errorCode(t, rr); code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, code)
			}
		})
	}
}
