package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	mgr := NewManager("unit-secret", time.Hour)

	token, claims, err := mgr.IssueToken("driver-7", RoleDriver)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if claims.Subject != "driver-7" || claims.Role != RoleDriver {
		t.Fatalf("issued claims = %+v", claims)
	}

	parsed, err := mgr.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if parsed.Subject != "driver-7" || parsed.Role != RoleDriver {
		t.Fatalf("parsed claims = %+v", parsed)
	}
}

func TestWrongSecretIsRejected(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour).IssueToken("driver-7", RoleDriver)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := NewManager("secret-b", time.Hour).ParseAndValidate(token); err == nil {
		t.Fatal("token signed with another secret validated")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	mgr := NewManager("unit-secret", -time.Minute)
	token, _, err := mgr.IssueToken("driver-7", RoleDriver)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := mgr.ParseAndValidate(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestFromAuthorizationQueryFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/events?token=abc", nil)
	tok, err := FromAuthorization(r)
	if err != nil || tok != "abc" {
		t.Fatalf("query token = %q, %v", tok, err)
	}

	r = httptest.NewRequest(http.MethodGet, "/events", nil)
	if _, err := FromAuthorization(r); err != ErrNoAuthHeader {
		t.Fatalf("err = %v, want ErrNoAuthHeader", err)
	}
}

func TestAuthMiddlewareEnforcesRole(t *testing.T) {
	mgr := NewManager("unit-secret", time.Hour)
	driverToken, _, _ := mgr.IssueToken("driver-7", RoleDriver)

	dispatcherOnly := AuthMiddlewareFunc(mgr, RoleDispatcher)
	var reached bool
	h := dispatcherOnly(func(w http.ResponseWriter, r *http.Request) { reached = true })

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+driverToken)
	w := httptest.NewRecorder()
	h(w, r)

	if reached || w.Code != http.StatusForbidden {
		t.Fatalf("driver reached dispatcher route: reached=%v code=%d", reached, w.Code)
	}

	// right role passes and claims land in the context
	driverOnly := AuthMiddlewareFunc(mgr, RoleDriver)
	var subject string
	h = driverOnly(func(w http.ResponseWriter, r *http.Request) {
		if c := RequireClaims(r); c != nil {
			subject = c.Subject
		}
	})
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+driverToken)
	w = httptest.NewRecorder()
	h(w, r)

	if w.Code != http.StatusOK || subject != "driver-7" {
		t.Fatalf("driver route: code=%d subject=%q", w.Code, subject)
	}
}
