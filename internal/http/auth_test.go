package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"union-data/internal/domain"
)

func TestAuth_RoundTrip(t *testing.T) {
	auth := NewAuth("test-secret", "union-data", time.Hour)

	token, err := auth.GenerateToken("tenant-1", "member-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.TenantID != "tenant-1" || claims.MemberID != "member-1" || claims.Role != domain.RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAuth_RejectsWrongSecret(t *testing.T) {
	issuer := NewAuth("secret-a", "union-data", time.Hour)
	verifier := NewAuth("secret-b", "union-data", time.Hour)

	token, err := issuer.GenerateToken("tenant-1", "member-1", domain.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestAuth_RejectsExpiredToken(t *testing.T) {
	auth := NewAuth("test-secret", "union-data", -time.Minute)
	token, err := auth.GenerateToken("tenant-1", "member-1", domain.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestRequireRole(t *testing.T) {
	auth := NewAuth("test-secret", "union-data", time.Hour)
	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	handler := auth.RequireRole(next, domain.RoleAdmin)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/admin/api/v1/members", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("expired token returns the expiry code", func(t *testing.T) {
		expired := NewAuth("test-secret", "union-data", -time.Minute)
		token, _ := expired.GenerateToken("tenant-1", "member-1", domain.RoleAdmin)
		req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/members", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		var res Result[any]
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatal(err)
		}
		if res.Code != ResultTokenExpired {
			t.Errorf("code = %d, want %d", res.Code, ResultTokenExpired)
		}
	})

	t.Run("insufficient role", func(t *testing.T) {
		token, _ := auth.GenerateToken("tenant-1", "member-1", domain.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/members", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("admin passes and claims reach the handler", func(t *testing.T) {
		var seen *Claims
		inner := auth.RequireRole(func(w http.ResponseWriter, r *http.Request) {
			seen = ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}, domain.RoleAdmin)

		token, _ := auth.GenerateToken("tenant-1", "member-1", domain.RoleAdmin)
		req := httptest.NewRequest(http.MethodGet, "/admin/api/v1/members", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		inner(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if seen == nil || seen.TenantID != "tenant-1" {
			t.Errorf("claims not propagated: %+v", seen)
		}
	})

	t.Run("disabled auth passes everything through", func(t *testing.T) {
		open := NewAuth("", "union-data", time.Hour)
		rec := httptest.NewRecorder()
		open.RequireRole(next, domain.RoleAdmin)(rec, httptest.NewRequest(http.MethodGet, "/admin/api/v1/members", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
