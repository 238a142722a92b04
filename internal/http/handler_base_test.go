package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func resolveWithClaims(t *testing.T, target string, claims *Claims, resolver *fakeResolver) (string, bool, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), claimsKey{}, claims))
	}
	rec := httptest.NewRecorder()
	tenantID, ok := resolveTenant(rec, req, resolver)
	return tenantID, ok, rec
}

func TestResolveTenant_SlugWinsOverClaims(t *testing.T) {
	resolver := &fakeResolver{slugs: map[string]string{"gangnam-union": "t-slug"}}
	tenantID, ok, _ := resolveWithClaims(t, "/x?union=gangnam-union", &Claims{TenantID: "t-claim"}, resolver)
	if !ok || tenantID != "t-slug" {
		t.Errorf("resolveTenant = %q, %v, want t-slug, true", tenantID, ok)
	}
}

func TestResolveTenant_TenantClaim(t *testing.T) {
	tenantID, ok, _ := resolveWithClaims(t, "/x", &Claims{TenantID: "t-claim"}, &fakeResolver{})
	if !ok || tenantID != "t-claim" {
		t.Errorf("resolveTenant = %q, %v, want t-claim, true", tenantID, ok)
	}
}

func TestResolveTenant_MemberClaimFallback(t *testing.T) {
	resolver := &fakeResolver{members: map[string]string{"m-1": "t-member"}}
	tenantID, ok, _ := resolveWithClaims(t, "/x", &Claims{MemberID: "m-1"}, resolver)
	if !ok || tenantID != "t-member" {
		t.Errorf("resolveTenant = %q, %v, want t-member, true", tenantID, ok)
	}
}

func TestResolveTenant_UnknownMemberIs400(t *testing.T) {
	_, ok, rec := resolveWithClaims(t, "/x", &Claims{MemberID: "m-unknown"}, &fakeResolver{})
	if ok {
		t.Fatal("resolveTenant ok = true, want false")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResolveTenant_NoSlugNoClaimsIs400(t *testing.T) {
	_, ok, rec := resolveWithClaims(t, "/x", nil, &fakeResolver{})
	if ok {
		t.Fatal("resolveTenant ok = true, want false")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
