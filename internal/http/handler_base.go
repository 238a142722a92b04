package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"union-data/internal/repository"
)

var errMissingTenant = errors.New("union slug is required")

// resolveTenant scopes the request: the `union` query parameter (slug)
// wins, then the token's tenant claim, then a lookup via the token's member
// claim (tokens minted before the tenant claim existed carry only the
// member id). Writes the error response itself.
func resolveTenant(w http.ResponseWriter, r *http.Request, resolver repository.TenantResolver) (string, bool) {
	if slug := strings.TrimSpace(r.URL.Query().Get("union")); slug != "" {
		tenantID, err := resolver.TenantIDBySlug(r.Context(), slug)
		if err == repository.ErrNotFound {
			writeJSON(w, http.StatusNotFound, Fail("union not found: "+slug))
			return "", false
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, Fail("failed to resolve union: "+err.Error()))
			return "", false
		}
		return tenantID, true
	}
	if c := ClaimsFromContext(r.Context()); c != nil {
		if c.TenantID != "" {
			return c.TenantID, true
		}
		if c.MemberID != "" {
			tenantID, err := resolver.TenantIDByMemberID(r.Context(), c.MemberID)
			if err == nil {
				return tenantID, true
			}
			if err != repository.ErrNotFound {
				writeJSON(w, http.StatusInternalServerError, Fail("failed to resolve union: "+err.Error()))
				return "", false
			}
		}
	}
	writeJSON(w, http.StatusBadRequest, Fail(errMissingTenant.Error()))
	return "", false
}

// pathTail returns the path segment after the prefix, rejecting nested
// segments.
func pathTail(path, prefix string) (string, bool) {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return "", false
	}
	return tail, true
}

// failStatus maps the error taxonomy to an HTTP status.
func failStatus(err error) int {
	if errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
