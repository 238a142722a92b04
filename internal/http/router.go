package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"union-data/internal/domain"
)

// Router uses the standard library http.ServeMux; every route is wrapped
// with the metrics middleware and, where needed, a role check.
type Router struct {
	mux    *http.ServeMux
	auth   *Auth
	logger *zap.Logger
}

func NewRouter(auth *Auth, logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		auth:   auth,
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, withMetrics(pattern, h))
}

// handleAdmin requires an admin or sysadmin token when auth is enabled.
func (r *Router) handleAdmin(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, r.auth.RequireRole(h, domain.RoleAdmin, domain.RoleSysadmin))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterOps health and metrics endpoints.
func (r *Router) RegisterOps() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// RegisterAuthRoutes registration flow and invite redemption; no token
// required, the tenant comes from the union slug or the invite token.
func (r *Router) RegisterAuthRoutes(m *MemberHandler, i *InviteHandler) {
	r.Handle("/auth/api/v1/register", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		m.Register(w, req)
	})
	r.Handle("/auth/api/v1/register/precheck", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		m.Precheck(w, req)
	})
	r.Handle("/auth/api/v1/register/link", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		m.LinkAuth(w, req)
	})
	r.Handle("/auth/api/v1/invites/redeem", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		i.Redeem(w, req)
	})
}

// RegisterPublicRoutes unauthenticated slug resolution.
func (r *Router) RegisterPublicRoutes(t *TenantHandler) {
	r.Handle("/public/api/v1/unions/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		t.Resolve(w, req)
	})
}

// RegisterAdminRoutes member registry, land/building data, invites,
// tenants and uploads.
func (r *Router) RegisterAdminRoutes(m *MemberHandler, g *GISHandler, i *InviteHandler, t *TenantHandler, u *UploadHandler) {
	r.handleAdmin("/admin/api/v1/members", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		m.List(w, req)
	})
	r.handleAdmin("/admin/api/v1/members/export", i.ExportRoster)
	r.handleAdmin("/admin/api/v1/members/", m.ByID)

	r.handleAdmin("/admin/api/v1/land-lots", g.LandLots)
	r.handleAdmin("/admin/api/v1/land-lots/", g.LandLotByCode)
	r.handleAdmin("/admin/api/v1/buildings", g.Buildings)
	r.handleAdmin("/admin/api/v1/buildings/", g.BuildingByID)

	r.handleAdmin("/admin/api/v1/invites", i.Invites)
	r.handleAdmin("/admin/api/v1/invites/bulk", i.BulkInvite)
	r.handleAdmin("/admin/api/v1/invites/", i.Revoke)

	r.handleAdmin("/admin/api/v1/tenants", t.Tenants)
	r.handleAdmin("/admin/api/v1/tenants/", t.ByID)

	r.handleAdmin("/admin/api/v1/uploads", u.Upload)
}

// RegisterGISRoutes parcel-building matching and geocoding.
func (r *Router) RegisterGISRoutes(g *GISHandler) {
	r.handleAdmin("/gis/api/v1/match", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Match(w, req)
	})
	r.handleAdmin("/gis/api/v1/merge", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Merge(w, req)
	})
	r.handleAdmin("/gis/api/v1/merge/undo", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.UndoMerge(w, req)
	})
	r.handleAdmin("/gis/api/v1/merge/batch", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.BatchMerge(w, req)
	})
	r.handleAdmin("/gis/api/v1/mappings/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Mapping(w, req)
	})
	r.Handle("/gis/api/v1/geocode", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.Geocode(w, req)
	})
}

// RegisterConsentRoutes consent stages, submission and aggregation.
func (r *Router) RegisterConsentRoutes(c *ConsentHandler) {
	r.handleAdmin("/consent/api/v1/stages", c.Stages)
	r.handleAdmin("/consent/api/v1/consents", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		c.SetConsent(w, req)
	})
	r.handleAdmin("/consent/api/v1/parcels/", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		c.ParcelSummary(w, req)
	})
	r.handleAdmin("/consent/api/v1/summary", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		c.TenantSummary(w, req)
	})
	// Map overview is read by the public map page as well.
	r.Handle("/consent/api/v1/map-overview", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		c.MapOverview(w, req)
	})
}
